package main

import (
	"context"

	"github.com/spf13/viper"

	"github.com/loykin/ocrdeploy/internal/common"
	"github.com/loykin/ocrdeploy/internal/dotenv"
	"github.com/loykin/ocrdeploy/internal/invoker"
	"github.com/loykin/ocrdeploy/internal/preflight"
)

// exitCodeError carries the process exit status a failure should produce,
// so a delegated program's own code survives to os.Exit.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }
func (e *exitCodeError) Code() int     { return e.code }

// pipelineOptions describes one delegated deployment run.
type pipelineOptions struct {
	EnvFile    string
	Check      preflight.Check
	Invocation invoker.Invocation
}

func pipelineOptionsFromViper() pipelineOptions {
	check := preflight.Default()
	return pipelineOptions{
		EnvFile: viper.GetString("env_file"),
		Check:   check,
		Invocation: invoker.Invocation{
			Runtime: check.Runtime,
			Program: viper.GetString("program"),
		},
	}
}

// loadEnvironment loads the env file, verifies the credential and exports
// everything into the process environment. Any failure here stops the run
// before preflight or invocation happens.
func loadEnvironment(path string) (dotenv.Map, error) {
	logger := common.GetLogger().WithComponent("config")

	res, err := dotenv.Load(path)
	if err != nil {
		return nil, err
	}
	for _, w := range res.Warnings {
		logger.Warn("env file: "+w, "path", path)
	}
	logger.Info("configuration loaded", "path", path, "keys", len(res.KeysSet))

	if err := dotenv.RequireCredential(res.Values); err != nil {
		return nil, err
	}
	if err := dotenv.Export(res.Values); err != nil {
		return nil, err
	}
	return res.Values, nil
}

// runPipeline is the default command: load configuration, verify the host,
// then hand off to the deployment program exactly once. The child's exit
// code is propagated through exitCodeError.
func runPipeline(ctx context.Context, opts pipelineOptions) error {
	if _, err := loadEnvironment(opts.EnvFile); err != nil {
		return &exitCodeError{code: 1, err: err}
	}

	if err := opts.Check.Run(ctx); err != nil {
		return &exitCodeError{code: 1, err: err}
	}

	res, err := opts.Invocation.Run(ctx)
	if err != nil {
		return &exitCodeError{code: res.ExitCode, err: err}
	}
	common.GetLogger().WithComponent("main").Info("deployment completed",
		"program", opts.Invocation.Program)
	return nil
}
