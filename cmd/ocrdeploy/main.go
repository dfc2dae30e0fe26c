package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cfg is the loaded deploy.yaml, resolved once before any command runs.
var cfg *ConfigDoc

var rootCmd = &cobra.Command{
	Use:          "ocrdeploy",
	Short:        "Deploy and operate the Chandra OCR serverless endpoint on RunPod",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = loadConfigDoc(viper.GetString("config"))
		return cfg.SetupLogging()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd.Context(), pipelineOptionsFromViper())
	},
}

// runCmd is an explicit alias of the root pipeline.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load the env file, run preflight and delegate to the deployment program",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd.Context(), pipelineOptionsFromViper())
	},
}

func init() {
	// Defaults
	v := viper.GetViper()
	v.SetDefault("env_file", ".env.runpod")
	v.SetDefault("config", "deploy.yaml")
	v.SetDefault("program", "deploy_runpod.py")

	// Environment variables support: OCRDEPLOY_ENV_FILE, OCRDEPLOY_CONFIG, ...
	v.SetEnvPrefix("OCRDEPLOY")
	v.AutomaticEnv()
	// Bind flags via Cobra and then bind to Viper
	rootCmd.PersistentFlags().String("env-file", v.GetString("env_file"), "path to the KEY=VALUE deployment env file")
	rootCmd.PersistentFlags().String("config", v.GetString("config"), "path to the deploy yaml (optional, defaults apply without it)")
	rootCmd.PersistentFlags().String("program", v.GetString("program"), "deployment program to delegate to")

	_ = v.BindPFlag("env_file", rootCmd.PersistentFlags().Lookup("env-file"))
	_ = v.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("program", rootCmd.PersistentFlags().Lookup("program"))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(localCmd)
	rootCmd.AddCommand(mockCmd)
	rootCmd.AddCommand(invokeCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ec *exitCodeError
		if errors.As(err, &ec) {
			exitHandler.LogErrorAndExit(ec.Code(), err, "deployment pipeline failed")
		}
		exitHandler.LogFatalError(err, "command execution failed")
	}
}
