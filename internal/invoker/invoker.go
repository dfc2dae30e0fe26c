// Package invoker executes the external deployment program and propagates
// its exit status unchanged.
package invoker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/loykin/ocrdeploy/internal/common"
)

// ErrDelegatedDeploymentFailed indicates the external program exited non-zero.
var ErrDelegatedDeploymentFailed = errors.New("delegated deployment failed")

// DefaultProgram is the deployment helper shipped alongside this tool.
const DefaultProgram = "deploy_runpod.py"

// Invocation describes one delegated run. The child inherits the current
// process environment, which the configuration loader has already populated.
type Invocation struct {
	Runtime string   // runtime executable, e.g. python3
	Program string   // program path passed to the runtime
	Args    []string // extra program arguments
}

// Result is the observed outcome of a delegated run.
type Result struct {
	ExitCode int
}

// Run executes the program and returns its exit code. A non-zero exit
// produces both the code and ErrDelegatedDeploymentFailed so callers can
// fail fast while still propagating the child's own status.
func (inv Invocation) Run(ctx context.Context) (Result, error) {
	logger := common.GetLogger().WithComponent("invoker")

	argv := append([]string{inv.Program}, inv.Args...)
	cmd := exec.CommandContext(ctx, inv.Runtime, argv...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	logger.Info("delegating deployment", "runtime", inv.Runtime, "program", inv.Program)
	err := cmd.Run()
	if err == nil {
		return Result{ExitCode: 0}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		return Result{ExitCode: code},
			fmt.Errorf("%w: %s exited with code %d", ErrDelegatedDeploymentFailed, inv.Program, code)
	}
	// The program could not be started at all; report exit code 1.
	return Result{ExitCode: 1},
		fmt.Errorf("%w: %s: %v", ErrDelegatedDeploymentFailed, inv.Program, err)
}
