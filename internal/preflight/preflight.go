// Package preflight verifies the host has what the delegated deployment
// program needs: the runtime executable itself and its platform SDK package.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/loykin/ocrdeploy/internal/common"
)

var (
	// ErrRuntimeMissing indicates the runtime executable is not on PATH.
	ErrRuntimeMissing = errors.New("runtime missing")
	// ErrDependencyInstallFailed indicates the package install exited non-zero.
	ErrDependencyInstallFailed = errors.New("dependency install failed")
)

// Defaults match the deployment helper's requirements.
const (
	DefaultRuntime = "python3"
	DefaultPackage = "runpod"
)

// Check describes one preflight pass: a runtime that must resolve on PATH and
// a package installed through that runtime's package manager.
type Check struct {
	Runtime     string
	Package     string
	InstallArgs []string // full argv for the install command; empty means pip via Runtime
}

// Default returns the stock check used by the deployment pipeline.
func Default() Check {
	return Check{Runtime: DefaultRuntime, Package: DefaultPackage}
}

func (c Check) installCommand() []string {
	if len(c.InstallArgs) > 0 {
		return c.InstallArgs
	}
	return []string{c.Runtime, "-m", "pip", "install", "--quiet", c.Package}
}

// Run resolves the runtime and installs the package. Both failures are fatal
// to the caller; nothing is retried.
func (c Check) Run(ctx context.Context) error {
	logger := common.GetLogger().WithComponent("preflight")

	path, err := exec.LookPath(c.Runtime)
	if err != nil {
		return fmt.Errorf("%w: %s not found on PATH", ErrRuntimeMissing, c.Runtime)
	}
	logger.Debug("runtime found", "runtime", c.Runtime, "path", path)

	argv := c.installCommand()
	logger.Info("installing dependency", "package", c.Package)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDependencyInstallFailed, c.Package, err)
	}
	logger.Debug("dependency ready", "package", c.Package)
	return nil
}
