package preflight

import (
	"context"
	"errors"
	"testing"
)

func TestRun_RuntimeMissing(t *testing.T) {
	c := Check{Runtime: "ocrdeploy-no-such-runtime", Package: "runpod"}
	err := c.Run(context.Background())
	if !errors.Is(err, ErrRuntimeMissing) {
		t.Fatalf("expected ErrRuntimeMissing, got %v", err)
	}
}

func TestRun_InstallFailurePropagates(t *testing.T) {
	// "sh" stands in for the runtime; the install command is forced to fail.
	c := Check{
		Runtime:     "sh",
		Package:     "runpod",
		InstallArgs: []string{"sh", "-c", "exit 3"},
	}
	err := c.Run(context.Background())
	if !errors.Is(err, ErrDependencyInstallFailed) {
		t.Fatalf("expected ErrDependencyInstallFailed, got %v", err)
	}
}

func TestRun_Success(t *testing.T) {
	c := Check{
		Runtime:     "sh",
		Package:     "runpod",
		InstallArgs: []string{"sh", "-c", "exit 0"},
	}
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInstallCommand_Default(t *testing.T) {
	c := Default()
	argv := c.installCommand()
	want := []string{"python3", "-m", "pip", "install", "--quiet", "runpod"}
	if len(argv) != len(want) {
		t.Fatalf("argv = %v", argv)
	}
	for i := range want {
		if argv[i] != want[i] {
			t.Fatalf("argv[%d] = %q, want %q", i, argv[i], want[i])
		}
	}
}
