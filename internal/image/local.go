package image

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
)

// LocalRunOptions describes a local handler container used for smoke testing
// the image before it is pushed and deployed.
type LocalRunOptions struct {
	Tag           string
	Name          string
	HostPort      int
	ContainerPort int
	Env           map[string]string
	GPU           bool
}

// RunLocal creates and starts a handler container with the test port bound on
// localhost, returning the container id.
func (b *Builder) RunLocal(ctx context.Context, opts LocalRunOptions) (string, error) {
	logger := b.logger.WithImage(opts.Tag)

	if opts.ContainerPort == 0 {
		opts.ContainerPort = 8000
	}
	if opts.HostPort == 0 {
		opts.HostPort = opts.ContainerPort
	}

	containerPort := nat.Port(fmt.Sprintf("%d/tcp", opts.ContainerPort))
	config := &container.Config{
		Image: opts.Tag,
		Env:   envSlice(opts.Env),
		ExposedPorts: nat.PortSet{
			containerPort: struct{}{},
		},
	}
	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			containerPort: []nat.PortBinding{{
				HostIP:   "127.0.0.1",
				HostPort: fmt.Sprintf("%d", opts.HostPort),
			}},
		},
		AutoRemove: true,
	}
	if opts.GPU {
		hostConfig.DeviceRequests = []container.DeviceRequest{{
			Count:        -1,
			Capabilities: [][]string{{"gpu"}},
		}}
	}

	resp, err := b.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, opts.Name)
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	if err := b.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("start container: %w", err)
	}

	logger.Info("handler container running",
		"container", resp.ID[:12], "url", fmt.Sprintf("http://127.0.0.1:%d", opts.HostPort))
	return resp.ID, nil
}

// StopLocal stops a locally running handler container.
func (b *Builder) StopLocal(ctx context.Context, containerID string) error {
	if err := b.cli.ContainerStop(ctx, containerID, container.StopOptions{}); err != nil {
		return fmt.Errorf("stop container: %w", err)
	}
	return nil
}

func envSlice(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}
