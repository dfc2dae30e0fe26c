package image

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"

	"github.com/loykin/ocrdeploy/internal/common"
)

// Builder drives the local docker daemon.
type Builder struct {
	cli    *client.Client
	logger *common.Logger
}

// NewBuilder connects to the daemon using the standard environment settings.
func NewBuilder() (*Builder, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return &Builder{
		cli:    cli,
		logger: common.GetLogger().WithComponent("image"),
	}, nil
}

// Close releases the daemon connection.
func (b *Builder) Close() error {
	return b.cli.Close()
}

// Ping verifies the daemon is reachable before a long build.
func (b *Builder) Ping(ctx context.Context) error {
	if _, err := b.cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker daemon not reachable: %w", err)
	}
	return nil
}

// BuildOptions names the build inputs: the context directory, the tag and
// the recipe rendered into the context as its Dockerfile.
type BuildOptions struct {
	ContextDir string
	Tag        string
	Recipe     Recipe
}

// Build renders the recipe, tars the context and runs the daemon build. The
// daemon stream is logged line by line; an error frame fails the build.
func (b *Builder) Build(ctx context.Context, opts BuildOptions) error {
	logger := b.logger.WithImage(opts.Tag)

	dockerfile := opts.Recipe.Render()
	buildCtx, err := tarContext(opts.ContextDir, map[string][]byte{"Dockerfile": []byte(dockerfile)})
	if err != nil {
		return fmt.Errorf("build context: %w", err)
	}

	logger.Info("building image", "context", opts.ContextDir)
	resp, err := b.cli.ImageBuild(ctx, buildCtx, build.ImageBuildOptions{
		Tags:       []string{opts.Tag},
		Dockerfile: "Dockerfile",
		Remove:     true,
	})
	if err != nil {
		return fmt.Errorf("image build: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := streamDaemonOutput(resp.Body, logger); err != nil {
		return fmt.Errorf("image build: %w", err)
	}
	logger.Info("image built", "status", "complete")
	return nil
}

// Push pushes the tag to its registry. Credentials come from the standard
// DOCKER_USERNAME/DOCKER_PASSWORD variables, typically set via the env file.
func (b *Builder) Push(ctx context.Context, tag string) error {
	logger := b.logger.WithImage(tag)

	authConfig := registry.AuthConfig{
		Username: os.Getenv("DOCKER_USERNAME"),
		Password: os.Getenv("DOCKER_PASSWORD"),
	}
	encoded, err := json.Marshal(authConfig)
	if err != nil {
		return fmt.Errorf("encode registry auth: %w", err)
	}

	logger.Info("pushing image")
	reader, err := b.cli.ImagePush(ctx, tag, image.PushOptions{
		RegistryAuth: base64.URLEncoding.EncodeToString(encoded),
	})
	if err != nil {
		return fmt.Errorf("image push: %w", err)
	}
	defer func() { _ = reader.Close() }()

	if err := streamDaemonOutput(reader, logger); err != nil {
		return fmt.Errorf("image push: %w", err)
	}
	logger.Info("image pushed", "status", "complete")
	return nil
}

// daemonMessage is the subset of the daemon's JSON stream frames we care about.
type daemonMessage struct {
	Stream      string `json:"stream"`
	Status      string `json:"status"`
	Error       string `json:"error"`
	ErrorDetail struct {
		Message string `json:"message"`
	} `json:"errorDetail"`
}

func streamDaemonOutput(r io.Reader, logger *common.Logger) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var msg daemonMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			continue
		}
		if msg.Error != "" {
			return fmt.Errorf("%s", msg.Error)
		}
		if msg.ErrorDetail.Message != "" {
			return fmt.Errorf("%s", msg.ErrorDetail.Message)
		}
		if out := strings.TrimSpace(msg.Stream); out != "" {
			if strings.HasPrefix(out, "WARNING:") {
				logger.Warn(out)
			} else {
				logger.Debug(out)
			}
		} else if msg.Status != "" {
			logger.Debug(msg.Status)
		}
	}
	return sc.Err()
}

// tarContext packs dir into a tar stream, layering extra in-memory files
// (the rendered Dockerfile) on top.
func tarContext(dir string, extra map[string][]byte) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		// The Dockerfile is injected from the recipe; skip any on-disk copy.
		if _, shadowed := extra[rel]; shadowed {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return nil, err
	}

	for name, content := range extra {
		hdr := &tar.Header{
			Name: filepath.ToSlash(name),
			Mode: 0o644,
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, err
		}
		if _, err := tw.Write(content); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}
