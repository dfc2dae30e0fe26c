package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/loykin/ocrdeploy/internal/common"
	"github.com/loykin/ocrdeploy/internal/image"
	"github.com/loykin/ocrdeploy/internal/runpod"
)

// EndpointConfig configures the serverless endpoint being deployed.
type EndpointConfig struct {
	Name             string `mapstructure:"name" yaml:"name"`
	GpuIDs           string `mapstructure:"gpu_ids" yaml:"gpu_ids"`
	WorkersMin       int    `mapstructure:"workers_min" yaml:"workers_min"`
	WorkersMax       int    `mapstructure:"workers_max" yaml:"workers_max"`
	IdleTimeout      int    `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ContainerDiskGb  int    `mapstructure:"container_disk_gb" yaml:"container_disk_gb"`
	VolumeGb         int    `mapstructure:"volume_gb" yaml:"volume_gb"`
	SkipIfExists     bool   `mapstructure:"skip_if_exists" yaml:"skip_if_exists"`
	ExecutionTimeout int    `mapstructure:"execution_timeout" yaml:"execution_timeout"`
}

// ImageConfig names the image and embeds the build recipe.
type ImageConfig struct {
	Name   string       `mapstructure:"name" yaml:"name"`
	Recipe image.Recipe `mapstructure:",squash" yaml:",inline"`
}

// BuildConfig configures the local image build.
type BuildConfig struct {
	ContextDir string `mapstructure:"context" yaml:"context"`
	Push       bool   `mapstructure:"push" yaml:"push"`
}

// LoggingConfig mirrors the logging knobs of the config file.
type LoggingConfig struct {
	Level         string `mapstructure:"level" yaml:"level"`                   // error, warn, info, debug
	Format        string `mapstructure:"format" yaml:"format"`                 // text, json, color
	MaskSensitive *bool  `mapstructure:"mask_sensitive" yaml:"mask_sensitive"` // enable/disable sensitive data masking
	Color         *bool  `mapstructure:"color" yaml:"color"`                   // enable/disable colorized output
}

// ConfigDoc is the deploy.yaml document. Every field is optional; defaults
// reproduce the stock Chandra deployment.
type ConfigDoc struct {
	Endpoint EndpointConfig `mapstructure:"endpoint" yaml:"endpoint"`
	Image    ImageConfig    `mapstructure:"image" yaml:"image"`
	Build    BuildConfig    `mapstructure:"build" yaml:"build"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	// HistoryDB overrides where deployment history is kept.
	HistoryDB string `mapstructure:"history_db" yaml:"history_db"`
}

// Stock deployment defaults, matching the shipped endpoint.
const (
	DefaultEndpointName    = "chandra-ocr"
	DefaultDockerImage     = "sheep52031/chandra-runpod:latest"
	DefaultGpuIDs          = "AMPERE_16"
	DefaultWorkersMax      = 3
	DefaultContainerDiskGb = 20
	DefaultVolumeGb        = 50
)

// Load reads and decodes a deploy.yaml. The file is decoded into a generic
// map first and then through mapstructure so squashed sections work the same
// way viper would decode them.
func (c *ConfigDoc) Load(path string) error {
	clean := filepath.Clean(path)
	if info, statErr := os.Stat(clean); statErr != nil || !info.Mode().IsRegular() {
		if statErr != nil {
			return statErr
		}
		return fmt.Errorf("not a regular file: %s", clean)
	}
	f, err := os.Open(clean)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	var raw map[string]any
	if err := yaml.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           c,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// ApplyDefaults fills unset fields with the stock deployment values.
func (c *ConfigDoc) ApplyDefaults() {
	if strings.TrimSpace(c.Endpoint.Name) == "" {
		c.Endpoint.Name = DefaultEndpointName
	}
	if strings.TrimSpace(c.Endpoint.GpuIDs) == "" {
		c.Endpoint.GpuIDs = DefaultGpuIDs
	}
	if c.Endpoint.WorkersMax == 0 {
		c.Endpoint.WorkersMax = DefaultWorkersMax
	}
	if c.Endpoint.ContainerDiskGb == 0 {
		c.Endpoint.ContainerDiskGb = DefaultContainerDiskGb
	}
	if c.Endpoint.VolumeGb == 0 {
		c.Endpoint.VolumeGb = DefaultVolumeGb
	}
	if strings.TrimSpace(c.Image.Name) == "" {
		c.Image.Name = DefaultDockerImage
	}
	if strings.TrimSpace(c.Build.ContextDir) == "" {
		c.Build.ContextDir = "."
	}
}

// DeployOptions converts the document into native deployment options. Values
// from the env file override the image name and extend the container env.
func (c *ConfigDoc) DeployOptions(envValues map[string]string) runpod.DeployOptions {
	c.ApplyDefaults()

	imageName := c.Image.Name
	if v, ok := envValues["DOCKER_IMAGE"]; ok && strings.TrimSpace(v) != "" {
		imageName = v
	}

	containerEnv := c.Image.Recipe.ContainerEnv()
	if v, ok := envValues["HF_TOKEN"]; ok && strings.TrimSpace(v) != "" {
		containerEnv["HF_TOKEN"] = v
	}

	return runpod.DeployOptions{
		EndpointName:     c.Endpoint.Name,
		DockerImage:      imageName,
		EnvVars:          containerEnv,
		GpuIDs:           c.Endpoint.GpuIDs,
		WorkersMin:       c.Endpoint.WorkersMin,
		WorkersMax:       c.Endpoint.WorkersMax,
		IdleTimeout:      c.Endpoint.IdleTimeout,
		ExecutionTimeout: c.Endpoint.ExecutionTimeout,
		ContainerDiskGb:  c.Endpoint.ContainerDiskGb,
		VolumeGb:         c.Endpoint.VolumeGb,
		UpdateIfExists:   !c.Endpoint.SkipIfExists,
	}
}

// HistoryPath resolves where the deployment history database lives.
func (c *ConfigDoc) HistoryPath() string {
	if strings.TrimSpace(c.HistoryDB) != "" {
		return c.HistoryDB
	}
	return "ocrdeploy.db"
}

func (c *ConfigDoc) parseLogLevel() (common.LogLevel, error) {
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	switch level {
	case "error", "warn", "warning", "info", "", "debug":
		return common.ParseLogLevel(level), nil
	default:
		return common.LogLevelInfo,
			fmt.Errorf("invalid logging level: %s (valid: error, warn, info, debug)", c.Logging.Level)
	}
}

// SetupLogging configures the global logger based on config settings.
func (c *ConfigDoc) SetupLogging() error {
	level, err := c.parseLogLevel()
	if err != nil {
		return err
	}

	useColor := false
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Color != nil {
		useColor = *c.Logging.Color
	} else if format == "color" || format == "colour" {
		useColor = true
	}

	var logger *common.Logger
	switch format {
	case "json":
		logger = common.NewJSONLogger(level)
	case "color", "colour":
		logger = common.NewColorLogger(level, useColor)
	case "text", "":
		if useColor {
			logger = common.NewColorLogger(level, true)
		} else {
			logger = common.NewLogger(level)
		}
	default:
		return fmt.Errorf("invalid logging format: %s (valid: text, json, color)", c.Logging.Format)
	}

	maskingEnabled := true
	if c.Logging.MaskSensitive != nil {
		maskingEnabled = *c.Logging.MaskSensitive
	}
	common.EnableMasking(maskingEnabled)
	common.SetDefaultLogger(logger)
	return nil
}

// loadConfigDoc loads the optional config file; a missing file yields the
// defaults rather than an error, matching the zero-config path.
func loadConfigDoc(path string) *ConfigDoc {
	var doc ConfigDoc
	if strings.TrimSpace(path) != "" {
		if err := doc.Load(path); err != nil {
			if !os.IsNotExist(err) {
				common.LogWarn("failed to load config file, using defaults", "path", path, "error", err)
			}
		}
	}
	doc.ApplyDefaults()
	return &doc
}
