// Package image renders the container build recipe for the OCR handler and
// drives the docker daemon to build, push and locally run the result.
package image

import (
	"fmt"
	"sort"
	"strings"
)

// Defaults for the handler image. The cache directories live on the
// serverless volume so model weights survive worker restarts.
const (
	DefaultBaseImage       = "nvidia/cuda:12.1.1-runtime-ubuntu22.04"
	DefaultCheckpoint      = "datalab-to/chandra"
	DefaultDevice          = "cuda"
	DefaultMaxOutputTokens = 12384
	DefaultCacheDir        = "/runpod-volume/huggingface"
	DefaultHandler         = "runpod_handler.py"
)

// Recipe is the declarative build definition. Render produces the Dockerfile;
// every field has a working default so the zero-config path matches the
// shipped image.
type Recipe struct {
	BaseImage        string            `mapstructure:"base" yaml:"base"`
	Checkpoint       string            `mapstructure:"checkpoint" yaml:"checkpoint"`
	Device           string            `mapstructure:"device" yaml:"device"`
	MaxOutputTokens  int               `mapstructure:"max_output_tokens" yaml:"max_output_tokens"`
	CacheDir         string            `mapstructure:"cache_dir" yaml:"cache_dir"`
	SystemPackages   []string          `mapstructure:"system_packages" yaml:"system_packages"`
	RequirementsFile string            `mapstructure:"requirements" yaml:"requirements"`
	OptionalPackages []string          `mapstructure:"optional_packages" yaml:"optional_packages"`
	Handler          string            `mapstructure:"handler" yaml:"handler"`
	ExtraEnv         map[string]string `mapstructure:"env" yaml:"env"`
}

// DefaultRecipe returns the stock recipe.
func DefaultRecipe() Recipe {
	return Recipe{
		BaseImage:        DefaultBaseImage,
		Checkpoint:       DefaultCheckpoint,
		Device:           DefaultDevice,
		MaxOutputTokens:  DefaultMaxOutputTokens,
		CacheDir:         DefaultCacheDir,
		SystemPackages:   []string{"git", "libgl1", "libglib2.0-0", "poppler-utils"},
		RequirementsFile: "requirements.txt",
		OptionalPackages: []string{"flash-attn"},
		Handler:          DefaultHandler,
	}
}

func (r Recipe) withDefaults() Recipe {
	d := DefaultRecipe()
	if r.BaseImage == "" {
		r.BaseImage = d.BaseImage
	}
	if r.Checkpoint == "" {
		r.Checkpoint = d.Checkpoint
	}
	if r.Device == "" {
		r.Device = d.Device
	}
	if r.MaxOutputTokens == 0 {
		r.MaxOutputTokens = d.MaxOutputTokens
	}
	if r.CacheDir == "" {
		r.CacheDir = d.CacheDir
	}
	if r.SystemPackages == nil {
		r.SystemPackages = d.SystemPackages
	}
	if r.RequirementsFile == "" {
		r.RequirementsFile = d.RequirementsFile
	}
	if r.OptionalPackages == nil {
		r.OptionalPackages = d.OptionalPackages
	}
	if r.Handler == "" {
		r.Handler = d.Handler
	}
	return r
}

// Render produces the Dockerfile text. Every step is fatal to the build
// except the optional-package installs, which degrade to a logged warning.
func (r Recipe) Render() string {
	r = r.withDefaults()

	var b strings.Builder
	fmt.Fprintf(&b, "FROM %s\n\n", r.BaseImage)

	b.WriteString("ENV DEBIAN_FRONTEND=noninteractive \\\n")
	b.WriteString("    PYTHONUNBUFFERED=1 \\\n")
	fmt.Fprintf(&b, "    HF_HOME=%s \\\n", r.CacheDir)
	fmt.Fprintf(&b, "    TRANSFORMERS_CACHE=%s \\\n", r.CacheDir)
	fmt.Fprintf(&b, "    MODEL_CHECKPOINT=%s \\\n", r.Checkpoint)
	fmt.Fprintf(&b, "    TORCH_DEVICE=%s \\\n", r.Device)
	fmt.Fprintf(&b, "    MAX_OUTPUT_TOKENS=%d\n", r.MaxOutputTokens)

	if len(r.ExtraEnv) > 0 {
		keys := make([]string, 0, len(r.ExtraEnv))
		for k := range r.ExtraEnv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("ENV")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%s", k, r.ExtraEnv[k])
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString("RUN apt-get update && apt-get install -y --no-install-recommends \\\n")
	fmt.Fprintf(&b, "    python3 python3-pip %s \\\n", strings.Join(r.SystemPackages, " "))
	b.WriteString("    && rm -rf /var/lib/apt/lists/*\n\n")

	b.WriteString("WORKDIR /app\n")
	b.WriteString("COPY . /app\n\n")

	fmt.Fprintf(&b, "RUN pip3 install --no-cache-dir -r %s runpod\n", r.RequirementsFile)

	for _, pkg := range r.OptionalPackages {
		fmt.Fprintf(&b,
			"RUN pip3 install --no-cache-dir %s || echo \"WARNING: optional package %s failed to install, skipping\"\n",
			pkg, pkg)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "CMD [\"python3\", \"-u\", \"%s\"]\n", r.Handler)
	return b.String()
}

// ContainerEnv returns the runtime environment the recipe bakes in, used when
// registering the serverless template so both paths stay consistent.
func (r Recipe) ContainerEnv() map[string]string {
	r = r.withDefaults()
	env := map[string]string{
		"MODEL_CHECKPOINT":  r.Checkpoint,
		"TORCH_DEVICE":      r.Device,
		"MAX_OUTPUT_TOKENS": fmt.Sprintf("%d", r.MaxOutputTokens),
	}
	for k, v := range r.ExtraEnv {
		env[k] = v
	}
	return env
}
