package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deploy.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestConfigDoc_Defaults(t *testing.T) {
	var doc ConfigDoc
	doc.ApplyDefaults()

	if doc.Endpoint.Name != DefaultEndpointName {
		t.Fatalf("endpoint name = %q", doc.Endpoint.Name)
	}
	if doc.Endpoint.GpuIDs != DefaultGpuIDs || doc.Endpoint.WorkersMax != DefaultWorkersMax {
		t.Fatalf("endpoint defaults = %+v", doc.Endpoint)
	}
	if doc.Image.Name != DefaultDockerImage {
		t.Fatalf("image name = %q", doc.Image.Name)
	}
	if doc.Build.ContextDir != "." {
		t.Fatalf("build context = %q", doc.Build.ContextDir)
	}
}

func TestConfigDoc_Load(t *testing.T) {
	path := writeConfig(t, `
endpoint:
  name: my-ocr
  gpu_ids: ADA_24
  workers_max: 5
  skip_if_exists: true
image:
  name: me/ocr:v2
  checkpoint: me/model
  max_output_tokens: 4096
build:
  context: ./worker
  push: true
logging:
  level: debug
  format: json
history_db: /tmp/hist.db
`)

	var doc ConfigDoc
	if err := doc.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	doc.ApplyDefaults()

	if doc.Endpoint.Name != "my-ocr" || doc.Endpoint.GpuIDs != "ADA_24" || doc.Endpoint.WorkersMax != 5 {
		t.Fatalf("endpoint = %+v", doc.Endpoint)
	}
	if !doc.Endpoint.SkipIfExists {
		t.Fatalf("skip_if_exists not decoded")
	}
	if doc.Image.Name != "me/ocr:v2" {
		t.Fatalf("image name = %q", doc.Image.Name)
	}
	// Inline recipe fields decode through the squashed section.
	if doc.Image.Recipe.Checkpoint != "me/model" || doc.Image.Recipe.MaxOutputTokens != 4096 {
		t.Fatalf("recipe = %+v", doc.Image.Recipe)
	}
	if doc.Build.ContextDir != "./worker" || !doc.Build.Push {
		t.Fatalf("build = %+v", doc.Build)
	}
	if doc.HistoryPath() != "/tmp/hist.db" {
		t.Fatalf("history path = %q", doc.HistoryPath())
	}
	// Defaults still fill what the file does not set.
	if doc.Endpoint.ContainerDiskGb != DefaultContainerDiskGb {
		t.Fatalf("container disk = %d", doc.Endpoint.ContainerDiskGb)
	}
}

func TestConfigDoc_LoadMissingFile(t *testing.T) {
	var doc ConfigDoc
	if err := doc.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestConfigDoc_DeployOptions(t *testing.T) {
	var doc ConfigDoc
	opts := doc.DeployOptions(map[string]string{
		"DOCKER_IMAGE": "override/ocr:ci",
		"HF_TOKEN":     "hf_secret",
	})

	if opts.EndpointName != DefaultEndpointName {
		t.Fatalf("endpoint = %q", opts.EndpointName)
	}
	if opts.DockerImage != "override/ocr:ci" {
		t.Fatalf("image override ignored: %q", opts.DockerImage)
	}
	if opts.EnvVars["HF_TOKEN"] != "hf_secret" {
		t.Fatalf("HF_TOKEN not forwarded: %+v", opts.EnvVars)
	}
	if opts.EnvVars["MODEL_CHECKPOINT"] == "" {
		t.Fatalf("recipe env missing: %+v", opts.EnvVars)
	}
	if !opts.UpdateIfExists {
		t.Fatalf("update-if-exists should default on")
	}
}

func TestConfigDoc_DeployOptions_SkipIfExists(t *testing.T) {
	doc := ConfigDoc{Endpoint: EndpointConfig{SkipIfExists: true}}
	if opts := doc.DeployOptions(nil); opts.UpdateIfExists {
		t.Fatalf("skip_if_exists should disable updates")
	}
}

func TestConfigDoc_SetupLogging(t *testing.T) {
	cases := []struct {
		name    string
		logging LoggingConfig
		wantErr bool
	}{
		{"defaults", LoggingConfig{}, false},
		{"json", LoggingConfig{Level: "debug", Format: "json"}, false},
		{"color", LoggingConfig{Format: "color"}, false},
		{"bad level", LoggingConfig{Level: "loud"}, true},
		{"bad format", LoggingConfig{Format: "xml"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := ConfigDoc{Logging: tc.logging}
			err := doc.SetupLogging()
			if tc.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("SetupLogging: %v", err)
			}
		})
	}
}
