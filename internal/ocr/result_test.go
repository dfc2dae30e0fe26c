package ocr

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseOutput(t *testing.T) {
	raw := []byte(`{
		"results": [
			{"page_number": 1, "markdown": "# Title", "html": "<h1>Title</h1>",
			 "chunks": [{"type": "heading"}], "token_count": 42,
			 "page_box": [0, 0, 612, 792], "images": {}}
		],
		"total_pages": 1,
		"total_tokens": 42
	}`)

	out, err := ParseOutput(raw)
	if err != nil {
		t.Fatalf("ParseOutput: %v", err)
	}
	if out.TotalPages != 1 || out.TotalTokens != 42 {
		t.Fatalf("totals = %d/%d", out.TotalPages, out.TotalTokens)
	}
	if out.Results[0].Markdown != "# Title" || len(out.Results[0].Chunks) != 1 {
		t.Fatalf("result = %+v", out.Results[0])
	}
}

func TestParseOutput_HandlerError(t *testing.T) {
	_, err := ParseOutput([]byte(`{"error": "Unable to determine file type."}`))
	if err == nil || !strings.Contains(err.Error(), "Unable to determine file type") {
		t.Fatalf("expected handler error, got %v", err)
	}
}

func TestParseOutput_BadJSON(t *testing.T) {
	if _, err := ParseOutput([]byte("not json")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestOutput_Save(t *testing.T) {
	img := base64.StdEncoding.EncodeToString([]byte("fake-png"))
	out := &Output{
		Results: []PageResult{
			{
				PageNumber: 1,
				Markdown:   "# Page one",
				HTML:       "<h1>Page one</h1>",
				Chunks:     []json.RawMessage{json.RawMessage(`{}`)},
				PageBox:    []float64{0, 0, 612, 792},
				TokenCount: 10,
				Images:     map[string]string{"figure_1.png": img},
			},
			{
				PageNumber: 2,
				Markdown:   "# Page two",
				HTML:       "<h1>Page two</h1>",
				TokenCount: 20,
			},
		},
		TotalPages:  2,
		TotalTokens: 30,
	}

	dir := filepath.Join(t.TempDir(), "output")
	if err := out.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	md, err := os.ReadFile(filepath.Join(dir, "result_1.md"))
	if err != nil {
		t.Fatalf("read markdown: %v", err)
	}
	if string(md) != "# Page one" {
		t.Fatalf("markdown = %q", md)
	}

	if _, err := os.Stat(filepath.Join(dir, "result_2.html")); err != nil {
		t.Fatalf("second page html missing: %v", err)
	}

	imgData, err := os.ReadFile(filepath.Join(dir, "figure_1.png"))
	if err != nil {
		t.Fatalf("read image: %v", err)
	}
	if string(imgData) != "fake-png" {
		t.Fatalf("image = %q", imgData)
	}

	metaRaw, err := os.ReadFile(filepath.Join(dir, "result_1_metadata.json"))
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		t.Fatalf("metadata not JSON: %v", err)
	}
	if meta["token_count"] != float64(10) || meta["num_images"] != float64(1) {
		t.Fatalf("metadata = %v", meta)
	}
}

func TestOutput_SaveSanitizesImageNames(t *testing.T) {
	img := base64.StdEncoding.EncodeToString([]byte("x"))
	out := &Output{Results: []PageResult{{
		Markdown: "m", HTML: "h",
		Images: map[string]string{"../../escape.png": img},
	}}}

	dir := filepath.Join(t.TempDir(), "output")
	if err := out.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.png")); err != nil {
		t.Fatalf("image not written under output dir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "..", "..", "escape.png")); err == nil {
		t.Fatal("image escaped the output directory")
	}
}

func TestDecodeImage_DataURLPrefix(t *testing.T) {
	enc := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	got, err := decodeImage("data:image/png;base64," + enc)
	if err != nil {
		t.Fatalf("decodeImage: %v", err)
	}
	if string(got) != "png-bytes" {
		t.Fatalf("decoded = %q", got)
	}
}
