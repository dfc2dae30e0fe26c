package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEncodeSource_URLPassthrough(t *testing.T) {
	for _, u := range []string{"http://example.com/a.png", "https://example.com/doc.pdf"} {
		got, err := EncodeSource(u)
		if err != nil {
			t.Fatalf("EncodeSource(%q): %v", u, err)
		}
		if got != u {
			t.Fatalf("URL altered: %q", got)
		}
	}
}

func TestEncodeSource_LocalFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "page.png")
	if err := os.WriteFile(p, []byte{0x89, 'P', 'N', 'G'}, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := EncodeSource(p)
	if err != nil {
		t.Fatalf("EncodeSource: %v", err)
	}
	decoded, err := base64.StdEncoding.DecodeString(got)
	if err != nil {
		t.Fatalf("output is not base64: %v", err)
	}
	if string(decoded) != "\x89PNG" {
		t.Fatalf("decoded = %q", decoded)
	}
}

func TestEncodeSource_MissingFile(t *testing.T) {
	_, err := EncodeSource(filepath.Join(t.TempDir(), "nope.png"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEncodeSources_PreservesOrder(t *testing.T) {
	dir := t.TempDir()
	var sources []string
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		p := filepath.Join(dir, name+".png")
		if err := os.WriteFile(p, []byte(name), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		sources = append(sources, p)
	}
	sources = append(sources, "https://example.com/f.png")

	encoded, err := EncodeSources(context.Background(), sources)
	if err != nil {
		t.Fatalf("EncodeSources: %v", err)
	}
	if len(encoded) != 6 {
		t.Fatalf("len = %d", len(encoded))
	}
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		decoded, _ := base64.StdEncoding.DecodeString(encoded[i])
		if string(decoded) != name {
			t.Fatalf("order broken at %d: %q", i, decoded)
		}
	}
	if encoded[5] != "https://example.com/f.png" {
		t.Fatalf("URL entry = %q", encoded[5])
	}
}

func TestEncodeSources_FailsFast(t *testing.T) {
	_, err := EncodeSources(context.Background(), []string{filepath.Join(t.TempDir(), "missing.png")})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestBuildInput_SingleVsMulti(t *testing.T) {
	opts := DefaultJobOptions()

	single, err := BuildInput([]string{"data1"}, opts)
	if err != nil {
		t.Fatalf("BuildInput: %v", err)
	}
	if single.File != "data1" || single.Files != nil {
		t.Fatalf("single input = %+v", single)
	}

	multi, err := BuildInput([]string{"data1", "data2"}, opts)
	if err != nil {
		t.Fatalf("BuildInput: %v", err)
	}
	if multi.File != "" || len(multi.Files) != 2 {
		t.Fatalf("multi input = %+v", multi)
	}
}

func TestBuildInput_Empty(t *testing.T) {
	if _, err := BuildInput(nil, DefaultJobOptions()); err == nil {
		t.Fatal("expected error for empty sources")
	}
}

func TestJobInput_WireFormat(t *testing.T) {
	opts := DefaultJobOptions()
	opts.PageRange = []int{0, 1}
	in, err := BuildInput([]string{"data1"}, opts)
	if err != nil {
		t.Fatalf("BuildInput: %v", err)
	}

	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(raw)

	for _, want := range []string{
		`"file":"data1"`,
		`"page_range":[0,1]`,
		`"max_output_tokens":12384`,
		`"include_images":true`,
		`"include_headers_footers":false`,
		`"prompt_type":"ocr_layout"`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("wire format missing %s: %s", want, s)
		}
	}
	if strings.Contains(s, `"files"`) || strings.Contains(s, `"custom_prompt"`) {
		t.Errorf("unexpected keys in wire format: %s", s)
	}
}
