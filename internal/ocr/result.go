package ocr

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/loykin/ocrdeploy/internal/common"
)

// PageResult is one page of handler output.
type PageResult struct {
	PageNumber int               `json:"page_number"`
	Markdown   string            `json:"markdown"`
	HTML       string            `json:"html"`
	Chunks     []json.RawMessage `json:"chunks"`
	Raw        string            `json:"raw"`
	PageBox    []float64         `json:"page_box"`
	TokenCount int               `json:"token_count"`
	Images     map[string]string `json:"images"`
	Error      bool              `json:"error"`
}

// Output is the handler's response document.
type Output struct {
	Results     []PageResult `json:"results"`
	TotalPages  int          `json:"total_pages"`
	TotalTokens int          `json:"total_tokens"`
	Error       string       `json:"error,omitempty"`
}

// ParseOutput decodes a handler output document. A handler-level error field
// is returned as an error.
func ParseOutput(raw []byte) (*Output, error) {
	var out Output
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode handler output: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("handler error: %s", out.Error)
	}
	return &out, nil
}

// pageMetadata is the sidecar written next to each page result.
type pageMetadata struct {
	TokenCount int       `json:"token_count"`
	PageBox    []float64 `json:"page_box"`
	NumChunks  int       `json:"num_chunks"`
	NumImages  int       `json:"num_images"`
}

// decodeImage strips an optional data-URL prefix and base64-decodes.
func decodeImage(data string) ([]byte, error) {
	if strings.HasPrefix(data, "data:") {
		if _, rest, found := strings.Cut(data, ","); found {
			data = rest
		}
	}
	return base64.StdEncoding.DecodeString(data)
}

// Save writes every page result into dir: markdown, HTML, extracted images
// and a metadata sidecar per page.
func (o *Output) Save(dir string) error {
	logger := common.GetLogger().WithComponent("results")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	for i, res := range o.Results {
		n := i + 1

		mdPath := filepath.Join(dir, fmt.Sprintf("result_%d.md", n))
		if err := os.WriteFile(mdPath, []byte(res.Markdown), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", mdPath, err)
		}

		htmlPath := filepath.Join(dir, fmt.Sprintf("result_%d.html", n))
		if err := os.WriteFile(htmlPath, []byte(res.HTML), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", htmlPath, err)
		}

		for name, data := range res.Images {
			decoded, err := decodeImage(data)
			if err != nil {
				logger.Warn("skipping undecodable image", "page", n, "image", name, "error", err)
				continue
			}
			// Image names come from the remote handler; keep only the base name.
			imgPath := filepath.Join(dir, filepath.Base(name))
			if err := os.WriteFile(imgPath, decoded, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", imgPath, err)
			}
		}

		meta := pageMetadata{
			TokenCount: res.TokenCount,
			PageBox:    res.PageBox,
			NumChunks:  len(res.Chunks),
			NumImages:  len(res.Images),
		}
		metaBytes, err := json.MarshalIndent(meta, "", "  ")
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		metaPath := filepath.Join(dir, fmt.Sprintf("result_%d_metadata.json", n))
		if err := os.WriteFile(metaPath, metaBytes, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", metaPath, err)
		}

		logger.Info("page saved", "page", n, "tokens", res.TokenCount, "dir", dir)
	}
	return nil
}
