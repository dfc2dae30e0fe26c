// Package ocr defines the OCR job schema understood by the serverless
// handler and the persistence of its results.
package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DefaultMaxOutputTokens matches the handler's generation limit.
const DefaultMaxOutputTokens = 12384

// Prompt types accepted by the handler.
const (
	PromptOCRLayout = "ocr_layout"
	PromptOCR       = "ocr"
)

// JobInput is the handler's "input" object. Single-source jobs use File,
// multi-source jobs use Files; the handler also accepts the legacy
// image/images keys which this client does not emit.
type JobInput struct {
	File                  string   `json:"file,omitempty"`
	Files                 []string `json:"files,omitempty"`
	PageRange             []int    `json:"page_range,omitempty"`
	MaxOutputTokens       int      `json:"max_output_tokens,omitempty"`
	IncludeImages         *bool    `json:"include_images,omitempty"`
	IncludeHeadersFooters *bool    `json:"include_headers_footers,omitempty"`
	PromptType            string   `json:"prompt_type,omitempty"`
	CustomPrompt          string   `json:"custom_prompt,omitempty"`
}

// JobOptions are the per-job knobs surfaced on the CLI.
type JobOptions struct {
	PageRange             []int
	MaxOutputTokens       int
	IncludeImages         bool
	IncludeHeadersFooters bool
	PromptType            string
	CustomPrompt          string
}

// DefaultJobOptions mirrors the original client defaults.
func DefaultJobOptions() JobOptions {
	return JobOptions{
		MaxOutputTokens: DefaultMaxOutputTokens,
		IncludeImages:   true,
		PromptType:      PromptOCRLayout,
	}
}

// IsURL reports whether the source is passed to the handler by reference.
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// EncodeSource turns one source into handler file data: URLs pass through,
// local paths are read and base64 encoded.
func EncodeSource(source string) (string, error) {
	if IsURL(source) {
		return source, nil
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", source, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// EncodeSources encodes all sources, reading local files concurrently.
// Order is preserved.
func EncodeSources(ctx context.Context, sources []string) ([]string, error) {
	encoded := make([]string, len(sources))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, src := range sources {
		g.Go(func() error {
			v, err := EncodeSource(src)
			if err != nil {
				return err
			}
			encoded[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return encoded, nil
}

// BuildInput assembles the handler input for the given encoded sources.
func BuildInput(encoded []string, opts JobOptions) (JobInput, error) {
	if len(encoded) == 0 {
		return JobInput{}, fmt.Errorf("no input files provided")
	}

	in := JobInput{
		PageRange:       opts.PageRange,
		MaxOutputTokens: opts.MaxOutputTokens,
		PromptType:      opts.PromptType,
		CustomPrompt:    opts.CustomPrompt,
	}
	// Send the booleans explicitly; the handler defaults differ from Go zero values.
	in.IncludeImages = &opts.IncludeImages
	in.IncludeHeadersFooters = &opts.IncludeHeadersFooters

	if len(encoded) == 1 {
		in.File = encoded[0]
	} else {
		in.Files = encoded
	}
	return in, nil
}
