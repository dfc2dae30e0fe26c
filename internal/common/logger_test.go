package common

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"error":   LogLevelError,
		"WARN":    LogLevelWarn,
		"warning": LogLevelWarn,
		"info":    LogLevelInfo,
		"debug":   LogLevelDebug,
		"":        LogLevelInfo,
		"bogus":   LogLevelInfo,
	}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogLevel_RoundTrip(t *testing.T) {
	for _, l := range []LogLevel{LogLevelError, LogLevelWarn, LogLevelInfo, LogLevelDebug} {
		if got := ParseLogLevel(l.String()); got != l {
			t.Errorf("round trip failed for %v: got %v", l, got)
		}
	}
}

func TestLogger_WithContext(t *testing.T) {
	base := NewLogger(LogLevelDebug)

	l := base.WithComponent("deploy").WithEndpoint("ep-123").WithImage("img:latest")
	if l.Level() != LogLevelDebug {
		t.Fatalf("derived logger lost level: %v", l.Level())
	}
	// Derived loggers must not mutate the base.
	if base.Level() != LogLevelDebug {
		t.Fatalf("base logger level changed")
	}
}

func TestColorHandler_MasksSensitiveAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := NewColorHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	h.SetColorEnabled(false)
	h.SetMasker(NewMasker())
	logger := slog.New(h)

	logger.Info("creating endpoint", "endpoint", "chandra-ocr", "api_key", "abc123secret")

	out := buf.String()
	if strings.Contains(out, "abc123secret") {
		t.Fatalf("api key leaked into log output: %s", out)
	}
	if !strings.Contains(out, "***MASKED***") {
		t.Fatalf("expected masked marker in output: %s", out)
	}
	if !strings.Contains(out, "chandra-ocr") {
		t.Fatalf("non-sensitive attr missing from output: %s", out)
	}
}

func TestColorHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	h := NewColorHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("info should be filtered at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Fatalf("error should pass at warn level")
	}
}

func TestColorHandler_ComponentGroup(t *testing.T) {
	var buf bytes.Buffer
	h := NewColorHandler(&buf, nil)
	h.SetColorEnabled(false)
	logger := slog.New(h.WithGroup("preflight"))

	logger.Info("runtime found")

	if !strings.Contains(buf.String(), "[preflight]") {
		t.Fatalf("expected component group in output: %s", buf.String())
	}
}
