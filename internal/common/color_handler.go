package common

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"
)

// ANSI color codes
const (
	Reset   = "\033[0m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	White   = "\033[37m"
	Gray    = "\033[90m"
)

// ColorHandler implements a colorized text handler for slog
type ColorHandler struct {
	opts     *slog.HandlerOptions
	writer   io.Writer
	attrs    []slog.Attr
	groups   []string
	masker   *Masker
	useColor bool
}

// NewColorHandler creates a new color handler writing to w. Colors are
// auto-detected from the writer and can be overridden via SetColorEnabled.
func NewColorHandler(w io.Writer, opts *slog.HandlerOptions) *ColorHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}

	return &ColorHandler{
		opts:     opts,
		writer:   w,
		useColor: shouldUseColor(w),
		masker:   GetGlobalMasker(),
	}
}

func shouldUseColor(w io.Writer) bool {
	if runtime.GOOS == "windows" {
		return false
	}
	if f, ok := w.(*os.File); ok {
		stat, err := f.Stat()
		if err != nil {
			return false
		}
		return (stat.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

// Enabled reports whether the handler handles records at the given level
func (h *ColorHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// Handle handles the Record
func (h *ColorHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 1024)

	if !r.Time.IsZero() {
		buf = append(buf, h.colorize(Gray, r.Time.Format(time.RFC3339))...)
		buf = append(buf, ' ')
	}

	buf = append(buf, h.formatLevel(r.Level)...)
	buf = append(buf, ' ')

	if len(h.groups) > 0 {
		component := strings.Join(h.groups, ".")
		buf = append(buf, h.colorize(Cyan, fmt.Sprintf("[%s]", component))...)
		buf = append(buf, ' ')
	}

	buf = append(buf, h.colorize(White, r.Message)...)

	attrs := make([]slog.Attr, 0, r.NumAttrs()+len(h.attrs))
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})

	if len(attrs) > 0 {
		buf = append(buf, ' ')
		buf = h.formatAttributes(buf, h.maskAttributes(attrs))
	}

	buf = append(buf, '\n')

	_, err := h.writer.Write(buf)
	return err
}

func (h *ColorHandler) formatLevel(level slog.Level) string {
	var color, levelStr string
	switch level {
	case slog.LevelDebug:
		color, levelStr = Gray, "DEBUG"
	case slog.LevelInfo:
		color, levelStr = Green, "INFO "
	case slog.LevelWarn:
		color, levelStr = Yellow, "WARN "
	case slog.LevelError:
		color, levelStr = Red, "ERROR"
	default:
		color, levelStr = White, "UNKNOWN"
	}
	return h.colorize(color, fmt.Sprintf("[%s]", levelStr))
}

func (h *ColorHandler) formatAttributes(buf []byte, attrs []slog.Attr) []byte {
	for i, attr := range attrs {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, h.colorize(Cyan, attr.Key)...)
		buf = append(buf, '=')
		buf = append(buf, h.formatValue(attr.Value)...)
	}
	return buf
}

func (h *ColorHandler) formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		str := v.String()
		switch {
		case isErrorLike(str):
			return h.colorize(Red, fmt.Sprintf("%q", str))
		case isSuccessLike(str):
			return h.colorize(Green, fmt.Sprintf("%q", str))
		default:
			return h.colorize(White, fmt.Sprintf("%q", str))
		}
	case slog.KindInt64:
		return h.colorize(Magenta, fmt.Sprintf("%d", v.Int64()))
	case slog.KindFloat64:
		return h.colorize(Magenta, fmt.Sprintf("%g", v.Float64()))
	case slog.KindBool:
		if v.Bool() {
			return h.colorize(Green, "true")
		}
		return h.colorize(Red, "false")
	case slog.KindDuration:
		return h.colorize(Yellow, v.Duration().String())
	case slog.KindTime:
		return h.colorize(Gray, v.Time().Format(time.RFC3339))
	default:
		return h.colorize(White, v.String())
	}
}

func isErrorLike(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "error") || strings.Contains(s, "failed") ||
		strings.Contains(s, "fail")
}

func isSuccessLike(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "success") || strings.Contains(s, "complete") ||
		strings.Contains(s, "deployed") || s == "ok" || s == "healthy"
}

func (h *ColorHandler) colorize(color, text string) string {
	if !h.useColor {
		return text
	}
	return color + text + Reset
}

func (h *ColorHandler) maskAttributes(attrs []slog.Attr) []slog.Attr {
	if h.masker == nil || !h.masker.IsEnabled() {
		return attrs
	}

	masked := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		maskedValue := h.masker.MaskValue(attr.Key, attr.Value.Any())
		if maskedStr, ok := maskedValue.(string); ok {
			masked[i] = slog.Attr{Key: attr.Key, Value: slog.StringValue(maskedStr)}
		} else {
			masked[i] = attr
		}
	}
	return masked
}

// WithAttrs returns a new ColorHandler with the given attributes added
func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ColorHandler{
		opts:     h.opts,
		writer:   h.writer,
		attrs:    append(h.attrs, attrs...),
		groups:   h.groups,
		masker:   h.masker,
		useColor: h.useColor,
	}
}

// WithGroup returns a new ColorHandler with the given group name added
func (h *ColorHandler) WithGroup(name string) slog.Handler {
	return &ColorHandler{
		opts:     h.opts,
		writer:   h.writer,
		attrs:    h.attrs,
		groups:   append(h.groups, name),
		masker:   h.masker,
		useColor: h.useColor,
	}
}

// SetMasker sets the masker for this handler
func (h *ColorHandler) SetMasker(masker *Masker) {
	h.masker = masker
}

// SetColorEnabled enables or disables colors
func (h *ColorHandler) SetColorEnabled(enabled bool) {
	h.useColor = enabled
}
