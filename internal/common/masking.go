package common

import (
	"regexp"
	"strings"
)

// SensitivePattern represents a pattern to detect and mask sensitive information
type SensitivePattern struct {
	Name        string         // Pattern name (e.g., "api_key", "hf_token")
	Regex       *regexp.Regexp // Regular expression to match sensitive data
	Replacement string         // Replacement string
	Keys        []string       // Attribute keys masked wholesale (case-insensitive)
}

// DefaultSensitivePatterns covers the credentials this tool handles: the
// hosting platform API key, Hugging Face tokens and generic bearer material.
var DefaultSensitivePatterns = []SensitivePattern{
	{
		Name:        "api_key",
		Regex:       regexp.MustCompile(`(?i)(api[_-]?key|apikey)["'\s]*[:=]["'\s]*([^"',}\]\s&]+)`),
		Replacement: `${1}=***MASKED***`,
		Keys:        []string{"api_key", "apikey", "api-key", "runpod_api_key"},
	},
	{
		Name:        "query_api_key",
		Regex:       regexp.MustCompile(`(?i)([?&]api_key=)([^&\s"']+)`),
		Replacement: `${1}***MASKED***`,
		Keys:        []string{},
	},
	{
		Name:        "hf_token",
		Regex:       regexp.MustCompile(`\bhf_[A-Za-z0-9]{4,}`),
		Replacement: "***MASKED***",
		Keys:        []string{"hf_token"},
	},
	{
		Name:        "token",
		Regex:       regexp.MustCompile(`(?i)(token|access[_-]?token|auth[_-]?token)["'\s]*[:=]["'\s]*([^"',}\]\s]+)`),
		Replacement: `${1}=***MASKED***`,
		Keys:        []string{"token", "access_token", "auth_token"},
	},
	{
		Name:        "bearer_token",
		Regex:       regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\-._~+/]+=*`),
		Replacement: "Bearer ***MASKED***",
		Keys:        []string{"authorization"},
	},
	{
		Name:        "secret",
		Regex:       regexp.MustCompile(`(?i)(secret|password|passwd)["'\s]*[:=]["'\s]*([^"',}\]\s]+)`),
		Replacement: `${1}=***MASKED***`,
		Keys:        []string{"secret", "password", "passwd"},
	},
}

// Masker handles masking of sensitive information in logs
type Masker struct {
	patterns []SensitivePattern
	enabled  bool
}

// NewMasker creates a new masker with default patterns
func NewMasker() *Masker {
	return &Masker{
		patterns: DefaultSensitivePatterns,
		enabled:  true,
	}
}

// SetEnabled enables or disables masking
func (m *Masker) SetEnabled(enabled bool) {
	m.enabled = enabled
}

// IsEnabled returns whether masking is enabled
func (m *Masker) IsEnabled() bool {
	return m.enabled
}

// MaskString masks sensitive information in a string
func (m *Masker) MaskString(input string) string {
	if !m.enabled {
		return input
	}

	result := input
	for _, pattern := range m.patterns {
		result = pattern.Regex.ReplaceAllString(result, pattern.Replacement)
	}
	return result
}

// MaskValue masks a value based on its attribute key, falling back to the
// regex patterns when the key itself is not sensitive.
func (m *Masker) MaskValue(key string, value interface{}) interface{} {
	if !m.enabled {
		return value
	}

	lowerKey := strings.ToLower(key)
	for _, pattern := range m.patterns {
		for _, sensitiveKey := range pattern.Keys {
			if lowerKey == sensitiveKey {
				return "***MASKED***"
			}
		}
	}

	if strValue, ok := value.(string); ok {
		return m.MaskString(strValue)
	}
	return value
}

// MaskKeyValuePairs masks sensitive information in slog-style key-value pairs
func (m *Masker) MaskKeyValuePairs(pairs ...any) []any {
	if !m.enabled {
		return pairs
	}

	result := make([]any, len(pairs))
	for i := 0; i < len(pairs); i += 2 {
		result[i] = pairs[i]
		if i+1 >= len(pairs) {
			break
		}
		if keyStr, ok := pairs[i].(string); ok {
			result[i+1] = m.MaskValue(keyStr, pairs[i+1])
		} else {
			result[i+1] = pairs[i+1]
		}
	}
	return result
}

// Global masker instance
var globalMasker = NewMasker()

// SetGlobalMasker sets the global masker instance
func SetGlobalMasker(masker *Masker) {
	globalMasker = masker
}

// GetGlobalMasker returns the global masker instance
func GetGlobalMasker() *Masker {
	return globalMasker
}

// MaskSensitiveData masks sensitive data using the global masker
func MaskSensitiveData(input string) string {
	return globalMasker.MaskString(input)
}

// EnableMasking enables/disables global masking
func EnableMasking(enabled bool) {
	globalMasker.SetEnabled(enabled)
}
