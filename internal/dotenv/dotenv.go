// Package dotenv loads deployment configuration from a line-oriented
// KEY=VALUE file and exports it into the process environment so that
// delegated programs inherit it.
package dotenv

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrConfigurationMissing indicates the env file does not exist.
	ErrConfigurationMissing = errors.New("configuration file missing")
	// ErrCredentialMissing indicates the required credential key is empty or absent.
	ErrCredentialMissing = errors.New("credential missing")
)

// CredentialKey is the single required entry authenticating against the
// hosting platform.
const CredentialKey = "RUNPOD_API_KEY"

// Map is an immutable snapshot of the parsed configuration. It is passed by
// value to downstream components; Export is the only place that touches the
// process environment.
type Map map[string]string

// Result reports what a Load actually did.
type Result struct {
	Values   Map
	KeysSet  []string
	Warnings []string
}

// Load reads the env file at path. The file is parsed line by line: blank
// lines and lines starting with '#' are ignored, every other line is split on
// the FIRST '=' so values may themselves contain '=' characters. Values are
// kept verbatim; quoting is the consumer's concern (see TrimQuotes).
func Load(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, fmt.Errorf(
				"%w: %s not found, create it from the template (cp .env.runpod.example %s)",
				ErrConfigurationMissing, path, path)
		}
		return Result{}, fmt.Errorf("read %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	res := Result{Values: Map{}}
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			res.Warnings = append(res.Warnings, fmt.Sprintf("line %d: no '=' separator, skipped", lineNo))
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			res.Warnings = append(res.Warnings, fmt.Sprintf("line %d: empty key, skipped", lineNo))
			continue
		}
		res.Values[key] = value
		res.KeysSet = append(res.KeysSet, key)
	}
	if err := sc.Err(); err != nil {
		return Result{}, fmt.Errorf("read %s: %w", path, err)
	}
	return res, nil
}

// Export injects every loaded key into the process environment. Existing
// variables are overwritten: the env file is the source of truth for a run.
func Export(values Map) error {
	for k, v := range values {
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("export %s: %w", k, err)
		}
	}
	return nil
}

// RequireCredential verifies the credential key is present with a non-empty
// value after quote trimming.
func RequireCredential(values Map) error {
	v, ok := values[CredentialKey]
	if !ok || TrimQuotes(v) == "" {
		return fmt.Errorf("%w: %s is empty or not set, add it to your env file",
			ErrCredentialMissing, CredentialKey)
	}
	return nil
}

// Credential returns the quote-trimmed credential value.
func Credential(values Map) string {
	return TrimQuotes(values[CredentialKey])
}

// TrimQuotes strips one layer of surrounding single or double quotes, a
// common artifact of hand-edited env files.
func TrimQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
