// Package config loads the effective configuration document produced by the
// external configuration provider and derives the immutable engine
// configuration from it.
//
// The provider owns merging and validation of configuration sources; this
// package only consumes the merged JSON document. The one exception is the
// legacy boot parameter "autoruns=", which overwrites the suffixes option
// after the document is loaded (see cmdline.go).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	// DocScope is the scope within the effective configuration document that
	// holds the autorun options. Other scopes are ignored.
	DocScope = "autorun"

	// SuffixDisable is the sentinel suffixes value meaning "bare name only".
	SuffixDisable = "no"

	// DefaultAttempts bounds the network retry loop when ar_attempts is
	// absent or not a usable integer.
	DefaultAttempts = 1
)

// Option keys within the autorun scope.
const (
	keyDisable    = "ar_disable"
	keyNoWait     = "ar_nowait"
	keyNoDelete   = "ar_nodel"
	keyIgnoreFail = "ar_ignorefail"
	keyAttempts   = "ar_attempts"
	keySource     = "ar_source"
	keySuffixes   = "ar_suffixes"
)

// Sentinel errors for the two fatal configuration conditions. Callers match
// with errors.Is; the wrapping error carries the document path.
var (
	ErrDocMissing = errors.New("effective configuration document not found")
	ErrDocInvalid = errors.New("effective configuration document malformed")
)

// Config is the engine configuration, constructed once by Load and never
// mutated afterwards. It is passed by value so no component can change
// another component's view of it.
type Config struct {
	Disabled      bool
	NoWait        bool
	NoDelete      bool
	IgnoreFailure bool
	Attempts      int
	Source        string
	Suffixes      string
}

// Defaults returns the configuration used when the document carries no
// autorun scope. Autorun is enabled, interactive, cleaning up after itself,
// failing fast, with one network attempt and no source configured.
func Defaults() Config {
	return Config{Attempts: DefaultAttempts}
}

// Load reads the effective configuration document at docPath and applies the
// legacy suffixes override from the boot command line at cmdlinePath.
//
// A missing document is fatal for the engine: Load returns an error wrapping
// ErrDocMissing. A document that is not valid JSON, or whose autorun scope is
// not an object, wraps ErrDocInvalid. A document without an autorun scope is
// valid and yields Defaults.
func Load(docPath, cmdlinePath string) (Config, error) {
	data, err := os.ReadFile(docPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, fmt.Errorf("%w: %s", ErrDocMissing, docPath)
		}
		return Config{}, fmt.Errorf("read configuration document %s: %w", docPath, err)
	}

	cfg, err := parseDocument(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", docPath, err)
	}

	if cmdlinePath != "" {
		if suffixes, ok := suffixOverride(cmdlinePath); ok {
			cfg.Suffixes = suffixes
		}
	}
	return cfg, nil
}

// parseDocument decodes the scope/key/value document and coerces the autorun
// options into typed fields. Unknown scopes and keys are ignored; values of
// the wrong shape do not override the defaults.
func parseDocument(data []byte) (Config, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		var syn *json.SyntaxError
		if errors.As(err, &syn) {
			return Config{}, fmt.Errorf("%w: syntax error at byte offset %d", ErrDocInvalid, syn.Offset)
		}
		return Config{}, fmt.Errorf("%w: %v", ErrDocInvalid, err)
	}

	cfg := Defaults()
	scope, ok := doc[DocScope]
	if !ok {
		return cfg, nil
	}

	var opts map[string]any
	if err := json.Unmarshal(scope, &opts); err != nil {
		return Config{}, fmt.Errorf("%w: scope %q is not an object", ErrDocInvalid, DocScope)
	}

	if v, ok := parseBool(opts[keyDisable]); ok {
		cfg.Disabled = v
	}
	if v, ok := parseBool(opts[keyNoWait]); ok {
		cfg.NoWait = v
	}
	if v, ok := parseBool(opts[keyNoDelete]); ok {
		cfg.NoDelete = v
	}
	if v, ok := parseBool(opts[keyIgnoreFail]); ok {
		cfg.IgnoreFailure = v
	}
	if v, ok := parseAttempts(opts[keyAttempts]); ok {
		cfg.Attempts = v
	}
	if v, ok := opts[keySource].(string); ok {
		cfg.Source = strings.TrimSpace(v)
	}
	if v, ok := opts[keySuffixes].(string); ok {
		cfg.Suffixes = strings.TrimSpace(v)
	}
	return cfg, nil
}

// parseBool coerces a document value into a boolean. JSON booleans pass
// through; the string forms y/yes/true and n/no/false (any case) are the
// legacy spellings. Anything else is not a boolean override and reports
// ok=false so the default stands.
func parseBool(v any) (value, ok bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "y", "yes", "true":
			return true, true
		case "n", "no", "false":
			return false, true
		}
	}
	return false, false
}

// parseAttempts coerces the attempts value into a non-negative int. JSON
// numbers and numeric strings are accepted; negative values are not an
// override.
func parseAttempts(v any) (value int, ok bool) {
	switch n := v.(type) {
	case float64:
		if n == float64(int(n)) && int(n) >= 0 {
			return int(n), true
		}
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err == nil && i >= 0 {
			return i, true
		}
	}
	return 0, false
}

// SuffixList derives the ordered candidate-name variants from the suffixes
// option. The list always starts with the empty suffix (the bare name
// "autorun"). The sentinel value "no", like an empty value, disables every
// other variant. Token order is preserved and duplicates are kept; empty
// tokens between commas are skipped.
func (c Config) SuffixList() []string {
	list := []string{""}
	raw := strings.TrimSpace(c.Suffixes)
	if raw == "" || raw == SuffixDisable {
		return list
	}
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		list = append(list, tok)
	}
	return list
}
