// Package policyset loads and validates texture policy rule files.
package policyset

/*
 * Rule file format.
 *
 * A rule file is a YAML or JSON document with a top-level "rules" list. Each entry
 * is decoded on top of types.DefaultPolicyRule, so omitted fields keep the editor
 * defaults (platforms Android/iOS/Standalone/Default, multiplier 1, max size 4096,
 * Automatic formats, Normal quality, ToNearest scaling).
 *
 *   rules:
 *     - name: android-default
 *       sort_order: 0
 *       platforms: [Android]
 *       max_texture_size: 2048
 *
 * List order is significant: it breaks sort_order ties during selection.
 *
 * Validation is two-phase: struct tags checked by go-playground/validator, then
 * every regex and glob compiled eagerly. Both phases report the first failure as a
 * *types.PolicyConfigError.
 */

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/solatis/texpolicy/internal/rules"
	"github.com/solatis/texpolicy/internal/types"
	"gopkg.in/yaml.v3"
)

// Format identifies a rule file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ErrUnknownFormat indicates a rule file extension or format name that is neither
// YAML nor JSON.
var ErrUnknownFormat = errors.New("unknown rule file format")

// FormatFromPath infers the encoding from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// ParseFormat converts a format name ("yaml", "yml", "json") to Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Load reads, parses and validates the rule file at path.
func Load(path string) ([]types.PolicyRule, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}

	ruleset, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ruleset, nil
}

// Parse decodes and validates a rule document.
func Parse(data []byte, format Format) ([]types.PolicyRule, error) {
	var (
		ruleset []types.PolicyRule
		err     error
	)
	switch format {
	case FormatYAML:
		ruleset, err = decodeYAML(data)
	case FormatJSON:
		ruleset, err = decodeJSON(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, err
	}

	if err := Validate(ruleset); err != nil {
		return nil, err
	}
	return ruleset, nil
}

// Encode writes rules as a rule document in format.
func Encode(w io.Writer, ruleset []types.PolicyRule, format Format) error {
	doc := struct {
		Rules []types.PolicyRule `yaml:"rules" json:"rules"`
	}{Rules: ruleset}

	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// decodeYAML decodes each list entry onto a fresh default rule.
func decodeYAML(data []byte) ([]types.PolicyRule, error) {
	var doc struct {
		Rules []yaml.Node `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	out := make([]types.PolicyRule, 0, len(doc.Rules))
	for i := range doc.Rules {
		rule := types.DefaultPolicyRule()
		if err := doc.Rules[i].Decode(&rule); err != nil {
			return nil, fmt.Errorf("parse yaml: rule %d: %w", i, err)
		}
		out = append(out, rule)
	}
	return out, nil
}

// decodeJSON decodes each list entry onto a fresh default rule.
// Unknown fields are rejected so typos do not silently fall back to defaults.
func decodeJSON(data []byte) ([]types.PolicyRule, error) {
	var doc struct {
		Rules []json.RawMessage `json:"rules"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	out := make([]types.PolicyRule, 0, len(doc.Rules))
	for i, raw := range doc.Rules {
		rule := types.DefaultPolicyRule()
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&rule); err != nil {
			return nil, fmt.Errorf("parse json: rule %d: %w", i, err)
		}
		out = append(out, rule)
	}
	return out, nil
}

// Validate checks field ranges and compiles every pattern of every rule.
func Validate(ruleset []types.PolicyRule) error {
	if len(ruleset) > types.MaxRulesPerSet {
		return fmt.Errorf("%w: %d rules (max %d)", types.ErrTooManyRules, len(ruleset), types.MaxRulesPerSet)
	}

	for i := range ruleset {
		if err := validateStruct(&ruleset[i]); err != nil {
			return err
		}
	}

	if _, err := rules.CompileAll(ruleset); err != nil {
		return err
	}
	return nil
}
