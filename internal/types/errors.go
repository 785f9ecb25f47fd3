package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for texpolicy operations.
var (
	// ErrInvalidPolicyConfig indicates a rule that cannot be evaluated: a pattern
	// that does not compile, or a field outside its allowed range.
	ErrInvalidPolicyConfig = errors.New("invalid policy config")

	// ErrUnknownNPOTScale indicates an NPOT scale name or ordinal outside the enum.
	ErrUnknownNPOTScale = errors.New("unknown npot scale")

	// ErrTooManyRules indicates a rule set exceeds MaxRulesPerSet.
	ErrTooManyRules = errors.New("rule set exceeds maximum size")

	// ErrInvalidFacts indicates texture facts that cannot be resolved
	// (missing platform, negative dimensions).
	ErrInvalidFacts = errors.New("invalid texture facts")

	// ErrProjectNotFound indicates an unknown project name or id.
	ErrProjectNotFound = errors.New("project not found")

	// ErrProjectExists indicates a duplicate project name.
	ErrProjectExists = errors.New("project already exists")
)

// PolicyConfigError names the rule, field and pattern that failed.
// errors.Is(err, ErrInvalidPolicyConfig) holds for every PolicyConfigError.
type PolicyConfigError struct {
	Rule    string // rule name
	Field   string // "platforms", "skip_formats", "asset_paths", ...
	Pattern string // offending pattern, empty for non-pattern fields
	Err     error  // underlying compile or validation error
}

func (e *PolicyConfigError) Error() string {
	if e.Pattern != "" {
		return fmt.Sprintf("%s: rule %q: %s pattern %q: %v", ErrInvalidPolicyConfig, e.Rule, e.Field, e.Pattern, e.Err)
	}
	return fmt.Sprintf("%s: rule %q: %s: %v", ErrInvalidPolicyConfig, e.Rule, e.Field, e.Err)
}

// Unwrap exposes the underlying compile error.
func (e *PolicyConfigError) Unwrap() error {
	return e.Err
}

// Is reports ErrInvalidPolicyConfig as a match.
func (e *PolicyConfigError) Is(target error) bool {
	return target == ErrInvalidPolicyConfig
}
