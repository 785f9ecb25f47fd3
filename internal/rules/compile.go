// internal/rules/compile.go
package rules

import (
	"regexp"

	"github.com/gobwas/glob"
	"github.com/solatis/texpolicy/internal/types"
)

/*
 * Pattern compilation and eager rule validation.
 *
 * Selection and computation compile patterns lazily, in scan order, so a broken
 * pattern is reported exactly when the offending rule is evaluated and a rule after
 * the winner can never fail a resolution. Compile is the eager counterpart used by
 * rule-file loaders, the store and the validate command.
 *
 * Pattern fields:
 *   - platforms:    regex, unanchored search against the platform name
 *   - skip_formats: regex, unanchored search against the current format name
 *   - asset_paths:  glob with '/' separator against the asset path
 *
 * Every compile failure becomes a *types.PolicyConfigError naming rule, field and
 * pattern, so errors.Is(err, types.ErrInvalidPolicyConfig) holds.
 */

// Pattern field names reported in PolicyConfigError.
const (
	FieldPlatforms   = "platforms"
	FieldSkipFormats = "skip_formats"
	FieldAssetPaths  = "asset_paths"
)

// CompiledRule holds a rule with every pattern compiled.
type CompiledRule struct {
	Rule        types.PolicyRule
	Platforms   []*regexp.Regexp
	SkipFormats []*regexp.Regexp
	AssetPaths  []glob.Glob
}

// Compile validates every pattern of rule and returns the compiled form.
// The first failing pattern (platforms, then skip_formats, then asset_paths) is
// reported.
func Compile(rule *types.PolicyRule) (*CompiledRule, error) {
	compiled := &CompiledRule{
		Rule:        *rule,
		Platforms:   make([]*regexp.Regexp, 0, len(rule.PlatformPatterns)),
		SkipFormats: make([]*regexp.Regexp, 0, len(rule.SkipFormatPatterns)),
		AssetPaths:  make([]glob.Glob, 0, len(rule.AssetPathGlobs)),
	}

	for _, p := range rule.PlatformPatterns {
		re, err := compilePattern(rule, FieldPlatforms, p)
		if err != nil {
			return nil, err
		}
		compiled.Platforms = append(compiled.Platforms, re)
	}

	for _, p := range rule.SkipFormatPatterns {
		re, err := compilePattern(rule, FieldSkipFormats, p)
		if err != nil {
			return nil, err
		}
		compiled.SkipFormats = append(compiled.SkipFormats, re)
	}

	for _, p := range rule.AssetPathGlobs {
		g, err := compileGlob(rule, p)
		if err != nil {
			return nil, err
		}
		compiled.AssetPaths = append(compiled.AssetPaths, g)
	}

	return compiled, nil
}

// CompileAll compiles a whole rule set, failing on the first broken rule.
func CompileAll(rules []types.PolicyRule) ([]*CompiledRule, error) {
	if len(rules) > types.MaxRulesPerSet {
		return nil, types.ErrTooManyRules
	}
	out := make([]*CompiledRule, 0, len(rules))
	for i := range rules {
		c, err := Compile(&rules[i])
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// compilePattern compiles one regex, wrapping failures with rule context.
func compilePattern(rule *types.PolicyRule, field, pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &types.PolicyConfigError{Rule: rule.Name, Field: field, Pattern: pattern, Err: err}
	}
	return re, nil
}

// compileGlob compiles one asset path glob with '/' as the separator.
func compileGlob(rule *types.PolicyRule, pattern string) (glob.Glob, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, &types.PolicyConfigError{Rule: rule.Name, Field: FieldAssetPaths, Pattern: pattern, Err: err}
	}
	return g, nil
}

// firstMatch returns the first pattern in patterns that finds a match in s.
// Patterns are compiled one at a time; patterns after the first match are not
// compiled, so they cannot fail the call.
func firstMatch(rule *types.PolicyRule, field string, patterns []string, s string) (string, bool, error) {
	for _, p := range patterns {
		re, err := compilePattern(rule, field, p)
		if err != nil {
			return "", false, err
		}
		if re.MatchString(s) {
			return p, true, nil
		}
	}
	return "", false, nil
}
