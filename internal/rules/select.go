// internal/rules/select.go
package rules

import (
	"sort"

	"github.com/solatis/texpolicy/internal/types"
)

/*
 * Rule selection.
 *
 * SelectRule picks the single rule that governs a texture on a platform:
 *   1. Drop rules the applicability filter rejects (nil filter keeps all)
 *   2. Stable sort by ascending sort_order
 *   3. First rule with a platform regex matching the platform name wins
 *
 * Ties keep rule-set order: two rules with equal sort_order resolve to the one
 * listed first, on every call.
 *
 * "No rule" is a normal outcome (nil, nil): the caller leaves the asset untouched.
 */

// SelectRule returns the governing rule for facts, or nil when none matches.
// The returned rule is a copy; rules is never modified.
func SelectRule(rules []types.PolicyRule, facts types.TextureFacts, filter Filter) (*types.PolicyRule, error) {
	candidates := make([]int, 0, len(rules))
	for i := range rules {
		if filter != nil {
			ok, err := filter(&rules[i], facts)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		candidates = append(candidates, i)
	}

	// Stable sort: equal sort_order keeps input order (deterministic tie-break)
	sort.SliceStable(candidates, func(a, b int) bool {
		return rules[candidates[a]].SortOrder < rules[candidates[b]].SortOrder
	})

	for _, idx := range candidates {
		rule := &rules[idx]
		_, matched, err := firstMatch(rule, FieldPlatforms, rule.PlatformPatterns, facts.PlatformName)
		if err != nil {
			return nil, err
		}
		if matched {
			selected := *rule
			return &selected, nil
		}
	}

	return nil, nil
}

// GlobFilter applies each rule's asset_paths globs to the asset path.
// Rules without globs apply to every asset.
func GlobFilter(rule *types.PolicyRule, asset AssetContext) (bool, error) {
	if len(rule.AssetPathGlobs) == 0 {
		return true, nil
	}
	path := asset.SourcePath()
	for _, p := range rule.AssetPathGlobs {
		g, err := compileGlob(rule, p)
		if err != nil {
			return false, err
		}
		if g.Match(path) {
			return true, nil
		}
	}
	return false, nil
}
