// internal/rules/compute.go
package rules

import (
	"math"
	"slices"

	"github.com/solatis/texpolicy/internal/types"
)

/*
 * Target settings computation.
 *
 * Computes ResolvedSettings from the selected rule and the texture facts:
 *   1. Skip check (unless force_preprocess): first skip regex matching the current
 *      format returns "none"; later patterns are not evaluated
 *   2. Native size bucket: next power of two of max(width, height)
 *   3. Target size: round(bucket * multiplier), clamped to max_texture_size
 *   4. Format: rgba_format when the texture has alpha, rgb_format otherwise
 *
 * Power-of-two bucket: the host buckets sizes to powers of two even for NPOT
 * sources, and results must match what the import hook produced.
 *
 * Rounding: single-precision product rounded half-to-even, the same arithmetic the
 * host's RoundToInt performs. 0.5 rounds to 0, 1.5 and 2.5 round to 2.
 *
 * Known quirk: the skip check looks only at the current platform's format while
 * the result targets every platform in the rule, so per-platform skip decisions are
 * not independent. Kept as-is pending owner confirmation.
 */

// ComputeSettings returns target settings for facts under rule, or nil when the
// current format matches a skip pattern.
func ComputeSettings(rule *types.PolicyRule, facts types.TextureFacts) (*types.ResolvedSettings, error) {
	settings, _, err := computeSettings(rule, facts)
	return settings, err
}

// MatchSkipPattern returns the first skip pattern matching format.
// It ignores force_preprocess; callers decide whether the skip applies.
func MatchSkipPattern(rule *types.PolicyRule, format string) (string, bool, error) {
	return firstMatch(rule, FieldSkipFormats, rule.SkipFormatPatterns, format)
}

// computeSettings also reports which skip pattern suppressed processing.
func computeSettings(rule *types.PolicyRule, facts types.TextureFacts) (*types.ResolvedSettings, string, error) {
	if !rule.ForcePreprocess {
		pattern, skip, err := MatchSkipPattern(rule, facts.CurrentFormatName)
		if err != nil {
			return nil, "", err
		}
		if skip {
			return nil, pattern, nil
		}
	}

	nativeSize := NextPowerOfTwo(max(facts.NativeWidth, facts.NativeHeight))
	targetSize := ScaleSize(nativeSize, rule.NativeResMultiplier, rule.MaxTextureSize)

	format := rule.RGBFormat
	if facts.HasAlpha {
		format = rule.RGBAFormat
	}

	platforms := slices.Clone(rule.PlatformPatterns)
	perPlatform := make([]types.PlatformSettings, 0, len(platforms))
	for _, name := range platforms {
		perPlatform = append(perPlatform, types.PlatformSettings{
			Name:                 name,
			Overridden:           true,
			MaxTextureSize:       targetSize,
			Format:               format,
			CompressionQuality:   rule.CompressionQuality,
			AllowsAlphaSplitting: false,
		})
	}

	return &types.ResolvedSettings{
		NativeSize:         nativeSize,
		TargetSize:         targetSize,
		TargetFormat:       format,
		CompressionQuality: rule.CompressionQuality,
		ForceLinear:        rule.ForceLinear,
		EnableReadWrite:    rule.EnableReadWrite,
		NPOTScale:          rule.NPOTScale,
		AppliedPlatforms:   platforms,
		PlatformSettings:   perPlatform,
	}, "", nil
}

// maxPowerOfTwo is the largest power of two representable as an int.
const maxPowerOfTwo = math.MaxInt>>1 + 1

// NextPowerOfTwo returns the smallest power of two >= n.
// Non-positive n returns 0, as the host does for empty textures.
// n above the largest representable power of two saturates to it.
func NextPowerOfTwo(n int) int {
	if n <= 0 {
		return 0
	}
	if n > maxPowerOfTwo {
		return maxPowerOfTwo
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// ScaleSize multiplies a native size and clamps the result to maxSize.
// The product is computed in single precision and rounded half-to-even.
// An empty texture or a NaN product scales to zero.
func ScaleSize(nativeSize int, multiplier float64, maxSize int) int {
	if nativeSize <= 0 {
		return min(0, maxSize)
	}
	product := float64(float32(nativeSize) * float32(multiplier))
	scaled := math.RoundToEven(product)
	if math.IsNaN(scaled) || scaled <= 0 {
		return min(0, maxSize)
	}
	// Clamp before conversion: huge multipliers must not overflow int
	if scaled >= float64(maxSize) {
		return maxSize
	}
	return int(scaled)
}
