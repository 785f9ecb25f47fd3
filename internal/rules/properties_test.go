// internal/rules/properties_test.go
package rules

import (
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/solatis/texpolicy/internal/types"
)

// Property-based test: equal sort_order resolves to the earliest listed rule
func TestSelectRule_PropertyStableTieBreak(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("lowest sort_order wins, earliest among ties", prop.ForAll(
		func(orders []int) bool {
			rules := make([]types.PolicyRule, len(orders))
			for i, o := range orders {
				rules[i] = rule(fmt.Sprintf("r%d", i), o, "Android")
			}

			got, err := SelectRule(rules, types.TextureFacts{PlatformName: "Android"}, nil)
			if err != nil {
				return false
			}
			if len(orders) == 0 {
				return got == nil
			}

			want := 0
			for i, o := range orders {
				if o < orders[want] {
					want = i
				}
			}
			return got != nil && got.Name == fmt.Sprintf("r%d", want)
		},
		gen.SliceOf(gen.IntRange(0, 3)),
	))

	properties.TestingRun(t)
}

// Property-based test: a pattern matches every platform that contains it
func TestSelectRule_PropertySubstring(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("literal pattern matches any platform containing it", prop.ForAll(
		func(prefix, suffix string) bool {
			platform := prefix + "ndroi" + suffix
			got, err := SelectRule([]types.PolicyRule{rule("r", 0, "ndroi")}, types.TextureFacts{PlatformName: platform}, nil)
			return err == nil && got != nil
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// Property-based test: target size law and clamp bound
func TestComputeSettings_PropertyClamp(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("target = min(round(nextPow2(max(w,h)) * m), maxSize)", prop.ForAll(
		func(w, h int, multiplier float64, maxSize int) bool {
			r := rule("clamp", 0, "Android")
			r.NativeResMultiplier = multiplier
			r.MaxTextureSize = maxSize

			got, err := ComputeSettings(&r, types.TextureFacts{PlatformName: "Android", NativeWidth: w, NativeHeight: h})
			if err != nil || got == nil {
				return false
			}

			bucket := NextPowerOfTwo(max(w, h))
			want := int(math.RoundToEven(float64(float32(bucket) * float32(multiplier))))
			if want > maxSize {
				want = maxSize
			}
			return got.TargetSize == want && got.TargetSize <= maxSize && got.NativeSize == bucket
		},
		gen.IntRange(0, 16384),
		gen.IntRange(0, 16384),
		gen.Float64Range(0, 4),
		gen.IntRange(1, 8192),
	))

	properties.TestingRun(t)
}

// Property-based test: multipliers past float32 range never leave [0, maxSize]
func TestComputeSettings_PropertyClampExtremeMultiplier(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("empty textures scale to 0, others clamp to maxSize", prop.ForAll(
		func(w, h int, multiplier float64, maxSize int) bool {
			r := rule("extreme", 0, "Android")
			r.NativeResMultiplier = multiplier
			r.MaxTextureSize = maxSize

			got, err := ComputeSettings(&r, types.TextureFacts{PlatformName: "Android", NativeWidth: w, NativeHeight: h})
			if err != nil || got == nil {
				return false
			}

			want := maxSize
			if max(w, h) == 0 {
				want = 0
			}
			return got.TargetSize == want
		},
		gen.OneConstOf(0, 0, 1, 3, 4096),
		gen.OneConstOf(0, 0, 2, 8192),
		gen.OneGenOf(gen.Float64Range(1e30, 1e300), gen.Const(math.Inf(1))),
		gen.IntRange(1, 8192),
	))

	properties.TestingRun(t)
}

// Property-based test: NextPowerOfTwo returns the tightest power of two bound
func TestNextPowerOfTwo_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("result is the smallest power of two >= n", prop.ForAll(
		func(n int) bool {
			p := NextPowerOfTwo(n)
			return p >= n && p&(p-1) == 0 && (p == 1 || p/2 < n)
		},
		gen.IntRange(1, 1<<30),
	))

	properties.TestingRun(t)
}

// Property-based test: alpha selects the RGBA format and nothing else does
func TestComputeSettings_PropertyFormatSelection(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("target format is rgba_format iff has_alpha", prop.ForAll(
		func(hasAlpha bool, w, h int) bool {
			r := rule("fmt", 0, "Android")
			r.RGBFormat = "RGB_FORMAT"
			r.RGBAFormat = "RGBA_FORMAT"

			got, err := ComputeSettings(&r, types.TextureFacts{PlatformName: "Android", HasAlpha: hasAlpha, NativeWidth: w, NativeHeight: h})
			if err != nil || got == nil {
				return false
			}
			return (got.TargetFormat == r.RGBAFormat) == hasAlpha
		},
		gen.Bool(),
		gen.IntRange(0, 4096),
		gen.IntRange(0, 4096),
	))

	properties.TestingRun(t)
}

// Property-based test: identical inputs give identical settings
func TestComputeSettings_PropertyIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("two calls yield equal results", prop.ForAll(
		func(w, h int, multiplier float64, hasAlpha, force bool) bool {
			r := rule("idem", 0, "Android", "iOS")
			r.NativeResMultiplier = multiplier
			r.ForcePreprocess = force
			r.SkipFormatPatterns = []string{"ASTC"}
			facts := types.TextureFacts{PlatformName: "Android", HasAlpha: hasAlpha, NativeWidth: w, NativeHeight: h, CurrentFormatName: "ASTC_4x4"}

			first, err1 := ComputeSettings(&r, facts)
			second, err2 := ComputeSettings(&r, facts)
			return err1 == nil && err2 == nil && reflect.DeepEqual(first, second)
		},
		gen.IntRange(0, 8192),
		gen.IntRange(0, 8192),
		gen.Float64Range(0, 2),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// Property-based test: a matching skip pattern wins over every other field
func TestComputeSettings_PropertySkip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("skip match returns nil regardless of other fields", prop.ForAll(
		func(suffix string, w, h, maxSize int, multiplier float64, hasAlpha, readWrite, linear bool) bool {
			r := rule("skip", 0, "Android")
			r.SkipFormatPatterns = []string{"NOPE", "ASTC"}
			r.MaxTextureSize = maxSize
			r.NativeResMultiplier = multiplier
			r.EnableReadWrite = readWrite
			r.ForceLinear = linear

			got, err := ComputeSettings(&r, types.TextureFacts{
				PlatformName:      "Android",
				HasAlpha:          hasAlpha,
				NativeWidth:       w,
				NativeHeight:      h,
				CurrentFormatName: "ASTC_" + suffix,
			})
			return err == nil && got == nil
		},
		gen.AlphaString(),
		gen.IntRange(0, 8192),
		gen.IntRange(0, 8192),
		gen.IntRange(1, 8192),
		gen.Float64Range(0, 4),
		gen.Bool(),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
