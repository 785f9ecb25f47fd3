// internal/rules/select_test.go
package rules

import (
	"errors"
	"testing"

	"github.com/solatis/texpolicy/internal/types"
)

func rule(name string, sortOrder int, platforms ...string) types.PolicyRule {
	r := types.DefaultPolicyRule()
	r.Name = name
	r.SortOrder = sortOrder
	r.PlatformPatterns = platforms
	return r
}

func TestSelectRule_LowerSortOrderWins(t *testing.T) {
	a := rule("A", 1, "Android")
	a.MaxTextureSize = 2048
	b := rule("B", 0, "Android")
	b.MaxTextureSize = 4096
	b.NativeResMultiplier = 0.5

	facts := types.TextureFacts{Name: "hero", PlatformName: "Android", NativeWidth: 1000, NativeHeight: 2000, CurrentFormatName: "RGBA32"}

	got, err := SelectRule([]types.PolicyRule{a, b}, facts, nil)
	if err != nil {
		t.Fatalf("SelectRule() error = %v, want nil", err)
	}
	if got == nil || got.Name != "B" {
		t.Fatalf("SelectRule() = %v, want rule B", got)
	}

	settings, err := ComputeSettings(got, facts)
	if err != nil {
		t.Fatalf("ComputeSettings() error = %v, want nil", err)
	}
	if settings.NativeSize != 2048 {
		t.Errorf("NativeSize = %v, want 2048", settings.NativeSize)
	}
	if settings.TargetSize != 1024 {
		t.Errorf("TargetSize = %v, want 1024", settings.TargetSize)
	}
}

func TestSelectRule_TiesKeepInputOrder(t *testing.T) {
	rules := []types.PolicyRule{
		rule("late", 5, "Android"),
		rule("first", 2, "Android"),
		rule("second", 2, "Android"),
		rule("third", 2, "Android"),
	}

	got, err := SelectRule(rules, types.TextureFacts{PlatformName: "Android"}, nil)
	if err != nil {
		t.Fatalf("SelectRule() error = %v, want nil", err)
	}
	if got.Name != "first" {
		t.Errorf("SelectRule() = %v, want first", got.Name)
	}
}

func TestSelectRule_DoesNotReorderInput(t *testing.T) {
	rules := []types.PolicyRule{rule("b", 9, "iOS"), rule("a", 0, "iOS")}

	if _, err := SelectRule(rules, types.TextureFacts{PlatformName: "iOS"}, nil); err != nil {
		t.Fatalf("SelectRule() error = %v, want nil", err)
	}
	if rules[0].Name != "b" || rules[1].Name != "a" {
		t.Errorf("input reordered: %v, %v", rules[0].Name, rules[1].Name)
	}
}

func TestSelectRule_SubstringMatch(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		platform string
		want     bool
	}{
		{name: "exact", pattern: "Android", platform: "Android", want: true},
		{name: "inner substring", pattern: "ndroi", platform: "Android", want: true},
		{name: "prefix of longer name", pattern: "Standalone", platform: "StandaloneWindows64", want: true},
		{name: "anchored regex", pattern: "^iOS$", platform: "iOS", want: true},
		{name: "anchored regex rejects", pattern: "^iOS$", platform: "tvOS", want: false},
		{name: "alternation", pattern: "WebGL|Android", platform: "WebGL", want: true},
		{name: "case sensitive", pattern: "android", platform: "Android", want: false},
		{name: "no match", pattern: "iOS", platform: "Android", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectRule([]types.PolicyRule{rule("r", 0, tt.pattern)}, types.TextureFacts{PlatformName: tt.platform}, nil)
			if err != nil {
				t.Fatalf("SelectRule() error = %v, want nil", err)
			}
			if (got != nil) != tt.want {
				t.Errorf("SelectRule() matched = %v, want %v", got != nil, tt.want)
			}
		})
	}
}

func TestSelectRule_AnyPatternMatches(t *testing.T) {
	got, err := SelectRule([]types.PolicyRule{rule("multi", 0, "iOS", "Android")}, types.TextureFacts{PlatformName: "Android"}, nil)
	if err != nil {
		t.Fatalf("SelectRule() error = %v, want nil", err)
	}
	if got == nil {
		t.Fatal("SelectRule() = nil, want multi")
	}
}

func TestSelectRule_EmptyRuleSet(t *testing.T) {
	for _, platform := range []string{"", "Android", "iOS"} {
		got, err := SelectRule(nil, types.TextureFacts{PlatformName: platform}, nil)
		if err != nil {
			t.Fatalf("SelectRule() error = %v, want nil", err)
		}
		if got != nil {
			t.Errorf("SelectRule(%q) = %v, want nil", platform, got)
		}
	}
}

func TestSelectRule_EmptyPlatformListNeverMatches(t *testing.T) {
	got, err := SelectRule([]types.PolicyRule{rule("dead", 0)}, types.TextureFacts{PlatformName: "Android"}, nil)
	if err != nil {
		t.Fatalf("SelectRule() error = %v, want nil", err)
	}
	if got != nil {
		t.Errorf("SelectRule() = %v, want nil", got.Name)
	}
}

func TestSelectRule_MalformedPlatformPattern(t *testing.T) {
	rules := []types.PolicyRule{rule("broken", 0, "[unclosed")}

	_, err := SelectRule(rules, types.TextureFacts{PlatformName: "Android"}, nil)
	if !errors.Is(err, types.ErrInvalidPolicyConfig) {
		t.Fatalf("SelectRule() error = %v, want ErrInvalidPolicyConfig", err)
	}

	var cfgErr *types.PolicyConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error type = %T, want *PolicyConfigError", err)
	}
	if cfgErr.Rule != "broken" {
		t.Errorf("Rule = %v, want broken", cfgErr.Rule)
	}
	if cfgErr.Pattern != "[unclosed" {
		t.Errorf("Pattern = %v, want [unclosed", cfgErr.Pattern)
	}
	if cfgErr.Field != FieldPlatforms {
		t.Errorf("Field = %v, want %v", cfgErr.Field, FieldPlatforms)
	}
}

func TestSelectRule_BrokenRuleAfterWinnerNotEvaluated(t *testing.T) {
	rules := []types.PolicyRule{
		rule("winner", 0, "Android"),
		rule("broken", 1, "[unclosed"),
	}

	got, err := SelectRule(rules, types.TextureFacts{PlatformName: "Android"}, nil)
	if err != nil {
		t.Fatalf("SelectRule() error = %v, want nil", err)
	}
	if got.Name != "winner" {
		t.Errorf("SelectRule() = %v, want winner", got.Name)
	}
}

func TestSelectRule_FilterExcludesRules(t *testing.T) {
	rules := []types.PolicyRule{rule("ui", 0, "Android"), rule("world", 1, "Android")}
	onlyWorld := func(r *types.PolicyRule, _ AssetContext) (bool, error) {
		return r.Name == "world", nil
	}

	got, err := SelectRule(rules, types.TextureFacts{PlatformName: "Android"}, onlyWorld)
	if err != nil {
		t.Fatalf("SelectRule() error = %v, want nil", err)
	}
	if got.Name != "world" {
		t.Errorf("SelectRule() = %v, want world", got.Name)
	}
}

func TestSelectRule_FilterErrorPropagates(t *testing.T) {
	boom := errors.New("host unavailable")
	failing := func(*types.PolicyRule, AssetContext) (bool, error) { return false, boom }

	_, err := SelectRule([]types.PolicyRule{rule("r", 0, "Android")}, types.TextureFacts{PlatformName: "Android"}, failing)
	if !errors.Is(err, boom) {
		t.Errorf("SelectRule() error = %v, want %v", err, boom)
	}
}

func TestGlobFilter(t *testing.T) {
	tests := []struct {
		name  string
		globs []string
		path  string
		want  bool
	}{
		{name: "no globs applies everywhere", globs: nil, path: "Assets/UI/button.png", want: true},
		{name: "single star stays in directory", globs: []string{"Assets/UI/*.png"}, path: "Assets/UI/button.png", want: true},
		{name: "single star does not cross separator", globs: []string{"Assets/*.png"}, path: "Assets/UI/button.png", want: false},
		{name: "double star crosses separator", globs: []string{"Assets/**.png"}, path: "Assets/UI/icons/button.png", want: true},
		{name: "second glob matches", globs: []string{"Assets/World/**", "Assets/UI/**"}, path: "Assets/UI/a.png", want: true},
		{name: "no glob matches", globs: []string{"Assets/World/**"}, path: "Assets/UI/a.png", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := rule("r", 0, "Android")
			r.AssetPathGlobs = tt.globs
			got, err := GlobFilter(&r, types.TextureFacts{AssetPath: tt.path})
			if err != nil {
				t.Fatalf("GlobFilter() error = %v, want nil", err)
			}
			if got != tt.want {
				t.Errorf("GlobFilter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGlobFilter_MalformedGlob(t *testing.T) {
	r := rule("bad-glob", 0, "Android")
	r.AssetPathGlobs = []string{"Assets/[unclosed"}

	_, err := GlobFilter(&r, types.TextureFacts{AssetPath: "Assets/x.png"})
	if !errors.Is(err, types.ErrInvalidPolicyConfig) {
		t.Errorf("GlobFilter() error = %v, want ErrInvalidPolicyConfig", err)
	}
}
