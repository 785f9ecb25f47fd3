package types

/*
 * Domain types for texture policy resolution.
 *
 * Provides PolicyRule, TextureFacts and ResolvedSettings used by internal/rules
 * for selection and computation. These types are wire-format agnostic: rule files,
 * database rows and gRPC structs convert into them at the boundary.
 *
 * Key types:
 *   - PolicyRule: one configuration record (platform regexes, skip regexes, targets)
 *   - TextureFacts: what the host knows about a texture at import time
 *   - ResolvedSettings: target import parameters computed from one rule
 *   - PlatformSettings: the per-platform override record the host writes back
 *
 * Dependencies: None
 */

// PolicyRule is an immutable texture import policy.
// Tags serve rule files (yaml/json), the store (json definition column) and
// struct validation in internal/core/policyset.
type PolicyRule struct {
	ID                  RuleID             `yaml:"id,omitempty" json:"id,omitempty"`
	Name                string             `yaml:"name" json:"name" validate:"required"`
	SortOrder           int                `yaml:"sort_order" json:"sort_order"`
	PlatformPatterns    []string           `yaml:"platforms" json:"platforms" validate:"min=1,max=64,dive,required,max=1024"`
	AssetPathGlobs      []string           `yaml:"asset_paths,omitempty" json:"asset_paths,omitempty" validate:"max=64,dive,required,max=1024"`
	SkipFormatPatterns  []string           `yaml:"skip_formats,omitempty" json:"skip_formats,omitempty" validate:"max=64,dive,required,max=1024"`
	ForcePreprocess     bool               `yaml:"force_preprocess" json:"force_preprocess"`
	EnableReadWrite     bool               `yaml:"enable_read_write" json:"enable_read_write"`
	ForceLinear         bool               `yaml:"force_linear" json:"force_linear"`
	NativeResMultiplier float64            `yaml:"native_res_multiplier" json:"native_res_multiplier" validate:"gte=0,lte=1024"`
	MaxTextureSize      int                `yaml:"max_texture_size" json:"max_texture_size" validate:"gte=1"`
	RGBFormat           TextureFormat      `yaml:"rgb_format" json:"rgb_format" validate:"required"`
	RGBAFormat          TextureFormat      `yaml:"rgba_format" json:"rgba_format" validate:"required"`
	CompressionQuality  CompressionQuality `yaml:"compression_quality" json:"compression_quality" validate:"gte=0,lte=100"`
	NPOTScale           NPOTScale          `yaml:"npot_scale" json:"npot_scale" validate:"gte=0,lte=3"`
}

// DefaultPolicyRule returns a rule carrying the editor defaults.
// Rule files start from this value so omitted fields keep host-compatible defaults.
func DefaultPolicyRule() PolicyRule {
	return PolicyRule{
		PlatformPatterns:    []string{"Android", "iOS", "Standalone", "Default"},
		NativeResMultiplier: 1,
		MaxTextureSize:      4096,
		RGBFormat:           FormatAutomatic,
		RGBAFormat:          FormatAutomatic,
		CompressionQuality:  CompressionNormal,
		NPOTScale:           NPOTToNearest,
	}
}

// TextureFacts describes one texture on one platform at import time.
type TextureFacts struct {
	Name              string `json:"name"`
	AssetPath         string `json:"asset_path,omitempty"`
	PlatformName      string `json:"platform"`
	HasAlpha          bool   `json:"has_alpha"`
	NativeWidth       int    `json:"native_width"`
	NativeHeight      int    `json:"native_height"`
	CurrentFormatName string `json:"current_format"`
}

// SourcePath returns the asset path; TextureFacts satisfies rules.AssetContext.
func (f TextureFacts) SourcePath() string {
	return f.AssetPath
}

// PlatformSettings is the per-platform override the host applies.
// Overridden is always true and AllowsAlphaSplitting always false, matching what
// the import hook writes for every targeted platform.
type PlatformSettings struct {
	Name                 string             `json:"name"`
	Overridden           bool               `json:"overridden"`
	MaxTextureSize       int                `json:"max_texture_size"`
	Format               TextureFormat      `json:"format"`
	CompressionQuality   CompressionQuality `json:"compression_quality"`
	AllowsAlphaSplitting bool               `json:"allows_alpha_splitting"`
}

// ResolvedSettings are the target import parameters for one texture.
type ResolvedSettings struct {
	NativeSize         int                `json:"native_size"`
	TargetSize         int                `json:"target_size"`
	TargetFormat       TextureFormat      `json:"target_format"`
	CompressionQuality CompressionQuality `json:"compression_quality"`
	ForceLinear        bool               `json:"force_linear"`
	EnableReadWrite    bool               `json:"enable_read_write"`
	NPOTScale          NPOTScale          `json:"npot_scale"`
	AppliedPlatforms   []string           `json:"applied_platforms"`
	PlatformSettings   []PlatformSettings `json:"platform_settings"`
}
