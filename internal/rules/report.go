package rules

import "github.com/solatis/texpolicy/internal/types"

// Report is the flat, serializable form of a Decision used by the CLI output and
// the gRPC response structs.
type Report struct {
	Outcome     Outcome                 `json:"outcome"`
	Texture     string                  `json:"texture,omitempty"`
	AssetPath   string                  `json:"asset_path,omitempty"`
	Platform    string                  `json:"platform"`
	Rule        string                  `json:"rule,omitempty"`
	RuleID      types.RuleID            `json:"rule_id,omitempty"`
	SkipPattern string                  `json:"skip_pattern,omitempty"`
	Settings    *types.ResolvedSettings `json:"settings,omitempty"`
}

// Report flattens d.
func (d Decision) Report() Report {
	r := Report{
		Outcome:     d.Outcome,
		Texture:     d.Facts.Name,
		AssetPath:   d.Facts.AssetPath,
		Platform:    d.Facts.PlatformName,
		SkipPattern: d.SkipPattern,
		Settings:    d.Settings,
	}
	if d.Rule != nil {
		r.Rule = d.Rule.Name
		r.RuleID = d.Rule.ID
	}
	return r
}
