// Package types provides domain models shared across texpolicy components.
//
// Zero-dependency design: types.go, rules.go and errors.go use only the standard
// library so the resolver can be embedded in a host import pipeline without pulling
// in storage or transport deps. ID utilities in ids.go import uuid but are isolated.
//
// Host-owned enums (texture formats, compression quality ordinals) are carried as
// opaque values. The resolver compares and copies them but never interprets them.
package types

import (
	"fmt"
	"strings"
)

// RuleID represents a UUIDv7 policy rule identifier.
// String alias enables type safety while maintaining JSON string serialization.
type RuleID string

// ProjectID represents a UUIDv7 project identifier.
// A project owns one ordered rule set.
type ProjectID string

// TextureFormat is a host compressed-format identifier ("ASTC_6x6", "ETC2_RGBA8", ...).
// Opaque to the resolver; only the host knows which names are valid for a platform.
type TextureFormat string

// FormatAutomatic lets the host pick a format.
const FormatAutomatic TextureFormat = "Automatic"

// CompressionQuality is the host compression-quality ordinal (0-100).
type CompressionQuality int

// Named host compression-quality ordinals.
const (
	CompressionFast   CompressionQuality = 0
	CompressionNormal CompressionQuality = 50
	CompressionBest   CompressionQuality = 100
)

// NPOTScale controls how the host rescales non-power-of-two textures.
type NPOTScale int

const (
	NPOTNone NPOTScale = iota
	NPOTToNearest
	NPOTToLarger
	NPOTToSmaller
)

var npotNames = [...]string{
	NPOTNone:      "None",
	NPOTToNearest: "ToNearest",
	NPOTToLarger:  "ToLarger",
	NPOTToSmaller: "ToSmaller",
}

// String returns the host name of the scale mode.
func (s NPOTScale) String() string {
	if s < 0 || int(s) >= len(npotNames) {
		return fmt.Sprintf("NPOTScale(%d)", int(s))
	}
	return npotNames[s]
}

// ParseNPOTScale converts a mode name to NPOTScale. Matching ignores case.
func ParseNPOTScale(s string) (NPOTScale, error) {
	for i, name := range npotNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return NPOTScale(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownNPOTScale, s)
}

// MarshalText implements encoding.TextMarshaler.
// Text form keeps rule files readable and independent of enum ordinals.
func (s NPOTScale) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(npotNames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNPOTScale, int(s))
	}
	return []byte(npotNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *NPOTScale) UnmarshalText(text []byte) error {
	v, err := ParseNPOTScale(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Resource limits enforced when rule sets are loaded, to bound resolution cost.
const (
	// MaxRulesPerSet bounds the linear scan in SelectRule.
	MaxRulesPerSet = 10000

	// MaxPatternsPerList bounds platform and skip pattern lists.
	MaxPatternsPerList = 64

	// MaxPatternLength bounds regex source size; RE2 compile cost grows with it.
	MaxPatternLength = 1024

	// MaxBatchFacts bounds a single batch resolution request.
	MaxBatchFacts = 10000

	// MaxTextureDimension bounds native width and height in texture facts.
	MaxTextureDimension = 1 << 30
)
