package rules

import (
	"context"

	"github.com/solatis/texpolicy/internal/types"
)

// AssetContext is the narrow view of the host asset that applicability filters
// and size providers need. types.TextureFacts satisfies it.
type AssetContext interface {
	SourcePath() string
}

// Filter reports whether rule applies to asset at all, before platform matching.
// A nil Filter treats every rule as applicable.
type Filter func(rule *types.PolicyRule, asset AssetContext) (bool, error)

// NativeSizeProvider reads the pre-import pixel dimensions of an asset.
// The host has no public accessor for this, so embedders supply their own.
type NativeSizeProvider interface {
	NativeSize(ctx context.Context, asset AssetContext) (width, height int, err error)
}

// NativeSizeFunc adapts a function to NativeSizeProvider.
type NativeSizeFunc func(ctx context.Context, asset AssetContext) (int, int, error)

// NativeSize implements NativeSizeProvider.
func (f NativeSizeFunc) NativeSize(ctx context.Context, asset AssetContext) (int, int, error) {
	return f(ctx, asset)
}
