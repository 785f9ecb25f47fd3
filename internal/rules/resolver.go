// internal/rules/resolver.go
package rules

import (
	"context"
	"fmt"

	"github.com/solatis/texpolicy/internal/types"
	"go.uber.org/zap"
)

/*
 * Resolution orchestration.
 *
 * Resolver runs SelectRule then ComputeSettings for one texture and reports the
 * outcome as a Decision, logging each step the way the editor import hook did:
 * processing, chosen rule, skip reason, read/write and linear side effects, and the
 * final size/format.
 *
 * Native size: when facts carry no dimensions and a NativeSizeProvider is set, the
 * provider is asked before computing. Provider failures are returned; guessing a
 * size would silently shrink or grow textures.
 *
 * The resolver holds no rule state. Rules are passed per call, so one Resolver is
 * safe for concurrent use across goroutines and rule sets.
 */

// Outcome classifies a resolution.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeNoRule  Outcome = "no_rule"
	OutcomeSkipped Outcome = "skipped"
)

// Decision is the result of resolving one texture.
type Decision struct {
	Outcome     Outcome
	Facts       types.TextureFacts
	Rule        *types.PolicyRule       // nil when Outcome is no_rule
	Settings    *types.ResolvedSettings // nil unless Outcome is applied
	SkipPattern string                  // set when Outcome is skipped
}

// Resolver resolves textures against caller-supplied rule sets.
type Resolver struct {
	logger *zap.Logger
	filter Filter
	sizes  NativeSizeProvider
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithFilter sets the applicability filter. Defaults to nil (always applicable).
func WithFilter(filter Filter) Option {
	return func(r *Resolver) {
		r.filter = filter
	}
}

// WithNativeSizeProvider sets the provider used when facts lack dimensions.
func WithNativeSizeProvider(p NativeSizeProvider) Option {
	return func(r *Resolver) {
		r.sizes = p
	}
}

// NewResolver creates a resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve selects a rule for facts and computes its settings.
func (r *Resolver) Resolve(ctx context.Context, rules []types.PolicyRule, facts types.TextureFacts) (Decision, error) {
	decision := Decision{Outcome: OutcomeNoRule, Facts: facts}

	if len(rules) == 0 {
		r.logger.Debug("no policy rules configured", zap.String("texture", facts.Name))
		return decision, nil
	}

	rule, err := SelectRule(rules, facts, r.filter)
	if err != nil {
		return decision, err
	}
	if rule == nil {
		r.logger.Debug("no matching policy rule",
			zap.String("texture", facts.Name),
			zap.String("platform", facts.PlatformName))
		return decision, nil
	}
	decision.Rule = rule

	if facts.NativeWidth == 0 && facts.NativeHeight == 0 && r.sizes != nil {
		w, h, err := r.sizes.NativeSize(ctx, facts)
		if err != nil {
			return decision, fmt.Errorf("native size of %s: %w", facts.Name, err)
		}
		facts.NativeWidth, facts.NativeHeight = w, h
		decision.Facts = facts
	}

	log := r.logger.With(zap.String("texture", facts.Name), zap.String("platform", facts.PlatformName))
	log.Info("processing texture",
		zap.Int("native_size", NextPowerOfTwo(max(facts.NativeWidth, facts.NativeHeight))),
		zap.String("current_format", facts.CurrentFormatName))
	log.Info("using policy rule", zap.String("rule", rule.Name))

	settings, skipPattern, err := computeSettings(rule, facts)
	if err != nil {
		return decision, err
	}
	if settings == nil {
		log.Info("skipping preprocess, current format matches skip pattern",
			zap.String("pattern", skipPattern))
		decision.Outcome = OutcomeSkipped
		decision.SkipPattern = skipPattern
		return decision, nil
	}

	if settings.EnableReadWrite {
		log.Info("enabling read/write")
	}
	if settings.ForceLinear {
		log.Info("forcing linear")
	}
	log.Info("setting texture import",
		zap.Int("size", settings.TargetSize),
		zap.String("format", string(settings.TargetFormat)),
		zap.Strings("platforms", settings.AppliedPlatforms))

	decision.Outcome = OutcomeApplied
	decision.Settings = settings
	return decision, nil
}
