// Package api provides the gRPC resolver service.
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/solatis/texpolicy/internal/core/metrics"
	"github.com/solatis/texpolicy/internal/rules"
	"github.com/solatis/texpolicy/internal/types"
	"go.uber.org/zap"
)

// RuleSource supplies a project's ordered rule set.
// Implemented by *store.RuleStore.
type RuleSource interface {
	ListRules(ctx context.Context, projectID types.ProjectID) ([]types.PolicyRule, error)
}

// Options configures a Service.
type Options struct {
	MaxBatchSize   int
	RequestTimeout time.Duration
	Metrics        *metrics.Metrics // nil disables metrics
	Logger         *zap.Logger
}

// Service implements ResolverServer.
// Thin orchestration layer delegating to auth (project), store (rules) and the
// rules package (resolution).
type Service struct {
	source   RuleSource
	resolver *rules.Resolver
	metrics  *metrics.Metrics
	logger   *zap.Logger
	maxBatch int
	timeout  time.Duration
}

var _ ResolverServer = (*Service)(nil)

// NewService creates a service instance with dependencies.
func NewService(source RuleSource, resolver *rules.Resolver, opts Options) (*Service, error) {
	if source == nil {
		return nil, fmt.Errorf("source cannot be nil")
	}
	if resolver == nil {
		return nil, fmt.Errorf("resolver cannot be nil")
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = 1000
	}
	if opts.MaxBatchSize > types.MaxBatchFacts {
		opts.MaxBatchSize = types.MaxBatchFacts
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Service{
		source:   source,
		resolver: resolver,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		maxBatch: opts.MaxBatchSize,
		timeout:  opts.RequestTimeout,
	}, nil
}
