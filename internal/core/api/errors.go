package api

import (
	"context"
	"errors"

	"github.com/solatis/texpolicy/internal/core/metrics"
	"github.com/solatis/texpolicy/internal/core/store"
	"github.com/solatis/texpolicy/internal/types"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error mapping:
//   - broken rule set (pattern, limits)   -> FAILED_PRECONDITION
//   - malformed facts or batch            -> INVALID_ARGUMENT
//   - unknown project                     -> NOT_FOUND
//   - store failures                      -> UNAVAILABLE
//   - context deadline / cancellation     -> DEADLINE_EXCEEDED / CANCELED
// Auth errors are mapped in the auth interceptor.

// toStatus converts err to a gRPC status error and records it.
func (s *Service) toStatus(err error) error {
	var (
		code codes.Code
		kind string
	)

	switch {
	case errors.Is(err, types.ErrInvalidPolicyConfig), errors.Is(err, types.ErrTooManyRules):
		code, kind = codes.FailedPrecondition, metrics.KindConfig
	case errors.Is(err, types.ErrInvalidFacts), errors.Is(err, types.ErrUnknownNPOTScale):
		code, kind = codes.InvalidArgument, metrics.KindFacts
	case errors.Is(err, types.ErrProjectNotFound):
		code, kind = codes.NotFound, metrics.KindStore
	case errors.Is(err, store.ErrUnavailable):
		code, kind = codes.Unavailable, metrics.KindStore
	case errors.Is(err, context.DeadlineExceeded):
		code, kind = codes.DeadlineExceeded, metrics.KindInternal
	case errors.Is(err, context.Canceled):
		code, kind = codes.Canceled, metrics.KindInternal
	default:
		code, kind = codes.Internal, metrics.KindInternal
	}

	s.metrics.RecordError(kind)
	if code == codes.Internal || code == codes.Unavailable {
		s.logger.Error("resolution failed", zap.String("code", code.String()), zap.Error(err))
	}
	return status.Error(code, err.Error())
}
