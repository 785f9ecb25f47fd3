package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/solatis/texpolicy/internal/core/auth"
	"github.com/solatis/texpolicy/internal/rules"
	"github.com/solatis/texpolicy/internal/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Resolve resolves one texture against the caller's project rules.
//
// Request fields: name, asset_path, platform (required), has_alpha,
// native_width, native_height, current_format.
// Response fields: outcome (applied|no_rule|skipped), texture, asset_path,
// platform, rule, rule_id, skip_pattern, settings, rules_etag.
func (s *Service) Resolve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	start := time.Now()
	defer s.metrics.ObserveDuration(start)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	facts, err := decodeFacts(req)
	if err != nil {
		return nil, s.toStatus(err)
	}

	ruleset, err := s.projectRules(ctx)
	if err != nil {
		return nil, err
	}

	decision, err := s.resolver.Resolve(ctx, ruleset, facts)
	if err != nil {
		return nil, s.toStatus(err)
	}
	s.metrics.RecordResolution(string(decision.Outcome))

	return encodeStruct(struct {
		rules.Report
		RulesETag string `json:"rules_etag"`
	}{Report: decision.Report(), RulesETag: rulesETag(ruleset)})
}

// ResolveBatch resolves a list of textures against one snapshot of the caller's
// project rules.
//
// Request fields: facts (list of Resolve requests).
// Response fields: results (list of Resolve responses without rules_etag),
// rules_etag.
func (s *Service) ResolveBatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	start := time.Now()
	defer s.metrics.ObserveDuration(start)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	list := req.GetFields()["facts"].GetListValue()
	if list == nil {
		return nil, s.toStatus(fmt.Errorf("%w: facts list is required", types.ErrInvalidFacts))
	}
	if n := len(list.GetValues()); n > s.maxBatch {
		return nil, s.toStatus(fmt.Errorf("%w: batch of %d exceeds max_batch_size %d", types.ErrInvalidFacts, n, s.maxBatch))
	}

	batch := make([]types.TextureFacts, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		facts, err := decodeFacts(v.GetStructValue())
		if err != nil {
			return nil, s.toStatus(fmt.Errorf("facts[%d]: %w", i, err))
		}
		batch = append(batch, facts)
	}

	ruleset, err := s.projectRules(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]rules.Report, 0, len(batch))
	for i, facts := range batch {
		if err := ctx.Err(); err != nil {
			return nil, s.toStatus(err)
		}
		decision, err := s.resolver.Resolve(ctx, ruleset, facts)
		if err != nil {
			return nil, s.toStatus(fmt.Errorf("facts[%d]: %w", i, err))
		}
		s.metrics.RecordResolution(string(decision.Outcome))
		results = append(results, decision.Report())
	}

	return encodeStruct(struct {
		Results   []rules.Report `json:"results"`
		RulesETag string         `json:"rules_etag"`
	}{Results: results, RulesETag: rulesETag(ruleset)})
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// projectRules loads the authenticated project's rule set.
func (s *Service) projectRules(ctx context.Context) ([]types.PolicyRule, error) {
	projectID := auth.ProjectIDFromContext(ctx)
	if projectID == "" {
		return nil, status.Error(codes.Internal, "missing project_id in context")
	}

	ruleset, err := s.source.ListRules(ctx, projectID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return ruleset, nil
}

// decodeFacts converts a request struct to TextureFacts.
// Unknown fields are rejected so a misspelled platform key is not silently empty.
func decodeFacts(in *structpb.Struct) (types.TextureFacts, error) {
	if in == nil {
		return types.TextureFacts{}, fmt.Errorf("%w: empty request", types.ErrInvalidFacts)
	}

	data, err := in.MarshalJSON()
	if err != nil {
		return types.TextureFacts{}, fmt.Errorf("%w: %v", types.ErrInvalidFacts, err)
	}

	var facts types.TextureFacts
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&facts); err != nil {
		return types.TextureFacts{}, fmt.Errorf("%w: %v", types.ErrInvalidFacts, err)
	}

	if err := ValidateFacts(facts); err != nil {
		return types.TextureFacts{}, err
	}
	return facts, nil
}

// ValidateFacts rejects facts the resolver cannot use.
func ValidateFacts(f types.TextureFacts) error {
	if f.PlatformName == "" {
		return fmt.Errorf("%w: platform is required", types.ErrInvalidFacts)
	}
	if f.NativeWidth < 0 || f.NativeHeight < 0 {
		return fmt.Errorf("%w: negative dimensions %dx%d", types.ErrInvalidFacts, f.NativeWidth, f.NativeHeight)
	}
	if f.NativeWidth > types.MaxTextureDimension || f.NativeHeight > types.MaxTextureDimension {
		return fmt.Errorf("%w: dimensions %dx%d exceed %d", types.ErrInvalidFacts,
			f.NativeWidth, f.NativeHeight, types.MaxTextureDimension)
	}
	return nil
}

// encodeStruct converts v to a Struct through its JSON form.
func encodeStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := new(structpb.Struct)
	if err := out.UnmarshalJSON(data); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// rulesETag is a content hash of the rule set. Clients compare it across calls to
// detect that the project's rules changed between resolutions.
func rulesETag(ruleset []types.PolicyRule) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for i := range ruleset {
		_ = enc.Encode(&ruleset[i])
	}
	return hex.EncodeToString(h.Sum(nil))
}
