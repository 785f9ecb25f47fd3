package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/solatis/texpolicy/internal/core/auth"
	"github.com/solatis/texpolicy/internal/core/metrics"
	"github.com/solatis/texpolicy/internal/core/store"
	"github.com/solatis/texpolicy/internal/rules"
	"github.com/solatis/texpolicy/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type fakeSource struct {
	rules map[types.ProjectID][]types.PolicyRule
	err   error
}

func (f *fakeSource) ListRules(_ context.Context, projectID types.ProjectID) ([]types.PolicyRule, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rules[projectID], nil
}

func rule(name string, sortOrder int, platforms ...string) types.PolicyRule {
	r := types.DefaultPolicyRule()
	r.Name = name
	r.SortOrder = sortOrder
	r.PlatformPatterns = platforms
	return r
}

// startServer serves svc over bufconn with the project fixed to projectID.
func startServer(t *testing.T, svc *Service, projectID types.ProjectID) *ResolverClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	withProject := func(ctx context.Context, req interface{}, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if projectID == "" {
			return handler(ctx, req)
		}
		return handler(auth.ContextWithProjectID(ctx, projectID), req)
	}

	srv := grpc.NewServer(grpc.UnaryInterceptor(withProject))
	RegisterResolverServer(srv, svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewResolverClient(conn)
}

func newTestService(t *testing.T, source RuleSource, opts Options) (*Service, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewMetrics(metrics.NewRegistry())
	opts.Metrics = m
	svc, err := NewService(source, rules.NewResolver(), opts)
	require.NoError(t, err)
	return svc, m
}

func mustStruct(t *testing.T, m map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestResolve_Applied(t *testing.T) {
	a := rule("A", 1, "Android")
	a.MaxTextureSize = 2048
	b := rule("B", 0, "Android")
	b.NativeResMultiplier = 0.5
	b.RGBFormat = "ETC2_RGB4"
	source := &fakeSource{rules: map[types.ProjectID][]types.PolicyRule{"p1": {a, b}}}
	svc, m := newTestService(t, source, Options{})
	client := startServer(t, svc, "p1")

	resp, err := client.Resolve(context.Background(), mustStruct(t, map[string]interface{}{
		"name":           "hero",
		"platform":       "Android",
		"native_width":   1000,
		"native_height":  2000,
		"current_format": "RGBA32",
	}))
	require.NoError(t, err)

	fields := resp.AsMap()
	assert.Equal(t, "applied", fields["outcome"])
	assert.Equal(t, "B", fields["rule"])
	assert.NotEmpty(t, fields["rules_etag"])

	settings := fields["settings"].(map[string]interface{})
	assert.Equal(t, 1024.0, settings["target_size"])
	assert.Equal(t, 2048.0, settings["native_size"])
	assert.Equal(t, "ETC2_RGB4", settings["target_format"])
	assert.Equal(t, "ToNearest", settings["npot_scale"])

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("applied")))
}

func TestResolve_NoRuleAndSkipped(t *testing.T) {
	skip := rule("skip", 0, "iOS")
	skip.SkipFormatPatterns = []string{"ASTC"}
	source := &fakeSource{rules: map[types.ProjectID][]types.PolicyRule{"p1": {skip}}}
	svc, _ := newTestService(t, source, Options{})
	client := startServer(t, svc, "p1")

	resp, err := client.Resolve(context.Background(), mustStruct(t, map[string]interface{}{"platform": "Android"}))
	require.NoError(t, err)
	assert.Equal(t, "no_rule", resp.AsMap()["outcome"])
	assert.NotContains(t, resp.AsMap(), "settings")

	resp, err = client.Resolve(context.Background(), mustStruct(t, map[string]interface{}{"platform": "iOS", "current_format": "ASTC_4x4"}))
	require.NoError(t, err)
	assert.Equal(t, "skipped", resp.AsMap()["outcome"])
	assert.Equal(t, "ASTC", resp.AsMap()["skip_pattern"])
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name     string
		source   *fakeSource
		request  map[string]interface{}
		wantCode codes.Code
		wantKind string
	}{
		{
			name:     "broken pattern",
			source:   &fakeSource{rules: map[types.ProjectID][]types.PolicyRule{"p1": {rule("broken", 0, "[unclosed")}}},
			request:  map[string]interface{}{"platform": "Android"},
			wantCode: codes.FailedPrecondition,
			wantKind: metrics.KindConfig,
		},
		{
			name:     "missing platform",
			source:   &fakeSource{},
			request:  map[string]interface{}{"name": "x"},
			wantCode: codes.InvalidArgument,
			wantKind: metrics.KindFacts,
		},
		{
			name:     "unknown field",
			source:   &fakeSource{},
			request:  map[string]interface{}{"platfrom": "Android"},
			wantCode: codes.InvalidArgument,
			wantKind: metrics.KindFacts,
		},
		{
			name:     "negative size",
			source:   &fakeSource{},
			request:  map[string]interface{}{"platform": "Android", "native_width": -1},
			wantCode: codes.InvalidArgument,
			wantKind: metrics.KindFacts,
		},
		{
			name:     "oversized dimension",
			source:   &fakeSource{},
			request:  map[string]interface{}{"platform": "Android", "native_height": types.MaxTextureDimension + 1},
			wantCode: codes.InvalidArgument,
			wantKind: metrics.KindFacts,
		},
		{
			name:     "store down",
			source:   &fakeSource{err: fmt.Errorf("%w: list rules: connection refused", store.ErrUnavailable)},
			request:  map[string]interface{}{"platform": "Android"},
			wantCode: codes.Unavailable,
			wantKind: metrics.KindStore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newTestService(t, tt.source, Options{})
			client := startServer(t, svc, "p1")

			_, err := client.Resolve(context.Background(), mustStruct(t, tt.request))
			assert.Equal(t, tt.wantCode, status.Code(err), "err = %v", err)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues(tt.wantKind)))
		})
	}
}

func TestResolve_MissingProject(t *testing.T) {
	svc, _ := newTestService(t, &fakeSource{}, Options{})
	client := startServer(t, svc, "")

	_, err := client.Resolve(context.Background(), mustStruct(t, map[string]interface{}{"platform": "Android"}))
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestResolveBatch(t *testing.T) {
	android := rule("android", 0, "Android")
	android.MaxTextureSize = 512
	source := &fakeSource{rules: map[types.ProjectID][]types.PolicyRule{"p1": {android}}}
	svc, m := newTestService(t, source, Options{MaxBatchSize: 3})
	client := startServer(t, svc, "p1")

	resp, err := client.ResolveBatch(context.Background(), mustStruct(t, map[string]interface{}{
		"facts": []interface{}{
			map[string]interface{}{"name": "a", "platform": "Android", "native_width": 2048, "native_height": 2048},
			map[string]interface{}{"name": "b", "platform": "iOS"},
		},
	}))
	require.NoError(t, err)

	results := resp.AsMap()["results"].([]interface{})
	require.Len(t, results, 2)
	first := results[0].(map[string]interface{})
	assert.Equal(t, "applied", first["outcome"])
	assert.Equal(t, "a", first["texture"])
	assert.Equal(t, 512.0, first["settings"].(map[string]interface{})["target_size"])
	assert.Equal(t, "no_rule", results[1].(map[string]interface{})["outcome"])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("no_rule")))

	_, err = client.ResolveBatch(context.Background(), mustStruct(t, map[string]interface{}{
		"facts": []interface{}{
			map[string]interface{}{"platform": "Android"},
			map[string]interface{}{"platform": "Android"},
			map[string]interface{}{"platform": "Android"},
			map[string]interface{}{"platform": "Android"},
		},
	}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.ResolveBatch(context.Background(), mustStruct(t, map[string]interface{}{}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.ResolveBatch(context.Background(), mustStruct(t, map[string]interface{}{
		"facts": []interface{}{map[string]interface{}{"platform": "Android"}, map[string]interface{}{}},
	}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "facts[1]")
}

func TestRulesETag(t *testing.T) {
	a := []types.PolicyRule{rule("a", 0, "Android")}
	b := []types.PolicyRule{rule("a", 0, "Android")}
	c := []types.PolicyRule{rule("a", 1, "Android")}

	assert.Equal(t, rulesETag(a), rulesETag(b))
	assert.NotEqual(t, rulesETag(a), rulesETag(c))
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(nil, rules.NewResolver(), Options{})
	assert.Error(t, err)

	_, err = NewService(&fakeSource{}, nil, Options{})
	assert.Error(t, err)

	svc, err := NewService(&fakeSource{}, rules.NewResolver(), Options{MaxBatchSize: types.MaxBatchFacts * 2})
	require.NoError(t, err)
	assert.Equal(t, types.MaxBatchFacts, svc.maxBatch)
}

func TestToStatus_Context(t *testing.T) {
	svc, _ := newTestService(t, &fakeSource{}, Options{})

	assert.Equal(t, codes.DeadlineExceeded, status.Code(svc.toStatus(context.DeadlineExceeded)))
	assert.Equal(t, codes.Canceled, status.Code(svc.toStatus(fmt.Errorf("wrapped: %w", context.Canceled))))
	assert.Equal(t, codes.NotFound, status.Code(svc.toStatus(types.ErrProjectNotFound)))
	assert.Equal(t, codes.Internal, status.Code(svc.toStatus(errors.New("boom"))))
}
