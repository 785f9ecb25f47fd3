// Package auth provides HMAC-based API key authentication for the resolver service.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/solatis/texpolicy/internal/types"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// contextKey is a typed key for context values to avoid collisions.
type contextKey string

// projectIDKey is the context key for storing the authenticated project ID.
const projectIDKey = contextKey("project_id")

// Queries defines the database operations needed for authentication.
// Implemented by *db.Queries.
type Queries interface {
	Get(ctx context.Context, name string, dest interface{}, args ...interface{}) error
	Exec(ctx context.Context, name string, args ...interface{}) (sql.Result, error)
}

// Authenticator validates API keys using HMAC-SHA256 signatures.
// Holds in-memory secret map for O(1) lookup and queries for key verification.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
	logger  *zap.Logger

	// skip lists full method names served without authentication.
	skip map[string]bool
}

// NewAuthenticator creates an authenticator with HMAC secrets and query interface.
// The gRPC health service is always reachable without a key.
func NewAuthenticator(secrets map[string][]byte, queries Queries, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{
		secrets: secrets,
		queries: queries,
		logger:  logger,
		skip: map[string]bool{
			"/grpc.health.v1.Health/Check": true,
			"/grpc.health.v1.Health/Watch": true,
		},
	}
}

// Authenticate validates an API key and returns its project ID.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (types.ProjectID, error) {
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return "", err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownKey
	}

	var result struct {
		APIKeyID   string          `db:"api_key_id"`
		ProjectID  types.ProjectID `db:"project_id"`
		RevokedAt  sql.NullTime    `db:"revoked_at"`
		LastUsedAt sql.NullTime    `db:"last_used_at"`
	}

	// key_hash is unique, so at most one row matches
	err = a.queries.Get(ctx, "get-api-key-by-hash", &result, KeyHash(secret, apiKey))
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidKey
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}

	if result.RevokedAt.Valid {
		return "", ErrKeyRevoked
	}

	// 1-minute throttle keeps last_used_at writes off the hot path
	if shouldUpdateLastUsed(result.LastUsedAt) {
		if _, err := a.queries.Exec(ctx, "update-last-used", time.Now().UTC(), result.APIKeyID); err != nil {
			a.logger.Warn("failed to update api key last_used_at",
				zap.String("api_key_id", result.APIKeyID), zap.Error(err))
		}
	}

	return result.ProjectID, nil
}

// shouldUpdateLastUsed implements 1-minute throttle to reduce write amplification.
func shouldUpdateLastUsed(lastUsed sql.NullTime) bool {
	if !lastUsed.Valid {
		return true
	}
	return time.Since(lastUsed.Time) > time.Minute
}

// UnaryInterceptor returns gRPC interceptor that authenticates requests.
func (a *Authenticator) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if a.skip[info.FullMethod] {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		apiKeys := md.Get("x-api-key")
		if len(apiKeys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		projectID, err := a.Authenticate(ctx, strings.TrimSpace(apiKeys[0]))
		switch {
		case err == nil:
		case errors.Is(err, ErrKeyRevoked):
			return nil, status.Error(codes.PermissionDenied, err.Error())
		case errors.Is(err, ErrLookupFailed):
			a.logger.Error("api key lookup failed", zap.Error(err))
			return nil, status.Error(codes.Unavailable, ErrLookupFailed.Error())
		default:
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		return handler(ContextWithProjectID(ctx, projectID), req)
	}
}

// ContextWithProjectID returns ctx carrying the authenticated project.
func ContextWithProjectID(ctx context.Context, projectID types.ProjectID) context.Context {
	return context.WithValue(ctx, projectIDKey, projectID)
}

// ProjectIDFromContext extracts the project ID from context.
// Returns empty string if not found.
func ProjectIDFromContext(ctx context.Context) types.ProjectID {
	if projectID, ok := ctx.Value(projectIDKey).(types.ProjectID); ok {
		return projectID
	}
	return ""
}

// KeyStore records generated API keys.
// Implemented by *store.RuleStore.
type KeyStore interface {
	CreateAPIKey(ctx context.Context, projectID types.ProjectID, name, secretID, keyHash string) (string, error)
}

// GeneratedKey is a newly created API key. Key is shown once and never stored.
type GeneratedKey struct {
	ID        string
	ProjectID types.ProjectID
	SecretID  string
	Key       string
}

// GenerateAPIKey creates and records a key for project signed with secretID.
// An empty secretID picks the lexically greatest configured secret, which is
// the newest when secret IDs are UUIDv7.
func GenerateAPIKey(ctx context.Context, ks KeyStore, secrets map[string][]byte, secretID string, projectID types.ProjectID, name string) (GeneratedKey, error) {
	if len(secrets) == 0 {
		return GeneratedKey{}, fmt.Errorf("no HMAC secrets configured (set TP_HMAC_SECRET)")
	}

	if secretID == "" {
		ids := make([]string, 0, len(secrets))
		for id := range secrets {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		secretID = ids[len(ids)-1]
	}

	secret, ok := secrets[secretID]
	if !ok {
		return GeneratedKey{}, fmt.Errorf("%w: %s", ErrUnknownKey, secretID)
	}

	key, err := NewAPIKey(secretID)
	if err != nil {
		return GeneratedKey{}, err
	}

	id, err := ks.CreateAPIKey(ctx, projectID, name, secretID, KeyHash(secret, key))
	if err != nil {
		return GeneratedKey{}, err
	}

	return GeneratedKey{ID: id, ProjectID: projectID, SecretID: secretID, Key: key}, nil
}
