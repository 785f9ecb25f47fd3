// Package store persists projects, their ordered policy rule sets and API keys.
package store

/*
 * Rule store.
 *
 * A project owns one ordered rule set. Rules are stored one row per rule with a
 * position column and the full rule as a JSON definition; name and sort_order are
 * denormalized for listing. ListRules returns rules in position order, which is the
 * order the rule file listed them, so sort_order ties break exactly as they would
 * when resolving straight from the file.
 *
 * ReplaceRules validates the whole set before touching the database and swaps it in
 * a single transaction. Readers never see a partially imported set.
 *
 * Errors: ErrProjectNotFound and ErrProjectExists come from internal/types; every
 * database failure wraps ErrUnavailable so transports can map it separately from
 * caller mistakes.
 */

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/solatis/texpolicy/internal/core/db"
	"github.com/solatis/texpolicy/internal/core/policyset"
	"github.com/solatis/texpolicy/internal/types"
)

// ErrUnavailable wraps database failures.
var ErrUnavailable = errors.New("rule store unavailable")

// Project is a named rule set owner.
type Project struct {
	ID        types.ProjectID `db:"project_id" json:"id"`
	Name      string          `db:"name" json:"name"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// RuleStore reads and writes rule sets.
type RuleStore struct {
	db      *sqlx.DB
	queries *db.Queries
	now     func() time.Time
}

// New creates a RuleStore over an open, migrated database.
func New(conn *sqlx.DB) (*RuleStore, error) {
	queries, err := db.LoadQueries(conn)
	if err != nil {
		return nil, err
	}
	return &RuleStore{
		db:      conn,
		queries: queries,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Queries exposes the named queries for components sharing the connection.
func (s *RuleStore) Queries() *db.Queries {
	return s.queries
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

// CreateProject creates an empty project.
func (s *RuleStore) CreateProject(ctx context.Context, name string) (Project, error) {
	if name == "" {
		return Project{}, fmt.Errorf("project name is required")
	}

	var existing Project
	err := s.queries.Get(ctx, "get-project-by-name", &existing, name)
	switch {
	case err == nil:
		return Project{}, fmt.Errorf("%w: %s", types.ErrProjectExists, name)
	case !errors.Is(err, sql.ErrNoRows):
		return Project{}, unavailable("create project", err)
	}

	now := s.now()
	p := Project{ID: types.NewProjectID(), Name: name, CreatedAt: now, UpdatedAt: now}
	if _, err := s.queries.Exec(ctx, "create-project", p.ID, p.Name, p.CreatedAt, p.UpdatedAt); err != nil {
		return Project{}, unavailable("create project", err)
	}
	return p, nil
}

// GetProject looks a project up by name, then by id.
func (s *RuleStore) GetProject(ctx context.Context, nameOrID string) (Project, error) {
	var p Project
	err := s.queries.Get(ctx, "get-project-by-name", &p, nameOrID)
	if errors.Is(err, sql.ErrNoRows) {
		if id, parseErr := types.ParseProjectID(nameOrID); parseErr == nil {
			err = s.queries.Get(ctx, "get-project", &p, id)
		}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, fmt.Errorf("%w: %s", types.ErrProjectNotFound, nameOrID)
	}
	if err != nil {
		return Project{}, unavailable("get project", err)
	}
	return p, nil
}

// ListProjects returns all projects ordered by name.
func (s *RuleStore) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := s.queries.Select(ctx, "list-projects", &projects); err != nil {
		return nil, unavailable("list projects", err)
	}
	return projects, nil
}

// DeleteProject removes a project with its rules and API keys.
func (s *RuleStore) DeleteProject(ctx context.Context, nameOrID string) error {
	p, err := s.GetProject(ctx, nameOrID)
	if err != nil {
		return err
	}

	// Child rows are deleted explicitly; SQLite connections opened without
	// _foreign_keys do not cascade.
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return unavailable("delete project", err)
	}
	defer tx.Rollback()

	q := s.queries.WithTx(tx)
	if _, err := q.Exec(ctx, "delete-project-rules", p.ID); err != nil {
		return unavailable("delete project", err)
	}
	if _, err := q.Exec(ctx, "delete-project-api-keys", p.ID); err != nil {
		return unavailable("delete project", err)
	}
	if _, err := q.Exec(ctx, "delete-project", p.ID); err != nil {
		return unavailable("delete project", err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable("delete project", err)
	}
	return nil
}

// ReplaceRules validates ruleset and atomically replaces the project's rules.
// Rules without an ID are assigned one. The stored rules are returned.
func (s *RuleStore) ReplaceRules(ctx context.Context, projectID types.ProjectID, ruleset []types.PolicyRule) ([]types.PolicyRule, error) {
	if err := policyset.Validate(ruleset); err != nil {
		return nil, err
	}

	stored := make([]types.PolicyRule, len(ruleset))
	definitions := make([][]byte, len(ruleset))
	for i, r := range ruleset {
		if r.ID == "" {
			r.ID = types.NewRuleID()
		} else if _, err := types.ParseRuleID(string(r.ID)); err != nil {
			return nil, &types.PolicyConfigError{Rule: r.Name, Field: "id", Err: err}
		}
		stored[i] = r

		def := r
		def.ID = ""
		data, err := json.Marshal(def)
		if err != nil {
			return nil, fmt.Errorf("encode rule %q: %w", r.Name, err)
		}
		definitions[i] = data
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, unavailable("replace rules", err)
	}
	defer tx.Rollback()

	q := s.queries.WithTx(tx)
	now := s.now()

	res, err := q.Exec(ctx, "touch-project", now, projectID)
	if err != nil {
		return nil, unavailable("replace rules", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrProjectNotFound, projectID)
	}

	if _, err := q.Exec(ctx, "delete-project-rules", projectID); err != nil {
		return nil, unavailable("replace rules", err)
	}
	for i, r := range stored {
		if _, err := q.Exec(ctx, "insert-rule", r.ID, projectID, i, r.Name, r.SortOrder, string(definitions[i]), now); err != nil {
			return nil, unavailable("replace rules", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, unavailable("replace rules", err)
	}
	return stored, nil
}

// ruleRow is one policy_rules row.
type ruleRow struct {
	ID         types.RuleID `db:"rule_id"`
	Position   int          `db:"position"`
	Name       string       `db:"name"`
	SortOrder  int          `db:"sort_order"`
	Definition string       `db:"definition"`
}

// ListRules returns the project's rules in stored (file) order.
func (s *RuleStore) ListRules(ctx context.Context, projectID types.ProjectID) ([]types.PolicyRule, error) {
	var rows []ruleRow
	if err := s.queries.Select(ctx, "list-rules", &rows, projectID); err != nil {
		return nil, unavailable("list rules", err)
	}

	out := make([]types.PolicyRule, 0, len(rows))
	for _, row := range rows {
		rule := types.DefaultPolicyRule()
		if err := json.Unmarshal([]byte(row.Definition), &rule); err != nil {
			return nil, fmt.Errorf("decode rule %s: %w", row.ID, err)
		}
		rule.ID = row.ID
		out = append(out, rule)
	}
	return out, nil
}

// CreateAPIKey records a new key hash for a project and returns the key id.
func (s *RuleStore) CreateAPIKey(ctx context.Context, projectID types.ProjectID, name, secretID, keyHash string) (string, error) {
	id := uuid.Must(uuid.NewV7()).String()
	if _, err := s.queries.Exec(ctx, "insert-api-key", id, projectID, name, secretID, keyHash, s.now()); err != nil {
		return "", unavailable("create api key", err)
	}
	return id, nil
}

// RevokeAPIKey marks a key revoked. Revoking twice is not an error.
func (s *RuleStore) RevokeAPIKey(ctx context.Context, apiKeyID string) error {
	if _, err := s.queries.Exec(ctx, "revoke-api-key", s.now(), apiKeyID); err != nil {
		return unavailable("revoke api key", err)
	}
	return nil
}
