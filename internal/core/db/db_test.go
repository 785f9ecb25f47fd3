package db

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/jmoiron/sqlx"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open("sqlite://" + filepath.Join(t.TempDir(), "texpolicy.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDataSource(t *testing.T) {
	tests := []struct {
		url        string
		wantDriver string
		wantDSN    string
		wantErr    bool
	}{
		{url: "sqlite://data/tp.db", wantDriver: "sqlite3", wantDSN: "file:data/tp.db?" + sqliteParams},
		{url: "sqlite:///var/lib/tp.db", wantDriver: "sqlite3", wantDSN: "file:/var/lib/tp.db?" + sqliteParams},
		{url: "sqlite://tp.db?cache=shared", wantDriver: "sqlite3", wantDSN: "file:tp.db?cache=shared&" + sqliteParams},
		{url: "postgres://u:p@localhost:5432/tp?sslmode=disable", wantDriver: "postgres", wantDSN: "postgres://u:p@localhost:5432/tp?sslmode=disable"},
		{url: "mysql://localhost/tp", wantErr: true},
		{url: "sqlite://", wantErr: true},
	}

	for _, tt := range tests {
		driver, dsn, err := DataSource(tt.url)
		if tt.wantErr {
			if err == nil {
				t.Errorf("DataSource(%q) error = nil, want error", tt.url)
			}
			continue
		}
		if err != nil {
			t.Errorf("DataSource(%q) error = %v", tt.url, err)
			continue
		}
		if driver != tt.wantDriver || dsn != tt.wantDSN {
			t.Errorf("DataSource(%q) = %q, %q, want %q, %q", tt.url, driver, dsn, tt.wantDriver, tt.wantDSN)
		}
	}
}

func TestMigrateUp(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	ran, err := MigrateUp(ctx, db)
	if err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	if len(ran) == 0 || ran[0] != "001_initial_schema.sql" {
		t.Errorf("MigrateUp ran %v, want 001_initial_schema.sql first", ran)
	}

	for _, table := range []string{"projects", "policy_rules", "api_keys"} {
		var n int
		if err := db.Get(&n, "SELECT COUNT(*) FROM "+table); err != nil {
			t.Errorf("table %s not created: %v", table, err)
		}
	}

	again, err := MigrateUp(ctx, db)
	if err != nil {
		t.Fatalf("second MigrateUp failed: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second MigrateUp ran %v, want nothing", again)
	}
}

func TestMigrateStatus(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	pending, err := MigrateStatus(ctx, db)
	if err != nil {
		t.Fatalf("MigrateStatus failed: %v", err)
	}
	if len(pending) == 0 || pending[0].Applied {
		t.Fatalf("status before migrate = %+v, want pending", pending)
	}

	if _, err := MigrateUp(ctx, db); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	statuses, err := MigrateStatus(ctx, db)
	if err != nil {
		t.Fatalf("MigrateStatus failed: %v", err)
	}
	for _, s := range statuses {
		if !s.Applied || s.AppliedAt == nil {
			t.Errorf("migration %s not applied: %+v", s.ID, s)
		}
		if s.Checksum != pending[0].Checksum && s.ID == pending[0].ID {
			t.Errorf("checksum changed for %s", s.ID)
		}
	}
}

func TestMigrateUp_ChecksumMismatch(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if _, err := MigrateUp(ctx, db); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	if _, err := db.Exec("UPDATE migrations SET checksum = 'tampered'"); err != nil {
		t.Fatal(err)
	}

	_, err := MigrateUp(ctx, db)
	if err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Errorf("MigrateUp error = %v, want checksum mismatch", err)
	}
}

func TestMigrateUp_UnknownAppliedMigration(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if _, err := MigrateUp(ctx, db); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	if _, err := db.Exec("INSERT INTO migrations (migration_id, checksum, applied_at, execution_ms) VALUES ('999_future.sql', 'x', '2026-01-01 00:00:00+00:00', 0)"); err != nil {
		t.Fatal(err)
	}

	_, err := MigrateUp(ctx, db)
	if err == nil || !strings.Contains(err.Error(), "not in embedded files") {
		t.Errorf("MigrateUp error = %v, want unknown migration error", err)
	}
}

func TestParseMigrationFiles_Ordered(t *testing.T) {
	fsys := fstest.MapFS{
		"m/002_b.sql":  {Data: []byte("SELECT 2")},
		"m/001_a.sql":  {Data: []byte("SELECT 1")},
		"m/README.txt": {Data: []byte("ignored")},
	}

	migrations, err := parseMigrationFiles(fsys, "m")
	if err != nil {
		t.Fatalf("parseMigrationFiles failed: %v", err)
	}
	if len(migrations) != 2 || migrations[0].ID != "001_a.sql" || migrations[1].ID != "002_b.sql" {
		t.Errorf("migrations = %+v", migrations)
	}
	if migrations[0].Checksum == migrations[1].Checksum {
		t.Error("distinct files share a checksum")
	}
}

func TestSplitStatements(t *testing.T) {
	sql := `-- header comment
CREATE TABLE a (id INTEGER);

-- section comment
CREATE INDEX idx_a ON a (id);
`
	got := splitStatements(sql)
	want := []string{"CREATE TABLE a (id INTEGER)", "CREATE INDEX idx_a ON a (id)"}
	if len(got) != len(want) {
		t.Fatalf("splitStatements = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("statement %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLoadQueries(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	if _, err := MigrateUp(ctx, db); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	q, err := LoadQueries(db)
	if err != nil {
		t.Fatalf("LoadQueries failed: %v", err)
	}

	var n int
	if err := q.Get(ctx, "count-rules", &n, "no-such-project"); err != nil {
		t.Fatalf("count-rules failed: %v", err)
	}
	if n != 0 {
		t.Errorf("count-rules = %d, want 0", n)
	}

	if _, err := q.Exec(ctx, "no-such-query"); err == nil || !strings.Contains(err.Error(), "query not found") {
		t.Errorf("Exec(unknown) error = %v, want query not found", err)
	}
}

func TestOpen_CreatesSQLiteDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data", "texpolicy.db")

	conn, err := Open("sqlite://" + path)
	if err != nil {
		t.Fatalf("Open() error = %v, want nil", err)
	}
	defer conn.Close()

	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("database directory not created: %v", err)
	}
}
