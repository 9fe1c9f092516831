package migration

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/daybook/migrations"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func migrationFS(files map[string]string) fstest.MapFS {
	m := fstest.MapFS{}
	for name, content := range files {
		m[name] = &fstest.MapFile{Data: []byte(content)}
	}
	return m
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n == 1
}

func TestFiles(t *testing.T) {
	runner := NewRunner(setupTestDB(t), migrationFS(map[string]string{
		"003_another.sql":  "CREATE TABLE test2 (id INTEGER);",
		"001_init.sql":     "CREATE TABLE test1 (id INTEGER);",
		"002_add_name.sql": "ALTER TABLE test1 ADD COLUMN name TEXT;",
		"README.md":        "ignored",
	}), SQLite)

	files, err := runner.Files()
	if err != nil {
		t.Fatalf("Files failed: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(files))
	}
	for i, name := range []string{"init", "add_name", "another"} {
		if files[i].Version != i+1 || files[i].Name != name {
			t.Errorf("migration %d: got version %d name %q", i, files[i].Version, files[i].Name)
		}
	}
	if files[1].String() != "002_add_name" {
		t.Errorf("String() = %q", files[1].String())
	}
}

func TestFilesInvalid(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  string
	}{
		{"bad format", map[string]string{"init.sql": ""}, "expected NNN_name.sql"},
		{"bad version", map[string]string{"abc_init.sql": ""}, "positive number"},
		{"zero version", map[string]string{"000_init.sql": ""}, "positive number"},
		{"duplicate", map[string]string{"001_a.sql": "", "1_b.sql": ""}, "duplicate migration version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := NewRunner(setupTestDB(t), migrationFS(tt.files), SQLite)
			_, err := runner.Files()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestUpIncremental(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	files := migrationFS(map[string]string{
		"001_init.sql": "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT);",
	})
	runner := NewRunner(db, files, SQLite)

	if err := runner.Check(ctx); !errors.Is(err, ErrSchemaMissing) {
		t.Errorf("Check on fresh database = %v, want ErrSchemaMissing", err)
	}

	count, err := runner.Up(ctx, nil)
	if err != nil || count != 1 {
		t.Fatalf("Up = %d, %v; want 1, nil", count, err)
	}

	files["002_posts.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER);")}
	var logs []string
	count, err = runner.Up(ctx, func(s string) { logs = append(logs, s) })
	if err != nil || count != 1 {
		t.Fatalf("Up = %d, %v; want 1, nil", count, err)
	}
	if len(logs) == 0 || logs[0] != "applied 002_posts" {
		t.Errorf("progress messages = %v", logs)
	}

	count, err = runner.Up(ctx, nil)
	if err != nil || count != 0 {
		t.Errorf("re-running Up = %d, %v; want 0, nil", count, err)
	}
	if !tableExists(t, db, "posts") {
		t.Error("posts table was not created")
	}
	if err := runner.Check(ctx); err != nil {
		t.Errorf("Check after Up = %v", err)
	}
}

func TestUpRollsBackFailure(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	runner := NewRunner(db, migrationFS(map[string]string{
		"001_init.sql":   "CREATE TABLE users (id INTEGER PRIMARY KEY);",
		"002_broken.sql": "CREATE TABLE partial (id INTEGER); CREATE TABLE oops (",
	}), SQLite)

	count, err := runner.Up(ctx, nil)
	if err == nil || !strings.Contains(err.Error(), "002_broken") {
		t.Fatalf("expected broken migration to fail, got %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 migration applied before failure, got %d", count)
	}
	if version, _ := runner.Current(ctx); version != 1 {
		t.Errorf("expected version 1 after failure, got %d", version)
	}
	if tableExists(t, db, "partial") {
		t.Error("failed migration left a table behind")
	}
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	files := migrationFS(map[string]string{
		"001_init.sql": "CREATE TABLE users (id INTEGER);",
	})
	runner := NewRunner(db, files, SQLite)
	if _, err := runner.Up(ctx, nil); err != nil {
		t.Fatal(err)
	}
	files["002_more.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE more (id INTEGER);")}

	states, err := runner.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 2 {
		t.Fatalf("Status = %d entries, want 2", len(states))
	}
	if states[0].AppliedAt == nil {
		t.Error("001 should be applied")
	}
	if states[1].AppliedAt != nil {
		t.Error("002 should be pending")
	}
}

func TestNewerDatabaseRejected(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	runner := NewRunner(db, migrationFS(map[string]string{
		"001_init.sql": "CREATE TABLE users (id INTEGER);",
	}), SQLite)
	if _, err := runner.Up(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("INSERT INTO schema_migrations (version, name, applied_at) VALUES (9, 'future', '2030-01-01T00:00:00Z')"); err != nil {
		t.Fatal(err)
	}
	if err := runner.Check(ctx); !errors.Is(err, ErrSchemaNewer) {
		t.Errorf("Check = %v, want ErrSchemaNewer", err)
	}
	if _, err := runner.Up(ctx, nil); !errors.Is(err, ErrSchemaNewer) {
		t.Errorf("Up = %v, want ErrSchemaNewer", err)
	}
}

func TestEmbeddedSQLiteMigrations(t *testing.T) {
	sub, err := migrations.Sub(migrations.SQLite)
	if err != nil {
		t.Fatalf("Sub failed: %v", err)
	}
	db := setupTestDB(t)
	runner := NewRunner(db, sub, SQLite)
	if _, err := runner.Up(context.Background(), nil); err != nil {
		t.Fatalf("embedded migrations failed: %v", err)
	}
	if !tableExists(t, db, "documents") {
		t.Error("documents table was not created")
	}
}
