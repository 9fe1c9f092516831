// Package migration applies the numbered SQL files of a backend and records
// each applied file in schema_migrations.
package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrSchemaMissing means no migration has been applied yet.
	ErrSchemaMissing = errors.New("database schema missing")
	// ErrSchemaNewer means the database was migrated by a newer build.
	ErrSchemaNewer = errors.New("database schema is newer than this build")
)

type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) recordStmt() string {
	if d == Postgres {
		return "INSERT INTO schema_migrations (version, name, applied_at) VALUES ($1, $2, $3)"
	}
	return "INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)"
}

const historyTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	applied_at TEXT NOT NULL
)`

// Migration is one NNN_name.sql file.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

func (m Migration) String() string {
	return fmt.Sprintf("%03d_%s", m.Version, m.Name)
}

// State pairs a migration with the time it was applied, if it was.
type State struct {
	Migration
	AppliedAt *time.Time
}

type Runner struct {
	db      *sql.DB
	files   fs.FS
	dialect Dialect
	now     func() time.Time
}

// NewRunner reads migrations from the root of files.
func NewRunner(db *sql.DB, files fs.FS, dialect Dialect) *Runner {
	return &Runner{db: db, files: files, dialect: dialect, now: time.Now}
}

// Files parses and orders the migrations. Versions start at 1 and must be unique.
func (r *Runner) Files() ([]Migration, error) {
	entries, err := fs.ReadDir(r.files, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var out []Migration
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || path.Ext(name) != ".sql" {
			continue
		}
		num, rest, ok := strings.Cut(strings.TrimSuffix(name, ".sql"), "_")
		if !ok || rest == "" {
			return nil, fmt.Errorf("migration %s: expected NNN_name.sql", name)
		}
		version, err := strconv.Atoi(num)
		if err != nil || version < 1 {
			return nil, fmt.Errorf("migration %s: version must be a positive number", name)
		}
		body, err := fs.ReadFile(r.files, name)
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", name, err)
		}
		out = append(out, Migration{Version: version, Name: rest, SQL: string(body)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	for i := 1; i < len(out); i++ {
		if out[i].Version == out[i-1].Version {
			return nil, fmt.Errorf("duplicate migration version %d", out[i].Version)
		}
	}
	return out, nil
}

func (r *Runner) applied(ctx context.Context) (map[int]time.Time, error) {
	if _, err := r.db.ExecContext(ctx, historyTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, "SELECT version, applied_at FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()

	out := make(map[int]time.Time)
	for rows.Next() {
		var v int
		var at string
		if err := rows.Scan(&v, &at); err != nil {
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		t, _ := time.Parse(time.RFC3339, at)
		out[v] = t
	}
	return out, rows.Err()
}

// Current is the highest applied version, 0 for a fresh database.
func (r *Runner) Current(ctx context.Context) (int, error) {
	done, err := r.applied(ctx)
	if err != nil {
		return 0, err
	}
	top := 0
	for v := range done {
		if v > top {
			top = v
		}
	}
	return top, nil
}

// Status lists every known migration with its applied time.
func (r *Runner) Status(ctx context.Context) ([]State, error) {
	files, err := r.Files()
	if err != nil {
		return nil, err
	}
	done, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]State, len(files))
	for i, m := range files {
		out[i] = State{Migration: m}
		if at, ok := done[m.Version]; ok {
			at := at
			out[i].AppliedAt = &at
		}
	}
	return out, nil
}

// Check is run on every open: the schema must exist and not be newer than
// the embedded files.
func (r *Runner) Check(ctx context.Context) error {
	files, err := r.Files()
	if err != nil {
		return err
	}
	current, err := r.Current(ctx)
	if err != nil {
		return err
	}
	if current == 0 {
		return ErrSchemaMissing
	}
	if n := len(files); n > 0 && current > files[n-1].Version {
		return fmt.Errorf("%w (database %d, supported %d)", ErrSchemaNewer, current, files[n-1].Version)
	}
	return nil
}

// Up applies pending migrations in order, each in its own transaction, and
// reports progress through logFn.
func (r *Runner) Up(ctx context.Context, logFn func(string)) (int, error) {
	if logFn == nil {
		logFn = func(string) {}
	}
	files, err := r.Files()
	if err != nil {
		return 0, err
	}
	done, err := r.applied(ctx)
	if err != nil {
		return 0, err
	}
	if n := len(files); n > 0 {
		for v := range done {
			if v > files[n-1].Version {
				return 0, fmt.Errorf("%w (database %d, supported %d)", ErrSchemaNewer, v, files[n-1].Version)
			}
		}
	}

	start := time.Now()
	applied := 0
	for _, m := range files {
		if _, ok := done[m.Version]; ok {
			continue
		}
		if err := r.apply(ctx, m); err != nil {
			return applied, err
		}
		applied++
		logFn("applied " + m.String())
	}
	if applied == 0 {
		logFn("schema is up to date")
	} else {
		logFn(fmt.Sprintf("applied %d migration(s) in %v", applied, time.Since(start).Round(time.Millisecond)))
	}
	return applied, nil
}

func (r *Runner) apply(ctx context.Context, m Migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %s: begin: %w", m, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("migration %s: %w", m, err)
	}
	if _, err := tx.ExecContext(ctx, r.dialect.recordStmt(), m.Version, m.Name, r.now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("migration %s: record: %w", m, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migration %s: commit: %w", m, err)
	}
	return nil
}
