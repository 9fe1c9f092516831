package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	apperrors "github.com/julianstephens/daybook/internal/errors"
	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/migration"
	"github.com/julianstephens/daybook/internal/storage"
	"github.com/julianstephens/daybook/migrations"
)

// Store keeps documents in a single SQLite table. Changes made through this
// Store are pushed to its subscribers; writes by other processes are not.
type Store struct {
	path string
	db   *sql.DB
	hub  *storage.Hub

	// writeMu orders writes with their notifications.
	writeMu sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{
		path: path,
		hub:  storage.NewHub(),
	}
}

func (s *Store) dsn() string {
	return "file:" + s.path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Init creates the database file if needed and applies pending migrations.
func (s *Store) Init() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	db, err := sql.Open("sqlite", s.dsn())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	if _, err := s.Migrate(func(msg string) { logger.Debug(msg) }); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Load opens an initialized database and checks its schema version.
func (s *Store) Load() error {
	if s.db != nil {
		return nil
	}

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return fmt.Errorf("storage not initialized, run 'daybook init' first")
	}

	db, err := sql.Open("sqlite", s.dsn())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	runner, err := s.runner()
	if err != nil {
		return err
	}
	if err := runner.Check(context.Background()); err != nil {
		if errors.Is(err, migration.ErrSchemaMissing) {
			return fmt.Errorf("%w, run 'daybook migrate' first", err)
		}
		return err
	}
	return nil
}

func (s *Store) runner() (*migration.Runner, error) {
	sub, err := migrations.Sub(migrations.SQLite)
	if err != nil {
		return nil, fmt.Errorf("failed to access sqlite migrations: %w", err)
	}
	return migration.NewRunner(s.db, sub, migration.SQLite), nil
}

// Migrate applies pending migrations and returns how many ran.
func (s *Store) Migrate(logFn func(string)) (int, error) {
	runner, err := s.runner()
	if err != nil {
		return 0, err
	}
	return runner.Up(context.Background(), logFn)
}

// MigrationStatus lists applied and pending migrations.
func (s *Store) MigrationStatus(ctx context.Context) ([]migration.State, error) {
	runner, err := s.runner()
	if err != nil {
		return nil, err
	}
	return runner.Status(ctx)
}

func (s *Store) GetConfigPath() string {
	return s.path
}

func (s *Store) Get(ctx context.Context, collection, key string) (storage.Document, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM documents WHERE collection = ? AND key = ?", collection, key,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound(fmt.Sprintf("%s/%s", collection, key))
	}
	if err != nil {
		return nil, apperrors.Persistence("get "+collection+"/"+key, err)
	}
	return storage.ParseDocument([]byte(data))
}

func (s *Store) Set(ctx context.Context, collection, key string, doc storage.Document, merge bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Persistence("set "+collection+"/"+key, err)
	}
	defer func() { _ = tx.Rollback() }()

	next := doc
	if merge {
		var data string
		err := tx.QueryRowContext(ctx,
			"SELECT data FROM documents WHERE collection = ? AND key = ?", collection, key,
		).Scan(&data)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return apperrors.Persistence("set "+collection+"/"+key, err)
		default:
			existing, err := storage.ParseDocument([]byte(data))
			if err != nil {
				logger.Warn("Overwriting undecodable document", "collection", collection, "key", key, "error", err)
			} else {
				next = storage.Merge(existing, doc)
			}
		}
	}

	b, err := next.Bytes()
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, key, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (collection, key, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, collection, key, string(b), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return apperrors.Persistence("set "+collection+"/"+key, err)
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Persistence("set "+collection+"/"+key, err)
	}

	s.hub.Publish(storage.Change{Collection: collection, Key: key, Doc: next})
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, key string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE collection = ? AND key = ?", collection, key)
	if err != nil {
		return apperrors.Persistence("delete "+collection+"/"+key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.hub.Publish(storage.Change{Collection: collection, Key: key})
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context, collection, key string, fn func(storage.Change)) (*storage.Subscription, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	doc, err := s.Get(ctx, collection, key)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, err
	}
	sub, offer := s.hub.Subscribe(collection, key, fn)
	offer(storage.Change{Collection: collection, Key: key, Doc: doc})
	return sub, nil
}

func (s *Store) Query(ctx context.Context, collection string, q storage.Query) ([]storage.Entry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, data FROM documents WHERE collection = ? ORDER BY key", collection)
	if err != nil {
		return nil, apperrors.Persistence("query "+collection, err)
	}
	defer rows.Close()

	var entries []storage.Entry
	for rows.Next() {
		var key, data string
		if err := rows.Scan(&key, &data); err != nil {
			return nil, apperrors.Persistence("query "+collection, err)
		}
		doc, err := storage.ParseDocument([]byte(data))
		if err != nil {
			logger.Warn("Skipping undecodable document", "collection", collection, "key", key, "error", err)
			continue
		}
		entries = append(entries, storage.Entry{Key: key, Doc: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Persistence("query "+collection, err)
	}
	return q.Apply(entries), nil
}

func (s *Store) Close() error {
	s.hub.Close()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
