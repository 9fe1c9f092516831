package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	pq "github.com/lib/pq"

	"github.com/julianstephens/daybook/internal/constants"
	apperrors "github.com/julianstephens/daybook/internal/errors"
	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/migration"
	"github.com/julianstephens/daybook/internal/storage"
	"github.com/julianstephens/daybook/migrations"
)

// Store keeps documents in a JSONB table. Every write issues a pg_notify on
// the same transaction, and subscribers are fed from a LISTEN connection, so
// changes made by other processes are delivered too.
type Store struct {
	connStr string
	db      *sql.DB
	hub     *storage.Hub

	listenOnce sync.Once
	listener   *pq.Listener
	stop       chan struct{}
	done       chan struct{}
}

func New(connStr string) *Store {
	return &Store{
		connStr: withSearchPath(connStr),
		hub:     storage.NewHub(),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (s *Store) open() error {
	db, err := sql.Open("postgres", s.connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		if strings.Contains(err.Error(), "SSL is not enabled on the server") && !hasParam(s.connStr, "sslmode") {
			return fmt.Errorf("failed to connect to database: %w (hint: try adding ?sslmode=disable to your connection string)", err)
		}
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	s.db = db
	return nil
}

// Init creates the daybook schema and applies pending migrations.
func (s *Store) Init() error {
	if s.db == nil {
		if err := s.open(); err != nil {
			return err
		}
	}
	if _, err := s.db.Exec("CREATE SCHEMA IF NOT EXISTS " + constants.AppName); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := s.Migrate(func(msg string) { logger.Debug(msg) }); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Load connects to an initialized database and checks its schema version.
func (s *Store) Load() error {
	if s.db != nil {
		return nil
	}
	if err := s.open(); err != nil {
		return err
	}
	runner, err := s.runner()
	if err != nil {
		return err
	}
	if err := runner.Check(context.Background()); err != nil {
		if errors.Is(err, migration.ErrSchemaMissing) {
			return fmt.Errorf("%w, run 'daybook init' first", err)
		}
		return err
	}
	return nil
}

func (s *Store) runner() (*migration.Runner, error) {
	sub, err := migrations.Sub(migrations.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to access postgres migrations: %w", err)
	}
	return migration.NewRunner(s.db, sub, migration.Postgres), nil
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

// GetConfigPath returns a non-sensitive identifier instead of the connection string.
func (s *Store) GetConfigPath() string {
	return "postgresql"
}

func (s *Store) Get(ctx context.Context, collection, key string) (storage.Document, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM documents WHERE collection = $1 AND key = $2", collection, key,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound(fmt.Sprintf("%s/%s", collection, key))
	}
	if err != nil {
		return nil, apperrors.Persistence("get "+collection+"/"+key, err)
	}
	return storage.ParseDocument(data)
}

const (
	upsertOverwrite = `
		INSERT INTO documents (collection, key, data, updated_at)
		VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (collection, key) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`
	// jsonb || replaces top-level keys, which is exactly a field merge.
	upsertMerge = `
		INSERT INTO documents (collection, key, data, updated_at)
		VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (collection, key) DO UPDATE SET data = documents.data || EXCLUDED.data, updated_at = now()`
)

func (s *Store) Set(ctx context.Context, collection, key string, doc storage.Document, merge bool) error {
	b, err := doc.Bytes()
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, key, err)
	}
	stmt := upsertOverwrite
	if merge {
		stmt = upsertMerge
	}
	return s.write(ctx, "set "+collection+"/"+key, collection, key, stmt, collection, key, string(b))
}

func (s *Store) Delete(ctx context.Context, collection, key string) error {
	return s.write(ctx, "delete "+collection+"/"+key, collection, key,
		"DELETE FROM documents WHERE collection = $1 AND key = $2", collection, key)
}

// write runs stmt and the change notification in one transaction.
func (s *Store) write(ctx context.Context, op, collection, key, stmt string, args ...any) error {
	payload, err := encodeNotice(collection, key)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Persistence(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		return apperrors.Persistence(op, err)
	}
	if _, err := tx.ExecContext(ctx, "SELECT pg_notify($1, $2)", notifyChannel, payload); err != nil {
		return apperrors.Persistence(op, err)
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Persistence(op, err)
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context, collection, key string, fn func(storage.Change)) (*storage.Subscription, error) {
	if err := s.startListener(); err != nil {
		return nil, apperrors.Persistence("subscribe", err)
	}

	sub, offer := s.hub.Subscribe(collection, key, fn)
	doc, err := s.Get(ctx, collection, key)
	if err != nil && !apperrors.IsNotFound(err) {
		sub.Cancel()
		return nil, err
	}
	offer(storage.Change{Collection: collection, Key: key, Doc: doc})
	return sub, nil
}

func (s *Store) Query(ctx context.Context, collection string, q storage.Query) ([]storage.Entry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, data FROM documents WHERE collection = $1 ORDER BY key", collection)
	if err != nil {
		return nil, apperrors.Persistence("query "+collection, err)
	}
	defer rows.Close()

	var entries []storage.Entry
	for rows.Next() {
		var key string
		var data []byte
		if err := rows.Scan(&key, &data); err != nil {
			return nil, apperrors.Persistence("query "+collection, err)
		}
		doc, err := storage.ParseDocument(data)
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
	if s.listener != nil {
		close(s.stop)
		<-s.done
		_ = s.listener.Close()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
