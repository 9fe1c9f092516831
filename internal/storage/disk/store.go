// Package disk stores each document as a JSON file under a base directory,
// one subdirectory per collection path segment.
package disk

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/peterbourgon/diskv/v3"

	apperrors "github.com/julianstephens/daybook/internal/errors"
	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/storage"
)

const (
	fileExt = ".json"
	tempDir = ".tmp"
)

type Store struct {
	basePath string
	d        *diskv.Diskv
	hub      *storage.Hub

	// mu orders writes, and watcher reads, with their notifications.
	mu sync.Mutex

	watchOnce sync.Once
	watchErr  error
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func New(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &Store{
		basePath: basePath,
		d: diskv.New(diskv.Options{
			BasePath:          basePath,
			TempDir:           filepath.Join(basePath, tempDir),
			AdvancedTransform: keyToPath,
			InverseTransform:  pathToKey,
			// Other processes may write the same files, so nothing is cached.
			CacheSizeMax: 0,
		}),
		hub:  storage.NewHub(),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}, nil
}

// keyToPath maps "users/u1/days/2025-03-05" to users/u1/days/2025-03-05.json.
func keyToPath(key string) *diskv.PathKey {
	parts := strings.Split(key, "/")
	return &diskv.PathKey{
		Path:     parts[:len(parts)-1],
		FileName: parts[len(parts)-1] + fileExt,
	}
}

func pathToKey(pk *diskv.PathKey) string {
	name := strings.TrimSuffix(pk.FileName, fileExt)
	return strings.Join(append(append([]string{}, pk.Path...), name), "/")
}

func docKey(collection, key string) (string, error) {
	if err := storage.ValidateSegment(key); err != nil {
		return "", apperrors.InvalidTransition("document key", err.Error())
	}
	for _, seg := range strings.Split(collection, "/") {
		if err := storage.ValidateSegment(seg); err != nil {
			return "", apperrors.InvalidTransition("collection path", err.Error())
		}
	}
	return collection + "/" + key, nil
}

func (s *Store) GetConfigPath() string {
	return s.basePath
}

func (s *Store) read(collection, key string) (storage.Document, error) {
	k, err := docKey(collection, key)
	if err != nil {
		return nil, err
	}
	b, err := s.d.Read(k)
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperrors.NotFound(k)
	}
	if err != nil {
		return nil, apperrors.Persistence("read "+k, err)
	}
	return storage.ParseDocument(b)
}

func (s *Store) Get(ctx context.Context, collection, key string) (storage.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Persistence("get", err)
	}
	return s.read(collection, key)
}

func (s *Store) Set(ctx context.Context, collection, key string, doc storage.Document, merge bool) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Persistence("set", err)
	}
	k, err := docKey(collection, key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := doc
	if merge {
		existing, err := s.read(collection, key)
		switch {
		case err == nil:
			next = storage.Merge(existing, doc)
		case apperrors.IsNotFound(err):
		case errors.Is(err, apperrors.ErrDecode):
			logger.Warn("Overwriting undecodable document", "key", k, "error", err)
		default:
			return err
		}
	}

	b, err := next.Bytes()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", k, err)
	}
	if err := s.d.Write(k, b); err != nil {
		return apperrors.Persistence("write "+k, err)
	}
	s.hub.Publish(storage.Change{Collection: collection, Key: key, Doc: next})
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, key string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Persistence("delete", err)
	}
	k, err := docKey(collection, key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.d.Has(k) {
		return nil
	}
	if err := s.d.Erase(k); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperrors.Persistence("erase "+k, err)
	}
	s.hub.Publish(storage.Change{Collection: collection, Key: key})
	return nil
}

func (s *Store) Subscribe(ctx context.Context, collection, key string, fn func(storage.Change)) (*storage.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Persistence("subscribe", err)
	}
	if err := s.startWatcher(); err != nil {
		logger.Warn("File watcher unavailable, only local changes will be delivered", "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read(collection, key)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, err
	}
	sub, offer := s.hub.Subscribe(collection, key, fn)
	offer(storage.Change{Collection: collection, Key: key, Doc: doc})
	return sub, nil
}

func (s *Store) Query(ctx context.Context, collection string, q storage.Query) ([]storage.Entry, error) {
	prefix := collection + "/"
	var entries []storage.Entry
	for k := range s.d.KeysPrefix(prefix, ctx.Done()) {
		rest := strings.TrimPrefix(k, prefix)
		if strings.Contains(rest, "/") {
			continue
		}
		b, err := s.d.Read(k)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, apperrors.Persistence("query "+collection, err)
		}
		doc, err := storage.ParseDocument(b)
		if err != nil {
			logger.Warn("Skipping undecodable document", "key", k, "error", err)
			continue
		}
		entries = append(entries, storage.Entry{Key: rest, Doc: doc})
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Persistence("query "+collection, err)
	}
	return q.Apply(entries), nil
}

func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.hub.Close()
		started := true
		s.watchOnce.Do(func() { started = false })
		if started && s.watchErr == nil {
			close(s.stop)
			<-s.done
		}
	})
	return nil
}
