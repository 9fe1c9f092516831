// Package memory is an in-process storage.Store for tests and ephemeral
// sessions.
package memory

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/julianstephens/daybook/internal/errors"
	"github.com/julianstephens/daybook/internal/storage"
)

type Store struct {
	mu   sync.RWMutex
	docs map[string]map[string]storage.Document
	hub  *storage.Hub
}

func New() *Store {
	return &Store{
		docs: make(map[string]map[string]storage.Document),
		hub:  storage.NewHub(),
	}
}

func (s *Store) Get(ctx context.Context, collection, key string) (storage.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Persistence("get", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[collection][key]
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("%s/%s", collection, key))
	}
	return doc.Clone(), nil
}

func (s *Store) Set(ctx context.Context, collection, key string, doc storage.Document, merge bool) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Persistence("set", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]storage.Document)
	}
	next := doc.Clone()
	if existing, ok := s.docs[collection][key]; ok && merge {
		next = storage.Merge(existing, doc)
	}
	s.docs[collection][key] = next
	s.hub.Publish(storage.Change{Collection: collection, Key: key, Doc: next})
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, key string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Persistence("delete", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[collection][key]; !ok {
		return nil
	}
	delete(s.docs[collection], key)
	s.hub.Publish(storage.Change{Collection: collection, Key: key})
	return nil
}

func (s *Store) Subscribe(ctx context.Context, collection, key string, fn func(storage.Change)) (*storage.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Persistence("subscribe", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, offer := s.hub.Subscribe(collection, key, fn)
	offer(storage.Change{Collection: collection, Key: key, Doc: s.docs[collection][key]})
	return sub, nil
}

func (s *Store) Query(ctx context.Context, collection string, q storage.Query) ([]storage.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Persistence("query", err)
	}
	s.mu.RLock()
	entries := make([]storage.Entry, 0, len(s.docs[collection]))
	for k, d := range s.docs[collection] {
		entries = append(entries, storage.Entry{Key: k, Doc: d.Clone()})
	}
	s.mu.RUnlock()
	return q.Apply(entries), nil
}

// Subscribers reports live subscriptions on a document.
func (s *Store) Subscribers(collection, key string) int {
	return s.hub.Subscribers(collection, key)
}

func (s *Store) Close() error {
	s.hub.Close()
	return nil
}
