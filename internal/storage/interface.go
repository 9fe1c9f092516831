// Package storage is the owner-scoped document boundary used by the engine.
// Backends live in the memory, sqlite, postgres and disk subpackages.
package storage

import (
	"context"
)

// Store is a document store addressed by collection path and key.
type Store interface {
	// Get returns the document or an error wrapping errors.ErrNotFound.
	Get(ctx context.Context, collection, key string) (Document, error)
	// Set writes doc. With merge the top-level fields of doc replace those of
	// the stored document and other fields are kept; without merge the stored
	// document is overwritten.
	Set(ctx context.Context, collection, key string, doc Document, merge bool) error
	Delete(ctx context.Context, collection, key string) error
	// Subscribe calls fn with the current state of the document and then with
	// every later change, in order, possibly skipping intermediate states.
	Subscribe(ctx context.Context, collection, key string, fn func(Change)) (*Subscription, error)
	Query(ctx context.Context, collection string, q Query) ([]Entry, error)
	Close() error
}

// Entry is a document with its key.
type Entry struct {
	Key string
	Doc Document
}

// Change is a document state delivered to subscribers. Doc is nil when the
// document does not exist.
type Change struct {
	Collection string
	Key        string
	Doc        Document
}

// Exists reports whether the change carries a document.
func (c Change) Exists() bool {
	return c.Doc != nil
}
