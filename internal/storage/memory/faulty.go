package memory

import (
	"context"
	"sync"

	apperrors "github.com/julianstephens/daybook/internal/errors"
	"github.com/julianstephens/daybook/internal/storage"
)

// Faulty wraps a Store and fails reads or writes on demand.
type Faulty struct {
	storage.Store

	mu        sync.Mutex
	readErr   error
	writeErr  error
	getCalls  int
	setCalls  int
	failAfter int
}

func NewFaulty(inner storage.Store) *Faulty {
	return &Faulty{Store: inner, failAfter: -1}
}

// FailWrites makes Set and Delete return err (nil clears it).
func (f *Faulty) FailWrites(err error) {
	f.mu.Lock()
	f.writeErr = err
	f.failAfter = -1
	f.mu.Unlock()
}

// FailWritesAfter lets n more writes succeed, then fails with err.
func (f *Faulty) FailWritesAfter(n int, err error) {
	f.mu.Lock()
	f.writeErr = err
	f.failAfter = n
	f.mu.Unlock()
}

// FailReads makes Get and Query return err (nil clears it).
func (f *Faulty) FailReads(err error) {
	f.mu.Lock()
	f.readErr = err
	f.mu.Unlock()
}

// Calls returns the number of Get and Set calls seen.
func (f *Faulty) Calls() (gets, sets int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls, f.setCalls
}

func (f *Faulty) writeFault() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	if f.writeErr == nil {
		return nil
	}
	if f.failAfter > 0 {
		f.failAfter--
		return nil
	}
	return apperrors.Persistence("injected", f.writeErr)
}

func (f *Faulty) readFault() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.readErr == nil {
		return nil
	}
	return apperrors.Persistence("injected", f.readErr)
}

func (f *Faulty) Get(ctx context.Context, collection, key string) (storage.Document, error) {
	if err := f.readFault(); err != nil {
		return nil, err
	}
	return f.Store.Get(ctx, collection, key)
}

func (f *Faulty) Query(ctx context.Context, collection string, q storage.Query) ([]storage.Entry, error) {
	if err := f.readFault(); err != nil {
		return nil, err
	}
	return f.Store.Query(ctx, collection, q)
}

func (f *Faulty) Set(ctx context.Context, collection, key string, doc storage.Document, merge bool) error {
	if err := f.writeFault(); err != nil {
		return err
	}
	return f.Store.Set(ctx, collection, key, doc, merge)
}

func (f *Faulty) Delete(ctx context.Context, collection, key string) error {
	if err := f.writeFault(); err != nil {
		return err
	}
	return f.Store.Delete(ctx, collection, key)
}
