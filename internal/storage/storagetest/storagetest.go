// Package storagetest holds behavior tests shared by every storage backend.
package storagetest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	apperrors "github.com/julianstephens/daybook/internal/errors"
	"github.com/julianstephens/daybook/internal/storage"
)

// Factory returns a fresh, empty store. The test closes it.
type Factory func(t *testing.T) storage.Store

func mustDoc(t *testing.T, v any) storage.Document {
	t.Helper()
	doc, err := storage.Encode(v)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return doc
}

func field(t *testing.T, doc storage.Document, name string) any {
	t.Helper()
	var v any
	raw, ok := doc[name]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("bad field %s: %v", name, err)
	}
	return v
}

// Run exercises the Store contract against a backend.
func Run(t *testing.T, newStore Factory) {
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("SetOverwrite", func(t *testing.T) { testSetOverwrite(t, newStore(t)) })
	t.Run("SetMerge", func(t *testing.T) { testSetMerge(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("Query", func(t *testing.T) { testQuery(t, newStore(t)) })
	t.Run("Subscribe", func(t *testing.T) { testSubscribe(t, newStore(t)) })
}

func testGetMissing(t *testing.T, s storage.Store) {
	defer s.Close()
	_, err := s.Get(context.Background(), "users/u1/days", "2025-03-05")
	if !apperrors.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func testSetOverwrite(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()
	c := "users/u1/days"

	if err := s.Set(ctx, c, "2025-03-05", mustDoc(t, map[string]any{"a": 1, "b": "x"}), false); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set(ctx, c, "2025-03-05", mustDoc(t, map[string]any{"a": 2}), false); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	doc, err := s.Get(ctx, c, "2025-03-05")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if field(t, doc, "a") != float64(2) || field(t, doc, "b") != nil {
		t.Errorf("overwrite kept stale fields: %v", doc)
	}
}

func testSetMerge(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()
	c := "users/u1/days"

	if err := s.Set(ctx, c, "k", mustDoc(t, map[string]any{"wake_time": "06:30", "priorities": []string{"a"}}), false); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set(ctx, c, "k", mustDoc(t, map[string]any{"priorities": []string{"b", "c"}}), true); err != nil {
		t.Fatalf("merge Set failed: %v", err)
	}
	doc, err := s.Get(ctx, c, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if field(t, doc, "wake_time") != "06:30" {
		t.Errorf("merge clobbered wake_time: %v", doc)
	}
	if got, ok := field(t, doc, "priorities").([]any); !ok || len(got) != 2 {
		t.Errorf("merge did not replace priorities: %v", doc)
	}

	// Merging into a missing document creates it.
	if err := s.Set(ctx, c, "new", mustDoc(t, map[string]any{"x": true}), true); err != nil {
		t.Fatalf("merge into missing failed: %v", err)
	}
	if _, err := s.Get(ctx, c, "new"); err != nil {
		t.Errorf("expected merged document to exist: %v", err)
	}
}

func testDelete(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()
	c := "users/u1/habits"

	if err := s.Set(ctx, c, "h1", mustDoc(t, map[string]any{"title": "Run"}), false); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Delete(ctx, c, "h1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, c, "h1"); !apperrors.IsNotFound(err) {
		t.Errorf("expected not found after delete, got %v", err)
	}
	if err := s.Delete(ctx, c, "h1"); err != nil {
		t.Errorf("deleting a missing document should succeed, got %v", err)
	}
}

func testQuery(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()
	c := "users/u1/habits"
	other := "users/u2/habits"

	docs := []struct {
		key   string
		owner string
		start time.Time
	}{
		{"a", "u1", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"b", "u1", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"c", "u1", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
		{"d", "someone-else", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, d := range docs {
		doc := mustDoc(t, map[string]any{"owner_id": d.owner, "start_date": d.start})
		if err := s.Set(ctx, c, d.key, doc, false); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	if err := s.Set(ctx, other, "z", mustDoc(t, map[string]any{"owner_id": "u1"}), false); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := s.Query(ctx, c, storage.Query{
		Filters:    []storage.Filter{{Field: "owner_id", Value: "u1"}},
		OrderBy:    "start_date",
		Descending: true,
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	want := []string{"b", "c", "a"}
	if len(got) != len(want) {
		t.Fatalf("Query returned %d entries, want %d", len(got), len(want))
	}
	for i, k := range want {
		if got[i].Key != k {
			t.Errorf("entry %d = %s, want %s", i, got[i].Key, k)
		}
	}

	empty, err := s.Query(ctx, "users/nobody/habits", storage.Query{})
	if err != nil || len(empty) != 0 {
		t.Errorf("empty collection query = %v, %v", empty, err)
	}
}

type recorder struct {
	mu      sync.Mutex
	changes []storage.Change
	notify  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 64)}
}

func (r *recorder) fn(c storage.Change) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *recorder) last() (storage.Change, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.changes) == 0 {
		return storage.Change{}, 0
	}
	return r.changes[len(r.changes)-1], len(r.changes)
}

// waitFor polls until cond holds for the latest change.
func (r *recorder) waitFor(t *testing.T, what string, cond func(storage.Change) bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if c, n := r.last(); n > 0 && cond(c) {
			return
		}
		select {
		case <-r.notify:
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			c, n := r.last()
			t.Fatalf("timed out waiting for %s (last of %d: %+v)", what, n, c)
		}
	}
}

func testSubscribe(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()
	c := "users/u1/days"

	if err := s.Set(ctx, c, "k", mustDoc(t, map[string]any{"n": 0}), false); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	rec := newRecorder()
	sub, err := s.Subscribe(ctx, c, "k", rec.fn)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	rec.waitFor(t, "initial state", func(ch storage.Change) bool {
		return ch.Exists() && field(t, ch.Doc, "n") == float64(0)
	})

	for i := 1; i <= 5; i++ {
		if err := s.Set(ctx, c, "k", mustDoc(t, map[string]any{"n": i}), false); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	rec.waitFor(t, "latest state", func(ch storage.Change) bool {
		return ch.Exists() && field(t, ch.Doc, "n") == float64(5)
	})

	rec.mu.Lock()
	prev := -1.0
	for _, ch := range rec.changes {
		if !ch.Exists() {
			continue
		}
		n := field(t, ch.Doc, "n").(float64)
		if n < prev {
			t.Errorf("out of order delivery: %v after %v", n, prev)
		}
		prev = n
	}
	rec.mu.Unlock()

	if err := s.Delete(ctx, c, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	rec.waitFor(t, "deletion", func(ch storage.Change) bool { return !ch.Exists() })

	sub.Cancel()
	sub.Cancel()
	_, before := rec.last()
	if err := s.Set(ctx, c, "k", mustDoc(t, map[string]any{"n": 99}), false); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if _, after := rec.last(); after != before {
		t.Errorf("received %d changes after cancel", after-before)
	}
}
