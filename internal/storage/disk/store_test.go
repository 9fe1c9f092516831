package disk

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/peterbourgon/diskv/v3"

	apperrors "github.com/julianstephens/daybook/internal/errors"
	"github.com/julianstephens/daybook/internal/storage"
	"github.com/julianstephens/daybook/internal/storage/storagetest"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return store
}

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return setupTestStore(t) })
}

func TestKeyTransformRoundTrip(t *testing.T) {
	key := "users/u1/days/2025-03-05"
	pk := keyToPath(key)
	if pk.FileName != "2025-03-05.json" || len(pk.Path) != 3 {
		t.Errorf("keyToPath() = %+v", pk)
	}
	if got := pathToKey(&diskv.PathKey{Path: pk.Path, FileName: pk.FileName}); got != key {
		t.Errorf("pathToKey() = %q, want %q", got, key)
	}
}

func TestFileLayout(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	if err := store.Set(context.Background(), "users/u1/months", "2025-03", storage.Document{"year_month": []byte(`"2025-03"`)}, false); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	path := filepath.Join(store.basePath, "users", "u1", "months", "2025-03.json")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected document file at %s: %v", path, err)
	}
}

func TestRejectsEscapingKeys(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()

	if err := store.Set(ctx, "users/u1/days", "../../etc", storage.Document{}, false); err == nil {
		t.Error("expected error for key with path separators")
	}
	if _, err := store.Get(ctx, "users/../days", "k"); err == nil || apperrors.IsNotFound(err) {
		t.Errorf("expected invalid collection error, got %v", err)
	}
}

func TestExternalWritesReachSubscribers(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()

	if err := store.Set(ctx, "users/u1/days", "2025-03-05", storage.Document{"n": []byte("1")}, false); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got := make(chan string, 16)
	sub, err := store.Subscribe(ctx, "users/u1/days", "2025-03-05", func(c storage.Change) {
		if c.Exists() {
			got <- string(c.Doc["n"])
		}
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Cancel()

	if v := <-got; v != "1" {
		t.Fatalf("initial value = %s, want 1", v)
	}

	// Simulate another process rewriting the file.
	path := filepath.Join(store.basePath, "users", "u1", "days", "2025-03-05.json")
	if err := os.WriteFile(path, []byte(`{"n":2}`), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case v := <-got:
			if v == "2" {
				return
			}
		case <-deadline:
			t.Fatal("external write was not delivered")
		}
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	store := setupTestStore(t)
	if _, err := store.Subscribe(context.Background(), "users/u1/days", "k", func(storage.Change) {}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}
