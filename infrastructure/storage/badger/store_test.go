package badger_test

import (
	"context"
	"testing"
	"time"

	"github.com/prismworks/prism/domain/cache"
	"github.com/prismworks/prism/infrastructure/storage/badger"
)

func newTestStore(t *testing.T) *badger.Store {
	t.Helper()

	store, err := badger.NewStore(badger.Config{}, badger.WithInMemory(true))
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close error: %v", err)
		}
	})
	return store
}

func entryAccessedAt(key string, at time.Time) *cache.Entry {
	return &cache.Entry{
		Key:            key,
		Value:          []byte("v-" + key),
		Category:       cache.CategoryAnalysis,
		CreatedAt:      at,
		LastAccessedAt: at,
	}
}

func TestStore_RequiresDir(t *testing.T) {
	t.Parallel()

	if _, err := badger.NewStore(badger.Config{}); err == nil {
		t.Fatal("expected error when neither Dir nor InMemory is set")
	}
}

func TestStore_UpsertAndLoadRecent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for i, key := range []string{"a", "b", "c"} {
		entry := entryAccessedAt(key, now.Add(-time.Duration(i)*time.Minute))
		if err := store.Upsert(ctx, entry); err != nil {
			t.Fatalf("Upsert(%q) error: %v", key, err)
		}
	}

	entries, err := store.LoadRecent(ctx, 10, time.Hour)
	if err != nil {
		t.Fatalf("LoadRecent error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range []string{"a", "b", "c"} {
		if entries[i].Key != want {
			t.Errorf("entries[%d].Key = %q, want %q", i, entries[i].Key, want)
		}
	}
}

func TestStore_LoadRecentLimitAndMaxAge(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.Upsert(ctx, entryAccessedAt("fresh", now)); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
	if err := store.Upsert(ctx, entryAccessedAt("recent", now.Add(-time.Minute))); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
	if err := store.Upsert(ctx, entryAccessedAt("ancient", now.Add(-48*time.Hour))); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}

	entries, err := store.LoadRecent(ctx, 1, time.Hour)
	if err != nil {
		t.Fatalf("LoadRecent error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Key != "fresh" {
		t.Errorf("entries[0].Key = %q, want %q", entries[0].Key, "fresh")
	}
}

func TestStore_UpsertReplaces(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	entry := entryAccessedAt("k", now)
	if err := store.Upsert(ctx, entry); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}

	entry.Value = []byte("updated")
	entry.AccessCount = 5
	if err := store.Upsert(ctx, entry); err != nil {
		t.Fatalf("second Upsert error: %v", err)
	}

	entries, err := store.LoadRecent(ctx, 10, time.Hour)
	if err != nil {
		t.Fatalf("LoadRecent error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if string(entries[0].Value) != "updated" {
		t.Errorf("Value = %q, want %q", entries[0].Value, "updated")
	}
	if entries[0].AccessCount != 5 {
		t.Errorf("AccessCount = %d, want 5", entries[0].AccessCount)
	}
}

func TestStore_UpsertEmptyKey(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	err := store.Upsert(context.Background(), &cache.Entry{})
	if err != cache.ErrInvalidKey {
		t.Errorf("Upsert error = %v, want %v", err, cache.ErrInvalidKey)
	}
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, entryAccessedAt("gone", time.Now())); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
	if err := store.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := store.Delete(ctx, "missing"); err != nil {
		t.Fatalf("Delete of missing key error: %v", err)
	}

	entries, err := store.LoadRecent(ctx, 10, time.Hour)
	if err != nil {
		t.Fatalf("LoadRecent error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected 0 entries after delete, got %d", len(entries))
	}
}

func TestStore_Persistence(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	store, err := badger.NewStore(badger.Config{Dir: dir})
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	if err := store.Upsert(ctx, entryAccessedAt("durable", time.Now())); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	reopened, err := badger.NewStore(badger.Config{Dir: dir})
	if err != nil {
		t.Fatalf("reopen NewStore error: %v", err)
	}
	defer reopened.Close()

	entries, err := reopened.LoadRecent(ctx, 10, time.Hour)
	if err != nil {
		t.Fatalf("LoadRecent error: %v", err)
	}
	if len(entries) != 1 || entries[0].Key != "durable" {
		t.Fatalf("expected the persisted entry, got %v", entries)
	}
}
