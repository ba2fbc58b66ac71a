package cache

import (
	"context"
	"time"
)

// Store is the persistent-store boundary behind the in-memory cache.
// Implementations may be PostgreSQL, Redis, Weaviate, or in-process.
//
// Upsert must be idempotent keyed by Entry.Key. LoadRecent must return
// entries ordered most-recently-accessed first.
type Store interface {
	// LoadRecent returns up to limit entries accessed within maxAge,
	// most-recently-accessed first.
	LoadRecent(ctx context.Context, limit int, maxAge time.Duration) ([]*Entry, error)

	// Upsert writes an entry, replacing any previous entry with the same key.
	Upsert(ctx context.Context, entry *Entry) error

	// Delete removes the entry with the given key. Deleting a missing key
	// is not an error.
	Delete(ctx context.Context, key string) error
}
