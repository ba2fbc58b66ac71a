// Package memory provides an in-process implementation of the cache
// persistent store, used in tests and single-node runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prismworks/prism/domain/cache"
)

// Store is an in-memory implementation of cache.Store.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*cache.Entry
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*cache.Entry)}
}

// LoadRecent returns up to limit entries accessed within maxAge,
// most-recently-accessed first.
func (s *Store) LoadRecent(ctx context.Context, limit int, maxAge time.Duration) ([]*cache.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-maxAge)
	var out []*cache.Entry
	for _, entry := range s.entries {
		if entry.LastAccessedAt.After(cutoff) {
			out = append(out, entry.Clone())
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastAccessedAt.After(out[j].LastAccessedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Upsert writes an entry, replacing any previous entry with the same key.
func (s *Store) Upsert(ctx context.Context, entry *cache.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry.Key == "" {
		return cache.ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Key] = entry.Clone()
	return nil
}

// Delete removes the entry with the given key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Size returns the number of stored entries.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Get returns the stored entry for key, if any. Test helper.
func (s *Store) Get(key string) (*cache.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return entry.Clone(), true
}

var _ cache.Store = (*Store)(nil)
