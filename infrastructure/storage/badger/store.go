// Package badger provides a BadgerDB-backed persistent store for cache
// entries, suited to single-node deployments that want durability
// without an external database.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/prismworks/prism/domain/cache"
)

// Config configures the BadgerDB store.
type Config struct {
	// Dir is the directory to store data in. Ignored when InMemory is set.
	Dir string

	// InMemory keeps all data in memory, useful for tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// KeyPrefix is added to all keys.
	KeyPrefix string
}

// Option configures the BadgerDB store.
type Option func(*Config)

// WithDir sets the data directory.
func WithDir(dir string) Option {
	return func(c *Config) {
		c.Dir = dir
	}
}

// WithInMemory enables in-memory mode.
func WithInMemory(inMemory bool) Option {
	return func(c *Config) {
		c.InMemory = inMemory
	}
}

// WithSyncWrites enables synchronous writes.
func WithSyncWrites(sync bool) Option {
	return func(c *Config) {
		c.SyncWrites = sync
	}
}

// WithKeyPrefix sets the key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(c *Config) {
		c.KeyPrefix = prefix
	}
}

// Store is a BadgerDB-backed implementation of cache.Store.
type Store struct {
	db     *badger.DB
	prefix string
}

// NewStore opens the BadgerDB database and returns a store over it.
func NewStore(cfg Config, opts ...Option) (*Store, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	if !cfg.InMemory && cfg.Dir == "" {
		return nil, fmt.Errorf("badger: directory is required")
	}

	badgerOpts := badger.DefaultOptions(cfg.Dir).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, errors.Join(cache.ErrConnectionFailed, err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "prism:"
	}

	return &Store{db: db, prefix: prefix}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) storageKey(key string) []byte {
	return []byte(s.prefix + key)
}

// LoadRecent returns up to limit entries accessed within maxAge,
// most-recently-accessed first. Badger has no secondary indexes, so
// this scans the prefix and sorts in memory.
func (s *Store) LoadRecent(ctx context.Context, limit int, maxAge time.Duration) ([]*cache.Entry, error) {
	cutoff := time.Now().Add(-maxAge)

	var entries []*cache.Entry
	err := s.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.Prefix = []byte(s.prefix)
		it := txn.NewIterator(itOpts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			err := it.Item().Value(func(val []byte) error {
				var e cache.Entry
				if err := json.Unmarshal(val, &e); err != nil {
					return fmt.Errorf("unmarshal entry: %w", err)
				}
				if e.LastAccessedAt.After(cutoff) {
					entries = append(entries, &e)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.wrapError(err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastAccessedAt.After(entries[j].LastAccessedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	return entries, nil
}

// Upsert writes an entry, replacing any previous entry with the same key.
func (s *Store) Upsert(ctx context.Context, entry *cache.Entry) error {
	if entry.Key == "" {
		return cache.ErrInvalidKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.storageKey(entry.Key), data)
	})
	return s.wrapError(err)
}

// Delete removes the entry with the given key. Deleting an absent key
// is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.storageKey(key))
	})
	return s.wrapError(err)
}

func (s *Store) wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(cache.ErrOperationTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return errors.Join(cache.ErrConnectionFailed, err)
}

var _ cache.Store = (*Store)(nil)
