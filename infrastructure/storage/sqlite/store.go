// Package sqlite provides a SQLite-backed persistent store for cache
// entries, a zero-ops option for local and single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/prismworks/prism/domain/cache"
)

// Config configures the SQLite store.
type Config struct {
	// DSN is the data source name (e.g., "file:prism.db?cache=shared&mode=rwc").
	DSN string

	// MaxOpenConns caps open connections. SQLite writers serialize, so
	// a small value is usually right.
	MaxOpenConns int

	// BusyTimeout sets the busy timeout in milliseconds.
	BusyTimeout int
}

// Option configures the SQLite store.
type Option func(*Config)

// WithDSN sets the data source name.
func WithDSN(dsn string) Option {
	return func(c *Config) {
		c.DSN = dsn
	}
}

// WithMaxOpenConns caps the number of open connections.
func WithMaxOpenConns(n int) Option {
	return func(c *Config) {
		c.MaxOpenConns = n
	}
}

// WithBusyTimeout sets the busy timeout in milliseconds.
func WithBusyTimeout(ms int) Option {
	return func(c *Config) {
		c.BusyTimeout = ms
	}
}

// Store is a SQLite-backed implementation of cache.Store.
type Store struct {
	db *sql.DB
}

// NewStore opens the SQLite database and returns a store over it.
func NewStore(cfg Config, opts ...Option) (*Store, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.DSN == "" {
		return nil, fmt.Errorf("sqlite: DSN is required")
	}

	dsn := cfg.DSN
	if cfg.BusyTimeout > 0 {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn = fmt.Sprintf("%s%s_busy_timeout=%d", dsn, sep, cfg.BusyTimeout)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Join(cache.ErrConnectionFailed, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the cache_entries table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS cache_entries (
			key                  TEXT PRIMARY KEY,
			value                BLOB NOT NULL,
			category             TEXT NOT NULL,
			created_at           TIMESTAMP NOT NULL,
			last_accessed_at     TIMESTAMP NOT NULL,
			access_count         INTEGER NOT NULL DEFAULT 0,
			semantic_fingerprint TEXT NOT NULL DEFAULT '',
			context_fingerprint  TEXT NOT NULL DEFAULT '',
			ttl_ns               INTEGER NOT NULL DEFAULT 0,
			confidence           REAL NOT NULL DEFAULT 1.0,
			file_path            TEXT NOT NULL DEFAULT '',
			language             TEXT NOT NULL DEFAULT '',
			metadata             TEXT
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return s.wrapError(err)
	}

	index := `CREATE INDEX IF NOT EXISTS cache_entries_last_accessed_idx
		ON cache_entries (last_accessed_at DESC)`
	if _, err := s.db.ExecContext(ctx, index); err != nil {
		return s.wrapError(err)
	}

	return nil
}

// LoadRecent returns up to limit entries accessed within maxAge,
// most-recently-accessed first.
func (s *Store) LoadRecent(ctx context.Context, limit int, maxAge time.Duration) ([]*cache.Entry, error) {
	query := `
		SELECT key, value, category, created_at, last_accessed_at, access_count,
			semantic_fingerprint, context_fingerprint, ttl_ns, confidence,
			file_path, language, metadata
		FROM cache_entries
		WHERE last_accessed_at > ?
		ORDER BY last_accessed_at DESC
		LIMIT ?
	`

	cutoff := time.Now().Add(-maxAge)

	rows, err := s.db.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, s.wrapError(err)
	}
	defer rows.Close()

	var entries []*cache.Entry
	for rows.Next() {
		var (
			e        cache.Entry
			category string
			ttlNs    int64
			metadata sql.NullString
		)

		err := rows.Scan(
			&e.Key,
			&e.Value,
			&category,
			&e.CreatedAt,
			&e.LastAccessedAt,
			&e.AccessCount,
			&e.SemanticFingerprint,
			&e.ContextFingerprint,
			&ttlNs,
			&e.Confidence,
			&e.FilePath,
			&e.Language,
			&metadata,
		)
		if err != nil {
			return nil, s.wrapError(err)
		}

		e.Category = cache.Category(category)
		e.TTL = time.Duration(ttlNs)

		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}

		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, s.wrapError(err)
	}

	return entries, nil
}

// Upsert writes an entry, replacing any previous entry with the same key.
func (s *Store) Upsert(ctx context.Context, entry *cache.Entry) error {
	if entry.Key == "" {
		return cache.ErrInvalidKey
	}

	var metadata any
	if len(entry.Metadata) > 0 {
		data, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		metadata = string(data)
	}

	query := `
		INSERT INTO cache_entries (key, value, category, created_at, last_accessed_at,
			access_count, semantic_fingerprint, context_fingerprint, ttl_ns,
			confidence, file_path, language, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			category = excluded.category,
			created_at = excluded.created_at,
			last_accessed_at = excluded.last_accessed_at,
			access_count = excluded.access_count,
			semantic_fingerprint = excluded.semantic_fingerprint,
			context_fingerprint = excluded.context_fingerprint,
			ttl_ns = excluded.ttl_ns,
			confidence = excluded.confidence,
			file_path = excluded.file_path,
			language = excluded.language,
			metadata = excluded.metadata
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.Key,
		entry.Value,
		string(entry.Category),
		entry.CreatedAt,
		entry.LastAccessedAt,
		entry.AccessCount,
		entry.SemanticFingerprint,
		entry.ContextFingerprint,
		int64(entry.TTL),
		entry.Confidence,
		entry.FilePath,
		entry.Language,
		metadata,
	)
	return s.wrapError(err)
}

// Delete removes the entry with the given key. Deleting an absent key
// is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
	return s.wrapError(err)
}

// wrapError wraps database errors with domain errors.
func (s *Store) wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(cache.ErrOperationTimeout, err)
	}
	return errors.Join(cache.ErrConnectionFailed, err)
}

var _ cache.Store = (*Store)(nil)
