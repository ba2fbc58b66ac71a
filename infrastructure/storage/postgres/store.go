// Package postgres provides a PostgreSQL-backed persistent store for
// cache entries.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prismworks/prism/domain/cache"
)

// Store is a PostgreSQL-backed implementation of cache.Store.
type Store struct {
	pool   *pgxpool.Pool
	schema string
}

// NewStore creates a new PostgreSQL cache store.
func NewStore(pool *pgxpool.Pool, schema string) *Store {
	if schema == "" {
		schema = "public"
	}
	return &Store{
		pool:   pool,
		schema: schema,
	}
}

// tableName returns the fully qualified table name.
func (s *Store) tableName() string {
	return fmt.Sprintf("%s.cache_entries", s.schema)
}

// EnsureSchema creates the cache_entries table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key                  TEXT PRIMARY KEY,
			value                BYTEA NOT NULL,
			category             TEXT NOT NULL,
			created_at           TIMESTAMPTZ NOT NULL,
			last_accessed_at     TIMESTAMPTZ NOT NULL,
			access_count         BIGINT NOT NULL DEFAULT 0,
			semantic_fingerprint TEXT NOT NULL DEFAULT '',
			context_fingerprint  TEXT NOT NULL DEFAULT '',
			ttl_ns               BIGINT NOT NULL DEFAULT 0,
			confidence           DOUBLE PRECISION NOT NULL DEFAULT 1.0,
			file_path            TEXT NOT NULL DEFAULT '',
			language             TEXT NOT NULL DEFAULT '',
			metadata             JSONB
		)
	`, s.tableName())

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return s.wrapError(err)
	}

	index := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS cache_entries_last_accessed_idx ON %s (last_accessed_at DESC)`,
		s.tableName(),
	)
	if _, err := s.pool.Exec(ctx, index); err != nil {
		return s.wrapError(err)
	}

	return nil
}

// LoadRecent returns up to limit entries accessed within maxAge,
// most-recently-accessed first.
func (s *Store) LoadRecent(ctx context.Context, limit int, maxAge time.Duration) ([]*cache.Entry, error) {
	query := fmt.Sprintf(`
		SELECT key, value, category, created_at, last_accessed_at, access_count,
			semantic_fingerprint, context_fingerprint, ttl_ns, confidence,
			file_path, language, metadata
		FROM %s
		WHERE last_accessed_at > $1
		ORDER BY last_accessed_at DESC
		LIMIT $2
	`, s.tableName())

	cutoff := time.Now().Add(-maxAge)

	rows, err := s.pool.Query(ctx, query, cutoff, limit)
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
			metadata []byte
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

		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
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

	var metadata []byte
	if len(entry.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (key, value, category, created_at, last_accessed_at, access_count,
			semantic_fingerprint, context_fingerprint, ttl_ns, confidence,
			file_path, language, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			category = EXCLUDED.category,
			created_at = EXCLUDED.created_at,
			last_accessed_at = EXCLUDED.last_accessed_at,
			access_count = EXCLUDED.access_count,
			semantic_fingerprint = EXCLUDED.semantic_fingerprint,
			context_fingerprint = EXCLUDED.context_fingerprint,
			ttl_ns = EXCLUDED.ttl_ns,
			confidence = EXCLUDED.confidence,
			file_path = EXCLUDED.file_path,
			language = EXCLUDED.language,
			metadata = EXCLUDED.metadata
	`, s.tableName())

	_, err := s.pool.Exec(ctx, query,
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
	if err != nil {
		return s.wrapError(err)
	}

	return nil
}

// Delete removes the entry with the given key. Deleting an absent key
// is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, s.tableName())

	if _, err := s.pool.Exec(ctx, query, key); err != nil {
		return s.wrapError(err)
	}

	return nil
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
