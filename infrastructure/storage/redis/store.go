package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/prismworks/prism/domain/cache"
)

// Store is a Redis-backed implementation of cache.Store. Entries are
// serialized as JSON under per-key values, and a sorted set scored by
// last access time supports recency-ordered loads.
type Store struct {
	client    *redis.Client
	keyPrefix string
}

// NewStore creates a new Redis cache store with the given configuration.
func NewStore(cfg Config, opts ...ConfigOption) (*Store, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Join(cache.ErrConnectionFailed, err)
	}

	return &Store{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// NewStoreFromClient creates a store from an existing Redis client.
func NewStoreFromClient(client *redis.Client, keyPrefix string) *Store {
	return &Store{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (s *Store) entryKey(key string) string {
	return s.keyPrefix + "entry:" + key
}

func (s *Store) recencyKey() string {
	return s.keyPrefix + "recency"
}

// LoadRecent returns up to limit entries accessed within maxAge,
// most-recently-accessed first.
func (s *Store) LoadRecent(ctx context.Context, limit int, maxAge time.Duration) ([]*cache.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-maxAge).UnixNano()

	keys, err := s.client.ZRevRangeByScore(ctx, s.recencyKey(), &redis.ZRangeBy{
		Min:   strconv.FormatInt(cutoff, 10),
		Max:   "+inf",
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, s.wrapError(err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	entryKeys := make([]string, len(keys))
	for i, k := range keys {
		entryKeys[i] = s.entryKey(k)
	}

	values, err := s.client.MGet(ctx, entryKeys...).Result()
	if err != nil {
		return nil, s.wrapError(err)
	}

	var entries []*cache.Entry
	for _, v := range values {
		// Entries can expire between the ZRANGE and the MGET.
		raw, ok := v.(string)
		if !ok {
			continue
		}

		var e cache.Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("unmarshal entry: %w", err)
		}
		entries = append(entries, &e)
	}

	return entries, nil
}

// Upsert writes an entry, replacing any previous entry with the same key.
func (s *Store) Upsert(ctx context.Context, entry *cache.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry.Key == "" {
		return cache.ErrInvalidKey
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	var expiration time.Duration
	if entry.TTL > 0 {
		expiration = entry.TTL
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.entryKey(entry.Key), raw, expiration)
	pipe.ZAdd(ctx, s.recencyKey(), redis.Z{
		Score:  float64(entry.LastAccessedAt.UnixNano()),
		Member: entry.Key,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return s.wrapError(err)
	}

	return nil
}

// Delete removes the entry with the given key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.entryKey(key))
	pipe.ZRem(ctx, s.recencyKey(), key)

	if _, err := pipe.Exec(ctx); err != nil {
		return s.wrapError(err)
	}

	return nil
}

// Ping checks the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// wrapError wraps Redis errors with domain errors.
func (s *Store) wrapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(cache.ErrOperationTimeout, err)
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.Join(cache.ErrOperationTimeout, err)
	}

	return errors.Join(cache.ErrConnectionFailed, err)
}

var _ cache.Store = (*Store)(nil)
