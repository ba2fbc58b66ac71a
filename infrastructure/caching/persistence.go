package caching

import (
	"context"
	"sort"
	"time"

	"github.com/prismworks/prism/domain/cache"
	"github.com/prismworks/prism/infrastructure/logging"
)

// writeTimeout bounds each detached store write.
const writeTimeout = 10 * time.Second

// Load hydrates the cache from the persistent store: up to LoadLimit entries
// accessed within LoadWindow, most recent first. Both secondary indexes are
// rebuilt from the loaded entries. A load failure leaves the cache empty but
// operational.
func (c *IntelligentCache) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	entries, err := c.store.LoadRecent(ctx, c.cfg.LoadLimit, c.cfg.LoadWindow)
	if err != nil {
		logging.Warn().
			Add(logging.ErrorField(err)).
			Msg("cache hydration failed, starting empty")
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	loaded := 0
	for _, entry := range entries {
		if entry.Key == "" || !entry.Valid(now) {
			continue
		}
		if _, ok := c.entries[entry.Key]; ok {
			continue // LoadRecent is ordered; first occurrence is newest
		}
		c.insertLocked(entry)
		loaded++
	}
	c.recomputeMemoryLocked()

	if loaded > 0 {
		c.metrics.RecordCacheSize(ctx, int64(loaded))
	}
	logging.Info().
		Add(logging.Int("entries", loaded)).
		Msg("cache hydrated from store")
	return nil
}

// Flush writes recently-accessed entries back to the persistent store and
// waits for in-flight write-throughs to drain. Intended for shutdown.
func (c *IntelligentCache) Flush(ctx context.Context) error {
	c.writes.Wait()
	if c.store == nil {
		return nil
	}

	c.mu.Lock()
	now := c.now()
	cutoff := now.Add(-c.cfg.FlushWindow)
	var recent []*cache.Entry
	for _, entry := range c.entries {
		if entry.Valid(now) && entry.LastAccessedAt.After(cutoff) {
			recent = append(recent, entry.Clone())
		}
	}
	c.mu.Unlock()

	sort.Slice(recent, func(i, j int) bool {
		return recent[i].LastAccessedAt.After(recent[j].LastAccessedAt)
	})
	if len(recent) > c.cfg.FlushLimit {
		recent = recent[:c.cfg.FlushLimit]
	}

	var firstErr error
	for _, entry := range recent {
		if err := c.store.Upsert(ctx, entry); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			logging.Warn().
				Add(logging.CacheKey(entry.Key)).
				Add(logging.ErrorField(err)).
				Msg("cache flush write failed")
		}
	}
	return firstErr
}

// scheduleWriteThrough upserts the entry on a detached goroutine. Transient
// store failures are retried with backoff; a terminal failure is logged and
// never affects in-memory correctness, only durability.
func (c *IntelligentCache) scheduleWriteThrough(entry *cache.Entry) {
	c.writes.Add(1)
	go func() {
		defer c.writes.Done()

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		_, err := c.writeRetry.Do(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.store.Upsert(ctx, entry)
		})
		if err != nil {
			logging.Warn().
				Add(logging.CacheKey(entry.Key)).
				Add(logging.ErrorField(err)).
				Msg("cache write-through failed")
		}
	}()
}

// scheduleDelete removes the key from the persistent store on a detached
// goroutine.
func (c *IntelligentCache) scheduleDelete(key string) {
	c.writes.Add(1)
	go func() {
		defer c.writes.Done()

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		if err := c.store.Delete(ctx, key); err != nil {
			logging.Warn().
				Add(logging.CacheKey(key)).
				Add(logging.ErrorField(err)).
				Msg("cache store delete failed")
		}
	}()
}
