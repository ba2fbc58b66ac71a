// Package caching implements the intelligent response cache: an in-memory
// entry map with semantic and context secondary indexes, a four-stage lookup
// cascade, LRU eviction, a maintenance optimizer, and an asynchronous
// write-through to a persistent store.
package caching

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"github.com/prismworks/prism/domain/cache"
	"github.com/prismworks/prism/infrastructure/logging"
	"github.com/prismworks/prism/infrastructure/telemetry"
)

// Config configures the intelligent cache.
type Config struct {
	// MaxEntries caps the number of live entries.
	MaxEntries int
	// MaxBytes caps the estimated memory footprint.
	MaxBytes int64

	// Categories holds the per-category retention budgets. The optimizer
	// adjusts these TTLs over time.
	Categories map[cache.Category]cache.CategoryConfig

	// Weights configures similarity scoring.
	Weights cache.SimilarityWeights

	// SimilarityFloor is the minimum score for SimilarEntries results.
	SimilarityFloor float64
	// ContextKeyGate is the minimum key similarity for a context-stage hit.
	ContextKeyGate float64
	// PredictiveGate is the minimum similarity for a predictive-stage hit.
	PredictiveGate float64
	// PredictiveMinConfidence excludes low-confidence entries from
	// predictive reuse.
	PredictiveMinConfidence float64

	// LoadLimit and LoadWindow bound hydration from the persistent store.
	LoadLimit  int
	LoadWindow time.Duration
	// FlushLimit and FlushWindow bound the shutdown write-back.
	FlushLimit  int
	FlushWindow time.Duration
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxEntries:              10000,
		MaxBytes:                100 * 1024 * 1024,
		Categories:              cache.DefaultCategoryConfigs(),
		Weights:                 cache.DefaultSimilarityWeights(),
		SimilarityFloor:         0.3,
		ContextKeyGate:          0.5,
		PredictiveGate:          0.8,
		PredictiveMinConfidence: 0.7,
		LoadLimit:               1000,
		LoadWindow:              24 * time.Hour,
		FlushLimit:              1000,
		FlushWindow:             time.Hour,
	}
}

// SetOptions carries the optional context attached to a cached entry.
type SetOptions struct {
	// Context is free-form request context used for fingerprinting.
	Context map[string]any
	// Confidence is the caller's confidence in the value, in [0,1].
	// Zero means the default of 1.0.
	Confidence float64
	// FilePath and Language are optional similarity signals.
	FilePath string
	Language string
	// Metadata is free-form annotation, persisted with the entry.
	Metadata map[string]string
}

// IntelligentCache owns the live entry map plus the semantic and context
// indexes, and implements the lookup cascade.
type IntelligentCache struct {
	mu      sync.Mutex
	entries map[string]*cache.Entry
	// semanticIndex and contextIndex map fingerprints to the keys of the
	// live entries carrying them. Every live entry appears in exactly one
	// bucket of each; removal deletes empty buckets.
	semanticIndex map[string][]string
	contextIndex  map[string][]string

	cfg         Config
	memoryBytes int64

	store      cache.Store
	writes     sync.WaitGroup
	writeRetry retry.Retry[struct{}]

	now     func() time.Time
	metrics telemetry.Metrics

	stats stats
}

// Option configures the cache.
type Option func(*IntelligentCache)

// WithStore attaches a persistent store for hydration and write-through.
func WithStore(s cache.Store) Option {
	return func(c *IntelligentCache) {
		c.store = s
	}
}

// WithClock overrides the time source. Used by tests to advance time.
func WithClock(now func() time.Time) Option {
	return func(c *IntelligentCache) {
		c.now = now
	}
}

// WithMetrics attaches a metrics recorder for lookup outcomes, evictions,
// and the live entry gauge.
func WithMetrics(m telemetry.Metrics) Option {
	return func(c *IntelligentCache) {
		c.metrics = m
	}
}

// New creates an intelligent cache.
func New(cfg Config, opts ...Option) *IntelligentCache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultConfig().MaxEntries
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultConfig().MaxBytes
	}
	if cfg.Categories == nil {
		cfg.Categories = cache.DefaultCategoryConfigs()
	}
	zero := cache.SimilarityWeights{}
	if cfg.Weights == zero {
		cfg.Weights = cache.DefaultSimilarityWeights()
	}
	if cfg.SimilarityFloor == 0 {
		cfg.SimilarityFloor = 0.3
	}
	if cfg.ContextKeyGate == 0 {
		cfg.ContextKeyGate = 0.5
	}
	if cfg.PredictiveGate == 0 {
		cfg.PredictiveGate = 0.8
	}
	if cfg.PredictiveMinConfidence == 0 {
		cfg.PredictiveMinConfidence = 0.7
	}
	if cfg.LoadLimit == 0 {
		cfg.LoadLimit = 1000
	}
	if cfg.LoadWindow == 0 {
		cfg.LoadWindow = 24 * time.Hour
	}
	if cfg.FlushLimit == 0 {
		cfg.FlushLimit = 1000
	}
	if cfg.FlushWindow == 0 {
		cfg.FlushWindow = time.Hour
	}

	c := &IntelligentCache{
		entries:       make(map[string]*cache.Entry),
		semanticIndex: make(map[string][]string),
		contextIndex:  make(map[string][]string),
		cfg:           cfg,
		now:           time.Now,
		metrics:       &telemetry.NoopMetricsProvider{},
		writeRetry: retry.New[struct{}](retry.Config{
			MaxAttempts:   3,
			InitialDelay:  100 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    2.0,
		}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get looks up a cached value through the four-stage cascade: exact match,
// semantic lookup, context lookup, predictive lookup. The first stage that
// produces a valid, category-matching entry wins.
func (c *IntelligentCache) Get(ctx context.Context, key string, category cache.Category, reqContext map[string]any) ([]byte, bool) {
	start := time.Now()
	value, stage, expired := c.lookup(key, category, reqContext)
	elapsed := time.Since(start)

	c.metrics.RecordCacheLookupDuration(ctx, elapsed, stage != "")
	if expired > 0 {
		c.metrics.RecordCacheEviction(ctx, int64(expired), "expired")
		c.metrics.RecordCacheSize(ctx, -int64(expired))
	}
	if stage == "" {
		c.metrics.RecordCacheMiss(ctx, string(category))
		return nil, false
	}
	c.metrics.RecordCacheHit(ctx, stage, string(category))
	return value, true
}

// lookup runs the cascade under the lock, returning the winning stage name
// ("" on a miss) and the number of expired entries dropped along the way.
func (c *IntelligentCache) lookup(key string, category cache.Category, reqContext map[string]any) ([]byte, string, int) {
	start := time.Now()

	c.mu.Lock()
	defer func() {
		c.stats.recordResponseTime(time.Since(start))
		c.mu.Unlock()
	}()
	c.stats.requests++

	now := c.now()
	expired := 0

	// Stage 1: exact match. An expired entry under the key is removed so
	// stale data is never returned.
	if entry, ok := c.entries[key]; ok {
		if entry.Valid(now) {
			entry.Touch(now)
			c.stats.exactHits++
			return copyValue(entry.Value), "exact", expired
		}
		c.removeLocked(key)
		expired++
	}

	// Stage 2: semantic lookup via the fingerprint bucket.
	semanticFP := cache.SemanticFingerprint(key, reqContext, "")
	if value, ok := c.semanticLookupLocked(semanticFP, category, now); ok {
		c.stats.semanticHits++
		return value, "semantic", expired
	}

	// Stage 3: context lookup. Bucket membership is a weak signal, so
	// candidates must also clear the key-similarity gate.
	contextFP := cache.ContextFingerprint(reqContext, "", "")
	if value, ok := c.contextLookupLocked(contextFP, key, category, now); ok {
		c.stats.contextHits++
		return value, "context", expired
	}

	// Stage 4: predictive lookup. Lowest precision, gated high.
	if value, ok := c.predictiveLookupLocked(key, category, reqContext, now); ok {
		c.stats.predictiveHits++
		return value, "predictive", expired
	}

	c.stats.misses++
	return nil, "", expired
}

// semanticLookupLocked scans the semantic bucket for the first valid entry of
// the matching category.
func (c *IntelligentCache) semanticLookupLocked(fingerprint string, category cache.Category, now time.Time) ([]byte, bool) {
	for _, candidateKey := range c.semanticIndex[fingerprint] {
		entry, ok := c.entries[candidateKey]
		if !ok || entry.Category != category || !entry.Valid(now) {
			continue
		}
		entry.Touch(now)
		return copyValue(entry.Value), true
	}
	return nil, false
}

// contextLookupLocked scans the context bucket, accepting a candidate only
// when its key clears the similarity gate.
func (c *IntelligentCache) contextLookupLocked(fingerprint, key string, category cache.Category, now time.Time) ([]byte, bool) {
	for _, candidateKey := range c.contextIndex[fingerprint] {
		entry, ok := c.entries[candidateKey]
		if !ok || entry.Category != category || !entry.Valid(now) {
			continue
		}
		if cache.KeySimilarity(key, entry.Key) <= c.cfg.ContextKeyGate {
			continue
		}
		entry.Touch(now)
		return copyValue(entry.Value), true
	}
	return nil, false
}

// predictiveLookupLocked runs the similarity search with a small result cap
// and accepts only a high-scoring, high-confidence best match.
func (c *IntelligentCache) predictiveLookupLocked(key string, category cache.Category, reqContext map[string]any, now time.Time) ([]byte, bool) {
	matches := c.similarLocked(key, category, reqContext, 3, now)
	for _, m := range matches {
		if m.Score <= c.cfg.PredictiveGate {
			break // sorted descending; nothing further can clear the gate
		}
		entry, ok := c.entries[m.Key]
		if !ok || entry.Confidence < c.cfg.PredictiveMinConfidence {
			continue
		}
		entry.Touch(now)
		return copyValue(entry.Value), true
	}
	return nil, false
}

// Set stores a value under the given key and category. Capacity is enforced
// before insertion; a write-through to the persistent store is scheduled
// asynchronously and its failure never surfaces to the caller.
func (c *IntelligentCache) Set(ctx context.Context, key string, value []byte, category cache.Category, opts SetOptions) error {
	if key == "" {
		return cache.ErrInvalidKey
	}
	if !category.Valid() {
		return cache.ErrInvalidCategory
	}

	confidence := opts.Confidence
	if confidence == 0 {
		confidence = 1.0
	}

	c.mu.Lock()
	now := c.now()
	sizeBefore := len(c.entries)

	// Replacing a key frees its slot first, so a replacement at capacity
	// never evicts an unrelated entry.
	if prev, ok := c.entries[key]; ok {
		c.memoryBytes -= prev.EstimatedSize()
		c.removeLocked(key)
	}
	evicted := c.enforceCapacityLocked()

	entry := &cache.Entry{
		Key:                 key,
		Value:               copyValue(value),
		Category:            category,
		CreatedAt:           now,
		LastAccessedAt:      now,
		SemanticFingerprint: cache.SemanticFingerprint(key, opts.Context, ""),
		ContextFingerprint:  cache.ContextFingerprint(opts.Context, opts.FilePath, opts.Language),
		TTL:                 c.categoryTTLLocked(category),
		Confidence:          confidence,
		FilePath:            opts.FilePath,
		Language:            opts.Language,
		Metadata:            opts.Metadata,
	}

	c.insertLocked(entry)
	c.recomputeMemoryLocked()
	sizeDelta := len(c.entries) - sizeBefore

	var snapshot *cache.Entry
	if c.store != nil {
		snapshot = entry.Clone()
	}
	c.mu.Unlock()

	if evicted > 0 {
		c.metrics.RecordCacheEviction(ctx, int64(evicted), "capacity")
	}
	if sizeDelta != 0 {
		c.metrics.RecordCacheSize(ctx, int64(sizeDelta))
	}
	if snapshot != nil {
		c.scheduleWriteThrough(snapshot)
	}
	return nil
}

// InvalidatePattern removes every entry whose key or file path contains the
// substring, optionally restricted to one category (empty = all categories).
// Returns the number of entries removed.
func (c *IntelligentCache) InvalidatePattern(ctx context.Context, substring string, category cache.Category) int {
	c.mu.Lock()

	var victims []string
	for key, entry := range c.entries {
		if category != "" && entry.Category != category {
			continue
		}
		if strings.Contains(entry.Key, substring) || strings.Contains(entry.FilePath, substring) {
			victims = append(victims, key)
		}
	}
	for _, key := range victims {
		c.removeLocked(key)
	}
	if len(victims) > 0 {
		c.recomputeMemoryLocked()
	}
	c.mu.Unlock()

	if len(victims) > 0 {
		c.metrics.RecordCacheSize(ctx, -int64(len(victims)))
	}
	if c.store != nil {
		for _, key := range victims {
			c.scheduleDelete(key)
		}
	}
	return len(victims)
}

// Match is one similarity-search result.
type Match struct {
	Key   string
	Value []byte
	Score float64
}

// SimilarEntries scans all live entries of the category, scores each against
// the target key and context, and returns the top maxResults above the
// similarity floor, highest first. Access stats are not mutated.
func (c *IntelligentCache) SimilarEntries(key string, category cache.Category, reqContext map[string]any, maxResults int) []Match {
	if maxResults <= 0 {
		maxResults = 5
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.similarLocked(key, category, reqContext, maxResults, c.now())
}

func (c *IntelligentCache) similarLocked(key string, category cache.Category, reqContext map[string]any, maxResults int, now time.Time) []Match {
	target := &cache.Entry{
		Key:                 key,
		SemanticFingerprint: cache.SemanticFingerprint(key, reqContext, ""),
		ContextFingerprint:  cache.ContextFingerprint(reqContext, "", ""),
	}
	if lang, ok := reqContext["language"].(string); ok {
		target.Language = lang
	}

	var matches []Match
	for _, entry := range c.entries {
		if entry.Category != category || !entry.Valid(now) {
			continue
		}
		score := cache.Similarity(target, entry, c.cfg.Weights)
		if score > c.cfg.SimilarityFloor {
			matches = append(matches, Match{
				Key:   entry.Key,
				Value: copyValue(entry.Value),
				Score: score,
			})
		}
	}

	// Insertion sort keeps only the head we need; candidate lists are small.
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].Score > matches[j-1].Score; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}
	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches
}

// Size returns the current number of live entries.
func (c *IntelligentCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// insertLocked adds the entry to the primary map and both indexes.
func (c *IntelligentCache) insertLocked(entry *cache.Entry) {
	c.entries[entry.Key] = entry
	c.semanticIndex[entry.SemanticFingerprint] = append(c.semanticIndex[entry.SemanticFingerprint], entry.Key)
	c.contextIndex[entry.ContextFingerprint] = append(c.contextIndex[entry.ContextFingerprint], entry.Key)
}

// removeLocked deletes the entry from the primary map and both indexes,
// dropping emptied buckets.
func (c *IntelligentCache) removeLocked(key string) {
	entry, ok := c.entries[key]
	if !ok {
		return
	}
	delete(c.entries, key)
	c.removeFromBucketLocked(c.semanticIndex, entry.SemanticFingerprint, key)
	c.removeFromBucketLocked(c.contextIndex, entry.ContextFingerprint, key)
}

func (c *IntelligentCache) removeFromBucketLocked(index map[string][]string, fingerprint, key string) {
	bucket := index[fingerprint]
	for i, k := range bucket {
		if k == key {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(index, fingerprint)
	} else {
		index[fingerprint] = bucket
	}
}

// enforceCapacityLocked evicts least-recently-used entries (ties keep the
// higher access count) while the entry count or memory footprint is at its
// cap, returning the number evicted. O(n) per eviction, acceptable at the
// cache's target scale.
func (c *IntelligentCache) enforceCapacityLocked() int {
	evicted := 0
	for len(c.entries) >= c.cfg.MaxEntries || c.memoryBytes > c.cfg.MaxBytes {
		victim := c.evictionVictimLocked()
		if victim == nil {
			break
		}
		c.memoryBytes -= victim.EstimatedSize()
		c.removeLocked(victim.Key)
		c.stats.evictions++
		evicted++
		logging.Debug().
			Add(logging.CacheKey(victim.Key)).
			Add(logging.Category(string(victim.Category))).
			Msg("evicted cache entry")
	}
	return evicted
}

// evictionVictimLocked picks the entry with the oldest last access, breaking
// ties toward the lower access count.
func (c *IntelligentCache) evictionVictimLocked() *cache.Entry {
	var victim *cache.Entry
	for _, entry := range c.entries {
		if victim == nil {
			victim = entry
			continue
		}
		if entry.LastAccessedAt.Before(victim.LastAccessedAt) {
			victim = entry
		} else if entry.LastAccessedAt.Equal(victim.LastAccessedAt) && entry.AccessCount < victim.AccessCount {
			victim = entry
		}
	}
	return victim
}

// recomputeMemoryLocked recalculates the footprint as the sum of every live
// entry's estimated size.
func (c *IntelligentCache) recomputeMemoryLocked() {
	var total int64
	for _, entry := range c.entries {
		total += entry.EstimatedSize()
	}
	c.memoryBytes = total
}

func (c *IntelligentCache) categoryTTLLocked(category cache.Category) time.Duration {
	if cfg, ok := c.cfg.Categories[category]; ok && cfg.TTL > 0 {
		return cfg.TTL
	}
	return 30 * time.Minute
}

func copyValue(v []byte) []byte {
	out := make([]byte, len(v))
	copy(out, v)
	return out
}
