package caching

import (
	"time"

	"github.com/prismworks/prism/domain/cache"
)

// stats accumulates lookup counters. Guarded by IntelligentCache.mu.
type stats struct {
	requests       int64
	exactHits      int64
	semanticHits   int64
	contextHits    int64
	predictiveHits int64
	misses         int64
	evictions      int64

	avgResponse time.Duration
}

// recordResponseTime folds a sample into the running average:
// avg = (avg*(n-1) + sample) / n.
func (s *stats) recordResponseTime(sample time.Duration) {
	if s.requests <= 0 {
		return
	}
	n := s.requests
	s.avgResponse = time.Duration((int64(s.avgResponse)*(n-1) + int64(sample)) / n)
}

// Snapshot is a point-in-time view of cache health.
type Snapshot struct {
	Requests       int64
	ExactHits      int64
	SemanticHits   int64
	ContextHits    int64
	PredictiveHits int64
	Misses         int64
	Evictions      int64

	// Rates are fractions of total requests; zero when no requests yet.
	HitRate         float64
	SemanticHitRate float64
	MissRate        float64
	EvictionRate    float64

	Entries     int
	MemoryBytes int64
	AvgResponse time.Duration

	// ByCategory breaks down live entry counts per category.
	ByCategory map[cache.Category]int
}

// Metrics returns a snapshot of the cache's counters and rates.
func (c *IntelligentCache) Metrics() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Requests:       c.stats.requests,
		ExactHits:      c.stats.exactHits,
		SemanticHits:   c.stats.semanticHits,
		ContextHits:    c.stats.contextHits,
		PredictiveHits: c.stats.predictiveHits,
		Misses:         c.stats.misses,
		Evictions:      c.stats.evictions,
		Entries:        len(c.entries),
		MemoryBytes:    c.memoryBytes,
		AvgResponse:    c.stats.avgResponse,
		ByCategory:     make(map[cache.Category]int),
	}

	if c.stats.requests > 0 {
		total := float64(c.stats.requests)
		hits := c.stats.exactHits + c.stats.semanticHits + c.stats.contextHits + c.stats.predictiveHits
		snap.HitRate = float64(hits) / total
		snap.SemanticHitRate = float64(c.stats.semanticHits) / total
		snap.MissRate = float64(c.stats.misses) / total
		snap.EvictionRate = float64(c.stats.evictions) / total
	}

	for _, entry := range c.entries {
		snap.ByCategory[entry.Category]++
	}
	return snap
}
