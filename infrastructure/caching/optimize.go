package caching

import (
	"context"
	"fmt"
	"time"

	"github.com/prismworks/prism/domain/cache"
	"github.com/prismworks/prism/infrastructure/logging"
)

// Optimizer sweep thresholds.
const (
	underusedMaxAccess = 3
	underusedMinAge    = 24 * time.Hour

	hotFrequency  = 10.0
	coldFrequency = 2.0

	ttlGrowFactor   = 1.2
	ttlShrinkFactor = 0.8

	minCategoryTTL = time.Minute
	maxCategoryTTL = 24 * time.Hour
)

// Report summarizes one maintenance pass.
type Report struct {
	// EntriesOptimized is the number of underused entries evicted.
	EntriesOptimized int
	// BytesFreed estimates the memory released by the sweep.
	BytesFreed int64
	// TTLAdjustments records the new TTL for each adjusted category.
	TTLAdjustments map[cache.Category]time.Duration
	// Recommendations are human-readable operational hints.
	Recommendations []string
}

// Optimize runs a maintenance pass: evict underused entries, adapt category
// TTLs to observed access frequency, and emit recommendations when hit rate
// or memory pressure is unhealthy.
func (c *IntelligentCache) Optimize() Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	report := Report{TTLAdjustments: make(map[cache.Category]time.Duration)}

	// Sweep entries accessed fewer than underusedMaxAccess times and older
	// than underusedMinAge.
	var victims []string
	for key, entry := range c.entries {
		if entry.AccessCount < underusedMaxAccess && now.Sub(entry.CreatedAt) > underusedMinAge {
			victims = append(victims, key)
			report.BytesFreed += entry.EstimatedSize()
		}
	}
	for _, key := range victims {
		c.removeLocked(key)
		c.stats.evictions++
	}
	report.EntriesOptimized = len(victims)
	if len(victims) > 0 {
		c.recomputeMemoryLocked()
		c.metrics.RecordCacheEviction(context.Background(), int64(len(victims)), "underused")
		c.metrics.RecordCacheSize(context.Background(), -int64(len(victims)))
	}

	// Adapt category TTLs: hot categories are retained longer, cold ones
	// expire sooner.
	type catStats struct {
		entries  int
		accesses int64
	}
	perCategory := make(map[cache.Category]*catStats)
	for _, entry := range c.entries {
		cs, ok := perCategory[entry.Category]
		if !ok {
			cs = &catStats{}
			perCategory[entry.Category] = cs
		}
		cs.entries++
		cs.accesses += entry.AccessCount
	}

	for category, cs := range perCategory {
		cfg, ok := c.cfg.Categories[category]
		if !ok || cs.entries == 0 {
			continue
		}
		frequency := float64(cs.accesses) / float64(cs.entries)

		var adjusted time.Duration
		switch {
		case frequency > hotFrequency:
			adjusted = time.Duration(float64(cfg.TTL) * ttlGrowFactor)
		case frequency < coldFrequency:
			adjusted = time.Duration(float64(cfg.TTL) * ttlShrinkFactor)
		default:
			continue
		}
		if adjusted < minCategoryTTL {
			adjusted = minCategoryTTL
		}
		if adjusted > maxCategoryTTL {
			adjusted = maxCategoryTTL
		}
		if adjusted == cfg.TTL {
			continue
		}
		cfg.TTL = adjusted
		c.cfg.Categories[category] = cfg
		report.TTLAdjustments[category] = adjusted
	}

	// Recommendations for unhealthy hit rate or memory pressure.
	if c.stats.requests > 0 {
		hits := c.stats.exactHits + c.stats.semanticHits + c.stats.contextHits + c.stats.predictiveHits
		hitRate := float64(hits) / float64(c.stats.requests)
		if hitRate < 0.6 {
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("hit rate %.0f%% is below 60%%: consider longer TTLs or reviewing key construction", hitRate*100))
		}
	}
	if c.cfg.MaxBytes > 0 && float64(c.memoryBytes) > 0.9*float64(c.cfg.MaxBytes) {
		report.Recommendations = append(report.Recommendations,
			"memory usage exceeds 90% of the configured cap: consider raising the cap or lowering TTLs")
	}

	logging.Debug().
		Add(logging.Int("entries_optimized", report.EntriesOptimized)).
		Add(logging.Int64("bytes_freed", report.BytesFreed)).
		Msg("cache optimization pass complete")
	return report
}
