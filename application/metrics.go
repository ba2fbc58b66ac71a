package application

import (
	"sync"
	"time"
)

// routerMetrics accumulates aggregate routing counters.
type routerMetrics struct {
	mu sync.Mutex

	totalRequests int64
	cacheHits     int64
	totalLatency  time.Duration
	providerUsage map[string]int64
	modelUsage    map[string]int64
}

func (m *routerMetrics) recordCacheHit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalRequests++
	m.cacheHits++
}

func (m *routerMetrics) recordSuccess(backendName, model string, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalRequests++
	m.totalLatency += latency
	m.providerUsage[backendName]++
	m.modelUsage[model]++
}

// Metrics is a snapshot of aggregate routing counters.
type Metrics struct {
	TotalRequests int64
	CacheHits     int64
	AvgLatency    time.Duration
	ProviderUsage map[string]int64
	ModelUsage    map[string]int64
}

// Metrics returns a snapshot of the router's aggregate counters.
func (r *Router) Metrics() Metrics {
	r.metrics.mu.Lock()
	defer r.metrics.mu.Unlock()

	snap := Metrics{
		TotalRequests: r.metrics.totalRequests,
		CacheHits:     r.metrics.cacheHits,
		ProviderUsage: make(map[string]int64, len(r.metrics.providerUsage)),
		ModelUsage:    make(map[string]int64, len(r.metrics.modelUsage)),
	}

	routed := r.metrics.totalRequests - r.metrics.cacheHits
	if routed > 0 {
		snap.AvgLatency = r.metrics.totalLatency / time.Duration(routed)
	}
	for k, v := range r.metrics.providerUsage {
		snap.ProviderUsage[k] = v
	}
	for k, v := range r.metrics.modelUsage {
		snap.ModelUsage[k] = v
	}
	return snap
}
