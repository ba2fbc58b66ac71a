// Package application wires the routing core together: model selection over
// the capability catalog, and the router orchestrating cache, breakers, and
// backend calls.
package application

import (
	"sync"
	"time"

	"github.com/prismworks/prism/domain/backend"
	"github.com/prismworks/prism/infrastructure/logging"
)

// PerformanceRecord is the rolling lifetime performance of one backend+model
// pair. Simple means, no decay; reset only on process restart.
type PerformanceRecord struct {
	Requests     int64
	Successes    int64
	TotalLatency time.Duration
	SuccessRate  float64
	AvgLatency   time.Duration
}

// Selector scores and ranks candidate model specs for a request and keeps the
// rolling performance history feeding the scores.
type Selector struct {
	mu      sync.Mutex
	catalog []backend.ModelSpec
	perf    map[string]*PerformanceRecord
}

// NewSelector creates a selector over a fixed catalog. Catalog order breaks
// score ties, so the caller's ordering is the tiebreak preference.
func NewSelector(catalog []backend.ModelSpec) *Selector {
	return &Selector{
		catalog: append([]backend.ModelSpec(nil), catalog...),
		perf:    make(map[string]*PerformanceRecord),
	}
}

// Select picks the best model spec for the request among the available
// backends. Selection narrows in order: available backends, pinned model,
// tier, use case; the survivors are scored and the highest (first on ties)
// wins. Returns backend.ErrNoBackend when nothing survives the first filter.
func (s *Selector) Select(req backend.CompletionRequest, available []string) (backend.ModelSpec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	availableSet := make(map[string]struct{}, len(available))
	for _, name := range available {
		availableSet[name] = struct{}{}
	}

	var candidates []backend.ModelSpec
	for _, spec := range s.catalog {
		if _, ok := availableSet[spec.Backend]; ok {
			candidates = append(candidates, spec)
		}
	}
	if len(candidates) == 0 {
		return backend.ModelSpec{}, backend.ErrNoBackend
	}

	// A pinned model wins outright when present; otherwise fall through to
	// automatic selection.
	if req.Model != "" {
		for _, spec := range candidates {
			if spec.Model == req.Model {
				return spec, nil
			}
		}
		logging.Debug().
			Add(logging.Model(req.Model)).
			Msg("pinned model not available, falling back to automatic selection")
	}

	if req.Tier != "" {
		if narrowed := filterSpecs(candidates, func(spec backend.ModelSpec) bool {
			return spec.Tier == req.Tier
		}); len(narrowed) > 0 {
			candidates = narrowed
		}
	}

	if req.UseCase != "" {
		if narrowed := filterSpecs(candidates, func(spec backend.ModelSpec) bool {
			return spec.SupportsUseCase(req.UseCase)
		}); len(narrowed) > 0 {
			candidates = narrowed
		}
	}

	best := candidates[0]
	bestScore := s.scoreLocked(best, req)
	for _, spec := range candidates[1:] {
		if score := s.scoreLocked(spec, req); score > bestScore {
			best = spec
			bestScore = score
		}
	}

	logging.Debug().
		Add(logging.Backend(best.Backend)).
		Add(logging.Model(best.Model)).
		Add(logging.Score(bestScore)).
		Msg("model selected")
	return best, nil
}

// scoreLocked computes the selection score: catalog priority plus capability
// bonuses, a cost-efficiency bonus, and performance-history adjustments.
func (s *Selector) scoreLocked(spec backend.ModelSpec, req backend.CompletionRequest) float64 {
	score := float64(spec.Priority)

	if req.UseCase != "" && spec.SupportsUseCase(req.UseCase) {
		score += 20
	}
	if req.NeedsTools && spec.Capabilities.Tools {
		score += 10
	}
	if req.Stream && spec.Capabilities.Streaming {
		score += 5
	}

	score += (1.0 / (spec.Capabilities.CostPer1K + 0.001)) * 10

	if rec, ok := s.perf[perfKey(spec.Backend, spec.Model)]; ok && rec.Requests > 0 {
		score += rec.SuccessRate * 20
		score -= latencyPenalty(rec.AvgLatency)
	}

	return score
}

// latencyPenalty maps rolling average latency to a score penalty, capped
// at 10.
func latencyPenalty(avg time.Duration) float64 {
	penalty := avg.Seconds() * 2
	if penalty > 10 {
		penalty = 10
	}
	return penalty
}

// RecordPerformance folds one call outcome into the backend+model record.
func (s *Selector) RecordPerformance(backendName, model string, latency time.Duration, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := perfKey(backendName, model)
	rec, ok := s.perf[key]
	if !ok {
		rec = &PerformanceRecord{}
		s.perf[key] = rec
	}

	rec.Requests++
	if success {
		rec.Successes++
	}
	rec.TotalLatency += latency
	rec.SuccessRate = float64(rec.Successes) / float64(rec.Requests)
	rec.AvgLatency = rec.TotalLatency / time.Duration(rec.Requests)
}

// Performance returns a copy of the record for one backend+model, if any.
func (s *Selector) Performance(backendName, model string) (PerformanceRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.perf[perfKey(backendName, model)]
	if !ok {
		return PerformanceRecord{}, false
	}
	return *rec, true
}

// Catalog returns a copy of the selector's catalog.
func (s *Selector) Catalog() []backend.ModelSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.ModelSpec(nil), s.catalog...)
}

func filterSpecs(specs []backend.ModelSpec, keep func(backend.ModelSpec) bool) []backend.ModelSpec {
	var out []backend.ModelSpec
	for _, spec := range specs {
		if keep(spec) {
			out = append(out, spec)
		}
	}
	return out
}

func perfKey(backendName, model string) string {
	return backendName + "/" + model
}
