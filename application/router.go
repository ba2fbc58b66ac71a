package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/prismworks/prism/domain/backend"
	"github.com/prismworks/prism/domain/cache"
	"github.com/prismworks/prism/infrastructure/caching"
	"github.com/prismworks/prism/infrastructure/logging"
	"github.com/prismworks/prism/infrastructure/resilience"
	"github.com/prismworks/prism/infrastructure/telemetry"
)

// RetryPolicy bounds the per-backend retry loop.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts per backend (>= 1).
	MaxAttempts int
	// InitialBackoff is the first retry delay.
	InitialBackoff time.Duration
	// Multiplier grows the delay between attempts.
	Multiplier float64
	// MaxBackoff caps the delay.
	MaxBackoff time.Duration
	// AttemptTimeout bounds each backend call.
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy returns the standard retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		Multiplier:     2.0,
		MaxBackoff:     10 * time.Second,
		AttemptTimeout: 60 * time.Second,
	}
}

// Router is the top-level entry point: cache lookup, model selection, a
// breaker-guarded call with retry, cache store, and metrics update.
type Router struct {
	backends map[string]backend.Backend
	selector *Selector
	breakers *resilience.Registry
	cache    *caching.IntelligentCache
	retry    RetryPolicy

	// sleep is injectable so tests run without real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error

	metrics routerMetrics
	tel     telemetry.Metrics
}

// RouterOption configures the router.
type RouterOption func(*Router)

// WithCache attaches the response cache.
func WithCache(c *caching.IntelligentCache) RouterOption {
	return func(r *Router) {
		r.cache = c
	}
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(p RetryPolicy) RouterOption {
	return func(r *Router) {
		r.retry = p
	}
}

// WithBreakerRegistry overrides the breaker registry.
func WithBreakerRegistry(reg *resilience.Registry) RouterOption {
	return func(r *Router) {
		r.breakers = reg
	}
}

// WithSleep overrides the backoff sleeper. Used by tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) RouterOption {
	return func(r *Router) {
		r.sleep = sleep
	}
}

// WithMetrics attaches a metrics recorder for requests, retries, fallbacks,
// and token usage.
func WithMetrics(m telemetry.Metrics) RouterOption {
	return func(r *Router) {
		r.tel = m
	}
}

// NewRouter creates a router over the given backends. The selector catalog is
// assembled from every backend's capabilities, ordered by descending priority
// so catalog order doubles as the fallback order.
func NewRouter(backends []backend.Backend, opts ...RouterOption) (*Router, error) {
	if len(backends) == 0 {
		return nil, backend.ErrNoBackend
	}

	byName := make(map[string]backend.Backend, len(backends))
	var catalog []backend.ModelSpec
	for _, b := range backends {
		byName[b.Name()] = b
		catalog = append(catalog, b.Capabilities()...)
	}
	sort.SliceStable(catalog, func(i, j int) bool {
		return catalog[i].Priority > catalog[j].Priority
	})

	r := &Router{
		backends: byName,
		selector: NewSelector(catalog),
		breakers: resilience.NewRegistry(5, 30*time.Second),
		retry:    DefaultRetryPolicy(),
		sleep:    sleepContext,
		tel:      &telemetry.NoopMetricsProvider{},
		metrics: routerMetrics{
			providerUsage: make(map[string]int64),
			modelUsage:    make(map[string]int64),
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Selector exposes the router's selector, e.g. for catalog listing.
func (r *Router) Selector() *Selector {
	return r.selector
}

// Complete routes one completion request. Cache hits bypass model selection
// entirely. Otherwise the best spec is chosen, its breaker consulted, and the
// call attempted with bounded exponential backoff; on transient exhaustion
// the remaining catalog is tried as fallbacks in priority order.
func (r *Router) Complete(ctx context.Context, req backend.CompletionRequest) (backend.CompletionResponse, error) {
	start := time.Now()
	key := cacheKey(req)

	if r.cache != nil && !req.NoCache {
		if value, ok := r.cache.Get(ctx, key, categoryFor(req.UseCase), nil); ok {
			var resp backend.CompletionResponse
			if err := json.Unmarshal(value, &resp); err == nil {
				resp.Cached = true
				r.metrics.recordCacheHit()
				r.tel.RecordRequest(ctx, resp.Backend, resp.Model, true, true, time.Since(start))
				logging.Debug().
					Add(logging.CacheKey(key)).
					Add(logging.Cached(true)).
					Msg("completion served from cache")
				return resp, nil
			}
			// An undecodable cached value is dropped and re-fetched.
			r.cache.InvalidatePattern(ctx, key, "")
		}
	}

	primary, err := r.selector.Select(req, r.availableBackends())
	if err != nil {
		return backend.CompletionResponse{}, err
	}

	var lastErr error
	var failedBackend string
	for _, spec := range r.candidates(primary) {
		b, ok := r.backends[spec.Backend]
		if !ok {
			continue
		}
		breaker := r.breakers.ForBackend(spec.Backend)
		if !breaker.CanRequest() {
			continue
		}
		if failedBackend != "" && failedBackend != spec.Backend {
			r.tel.RecordFallback(ctx, failedBackend, spec.Backend)
		}

		resp, callErr := r.callWithRetry(ctx, b, spec, req, breaker)
		if callErr == nil {
			r.finishSuccess(ctx, key, req, spec, &resp, time.Since(start))
			return resp, nil
		}
		if ctx.Err() != nil {
			// Cancellation is neither a success nor a failure; breaker and
			// performance state were left untouched by the retry loop.
			return backend.CompletionResponse{}, ctx.Err()
		}
		lastErr = callErr
		if !backend.IsRetryable(callErr) {
			// Hard errors do not fall through to other backends.
			r.tel.RecordRequest(ctx, spec.Backend, spec.Model, false, false, time.Since(start))
			return backend.CompletionResponse{}, callErr
		}
		failedBackend = spec.Backend
	}

	if lastErr == nil {
		lastErr = backend.ErrNoBackend
	}
	r.tel.RecordError(ctx, "routing_exhausted", map[string]string{
		"use_case": string(req.UseCase),
	})
	return backend.CompletionResponse{}, lastErr
}

// callWithRetry attempts one backend with bounded exponential backoff,
// honoring the backend's retry-after hint. Terminal outcomes are recorded
// against the breaker and performance history; cancellations are not.
func (r *Router) callWithRetry(ctx context.Context, b backend.Backend, spec backend.ModelSpec, req backend.CompletionRequest, breaker *resilience.Breaker) (backend.CompletionResponse, error) {
	delay := r.retry.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= r.retry.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return backend.CompletionResponse{}, err
		}

		attemptReq := req
		attemptReq.Model = spec.Model

		callCtx := ctx
		var cancel context.CancelFunc
		if r.retry.AttemptTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, r.retry.AttemptTimeout)
		}
		callStart := time.Now()
		resp, err := b.Complete(callCtx, attemptReq)
		if cancel != nil {
			cancel()
		}
		latency := time.Since(callStart)

		if err == nil {
			breaker.RecordSuccess()
			r.selector.RecordPerformance(spec.Backend, spec.Model, latency, true)
			return resp, nil
		}
		if ctx.Err() != nil {
			// The caller abandoned the request mid-attempt; record nothing.
			return backend.CompletionResponse{}, ctx.Err()
		}

		lastErr = err
		if !backend.IsRetryable(err) {
			break
		}
		if attempt == r.retry.MaxAttempts {
			break
		}

		wait := delay
		if hint, ok := backend.RetryAfterHint(err); ok {
			wait = hint
		}
		if wait > r.retry.MaxBackoff {
			wait = r.retry.MaxBackoff
		}
		r.tel.RecordRetry(ctx, spec.Backend)
		logging.Debug().
			Add(logging.Backend(spec.Backend)).
			Add(logging.Model(spec.Model)).
			Add(logging.Attempt(attempt)).
			Add(logging.Duration(wait)).
			Add(logging.ErrorField(err)).
			Msg("transient backend failure, backing off")
		if err := r.sleep(ctx, wait); err != nil {
			return backend.CompletionResponse{}, err
		}
		delay = time.Duration(float64(delay) * r.retry.Multiplier)
	}

	breaker.RecordFailure()
	r.selector.RecordPerformance(spec.Backend, spec.Model, 0, false)
	return backend.CompletionResponse{}, fmt.Errorf("backend %s: %w", spec.Backend, lastErr)
}

// finishSuccess caches the response, stamps identifiers, and updates
// aggregate metrics.
func (r *Router) finishSuccess(ctx context.Context, key string, req backend.CompletionRequest, spec backend.ModelSpec, resp *backend.CompletionResponse, elapsed time.Duration) {
	if resp.ID == "" {
		resp.ID = uuid.NewString()
	}
	if resp.Backend == "" {
		resp.Backend = spec.Backend
	}
	if resp.Model == "" {
		resp.Model = spec.Model
	}

	if r.cache != nil && !req.NoCache {
		if value, err := json.Marshal(resp); err == nil {
			if err := r.cache.Set(ctx, key, value, categoryFor(req.UseCase), caching.SetOptions{}); err != nil {
				logging.Warn().
					Add(logging.CacheKey(key)).
					Add(logging.ErrorField(err)).
					Msg("failed to cache completion")
			}
		}
	}

	r.metrics.recordSuccess(spec.Backend, spec.Model, elapsed)
	r.tel.RecordRequest(ctx, spec.Backend, spec.Model, false, true, elapsed)
	if resp.Usage.TotalTokens > 0 {
		r.tel.RecordTokens(ctx, spec.Backend, spec.Model, int64(resp.Usage.TotalTokens))
	}
	logging.Info().
		Add(logging.RequestID(resp.ID)).
		Add(logging.Backend(spec.Backend)).
		Add(logging.Model(spec.Model)).
		Add(logging.Duration(elapsed)).
		Msg("completion routed")
}

// availableBackends returns the names of backends whose breakers would admit
// a request, without consuming half-open trial slots.
func (r *Router) availableBackends() []string {
	var names []string
	for name := range r.backends {
		if r.breakers.ForBackend(name).Available() {
			names = append(names, name)
		}
	}
	return names
}

// candidates returns the primary spec followed by the rest of the catalog in
// priority order, deduplicated by backend+model.
func (r *Router) candidates(primary backend.ModelSpec) []backend.ModelSpec {
	out := []backend.ModelSpec{primary}
	seen := map[string]struct{}{perfKey(primary.Backend, primary.Model): {}}
	for _, spec := range r.selector.Catalog() {
		k := perfKey(spec.Backend, spec.Model)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, spec)
	}
	return out
}

// cacheKey derives the cache key from a normalized serialization of the
// request's identity fields.
func cacheKey(req backend.CompletionRequest) string {
	payload := struct {
		Model       string            `json:"model,omitempty"`
		Tier        backend.Tier      `json:"tier,omitempty"`
		UseCase     backend.UseCase   `json:"use_case,omitempty"`
		Messages    []backend.Message `json:"messages"`
		Temperature float64           `json:"temperature"`
		MaxTokens   int               `json:"max_tokens"`
	}{req.Model, req.Tier, req.UseCase, req.Messages, req.Temperature, req.MaxTokens}

	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(req.Model + string(req.UseCase))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:32]
}

// categoryFor maps a use case onto its cache category.
func categoryFor(u backend.UseCase) cache.Category {
	switch u {
	case backend.UseCaseCodeGeneration:
		return cache.CategoryGeneration
	case backend.UseCaseAnalysis:
		return cache.CategoryAnalysis
	case backend.UseCaseRefactoring:
		return cache.CategoryRefactoring
	case backend.UseCaseDocumentation:
		return cache.CategoryDocumentation
	default:
		return cache.CategoryCompletion
	}
}

// sleepContext sleeps for d or until the context is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
