package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prismworks/prism/application"
	"github.com/prismworks/prism/domain/backend"
	"github.com/prismworks/prism/infrastructure/caching"
	"github.com/prismworks/prism/infrastructure/provider"
	"github.com/prismworks/prism/infrastructure/resilience"
	"github.com/prismworks/prism/infrastructure/telemetry"
)

// sleepRecorder captures backoff delays without actually sleeping.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// captureMetrics records telemetry calls for assertions.
type captureMetrics struct {
	telemetry.NoopMetricsProvider

	mu        sync.Mutex
	requests  []requestRecord
	retries   map[string]int
	fallbacks []string
	tokens    map[string]int64
}

type requestRecord struct {
	backend string
	model   string
	cached  bool
	success bool
}

func newCaptureMetrics() *captureMetrics {
	return &captureMetrics{
		retries: make(map[string]int),
		tokens:  make(map[string]int64),
	}
}

func (c *captureMetrics) RecordRequest(_ context.Context, provider, model string, cached, success bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, requestRecord{provider, model, cached, success})
}

func (c *captureMetrics) RecordRetry(_ context.Context, provider string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retries[provider]++
}

func (c *captureMetrics) RecordFallback(_ context.Context, from, to string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fallbacks = append(c.fallbacks, from+"->"+to)
}

func (c *captureMetrics) RecordTokens(_ context.Context, provider, model string, tokens int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[provider+"/"+model] += tokens
}

func okStep(content string) provider.ScriptStep {
	return provider.ScriptStep{Response: backend.CompletionResponse{
		Message: backend.Message{Role: "assistant", Content: content},
	}}
}

func failStep(err error) provider.ScriptStep {
	return provider.ScriptStep{Err: err}
}

func userRequest(content string) backend.CompletionRequest {
	return backend.CompletionRequest{
		UseCase:  backend.UseCaseChat,
		Messages: []backend.Message{{Role: "user", Content: content}},
	}
}

func TestRouter_RoutesToBestBackend(t *testing.T) {
	t.Parallel()

	low := provider.NewMockBackend("low", spec("low", "low-model", 20))
	high := provider.NewMockBackend("high", spec("high", "high-model", 80))

	r, err := application.NewRouter([]backend.Backend{low, high})
	if err != nil {
		t.Fatalf("NewRouter error: %v", err)
	}

	resp, err := r.Complete(context.Background(), userRequest("hello"))
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if resp.Backend != "high" {
		t.Errorf("Backend = %q, want high", resp.Backend)
	}
	if resp.ID == "" {
		t.Error("response should carry a generated ID")
	}
	if high.Calls() != 1 || low.Calls() != 0 {
		t.Errorf("calls = high:%d low:%d, want 1/0", high.Calls(), low.Calls())
	}
}

func TestRouter_NoBackends(t *testing.T) {
	t.Parallel()

	if _, err := application.NewRouter(nil); !errors.Is(err, backend.ErrNoBackend) {
		t.Fatalf("got %v, want ErrNoBackend", err)
	}
}

func TestRouter_CacheHitBypassesBackends(t *testing.T) {
	t.Parallel()

	mock := provider.NewMockBackend("mock")
	c := caching.New(caching.DefaultConfig())

	r, err := application.NewRouter([]backend.Backend{mock}, application.WithCache(c))
	if err != nil {
		t.Fatalf("NewRouter error: %v", err)
	}
	ctx := context.Background()
	req := userRequest("cache me")

	first, err := r.Complete(ctx, req)
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if first.Cached {
		t.Error("first response should not be marked cached")
	}

	second, err := r.Complete(ctx, req)
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if !second.Cached {
		t.Error("second response should be served from cache")
	}
	if second.Message.Content != first.Message.Content {
		t.Errorf("cached content = %q, want %q", second.Message.Content, first.Message.Content)
	}
	if mock.Calls() != 1 {
		t.Errorf("backend calls = %d, want 1", mock.Calls())
	}

	m := r.Metrics()
	if m.CacheHits != 1 {
		t.Errorf("CacheHits = %d, want 1", m.CacheHits)
	}
	if m.TotalRequests != 2 {
		t.Errorf("TotalRequests = %d, want 2", m.TotalRequests)
	}
}

func TestRouter_NoCacheBypass(t *testing.T) {
	t.Parallel()

	mock := provider.NewMockBackend("mock")
	c := caching.New(caching.DefaultConfig())

	r, err := application.NewRouter([]backend.Backend{mock}, application.WithCache(c))
	if err != nil {
		t.Fatalf("NewRouter error: %v", err)
	}
	ctx := context.Background()

	req := userRequest("fresh please")
	if _, err := r.Complete(ctx, req); err != nil {
		t.Fatalf("Complete error: %v", err)
	}

	req.NoCache = true
	resp, err := r.Complete(ctx, req)
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if resp.Cached {
		t.Error("NoCache response must not come from cache")
	}
	if mock.Calls() != 2 {
		t.Errorf("backend calls = %d, want 2", mock.Calls())
	}
}

func TestRouter_RetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()

	scripted := provider.NewScriptedBackend("flaky",
		[]backend.ModelSpec{spec("flaky", "flaky-model", 50)},
		failStep(backend.ErrUnavailable),
		okStep("recovered"),
	)
	rec := &sleepRecorder{}

	r, err := application.NewRouter([]backend.Backend{scripted}, application.WithSleep(rec.sleep))
	if err != nil {
		t.Fatalf("NewRouter error: %v", err)
	}

	resp, err := r.Complete(context.Background(), userRequest("try again"))
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if resp.Message.Content != "recovered" {
		t.Errorf("content = %q, want recovered", resp.Message.Content)
	}
	if scripted.Calls() != 2 {
		t.Errorf("calls = %d, want 2", scripted.Calls())
	}

	delays := rec.recorded()
	if len(delays) != 1 {
		t.Fatalf("len(delays) = %d, want 1", len(delays))
	}
	if delays[0] != 500*time.Millisecond {
		t.Errorf("delay = %v, want the initial backoff", delays[0])
	}
}

func TestRouter_HonorsRetryAfterHint(t *testing.T) {
	t.Parallel()

	scripted := provider.NewScriptedBackend("limited",
		[]backend.ModelSpec{spec("limited", "limited-model", 50)},
		failStep(&backend.RateLimitedError{RetryAfter: 7 * time.Second}),
		okStep("after the wait"),
	)
	rec := &sleepRecorder{}

	r, err := application.NewRouter([]backend.Backend{scripted}, application.WithSleep(rec.sleep))
	if err != nil {
		t.Fatalf("NewRouter error: %v", err)
	}

	if _, err := r.Complete(context.Background(), userRequest("limited")); err != nil {
		t.Fatalf("Complete error: %v", err)
	}

	delays := rec.recorded()
	if len(delays) != 1 || delays[0] != 7*time.Second {
		t.Errorf("delays = %v, want [7s]", delays)
	}
}

func TestRouter_CapsRetryAfterAtMaxBackoff(t *testing.T) {
	t.Parallel()

	scripted := provider.NewScriptedBackend("limited",
		[]backend.ModelSpec{spec("limited", "limited-model", 50)},
		failStep(&backend.RateLimitedError{RetryAfter: time.Hour}),
		okStep("ok"),
	)
	rec := &sleepRecorder{}

	r, err := application.NewRouter([]backend.Backend{scripted}, application.WithSleep(rec.sleep))
	if err != nil {
		t.Fatalf("NewRouter error: %v", err)
	}

	if _, err := r.Complete(context.Background(), userRequest("capped")); err != nil {
		t.Fatalf("Complete error: %v", err)
	}

	delays := rec.recorded()
	if len(delays) != 1 || delays[0] != 10*time.Second {
		t.Errorf("delays = %v, want [10s]", delays)
	}
}

func TestRouter_BadRequestIsNotRetried(t *testing.T) {
	t.Parallel()

	primary := provider.NewMockBackend("primary", spec("primary", "primary-model", 80))
	primary.SetError(backend.ErrBadRequest)
	fallback := provider.NewMockBackend("fallback", spec("fallback", "fallback-model", 40))
	rec := &sleepRecorder{}

	r, err := application.NewRouter(
		[]backend.Backend{primary, fallback},
		application.WithSleep(rec.sleep),
	)
	if err != nil {
		t.Fatalf("NewRouter error: %v", err)
	}

	_, err = r.Complete(context.Background(), userRequest("bad"))
	if !errors.Is(err, backend.ErrBadRequest) {
		t.Fatalf("got %v, want ErrBadRequest", err)
	}
	if primary.Calls() != 1 {
		t.Errorf("primary calls = %d, want 1 (no retries)", primary.Calls())
	}
	if fallback.Calls() != 0 {
		t.Errorf("fallback calls = %d, want 0 (no fallback on hard errors)", fallback.Calls())
	}
	if len(rec.recorded()) != 0 {
		t.Errorf("delays = %v, want none", rec.recorded())
	}
}

func TestRouter_FallsBackOnTransientExhaustion(t *testing.T) {
	t.Parallel()

	primary := provider.NewMockBackend("primary", spec("primary", "primary-model", 80))
	primary.SetError(backend.ErrUnavailable)
	fallback := provider.NewMockBackend("fallback", spec("fallback", "fallback-model", 40))
	rec := &sleepRecorder{}
	reg := resilience.NewRegistry(5, 30*time.Second)

	r, err := application.NewRouter(
		[]backend.Backend{primary, fallback},
		application.WithSleep(rec.sleep),
		application.WithBreakerRegistry(reg),
	)
	if err != nil {
		t.Fatalf("NewRouter error: %v", err)
	}

	resp, err := r.Complete(context.Background(), userRequest("failover"))
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if resp.Backend != "fallback" {
		t.Errorf("Backend = %q, want fallback", resp.Backend)
	}
	if primary.Calls() != 3 {
		t.Errorf("primary calls = %d, want 3 (attempts exhausted)", primary.Calls())
	}
	if fallback.Calls() != 1 {
		t.Errorf("fallback calls = %d, want 1", fallback.Calls())
	}
	if got := reg.ForBackend("primary").Failures(); got != 1 {
		t.Errorf("primary breaker failures = %d, want 1", got)
	}
	if reg.ForBackend("fallback").State() != resilience.StateClosed {
		t.Error("fallback breaker should stay closed")
	}
}

func TestRouter_AllBackendsExhausted(t *testing.T) {
	t.Parallel()

	a := provider.NewMockBackend("aaa", spec("aaa", "aaa-model", 60))
	a.SetError(backend.ErrUnavailable)
	b := provider.NewMockBackend("bbb", spec("bbb", "bbb-model", 40))
	b.SetError(backend.ErrUnavailable)
	rec := &sleepRecorder{}

	r, err := application.NewRouter(
		[]backend.Backend{a, b},
		application.WithSleep(rec.sleep),
	)
	if err != nil {
		t.Fatalf("NewRouter error: %v", err)
	}

	_, err = r.Complete(context.Background(), userRequest("doomed"))
	if !errors.Is(err, backend.ErrUnavailable) {
		t.Fatalf("got %v, want a wrapped ErrUnavailable", err)
	}
}

func TestRouter_OpenBreakerSkipsBackend(t *testing.T) {
	t.Parallel()

	flaky := provider.NewMockBackend("flaky", spec("flaky", "flaky-model", 80))
	flaky.SetError(backend.ErrUnavailable)
	steady := provider.NewMockBackend("steady", spec("steady", "steady-model", 40))
	rec := &sleepRecorder{}
	reg := resilience.NewRegistry(1, time.Hour)

	r, err := application.NewRouter(
		[]backend.Backend{flaky, steady},
		application.WithSleep(rec.sleep),
		application.WithBreakerRegistry(reg),
	)
	if err != nil {
		t.Fatalf("NewRouter error: %v", err)
	}
	ctx := context.Background()

	// First request exhausts flaky, opening its breaker, then falls back.
	if _, err := r.Complete(ctx, userRequest("one")); err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if reg.ForBackend("flaky").State() != resilience.StateOpen {
		t.Fatal("flaky breaker should be open")
	}
	callsAfterFirst := flaky.Calls()

	// Second request must not touch the open backend at all.
	resp, err := r.Complete(ctx, userRequest("two"))
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if resp.Backend != "steady" {
		t.Errorf("Backend = %q, want steady", resp.Backend)
	}
	if flaky.Calls() != callsAfterFirst {
		t.Errorf("flaky calls grew from %d to %d while open", callsAfterFirst, flaky.Calls())
	}
}

func TestRouter_AllBreakersOpen(t *testing.T) {
	t.Parallel()

	only := provider.NewMockBackend("only", spec("only", "only-model", 50))
	only.SetError(backend.ErrUnavailable)
	rec := &sleepRecorder{}
	reg := resilience.NewRegistry(1, time.Hour)

	r, err := application.NewRouter(
		[]backend.Backend{only},
		application.WithSleep(rec.sleep),
		application.WithBreakerRegistry(reg),
	)
	if err != nil {
		t.Fatalf("NewRouter error: %v", err)
	}
	ctx := context.Background()

	if _, err := r.Complete(ctx, userRequest("one")); err == nil {
		t.Fatal("expected failure")
	}

	_, err = r.Complete(ctx, userRequest("two"))
	if !errors.Is(err, backend.ErrNoBackend) {
		t.Fatalf("got %v, want ErrNoBackend when every breaker is open", err)
	}
}

func TestRouter_CancellationRecordsNothing(t *testing.T) {
	t.Parallel()

	only := provider.NewMockBackend("only", spec("only", "only-model", 50))
	only.SetError(backend.ErrUnavailable)
	reg := resilience.NewRegistry(5, 30*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	sleepCancel := func(sleepCtx context.Context, d time.Duration) error {
		cancel()
		return sleepCtx.Err()
	}

	r, err := application.NewRouter(
		[]backend.Backend{only},
		application.WithSleep(sleepCancel),
		application.WithBreakerRegistry(reg),
	)
	if err != nil {
		t.Fatalf("NewRouter error: %v", err)
	}

	_, err = r.Complete(ctx, userRequest("abandoned"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if got := reg.ForBackend("only").Failures(); got != 0 {
		t.Errorf("breaker failures = %d, want 0 after cancellation", got)
	}
	if _, ok := r.Selector().Performance("only", "only-model"); ok {
		t.Error("cancellation must not create a performance record")
	}
}

func TestRouter_SuccessRecordsPerformance(t *testing.T) {
	t.Parallel()

	mock := provider.NewMockBackend("mock", spec("mock", "mock-model", 50))

	r, err := application.NewRouter([]backend.Backend{mock})
	if err != nil {
		t.Fatalf("NewRouter error: %v", err)
	}

	if _, err := r.Complete(context.Background(), userRequest("measure")); err != nil {
		t.Fatalf("Complete error: %v", err)
	}

	rec, ok := r.Selector().Performance("mock", "mock-model")
	if !ok {
		t.Fatal("expected a performance record")
	}
	if rec.Requests != 1 || rec.Successes != 1 {
		t.Errorf("record = %+v, want one success", rec)
	}

	m := r.Metrics()
	if m.TotalRequests != 1 {
		t.Errorf("TotalRequests = %d, want 1", m.TotalRequests)
	}
	if m.ProviderUsage["mock"] != 1 {
		t.Errorf("ProviderUsage[mock] = %d, want 1", m.ProviderUsage["mock"])
	}
	if m.ModelUsage["mock-model"] != 1 {
		t.Errorf("ModelUsage[mock-model] = %d, want 1", m.ModelUsage["mock-model"])
	}
}

func TestRouter_RequestCarriesSelectedModel(t *testing.T) {
	t.Parallel()

	mock := provider.NewMockBackend("mock", spec("mock", "chosen-model", 50))

	r, err := application.NewRouter([]backend.Backend{mock})
	if err != nil {
		t.Fatalf("NewRouter error: %v", err)
	}

	resp, err := r.Complete(context.Background(), userRequest("which model"))
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if resp.Model != "chosen-model" {
		t.Errorf("Model = %q, want chosen-model", resp.Model)
	}
}

func TestRouter_TelemetryOnFallback(t *testing.T) {
	t.Parallel()

	primary := provider.NewMockBackend("primary", spec("primary", "primary-model", 80))
	primary.SetError(backend.ErrUnavailable)
	fallback := provider.NewMockBackend("fallback", spec("fallback", "fallback-model", 40))
	fallback.SetResponse(backend.CompletionResponse{
		Backend: "fallback",
		Model:   "fallback-model",
		Message: backend.Message{Role: "assistant", Content: "recovered"},
		Usage:   backend.Usage{PromptTokens: 10, CompletionTokens: 32, TotalTokens: 42},
	})
	rec := &sleepRecorder{}
	tel := newCaptureMetrics()

	r, err := application.NewRouter(
		[]backend.Backend{primary, fallback},
		application.WithSleep(rec.sleep),
		application.WithMetrics(tel),
	)
	if err != nil {
		t.Fatalf("NewRouter error: %v", err)
	}

	if _, err := r.Complete(context.Background(), userRequest("failover")); err != nil {
		t.Fatalf("Complete error: %v", err)
	}

	tel.mu.Lock()
	defer tel.mu.Unlock()
	if got := tel.retries["primary"]; got != 2 {
		t.Errorf("primary retries = %d, want 2", got)
	}
	if len(tel.fallbacks) != 1 || tel.fallbacks[0] != "primary->fallback" {
		t.Errorf("fallbacks = %v, want [primary->fallback]", tel.fallbacks)
	}
	want := requestRecord{"fallback", "fallback-model", false, true}
	if len(tel.requests) != 1 || tel.requests[0] != want {
		t.Errorf("requests = %v, want [%v]", tel.requests, want)
	}
	if got := tel.tokens["fallback/fallback-model"]; got != 42 {
		t.Errorf("tokens = %d, want 42", got)
	}
}

func TestRouter_TelemetryOnCacheHit(t *testing.T) {
	t.Parallel()

	mock := provider.NewMockBackend("mock")
	c := caching.New(caching.DefaultConfig())
	tel := newCaptureMetrics()

	r, err := application.NewRouter(
		[]backend.Backend{mock},
		application.WithCache(c),
		application.WithMetrics(tel),
	)
	if err != nil {
		t.Fatalf("NewRouter error: %v", err)
	}
	ctx := context.Background()
	req := userRequest("cache me")

	if _, err := r.Complete(ctx, req); err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if _, err := r.Complete(ctx, req); err != nil {
		t.Fatalf("Complete error: %v", err)
	}

	tel.mu.Lock()
	defer tel.mu.Unlock()
	if len(tel.requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(tel.requests))
	}
	if tel.requests[0].cached {
		t.Error("first request should not be recorded as cached")
	}
	if !tel.requests[1].cached || !tel.requests[1].success {
		t.Errorf("second request = %+v, want cached success", tel.requests[1])
	}
}
