// Package telemetry provides OpenTelemetry metrics for the prism runtime:
// cache lookup outcomes, routed request counts and latency, retries, and
// circuit breaker state changes.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsProvider provides access to metrics instruments.
type MetricsProvider struct {
	meter metric.Meter

	// Counters
	cacheHits      metric.Int64Counter
	cacheMisses    metric.Int64Counter
	cacheEvictions metric.Int64Counter
	requests       metric.Int64Counter
	retries        metric.Int64Counter
	fallbacks      metric.Int64Counter
	tokensUsed     metric.Int64Counter
	errors         metric.Int64Counter

	// Histograms
	requestDuration metric.Float64Histogram
	lookupDuration  metric.Float64Histogram

	// Gauges (UpDownCounters)
	cacheEntries metric.Int64UpDownCounter
	breakersOpen metric.Int64UpDownCounter

	initOnce sync.Once
	initErr  error
}

// MetricsConfig configures the metrics provider.
type MetricsConfig struct {
	// MeterName is the name of the meter.
	MeterName string
	// MeterVersion is the version of the meter.
	MeterVersion string
	// Attributes are default attributes to attach to all metrics.
	Attributes []attribute.KeyValue
}

// DefaultMetricsConfig returns a default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		MeterName:    "github.com/prismworks/prism",
		MeterVersion: "1.0.0",
	}
}

// NewMetricsProvider creates a new metrics provider.
func NewMetricsProvider(config MetricsConfig) *MetricsProvider {
	if config.MeterName == "" {
		config = DefaultMetricsConfig()
	}

	provider := otel.GetMeterProvider()
	meter := provider.Meter(
		config.MeterName,
		metric.WithInstrumentationVersion(config.MeterVersion),
	)

	mp := &MetricsProvider{
		meter: meter,
	}

	mp.initOnce.Do(func() {
		mp.initErr = mp.initInstruments()
	})

	return mp
}

// initInstruments initializes all metric instruments.
func (mp *MetricsProvider) initInstruments() error {
	var err error

	mp.cacheHits, err = mp.meter.Int64Counter(
		"prism.cache.hits",
		metric.WithDescription("Number of cache hits by lookup stage"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return err
	}

	mp.cacheMisses, err = mp.meter.Int64Counter(
		"prism.cache.misses",
		metric.WithDescription("Number of cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return err
	}

	mp.cacheEvictions, err = mp.meter.Int64Counter(
		"prism.cache.evictions",
		metric.WithDescription("Number of evicted cache entries"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return err
	}

	mp.requests, err = mp.meter.Int64Counter(
		"prism.router.requests",
		metric.WithDescription("Number of routed requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	mp.retries, err = mp.meter.Int64Counter(
		"prism.router.retries",
		metric.WithDescription("Number of retried backend calls"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return err
	}

	mp.fallbacks, err = mp.meter.Int64Counter(
		"prism.router.fallbacks",
		metric.WithDescription("Number of fallbacks to a secondary backend"),
		metric.WithUnit("{fallback}"),
	)
	if err != nil {
		return err
	}

	mp.tokensUsed, err = mp.meter.Int64Counter(
		"prism.router.tokens",
		metric.WithDescription("Tokens consumed by routed requests"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return err
	}

	mp.errors, err = mp.meter.Int64Counter(
		"prism.errors",
		metric.WithDescription("Number of errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	mp.requestDuration, err = mp.meter.Float64Histogram(
		"prism.router.duration",
		metric.WithDescription("Duration of routed requests"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	mp.lookupDuration, err = mp.meter.Float64Histogram(
		"prism.cache.lookup.duration",
		metric.WithDescription("Duration of cache lookups"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	mp.cacheEntries, err = mp.meter.Int64UpDownCounter(
		"prism.cache.entries",
		metric.WithDescription("Number of live cache entries"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return err
	}

	mp.breakersOpen, err = mp.meter.Int64UpDownCounter(
		"prism.circuitbreaker.open",
		metric.WithDescription("Number of open circuit breakers"),
		metric.WithUnit("{circuit}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Error returns any initialization error.
func (mp *MetricsProvider) Error() error {
	return mp.initErr
}

// RecordCacheHit records a cache hit at the given lookup stage
// (exact, semantic, context, predictive).
func (mp *MetricsProvider) RecordCacheHit(ctx context.Context, stage string, category string) {
	mp.cacheHits.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.stage", stage),
		attribute.String("cache.category", category),
	))
}

// RecordCacheMiss records a cache miss.
func (mp *MetricsProvider) RecordCacheMiss(ctx context.Context, category string) {
	mp.cacheMisses.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.category", category),
	))
}

// RecordCacheEviction records evicted entries.
func (mp *MetricsProvider) RecordCacheEviction(ctx context.Context, count int64, reason string) {
	mp.cacheEvictions.Add(ctx, count, metric.WithAttributes(
		attribute.String("cache.eviction.reason", reason),
	))
}

// RecordCacheLookupDuration records the duration of a cache lookup.
func (mp *MetricsProvider) RecordCacheLookupDuration(ctx context.Context, duration time.Duration, hit bool) {
	mp.lookupDuration.Record(ctx, float64(duration.Microseconds())/1000.0, metric.WithAttributes(
		attribute.Bool("cache.hit", hit),
	))
}

// RecordCacheSize adjusts the live entry gauge by delta.
func (mp *MetricsProvider) RecordCacheSize(ctx context.Context, delta int64) {
	mp.cacheEntries.Add(ctx, delta)
}

// RecordRequest records a routed request and its duration.
func (mp *MetricsProvider) RecordRequest(ctx context.Context, provider, model string, cached, success bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("backend.provider", provider),
		attribute.String("backend.model", model),
		attribute.Bool("cached", cached),
		attribute.Bool("success", success),
	}

	mp.requests.Add(ctx, 1, metric.WithAttributes(attrs...))
	mp.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if !success {
		mp.errors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("error.type", "request"),
			attribute.String("backend.provider", provider),
		))
	}
}

// RecordRetry records a retried backend call.
func (mp *MetricsProvider) RecordRetry(ctx context.Context, provider string) {
	mp.retries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend.provider", provider),
	))
}

// RecordFallback records a fallback from one backend to another.
func (mp *MetricsProvider) RecordFallback(ctx context.Context, from, to string) {
	mp.fallbacks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend.from", from),
		attribute.String("backend.to", to),
	))
}

// RecordTokens records token consumption for a request.
func (mp *MetricsProvider) RecordTokens(ctx context.Context, provider, model string, tokens int64) {
	mp.tokensUsed.Add(ctx, tokens, metric.WithAttributes(
		attribute.String("backend.provider", provider),
		attribute.String("backend.model", model),
	))
}

// RecordError records an error.
func (mp *MetricsProvider) RecordError(ctx context.Context, errorType string, details map[string]string) {
	attrs := []attribute.KeyValue{
		attribute.String("error.type", errorType),
	}
	for k, v := range details {
		attrs = append(attrs, attribute.String(k, v))
	}

	mp.errors.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCircuitBreakerStateChange records a circuit breaker opening or
// closing for a backend.
func (mp *MetricsProvider) RecordCircuitBreakerStateChange(ctx context.Context, backendName string, isOpen bool) {
	attrs := []attribute.KeyValue{
		attribute.String("backend.provider", backendName),
	}

	if isOpen {
		mp.breakersOpen.Add(ctx, 1, metric.WithAttributes(attrs...))
	} else {
		mp.breakersOpen.Add(ctx, -1, metric.WithAttributes(attrs...))
	}
}

// NoopMetricsProvider is a no-op metrics provider for testing or when
// metrics are disabled.
type NoopMetricsProvider struct{}

// RecordCacheHit is a no-op.
func (n *NoopMetricsProvider) RecordCacheHit(ctx context.Context, stage string, category string) {}

// RecordCacheMiss is a no-op.
func (n *NoopMetricsProvider) RecordCacheMiss(ctx context.Context, category string) {}

// RecordCacheEviction is a no-op.
func (n *NoopMetricsProvider) RecordCacheEviction(ctx context.Context, count int64, reason string) {}

// RecordCacheLookupDuration is a no-op.
func (n *NoopMetricsProvider) RecordCacheLookupDuration(ctx context.Context, duration time.Duration, hit bool) {
}

// RecordCacheSize is a no-op.
func (n *NoopMetricsProvider) RecordCacheSize(ctx context.Context, delta int64) {}

// RecordRequest is a no-op.
func (n *NoopMetricsProvider) RecordRequest(ctx context.Context, provider, model string, cached, success bool, duration time.Duration) {
}

// RecordRetry is a no-op.
func (n *NoopMetricsProvider) RecordRetry(ctx context.Context, provider string) {}

// RecordFallback is a no-op.
func (n *NoopMetricsProvider) RecordFallback(ctx context.Context, from, to string) {}

// RecordTokens is a no-op.
func (n *NoopMetricsProvider) RecordTokens(ctx context.Context, provider, model string, tokens int64) {
}

// RecordError is a no-op.
func (n *NoopMetricsProvider) RecordError(ctx context.Context, errorType string, details map[string]string) {
}

// RecordCircuitBreakerStateChange is a no-op.
func (n *NoopMetricsProvider) RecordCircuitBreakerStateChange(ctx context.Context, backendName string, isOpen bool) {
}

// Metrics defines the interface for metrics recording.
type Metrics interface {
	RecordCacheHit(ctx context.Context, stage string, category string)
	RecordCacheMiss(ctx context.Context, category string)
	RecordCacheEviction(ctx context.Context, count int64, reason string)
	RecordCacheLookupDuration(ctx context.Context, duration time.Duration, hit bool)
	RecordCacheSize(ctx context.Context, delta int64)
	RecordRequest(ctx context.Context, provider, model string, cached, success bool, duration time.Duration)
	RecordRetry(ctx context.Context, provider string)
	RecordFallback(ctx context.Context, from, to string)
	RecordTokens(ctx context.Context, provider, model string, tokens int64)
	RecordError(ctx context.Context, errorType string, details map[string]string)
	RecordCircuitBreakerStateChange(ctx context.Context, backendName string, isOpen bool)
}

// Ensure implementations satisfy the interface.
var (
	_ Metrics = (*MetricsProvider)(nil)
	_ Metrics = (*NoopMetricsProvider)(nil)
)
