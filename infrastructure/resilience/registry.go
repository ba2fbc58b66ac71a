package resilience

import (
	"sync"
	"time"

	"github.com/prismworks/prism/infrastructure/telemetry"
)

// Registry hands out one independent breaker per backend, created lazily with
// shared configuration.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker

	failureThreshold int
	recoveryTimeout  time.Duration
	now              func() time.Time
	metrics          telemetry.Metrics
}

// RegistryOption configures the registry.
type RegistryOption func(*Registry)

// WithRegistryClock overrides the time source for all breakers the registry
// creates.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// WithRegistryMetrics attaches a metrics recorder to all breakers the
// registry creates.
func WithRegistryMetrics(m telemetry.Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

// NewRegistry creates a breaker registry.
func NewRegistry(failureThreshold int, recoveryTimeout time.Duration, opts ...RegistryOption) *Registry {
	r := &Registry{
		breakers:         make(map[string]*Breaker),
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ForBackend returns the breaker guarding the named backend, creating it on
// first use.
func (r *Registry) ForBackend(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}

	var opts []BreakerOption
	if r.now != nil {
		opts = append(opts, WithClock(r.now))
	}
	if r.metrics != nil {
		opts = append(opts, WithMetrics(r.metrics))
	}
	b := NewBreaker(name, r.failureThreshold, r.recoveryTimeout, opts...)
	r.breakers[name] = b
	return b
}
