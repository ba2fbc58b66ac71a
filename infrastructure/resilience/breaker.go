// Package resilience provides per-backend failure isolation for the router:
// a three-state circuit breaker and a registry keyed by backend name.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/prismworks/prism/infrastructure/logging"
	"github.com/prismworks/prism/infrastructure/telemetry"
)

// State is a circuit breaker state.
type State int

// Breaker states.
const (
	// StateClosed allows all requests.
	StateClosed State = iota
	// StateOpen rejects requests until the recovery timeout elapses.
	StateOpen
	// StateHalfOpen allows exactly one trial request.
	StateHalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker is a three-state circuit breaker guarding one backend.
//
// In closed state, failures increment a counter; reaching the threshold opens
// the breaker. In open state, requests are rejected until the recovery
// timeout has elapsed since the last failure, then the breaker half-opens and
// admits exactly one trial request. A half-open success closes the breaker; a
// half-open failure reopens it.
type Breaker struct {
	mu sync.Mutex

	name             string
	failureThreshold int
	recoveryTimeout  time.Duration
	now              func() time.Time
	metrics          telemetry.Metrics

	state       State
	failures    int
	lastFailure time.Time
	probeIssued bool
}

// BreakerOption configures a breaker.
type BreakerOption func(*Breaker)

// WithClock overrides the breaker's time source. Used by tests.
func WithClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) {
		b.now = now
	}
}

// WithMetrics attaches a metrics recorder for state transitions.
func WithMetrics(m telemetry.Metrics) BreakerOption {
	return func(b *Breaker) {
		b.metrics = m
	}
}

// NewBreaker creates a closed breaker.
func NewBreaker(name string, failureThreshold int, recoveryTimeout time.Duration, opts ...BreakerOption) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 30 * time.Second
	}
	b := &Breaker{
		name:             name,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		now:              time.Now,
		metrics:          &telemetry.NoopMetricsProvider{},
		state:            StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// CanRequest reports whether a request may be attempted, transitioning from
// open to half-open once the recovery timeout has elapsed. In half-open state
// only the single trial request is admitted until its outcome is recorded.
func (b *Breaker) CanRequest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.lastFailure) < b.recoveryTimeout {
			return false
		}
		b.state = StateHalfOpen
		b.probeIssued = true
		logging.Debug().
			Add(logging.Backend(b.name)).
			Add(logging.BreakerState(b.state.String())).
			Msg("breaker half-open, admitting trial request")
		return true
	case StateHalfOpen:
		if b.probeIssued {
			return false
		}
		b.probeIssued = true
		return true
	default:
		return false
	}
}

// Available reports whether the breaker would admit a request, without
// consuming the half-open trial slot. Used when filtering candidate backends
// before one is actually chosen.
func (b *Breaker) Available() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		return b.now().Sub(b.lastFailure) >= b.recoveryTimeout
	case StateHalfOpen:
		return !b.probeIssued
	default:
		return false
	}
}

// RecordSuccess records a successful call: resets the failure counter and
// closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev := b.state
	b.state = StateClosed
	b.failures = 0
	b.probeIssued = false

	if prev != StateClosed {
		b.metrics.RecordCircuitBreakerStateChange(context.Background(), b.name, false)
		logging.Info().
			Add(logging.Backend(b.name)).
			Add(logging.BreakerState(b.state.String())).
			Msg("breaker closed after successful trial")
	}
}

// RecordFailure records a failed call. In closed state, reaching the failure
// threshold opens the breaker; in half-open state the breaker reopens.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = b.now()
	b.probeIssued = false

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.state = StateOpen
			b.metrics.RecordCircuitBreakerStateChange(context.Background(), b.name, true)
			logging.Warn().
				Add(logging.Backend(b.name)).
				Add(logging.Int("failures", b.failures)).
				Add(logging.BreakerState(b.state.String())).
				Msg("breaker opened")
		}
	case StateHalfOpen:
		b.state = StateOpen
		logging.Warn().
			Add(logging.Backend(b.name)).
			Add(logging.BreakerState(b.state.String())).
			Msg("breaker reopened after failed trial")
	}
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
