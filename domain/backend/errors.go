package backend

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors for backend calls.
var (
	// ErrUnavailable is returned when a backend is temporarily unreachable
	// or overloaded. Retryable.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrBadRequest is returned for client or configuration errors.
	// Never retried.
	ErrBadRequest = errors.New("bad request")

	// ErrNoBackend is returned when selection finds no usable backend:
	// all filtered out or all circuit breakers open.
	ErrNoBackend = errors.New("no suitable backend available")

	// ErrModelNotFound is returned when a pinned model is not in any
	// available backend's catalog.
	ErrModelNotFound = errors.New("model not found in catalog")
)

// RateLimitedError is returned when a backend rejects a request for rate
// limiting. Retryable; RetryAfter carries the backend's hint when provided.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// IsRetryable reports whether an error is a backend-transient failure that
// the router's backoff loop may retry.
func IsRetryable(err error) bool {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return true
	}
	return errors.Is(err, ErrUnavailable)
}

// RetryAfterHint extracts the backend-provided retry-after hint, if any.
func RetryAfterHint(err error) (time.Duration, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter, true
	}
	return 0, false
}
