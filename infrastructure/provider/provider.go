// Package provider implements remote model backends over HTTP (Anthropic,
// OpenRouter) plus mock and scripted backends for testing. Every adapter maps
// transport failures onto the domain error taxonomy so the router's retry
// policy stays transport-agnostic.
package provider

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prismworks/prism/domain/backend"
)

// Config contains common HTTP backend configuration.
type Config struct {
	// APIKey authenticates against the vendor API.
	APIKey string
	// BaseURL overrides the vendor endpoint, e.g. for tests.
	BaseURL string
	// Timeout is the HTTP client timeout in seconds (default: 120).
	Timeout int
}

// httpClient builds the adapter's HTTP client from the config.
func httpClient(cfg Config) *http.Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120
	}
	return &http.Client{Timeout: time.Duration(timeout) * time.Second}
}

// statusError maps an HTTP status code onto the domain error taxonomy.
// 429 is rate limiting (with an optional Retry-After hint), 5xx is transient
// unavailability, and any other non-2xx status is a hard client error.
func statusError(name string, status int, header http.Header) error {
	switch {
	case status == http.StatusTooManyRequests:
		return &backend.RateLimitedError{RetryAfter: retryAfter(header)}
	case status >= 500:
		return fmt.Errorf("%s returned status %d: %w", name, status, backend.ErrUnavailable)
	default:
		return fmt.Errorf("%s returned status %d: %w", name, status, backend.ErrBadRequest)
	}
}

// retryAfter parses a Retry-After header given in seconds. HTTP-date values
// are ignored; the router falls back to its own backoff.
func retryAfter(header http.Header) time.Duration {
	value := header.Get("Retry-After")
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
