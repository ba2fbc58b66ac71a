package cache

import "errors"

// Domain errors for cache operations.
var (
	// ErrInvalidKey is returned when a key is invalid (e.g., empty).
	ErrInvalidKey = errors.New("invalid cache key")

	// ErrInvalidCategory is returned when a category is not one of the
	// known categories.
	ErrInvalidCategory = errors.New("invalid cache category")

	// ErrConnectionFailed is returned when connection to the persistent
	// store fails.
	ErrConnectionFailed = errors.New("cache store connection failed")

	// ErrOperationTimeout is returned when a store operation times out.
	ErrOperationTimeout = errors.New("cache store operation timeout")
)
