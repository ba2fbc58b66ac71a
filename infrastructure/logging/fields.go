package logging

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"
)

// Field is a function that applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// Common field constructors for routing and caching logs.

// RequestID adds a request ID field.
func RequestID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("request_id", id)
	}
}

// Backend adds a backend field.
func Backend(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("backend", name)
	}
}

// Model adds a model field.
func Model(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("model", name)
	}
}

// CacheKey adds a cache key field.
func CacheKey(key string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("cache_key", key)
	}
}

// Category adds a cache category field.
func Category(c string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("category", c)
	}
}

// Stage adds a cache lookup stage field (exact, semantic, context,
// predictive).
func Stage(stage string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("stage", stage)
	}
}

// UseCase adds a use-case field.
func UseCase(u string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("use_case", u)
	}
}

// Attempt adds a retry attempt field.
func Attempt(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("attempt", n)
	}
}

// BreakerState adds a circuit breaker state field.
func BreakerState(state string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("breaker_state", state)
	}
}

// Score adds a selection or similarity score field.
func Score(s float64) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Float64("score", s)
	}
}

// Duration adds a duration field in milliseconds.
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

// Cached adds a cached field.
func Cached(cached bool) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Bool("cached", cached)
	}
}

// ErrorField adds an error field.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}

// Component adds a component field for categorization.
func Component(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("component", name)
	}
}

// Str adds a string field with custom key.
func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}

// Int adds an int field with custom key.
func Int(key string, value int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int(key, value)
	}
}

// Int64 adds an int64 field with custom key.
func Int64(key string, value int64) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64(key, value)
	}
}

// Float64 adds a float64 field with custom key.
func Float64(key string, value float64) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Float64(key, value)
	}
}
