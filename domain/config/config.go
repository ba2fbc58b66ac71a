// Package config provides the domain model for prism configuration: the
// cache, router, backend, and storage settings plus their validation.
package config

import "time"

// Config represents the complete prism configuration.
type Config struct {
	// Name is a human-readable name for this configuration.
	Name string `json:"name" yaml:"name"`
	// Version is the configuration schema version.
	Version string `json:"version" yaml:"version"`
	// Description describes the deployment.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Cache contains response cache settings.
	Cache CacheConfig `json:"cache,omitempty" yaml:"cache,omitempty"`
	// Router contains routing, retry, and breaker settings.
	Router RouterConfig `json:"router,omitempty" yaml:"router,omitempty"`
	// Backends configures the remote model providers.
	Backends BackendsConfig `json:"backends,omitempty" yaml:"backends,omitempty"`
	// Storage selects the persistent cache store.
	Storage StorageConfig `json:"storage,omitempty" yaml:"storage,omitempty"`
	// Logging contains log output settings.
	Logging LoggingConfig `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// CacheConfig contains response cache settings.
type CacheConfig struct {
	// Enabled turns the response cache on.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// MaxEntries caps the number of live entries.
	MaxEntries int `json:"max_entries,omitempty" yaml:"max_entries,omitempty"`
	// MaxMemoryMB caps the estimated in-memory footprint.
	MaxMemoryMB int `json:"max_memory_mb,omitempty" yaml:"max_memory_mb,omitempty"`
	// Categories overrides per-category retention budgets, keyed by
	// category name.
	Categories map[string]CategoryBudget `json:"categories,omitempty" yaml:"categories,omitempty"`
	// LoadLimit and LoadWindow bound startup hydration from the store.
	LoadLimit  int      `json:"load_limit,omitempty" yaml:"load_limit,omitempty"`
	LoadWindow Duration `json:"load_window,omitempty" yaml:"load_window,omitempty"`
	// FlushLimit and FlushWindow bound the shutdown write-back.
	FlushLimit  int      `json:"flush_limit,omitempty" yaml:"flush_limit,omitempty"`
	FlushWindow Duration `json:"flush_window,omitempty" yaml:"flush_window,omitempty"`
}

// CategoryBudget is the retention budget for one cache category.
type CategoryBudget struct {
	// TTL is the time-to-live for new entries in this category.
	TTL Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"`
	// MaxEntries is the per-category entry budget.
	MaxEntries int `json:"max_entries,omitempty" yaml:"max_entries,omitempty"`
}

// RouterConfig contains routing behavior settings.
type RouterConfig struct {
	// Retry configures the per-backend retry loop.
	Retry RetryConfig `json:"retry,omitempty" yaml:"retry,omitempty"`
	// CircuitBreaker configures the per-backend breakers.
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker,omitempty" yaml:"circuit_breaker,omitempty"`
}

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxAttempts is the total attempts per backend.
	MaxAttempts int `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`
	// InitialDelay is the first retry delay.
	InitialDelay Duration `json:"initial_delay,omitempty" yaml:"initial_delay,omitempty"`
	// MaxDelay caps the delay between retries.
	MaxDelay Duration `json:"max_delay,omitempty" yaml:"max_delay,omitempty"`
	// Multiplier is the backoff multiplier.
	Multiplier float64 `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
	// AttemptTimeout bounds each backend call.
	AttemptTimeout Duration `json:"attempt_timeout,omitempty" yaml:"attempt_timeout,omitempty"`
}

// CircuitBreakerConfig configures circuit breaker behavior.
type CircuitBreakerConfig struct {
	// Threshold is consecutive failures before opening.
	Threshold int `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	// RecoveryTimeout is how long the circuit stays open before a trial.
	RecoveryTimeout Duration `json:"recovery_timeout,omitempty" yaml:"recovery_timeout,omitempty"`
}

// BackendsConfig configures the remote model providers.
type BackendsConfig struct {
	// Anthropic configures the Anthropic backend.
	Anthropic BackendConfig `json:"anthropic,omitempty" yaml:"anthropic,omitempty"`
	// OpenRouter configures the OpenRouter backend.
	OpenRouter BackendConfig `json:"openrouter,omitempty" yaml:"openrouter,omitempty"`
}

// BackendConfig configures one remote provider.
type BackendConfig struct {
	// Enabled turns the backend on.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// APIKey authenticates against the vendor API. Supports ${ENV}
	// expansion when loaded through the loader.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	// BaseURL overrides the vendor endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// TimeoutSeconds is the HTTP client timeout.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
}

// Storage kinds.
const (
	StorageMemory   = "memory"
	StorageBadger   = "badger"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
	StorageWeaviate = "weaviate"
)

// StorageConfig selects and configures the persistent cache store.
type StorageConfig struct {
	// Kind is the store backend (memory, badger, sqlite, postgres, redis,
	// weaviate). Empty disables persistence.
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`
	// Badger configures the badger store.
	Badger BadgerConfig `json:"badger,omitempty" yaml:"badger,omitempty"`
	// SQLite configures the sqlite store.
	SQLite SQLiteConfig `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	// Postgres configures the postgres store.
	Postgres PostgresConfig `json:"postgres,omitempty" yaml:"postgres,omitempty"`
	// Redis configures the redis store.
	Redis RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`
	// Weaviate configures the weaviate store.
	Weaviate WeaviateConfig `json:"weaviate,omitempty" yaml:"weaviate,omitempty"`
}

// BadgerConfig configures the badger store.
type BadgerConfig struct {
	// Dir is the data directory.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
	// SyncWrites enables synchronous writes.
	SyncWrites bool `json:"sync_writes,omitempty" yaml:"sync_writes,omitempty"`
}

// SQLiteConfig configures the sqlite store.
type SQLiteConfig struct {
	// DSN is the data source name.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	// BusyTimeoutMS is the busy timeout in milliseconds.
	BusyTimeoutMS int `json:"busy_timeout_ms,omitempty" yaml:"busy_timeout_ms,omitempty"`
}

// PostgresConfig configures the postgres store.
type PostgresConfig struct {
	// DSN is the connection string.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	// Schema is the database schema (default: public).
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// RedisConfig configures the redis store.
type RedisConfig struct {
	// Address is the server address (host:port).
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
	// Password for authentication.
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	// DB selects the database index.
	DB int `json:"db,omitempty" yaml:"db,omitempty"`
	// KeyPrefix namespaces all keys.
	KeyPrefix string `json:"key_prefix,omitempty" yaml:"key_prefix,omitempty"`
}

// WeaviateConfig configures the weaviate store.
type WeaviateConfig struct {
	// Host is the cluster address (host:port).
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
	// Scheme is http or https.
	Scheme string `json:"scheme,omitempty" yaml:"scheme,omitempty"`
}

// LoggingConfig contains log output settings.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
	// Format is the output format (json or console).
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// Default returns a configuration with sensible defaults: the cache enabled
// with its standard budgets, standard retry and breaker settings, and no
// persistence.
func Default() *Config {
	return &Config{
		Name:    "prism",
		Version: "1",
		Cache: CacheConfig{
			Enabled:     true,
			MaxEntries:  10000,
			MaxMemoryMB: 100,
		},
		Router: RouterConfig{
			Retry: RetryConfig{
				MaxAttempts:    3,
				InitialDelay:   Duration(500 * time.Millisecond),
				MaxDelay:       Duration(10 * time.Second),
				Multiplier:     2.0,
				AttemptTimeout: Duration(60 * time.Second),
			},
			CircuitBreaker: CircuitBreakerConfig{
				Threshold:       5,
				RecoveryTimeout: Duration(30 * time.Second),
			},
		},
		Storage: StorageConfig{Kind: StorageMemory},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Duration is a time.Duration that supports JSON/YAML string representation.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}

	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
