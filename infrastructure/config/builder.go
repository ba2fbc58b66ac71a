package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	weaviateclient "github.com/weaviate/weaviate-go-client/v4/weaviate"

	"github.com/prismworks/prism/application"
	"github.com/prismworks/prism/domain/backend"
	"github.com/prismworks/prism/domain/cache"
	domainconfig "github.com/prismworks/prism/domain/config"
	"github.com/prismworks/prism/infrastructure/caching"
	"github.com/prismworks/prism/infrastructure/logging"
	"github.com/prismworks/prism/infrastructure/provider"
	"github.com/prismworks/prism/infrastructure/resilience"
	"github.com/prismworks/prism/infrastructure/storage/badger"
	"github.com/prismworks/prism/infrastructure/storage/memory"
	"github.com/prismworks/prism/infrastructure/storage/postgres"
	"github.com/prismworks/prism/infrastructure/storage/redis"
	"github.com/prismworks/prism/infrastructure/storage/sqlite"
	"github.com/prismworks/prism/infrastructure/storage/weaviate"
	"github.com/prismworks/prism/infrastructure/telemetry"
)

// Builder assembles runtime components from configuration.
type Builder struct {
	config  *domainconfig.Config
	metrics telemetry.Metrics
}

// NewBuilder creates a new component builder.
func NewBuilder(config *domainconfig.Config, opts ...BuilderOption) *Builder {
	b := &Builder{config: config}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuilderOption configures the builder.
type BuilderOption func(*Builder)

// WithMetrics overrides the metrics recorder shared by the cache, router,
// and circuit breakers. Used by tests to observe recorded instruments.
func WithMetrics(m telemetry.Metrics) BuilderOption {
	return func(b *Builder) { b.metrics = m }
}

// BuildResult contains the assembled components.
type BuildResult struct {
	// Router is the configured model router.
	Router *application.Router
	// Cache is the response cache, nil when disabled.
	Cache *caching.IntelligentCache
	// Store is the persistent cache store, nil for memory-only setups.
	Store cache.Store
	// Backends are the enabled model backends.
	Backends []backend.Backend
	// Metrics is the recorder shared by the cache, router, and breakers.
	Metrics telemetry.Metrics

	closers []func(context.Context) error
}

// Close releases the resources held by the built components: flushes the
// cache and closes store connections.
func (r *BuildResult) Close(ctx context.Context) error {
	var firstErr error
	for _, close := range r.closers {
		if err := close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Build assembles the router, cache, store, and backends from the
// configuration. The context bounds connection establishment for remote
// stores.
func (b *Builder) Build(ctx context.Context) (*BuildResult, error) {
	b.initLogging()

	if b.metrics == nil {
		b.metrics = telemetry.NewMetricsProvider(telemetry.DefaultMetricsConfig())
	}
	result := &BuildResult{Metrics: b.metrics}

	if err := b.buildStore(ctx, result); err != nil {
		return nil, fmt.Errorf("%w: %v", domainconfig.ErrBuildFailed, err)
	}
	if err := b.buildCache(ctx, result); err != nil {
		return nil, fmt.Errorf("%w: %v", domainconfig.ErrBuildFailed, err)
	}
	if err := b.buildBackends(result); err != nil {
		return nil, fmt.Errorf("%w: %v", domainconfig.ErrBuildFailed, err)
	}
	if err := b.buildRouter(result); err != nil {
		return nil, fmt.Errorf("%w: %v", domainconfig.ErrBuildFailed, err)
	}

	return result, nil
}

func (b *Builder) initLogging() {
	cfg := logging.DefaultConfig()
	if b.config.Logging.Level != "" {
		cfg.Level = b.config.Logging.Level
	}
	if b.config.Logging.Format != "" {
		cfg.Format = b.config.Logging.Format
	}
	cfg.Output = os.Stderr
	logging.Init(cfg)
}

func (b *Builder) buildStore(ctx context.Context, result *BuildResult) error {
	storage := b.config.Storage

	switch storage.Kind {
	case "":
		return nil

	case domainconfig.StorageMemory:
		result.Store = memory.NewStore()
		return nil

	case domainconfig.StorageBadger:
		store, err := badger.NewStore(badger.Config{
			Dir:        storage.Badger.Dir,
			SyncWrites: storage.Badger.SyncWrites,
		})
		if err != nil {
			return fmt.Errorf("opening badger store: %w", err)
		}
		result.Store = store
		result.closers = append(result.closers, func(context.Context) error {
			return store.Close()
		})
		return nil

	case domainconfig.StorageSQLite:
		store, err := sqlite.NewStore(sqlite.Config{
			DSN:         storage.SQLite.DSN,
			BusyTimeout: storage.SQLite.BusyTimeoutMS,
		})
		if err != nil {
			return fmt.Errorf("opening sqlite store: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return fmt.Errorf("ensuring sqlite schema: %w", err)
		}
		result.Store = store
		result.closers = append(result.closers, func(context.Context) error {
			return store.Close()
		})
		return nil

	case domainconfig.StoragePostgres:
		pool, err := pgxpool.New(ctx, storage.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		schema := storage.Postgres.Schema
		store := postgres.NewStore(pool, schema)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return fmt.Errorf("ensuring postgres schema: %w", err)
		}
		result.Store = store
		result.closers = append(result.closers, func(context.Context) error {
			pool.Close()
			return nil
		})
		return nil

	case domainconfig.StorageRedis:
		opts := []redis.ConfigOption{redis.WithAddress(storage.Redis.Address)}
		if storage.Redis.Password != "" {
			opts = append(opts, redis.WithPassword(storage.Redis.Password))
		}
		if storage.Redis.DB != 0 {
			opts = append(opts, redis.WithDB(storage.Redis.DB))
		}
		if storage.Redis.KeyPrefix != "" {
			opts = append(opts, redis.WithKeyPrefix(storage.Redis.KeyPrefix))
		}
		store, err := redis.NewStore(redis.DefaultConfig(), opts...)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		result.Store = store
		result.closers = append(result.closers, func(context.Context) error {
			return store.Close()
		})
		return nil

	case domainconfig.StorageWeaviate:
		scheme := storage.Weaviate.Scheme
		if scheme == "" {
			scheme = "http"
		}
		store, err := weaviate.NewStore(weaviateclient.Config{
			Host:   storage.Weaviate.Host,
			Scheme: scheme,
		})
		if err != nil {
			return fmt.Errorf("connecting to weaviate: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensuring weaviate schema: %w", err)
		}
		result.Store = store
		return nil

	default:
		return fmt.Errorf("unknown storage kind: %s", storage.Kind)
	}
}

func (b *Builder) buildCache(ctx context.Context, result *BuildResult) error {
	if !b.config.Cache.Enabled {
		return nil
	}

	cfg := caching.DefaultConfig()
	if b.config.Cache.MaxEntries > 0 {
		cfg.MaxEntries = b.config.Cache.MaxEntries
	}
	if b.config.Cache.MaxMemoryMB > 0 {
		cfg.MaxBytes = int64(b.config.Cache.MaxMemoryMB) * 1024 * 1024
	}
	if b.config.Cache.LoadLimit > 0 {
		cfg.LoadLimit = b.config.Cache.LoadLimit
	}
	if d := b.config.Cache.LoadWindow.Duration(); d > 0 {
		cfg.LoadWindow = d
	}
	if b.config.Cache.FlushLimit > 0 {
		cfg.FlushLimit = b.config.Cache.FlushLimit
	}
	if d := b.config.Cache.FlushWindow.Duration(); d > 0 {
		cfg.FlushWindow = d
	}

	for name, budget := range b.config.Cache.Categories {
		category := cache.Category(name)
		if !category.Valid() {
			return fmt.Errorf("unknown cache category: %s", name)
		}
		cc := cfg.Categories[category]
		if d := budget.TTL.Duration(); d > 0 {
			cc.TTL = d
		}
		if budget.MaxEntries > 0 {
			cc.MaxEntries = budget.MaxEntries
		}
		cfg.Categories[category] = cc
	}

	opts := []caching.Option{caching.WithMetrics(b.metrics)}
	if result.Store != nil {
		opts = append(opts, caching.WithStore(result.Store))
	}

	c := caching.New(cfg, opts...)
	if result.Store != nil {
		if err := c.Load(ctx); err != nil {
			return fmt.Errorf("hydrating cache: %w", err)
		}
		result.closers = append([]func(context.Context) error{c.Flush}, result.closers...)
	}

	result.Cache = c
	return nil
}

func (b *Builder) buildBackends(result *BuildResult) error {
	if cfg := b.config.Backends.Anthropic; cfg.Enabled {
		result.Backends = append(result.Backends, provider.NewAnthropicBackend(provider.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.TimeoutSeconds,
		}))
	}
	if cfg := b.config.Backends.OpenRouter; cfg.Enabled {
		result.Backends = append(result.Backends, provider.NewOpenRouterBackend(provider.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.TimeoutSeconds,
		}))
	}
	if len(result.Backends) == 0 {
		return fmt.Errorf("no backends enabled")
	}
	return nil
}

func (b *Builder) buildRouter(result *BuildResult) error {
	opts := []application.RouterOption{application.WithMetrics(b.metrics)}

	if result.Cache != nil {
		opts = append(opts, application.WithCache(result.Cache))
	}

	retry := application.DefaultRetryPolicy()
	cfg := b.config.Router.Retry
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}
	if d := cfg.InitialDelay.Duration(); d > 0 {
		retry.InitialBackoff = d
	}
	if d := cfg.MaxDelay.Duration(); d > 0 {
		retry.MaxBackoff = d
	}
	if cfg.Multiplier >= 1 {
		retry.Multiplier = cfg.Multiplier
	}
	if d := cfg.AttemptTimeout.Duration(); d > 0 {
		retry.AttemptTimeout = d
	}
	opts = append(opts, application.WithRetryPolicy(retry))

	breaker := b.config.Router.CircuitBreaker
	threshold := 5
	recovery := 30 * time.Second
	if breaker.Threshold > 0 {
		threshold = breaker.Threshold
	}
	if d := breaker.RecoveryTimeout.Duration(); d > 0 {
		recovery = d
	}
	opts = append(opts, application.WithBreakerRegistry(
		resilience.NewRegistry(threshold, recovery, resilience.WithRegistryMetrics(b.metrics)),
	))

	router, err := application.NewRouter(result.Backends, opts...)
	if err != nil {
		return err
	}
	result.Router = router
	return nil
}
