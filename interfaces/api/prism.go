// Package api provides the public API for embedding the prism runtime.
//
// prism routes completion requests across model backends and caches
// responses intelligently. Lookups cascade from exact key matches through
// semantic and context fingerprints down to predictive similarity; routing
// picks the best model per request with circuit breakers and retry around
// every backend call.
//
// # Quick Start
//
// Build a client from a configuration file and route a request:
//
//	client, err := api.New(api.WithConfigFile("prism.yaml"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
//	resp, err := client.Complete(ctx, api.Request{
//	    Messages: []api.Message{{Role: "user", Content: "Explain this error"}},
//	    UseCase:  api.UseCaseAnalysis,
//	})
//
// Or assemble it in code:
//
//	cfg := config.Default()
//	cfg.Backends.Anthropic = config.BackendConfig{Enabled: true, APIKey: key}
//	client, err := api.New(api.WithConfig(cfg))
//
// Responses served from the cache carry Cached == true and cost no tokens.
package api

import (
	"context"
	"fmt"

	"github.com/prismworks/prism/application"
	"github.com/prismworks/prism/domain/backend"
	"github.com/prismworks/prism/domain/cache"
	domainconfig "github.com/prismworks/prism/domain/config"
	"github.com/prismworks/prism/infrastructure/caching"
	infraconfig "github.com/prismworks/prism/infrastructure/config"
)

// Re-exported request/response types.
type (
	// Request is a completion request.
	Request = backend.CompletionRequest
	// Response is a completion result.
	Response = backend.CompletionResponse
	// Message is a single chat message.
	Message = backend.Message
	// ModelSpec describes one model on one backend.
	ModelSpec = backend.ModelSpec
)

// Re-exported tiers and use cases.
const (
	TierPremium     = backend.TierPremium
	TierStandard    = backend.TierStandard
	TierEconomy     = backend.TierEconomy
	TierSpecialized = backend.TierSpecialized

	UseCaseCodeGeneration = backend.UseCaseCodeGeneration
	UseCaseChat           = backend.UseCaseChat
	UseCaseAnalysis       = backend.UseCaseAnalysis
	UseCaseRefactoring    = backend.UseCaseRefactoring
	UseCaseDocumentation  = backend.UseCaseDocumentation
	UseCaseGeneral        = backend.UseCaseGeneral
)

// Client is the embedding entry point: a configured router with its cache
// and backends.
type Client struct {
	components *infraconfig.BuildResult
}

// Option configures the client.
type Option func(*options)

type options struct {
	configFile string
	config     *domainconfig.Config
}

// WithConfigFile loads the configuration from a YAML or JSON file.
func WithConfigFile(path string) Option {
	return func(o *options) {
		o.configFile = path
	}
}

// WithConfig uses an in-memory configuration.
func WithConfig(cfg *domainconfig.Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// New creates a client. Exactly one configuration source must be given.
func New(opts ...Option) (*Client, error) {
	return NewContext(context.Background(), opts...)
}

// NewContext creates a client, bounding store connection establishment with
// the given context.
func NewContext(ctx context.Context, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg := o.config
	if o.configFile != "" {
		if cfg != nil {
			return nil, fmt.Errorf("use either WithConfigFile or WithConfig, not both")
		}
		loaded, err := infraconfig.NewLoader().LoadFile(o.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if cfg == nil {
		return nil, fmt.Errorf("a configuration is required: use WithConfigFile or WithConfig")
	}

	components, err := infraconfig.NewBuilder(cfg).Build(ctx)
	if err != nil {
		return nil, err
	}
	return &Client{components: components}, nil
}

// Complete routes a completion request: cache first, then the best
// available backend with retry and breaker protection.
func (c *Client) Complete(ctx context.Context, req Request) (Response, error) {
	return c.components.Router.Complete(ctx, req)
}

// Models returns the catalog of models across the enabled backends,
// ordered by selection priority.
func (c *Client) Models() []ModelSpec {
	return c.components.Router.Selector().Catalog()
}

// RouterMetrics returns the router's aggregate counters.
func (c *Client) RouterMetrics() application.Metrics {
	return c.components.Router.Metrics()
}

// CacheMetrics returns the cache counters, or false when the cache is
// disabled.
func (c *Client) CacheMetrics() (caching.Snapshot, bool) {
	if c.components.Cache == nil {
		return caching.Snapshot{}, false
	}
	return c.components.Cache.Metrics(), true
}

// OptimizeCache runs a cache maintenance pass, or returns false when the
// cache is disabled.
func (c *Client) OptimizeCache() (caching.Report, bool) {
	if c.components.Cache == nil {
		return caching.Report{}, false
	}
	return c.components.Cache.Optimize(), true
}

// InvalidateCache removes cached entries whose key or file path contains
// the substring, optionally restricted to a category. It returns the
// number of entries removed.
func (c *Client) InvalidateCache(ctx context.Context, substring string, category cache.Category) int {
	if c.components.Cache == nil {
		return 0
	}
	return c.components.Cache.InvalidatePattern(ctx, substring, category)
}

// Close flushes the cache to its store and releases connections.
func (c *Client) Close(ctx context.Context) error {
	return c.components.Close(ctx)
}
