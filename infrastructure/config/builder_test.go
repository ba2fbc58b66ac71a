package config

import (
	"context"
	"path/filepath"
	"testing"

	domainconfig "github.com/prismworks/prism/domain/config"
	"github.com/prismworks/prism/infrastructure/telemetry"
)

func buildableConfig() *domainconfig.Config {
	cfg := domainconfig.Default()
	cfg.Backends.Anthropic = domainconfig.BackendConfig{Enabled: true, APIKey: "sk-test"}
	return cfg
}

func TestBuilder_BasicBuild(t *testing.T) {
	builder := NewBuilder(buildableConfig())
	result, err := builder.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer result.Close(context.Background())

	if result.Router == nil {
		t.Fatal("Build() router is nil")
	}
	if result.Cache == nil {
		t.Error("Build() cache is nil, want enabled cache")
	}
	if len(result.Backends) != 1 {
		t.Errorf("Build() has %d backends, want 1", len(result.Backends))
	}
	if result.Backends[0].Name() != "anthropic" {
		t.Errorf("backend name = %s, want anthropic", result.Backends[0].Name())
	}
}

func TestBuilder_BothBackends(t *testing.T) {
	cfg := buildableConfig()
	cfg.Backends.OpenRouter = domainconfig.BackendConfig{Enabled: true, APIKey: "sk-or"}

	result, err := NewBuilder(cfg).Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer result.Close(context.Background())

	if len(result.Backends) != 2 {
		t.Errorf("Build() has %d backends, want 2", len(result.Backends))
	}
}

func TestBuilder_NoBackendsEnabled(t *testing.T) {
	cfg := domainconfig.Default()

	_, err := NewBuilder(cfg).Build(context.Background())
	if err == nil {
		t.Error("Build() should fail with no backends enabled")
	}
}

func TestBuilder_CacheDisabled(t *testing.T) {
	cfg := buildableConfig()
	cfg.Cache.Enabled = false

	result, err := NewBuilder(cfg).Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer result.Close(context.Background())

	if result.Cache != nil {
		t.Error("Build() cache should be nil when disabled")
	}
	if result.Router == nil {
		t.Error("Build() router should still be built")
	}
}

func TestBuilder_MemoryStorage(t *testing.T) {
	result, err := NewBuilder(buildableConfig()).Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer result.Close(context.Background())

	if result.Store == nil {
		t.Error("Build() store should be set for memory storage")
	}
}

func TestBuilder_BadgerStorage(t *testing.T) {
	cfg := buildableConfig()
	cfg.Storage.Kind = domainconfig.StorageBadger
	cfg.Storage.Badger = domainconfig.BadgerConfig{Dir: t.TempDir()}

	result, err := NewBuilder(cfg).Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer result.Close(context.Background())

	if result.Store == nil {
		t.Error("Build() store should be set for badger storage")
	}
}

func TestBuilder_SQLiteStorage(t *testing.T) {
	cfg := buildableConfig()
	cfg.Storage.Kind = domainconfig.StorageSQLite
	cfg.Storage.SQLite = domainconfig.SQLiteConfig{
		DSN: "file:" + filepath.Join(t.TempDir(), "prism.db"),
	}

	result, err := NewBuilder(cfg).Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer result.Close(context.Background())

	if result.Store == nil {
		t.Error("Build() store should be set for sqlite storage")
	}
}

func TestBuilder_NoStorage(t *testing.T) {
	cfg := buildableConfig()
	cfg.Storage.Kind = ""

	result, err := NewBuilder(cfg).Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer result.Close(context.Background())

	if result.Store != nil {
		t.Error("Build() store should be nil when storage kind is empty")
	}
}

func TestBuilder_UnknownCategory(t *testing.T) {
	cfg := buildableConfig()
	cfg.Cache.Categories = map[string]domainconfig.CategoryBudget{
		"bogus": {},
	}

	_, err := NewBuilder(cfg).Build(context.Background())
	if err == nil {
		t.Error("Build() should fail for unknown cache category")
	}
}

func TestBuilder_UnknownStorageKind(t *testing.T) {
	cfg := buildableConfig()
	cfg.Storage.Kind = "cassandra"

	_, err := NewBuilder(cfg).Build(context.Background())
	if err == nil {
		t.Error("Build() should fail for unknown storage kind")
	}
}

func TestBuildResult_CloseWithoutResources(t *testing.T) {
	result := &BuildResult{}
	if err := result.Close(context.Background()); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestBuilder_DefaultMetrics(t *testing.T) {
	result, err := NewBuilder(buildableConfig()).Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer result.Close(context.Background())

	if result.Metrics == nil {
		t.Fatal("Build() metrics is nil, want a default provider")
	}
	if _, ok := result.Metrics.(*telemetry.MetricsProvider); !ok {
		t.Errorf("metrics = %T, want *telemetry.MetricsProvider", result.Metrics)
	}
}

func TestBuilder_MetricsOverride(t *testing.T) {
	noop := &telemetry.NoopMetricsProvider{}

	result, err := NewBuilder(buildableConfig(), WithMetrics(noop)).Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer result.Close(context.Background())

	if result.Metrics != telemetry.Metrics(noop) {
		t.Errorf("metrics = %T, want the injected recorder", result.Metrics)
	}
}
