package config

import (
	"fmt"
	"strings"

	"github.com/prismworks/prism/domain/cache"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	// Path is the JSON path to the invalid field.
	Path string
	// Message describes the validation error.
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d validation errors:\n  - %s", len(e), strings.Join(msgs, "\n  - "))
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates prism configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(config *Config) ValidationErrors {
	v.errors = nil

	v.validateRequired(config)
	v.validateCache(config)
	v.validateRouter(config)
	v.validateBackends(config)
	v.validateStorage(config)
	v.validateLogging(config)

	return v.errors
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

func (v *Validator) validateRequired(config *Config) {
	if config.Name == "" {
		v.addError("name", "name is required")
	}
	if config.Version == "" {
		v.addError("version", "version is required")
	}
}

func (v *Validator) validateCache(config *Config) {
	if config.Cache.MaxEntries < 0 {
		v.addError("cache.max_entries", "max_entries must be non-negative")
	}
	if config.Cache.MaxMemoryMB < 0 {
		v.addError("cache.max_memory_mb", "max_memory_mb must be non-negative")
	}
	if config.Cache.LoadLimit < 0 {
		v.addError("cache.load_limit", "load_limit must be non-negative")
	}
	if config.Cache.FlushLimit < 0 {
		v.addError("cache.flush_limit", "flush_limit must be non-negative")
	}

	known := make(map[string]bool)
	for _, c := range cache.Categories() {
		known[string(c)] = true
	}
	for name, budget := range config.Cache.Categories {
		path := fmt.Sprintf("cache.categories.%s", name)
		if !known[name] {
			v.addError(path, fmt.Sprintf("unknown category: %s", name))
		}
		if budget.TTL < 0 {
			v.addError(path+".ttl", "ttl must be non-negative")
		}
		if budget.MaxEntries < 0 {
			v.addError(path+".max_entries", "max_entries must be non-negative")
		}
	}
}

func (v *Validator) validateRouter(config *Config) {
	retry := config.Router.Retry
	if retry.MaxAttempts < 0 {
		v.addError("router.retry.max_attempts", "max_attempts must be non-negative")
	}
	if retry.Multiplier != 0 && retry.Multiplier < 1 {
		v.addError("router.retry.multiplier", "multiplier must be >= 1")
	}
	if retry.InitialDelay < 0 {
		v.addError("router.retry.initial_delay", "initial_delay must be non-negative")
	}
	if retry.MaxDelay < 0 {
		v.addError("router.retry.max_delay", "max_delay must be non-negative")
	}
	if retry.MaxDelay > 0 && retry.InitialDelay > retry.MaxDelay {
		v.addError("router.retry.initial_delay", "initial_delay must not exceed max_delay")
	}

	breaker := config.Router.CircuitBreaker
	if breaker.Threshold < 0 {
		v.addError("router.circuit_breaker.threshold", "threshold must be non-negative")
	}
	if breaker.RecoveryTimeout < 0 {
		v.addError("router.circuit_breaker.recovery_timeout", "recovery_timeout must be non-negative")
	}
}

func (v *Validator) validateBackends(config *Config) {
	v.validateBackend("backends.anthropic", config.Backends.Anthropic)
	v.validateBackend("backends.openrouter", config.Backends.OpenRouter)
}

func (v *Validator) validateBackend(path string, backend BackendConfig) {
	if !backend.Enabled {
		return
	}
	if backend.APIKey == "" {
		v.addError(path+".api_key", "api_key is required when enabled")
	}
	if backend.TimeoutSeconds < 0 {
		v.addError(path+".timeout_seconds", "timeout_seconds must be non-negative")
	}
}

func (v *Validator) validateStorage(config *Config) {
	switch config.Storage.Kind {
	case "", StorageMemory:
	case StorageBadger:
		if config.Storage.Badger.Dir == "" {
			v.addError("storage.badger.dir", "dir is required for badger storage")
		}
	case StorageSQLite:
		if config.Storage.SQLite.DSN == "" {
			v.addError("storage.sqlite.dsn", "dsn is required for sqlite storage")
		}
	case StoragePostgres:
		if config.Storage.Postgres.DSN == "" {
			v.addError("storage.postgres.dsn", "dsn is required for postgres storage")
		}
	case StorageRedis:
		if config.Storage.Redis.Address == "" {
			v.addError("storage.redis.address", "address is required for redis storage")
		}
	case StorageWeaviate:
		if config.Storage.Weaviate.Host == "" {
			v.addError("storage.weaviate.host", "host is required for weaviate storage")
		}
	default:
		v.addError("storage.kind", fmt.Sprintf("unknown storage kind: %s", config.Storage.Kind))
	}
}

func (v *Validator) validateLogging(config *Config) {
	if config.Logging.Level != "" {
		validLevels := map[string]bool{
			"trace": true, "debug": true, "info": true,
			"warn": true, "error": true, "fatal": true,
		}
		if !validLevels[strings.ToLower(config.Logging.Level)] {
			v.addError("logging.level", fmt.Sprintf("invalid level: %s", config.Logging.Level))
		}
	}
	if config.Logging.Format != "" {
		validFormats := map[string]bool{"json": true, "console": true}
		if !validFormats[strings.ToLower(config.Logging.Format)] {
			v.addError("logging.format", fmt.Sprintf("invalid format: %s", config.Logging.Format))
		}
	}
}
