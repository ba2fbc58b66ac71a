// Package config loads prism configuration files and assembles the runtime
// components they describe.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/prismworks/prism/domain/config"
)

// Format identifies a configuration encoding.
type Format string

const (
	// FormatYAML is the YAML encoding.
	FormatYAML Format = "yaml"
	// FormatJSON is the JSON encoding.
	FormatJSON Format = "json"
)

// formatForPath maps a file extension onto its Format.
func formatForPath(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", config.ErrUnsupportedFormat, ext)
	}
}

// Loader reads configuration, expanding ${VAR} references and validating
// the result.
type Loader struct {
	// ExpandEnv substitutes environment variable references before parsing.
	ExpandEnv bool
	// StrictEnv reports unset referenced variables as errors.
	StrictEnv bool
	// Validate rejects configurations that fail validation.
	Validate bool
}

// NewLoader returns a loader with expansion and validation enabled.
func NewLoader() *Loader {
	return &Loader{ExpandEnv: true, Validate: true}
}

// LoaderOption adjusts loader behavior.
type LoaderOption func(*Loader)

// WithEnvExpansion enables or disables environment variable expansion.
func WithEnvExpansion(enabled bool) LoaderOption {
	return func(l *Loader) {
		l.ExpandEnv = enabled
	}
}

// WithStrictEnv makes unset referenced variables an error.
func WithStrictEnv(enabled bool) LoaderOption {
	return func(l *Loader) {
		l.StrictEnv = enabled
	}
}

// WithValidation enables or disables configuration validation.
func WithValidation(enabled bool) LoaderOption {
	return func(l *Loader) {
		l.Validate = enabled
	}
}

// NewLoaderWithOptions returns a loader with the given adjustments applied
// on top of the defaults.
func NewLoaderWithOptions(opts ...LoaderOption) *Loader {
	l := NewLoader()
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadFile reads and parses the configuration file at path. The format is
// derived from the file extension.
func (l *Loader) LoadFile(path string) (*config.Config, error) {
	format, err := formatForPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return l.parse(data, format)
}

// Load parses configuration from a reader.
func (l *Loader) Load(r io.Reader, format Format) (*config.Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return l.parse(data, format)
}

// LoadString parses configuration from an inline string.
func (l *Loader) LoadString(content string, format Format) (*config.Config, error) {
	return l.parse([]byte(content), format)
}

func (l *Loader) parse(data []byte, format Format) (*config.Config, error) {
	if l.ExpandEnv {
		expander := &envExpander{strict: l.StrictEnv}
		expanded, err := expander.Expand(string(data))
		if err != nil {
			return nil, err
		}
		data = []byte(expanded)
	}

	cfg := &config.Config{}
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, cfg)
	case FormatJSON:
		err = json.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidFormat, err)
	}

	if l.Validate {
		if errs := config.NewValidator().Validate(cfg); errs.HasErrors() {
			return nil, fmt.Errorf("%w: %v", config.ErrValidationFailed, errs)
		}
	}
	return cfg, nil
}
