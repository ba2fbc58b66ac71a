package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prismworks/prism/infrastructure/config"
)

// validateOptions holds options for the validate command.
type validateOptions struct {
	configPath string
	strict     bool
}

// newValidateCmd creates the validate command.
func (a *App) newValidateCmd() *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Long: `Validate a prism configuration file for correctness.

This command checks:
  - File format (YAML or JSON)
  - Required fields (name, version)
  - Field types and constraints
  - Cache category names and budgets
  - Backend and storage settings
  - Environment variable references (in strict mode)

Examples:
  # Validate a configuration file
  prism validate -c config.yaml

  # Strict validation (fail on missing env vars)
  prism validate -c config.yaml --strict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.validateConfig(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Enable strict validation (fail on missing env vars)")

	return cmd
}

// validateConfig validates the configuration file.
func (a *App) validateConfig(opts *validateOptions) error {
	if opts.configPath == "" {
		return fmt.Errorf("configuration file path is required (-c flag)")
	}

	loaderOpts := []config.LoaderOption{
		config.WithValidation(true),
	}
	if opts.strict {
		loaderOpts = append(loaderOpts, config.WithStrictEnv(true))
	}

	loader := config.NewLoaderWithOptions(loaderOpts...)
	cfg, err := loader.LoadFile(opts.configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Fprintf(a.stdout, "✓ Configuration is valid\n")
	fmt.Fprintf(a.stdout, "  Name: %s\n", cfg.Name)
	fmt.Fprintf(a.stdout, "  Version: %s\n", cfg.Version)
	if cfg.Description != "" {
		fmt.Fprintf(a.stdout, "  Description: %s\n", cfg.Description)
	}

	fmt.Fprintf(a.stdout, "\nConfiguration summary:\n")
	if cfg.Cache.Enabled {
		fmt.Fprintf(a.stdout, "  Cache: enabled (max entries=%d, memory=%dMB)\n",
			cfg.Cache.MaxEntries, cfg.Cache.MaxMemoryMB)
		for name, budget := range cfg.Cache.Categories {
			fmt.Fprintf(a.stdout, "    - %s: ttl=%s max=%d\n",
				name, budget.TTL.Duration(), budget.MaxEntries)
		}
	} else {
		fmt.Fprintf(a.stdout, "  Cache: disabled\n")
	}

	var backends []string
	if cfg.Backends.Anthropic.Enabled {
		backends = append(backends, "anthropic")
	}
	if cfg.Backends.OpenRouter.Enabled {
		backends = append(backends, "openrouter")
	}
	fmt.Fprintf(a.stdout, "  Backends: %d enabled\n", len(backends))
	for _, name := range backends {
		fmt.Fprintf(a.stdout, "    - %s\n", name)
	}

	kind := cfg.Storage.Kind
	if kind == "" {
		kind = "none"
	}
	fmt.Fprintf(a.stdout, "  Storage: %s\n", kind)

	if cfg.Router.Retry.MaxAttempts > 0 {
		fmt.Fprintf(a.stdout, "  Retry: %d attempts, initial delay %s\n",
			cfg.Router.Retry.MaxAttempts, cfg.Router.Retry.InitialDelay.Duration())
	}
	if cfg.Router.CircuitBreaker.Threshold > 0 {
		fmt.Fprintf(a.stdout, "  Circuit breaker: threshold %d, recovery %s\n",
			cfg.Router.CircuitBreaker.Threshold, cfg.Router.CircuitBreaker.RecoveryTimeout.Duration())
	}

	return nil
}
