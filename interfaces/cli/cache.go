package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/prismworks/prism/domain/cache"
	"github.com/prismworks/prism/infrastructure/config"
)

// cacheOptions holds options for the cache subcommands.
type cacheOptions struct {
	configPath string
}

// newCacheCmd creates the cache command group.
func (a *App) newCacheCmd() *cobra.Command {
	opts := &cacheOptions{}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the response cache",
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file")

	cmd.AddCommand(
		a.newCacheStatsCmd(opts),
		a.newCacheOptimizeCmd(opts),
		a.newCacheInvalidateCmd(opts),
	)

	return cmd
}

// newCacheStatsCmd creates the cache stats command.
func (a *App) newCacheStatsCmd(opts *cacheOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print cache hit rates and occupancy",
		Long: `Hydrate the cache from the configured store and print its counters:
hits per lookup stage, miss and eviction rates, live entries, and the
per-category breakdown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cacheStats(cmd, opts)
		},
	}
}

func (a *App) cacheStats(cmd *cobra.Command, opts *cacheOptions) error {
	components, err := a.buildComponents(cmd, opts)
	if err != nil {
		return err
	}
	defer components.Close(cmd.Context())

	snap := components.Cache.Metrics()

	fmt.Fprintf(a.stdout, "Cache statistics:\n")
	fmt.Fprintf(a.stdout, "  Requests: %d\n", snap.Requests)
	fmt.Fprintf(a.stdout, "  Hit rate: %.1f%%\n", snap.HitRate*100)
	fmt.Fprintf(a.stdout, "    exact: %d  semantic: %d  context: %d  predictive: %d\n",
		snap.ExactHits, snap.SemanticHits, snap.ContextHits, snap.PredictiveHits)
	fmt.Fprintf(a.stdout, "  Misses: %d (%.1f%%)\n", snap.Misses, snap.MissRate*100)
	fmt.Fprintf(a.stdout, "  Evictions: %d\n", snap.Evictions)
	fmt.Fprintf(a.stdout, "  Entries: %d (%.1f MB)\n", snap.Entries,
		float64(snap.MemoryBytes)/(1024*1024))
	if snap.AvgResponse > 0 {
		fmt.Fprintf(a.stdout, "  Avg lookup time: %s\n", snap.AvgResponse.Round(time.Microsecond))
	}

	if len(snap.ByCategory) > 0 {
		categories := make([]cache.Category, 0, len(snap.ByCategory))
		for c := range snap.ByCategory {
			categories = append(categories, c)
		}
		sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

		fmt.Fprintf(a.stdout, "  By category:\n")
		for _, c := range categories {
			fmt.Fprintf(a.stdout, "    %s: %d\n", c, snap.ByCategory[c])
		}
	}

	return nil
}

// newCacheOptimizeCmd creates the cache optimize command.
func (a *App) newCacheOptimizeCmd(opts *cacheOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "optimize",
		Short: "Run a cache maintenance pass",
		Long: `Evict underused entries, adapt category TTLs to observed access
frequency, and print operational recommendations.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cacheOptimize(cmd, opts)
		},
	}
}

func (a *App) cacheOptimize(cmd *cobra.Command, opts *cacheOptions) error {
	components, err := a.buildComponents(cmd, opts)
	if err != nil {
		return err
	}
	defer components.Close(cmd.Context())

	report := components.Cache.Optimize()

	fmt.Fprintf(a.stdout, "Optimization report:\n")
	fmt.Fprintf(a.stdout, "  Entries evicted: %d\n", report.EntriesOptimized)
	fmt.Fprintf(a.stdout, "  Bytes freed: %d\n", report.BytesFreed)

	if len(report.TTLAdjustments) > 0 {
		fmt.Fprintf(a.stdout, "  TTL adjustments:\n")
		for category, ttl := range report.TTLAdjustments {
			fmt.Fprintf(a.stdout, "    %s: %s\n", category, ttl)
		}
	}
	for _, rec := range report.Recommendations {
		fmt.Fprintf(a.stdout, "  Recommendation: %s\n", rec)
	}

	return nil
}

// newCacheInvalidateCmd creates the cache invalidate command.
func (a *App) newCacheInvalidateCmd(opts *cacheOptions) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "invalidate [pattern]",
		Short: "Invalidate cached entries matching a pattern",
		Long: `Remove every cached entry whose key or file path contains the given
substring, optionally restricted to one category.

Examples:
  prism cache invalidate -c config.yaml "auth.go"
  prism cache invalidate -c config.yaml --category analysis "user service"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cacheInvalidate(cmd, opts, args[0], cache.Category(category))
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Only invalidate entries in this category")

	return cmd
}

func (a *App) cacheInvalidate(cmd *cobra.Command, opts *cacheOptions, pattern string, category cache.Category) error {
	components, err := a.buildComponents(cmd, opts)
	if err != nil {
		return err
	}
	defer components.Close(cmd.Context())

	count := components.Cache.InvalidatePattern(cmd.Context(), pattern, category)
	fmt.Fprintf(a.stdout, "Invalidated %d entries\n", count)
	return nil
}

// buildComponents loads the config and assembles the runtime, requiring the
// cache to be enabled.
func (a *App) buildComponents(cmd *cobra.Command, opts *cacheOptions) (*config.BuildResult, error) {
	if opts.configPath == "" {
		return nil, fmt.Errorf("configuration file path is required (-c flag)")
	}

	cfg, err := config.NewLoader().LoadFile(opts.configPath)
	if err != nil {
		return nil, err
	}

	components, err := config.NewBuilder(cfg).Build(cmd.Context())
	if err != nil {
		return nil, err
	}
	if components.Cache == nil {
		components.Close(cmd.Context())
		return nil, fmt.Errorf("cache is disabled in %s", opts.configPath)
	}
	return components, nil
}
