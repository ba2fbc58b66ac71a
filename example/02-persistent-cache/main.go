// Package main demonstrates cache persistence: responses cached in one
// process survive into the next run through a SQLite-backed store, and
// the optimizer reports on what the cache holds.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/prismworks/prism/domain/config"
	prism "github.com/prismworks/prism/interfaces/api"
)

func main() {
	cfg := config.Default()
	cfg.Backends.Anthropic = config.BackendConfig{
		Enabled: true,
		APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
	}
	cfg.Storage = config.StorageConfig{
		Kind:   config.StorageSQLite,
		SQLite: config.SQLiteConfig{DSN: "file:prism-cache.db"},
	}

	client, err := prism.New(prism.WithConfig(cfg))
	if err != nil {
		log.Fatalf("creating client: %v", err)
	}
	ctx := context.Background()
	// Close flushes the in-memory cache to the store.
	defer client.Close(ctx)

	resp, err := client.Complete(ctx, prism.Request{
		UseCase: prism.UseCaseAnalysis,
		Messages: []prism.Message{
			{Role: "user", Content: "Summarize the tradeoffs of write-through caching."},
		},
		MaxTokens: 300,
	})
	if err != nil {
		log.Fatalf("completion failed: %v", err)
	}
	fmt.Printf("cached: %v (run again to hit the persisted cache)\n", resp.Cached)

	if snap, ok := client.CacheMetrics(); ok {
		fmt.Printf("cache: %d entries, %d exact hits, %d misses\n",
			snap.Entries, snap.ExactHits, snap.Misses)
	}

	if report, ok := client.OptimizeCache(); ok {
		fmt.Printf("optimizer: %d entries optimized, %d bytes freed\n",
			report.EntriesOptimized, report.BytesFreed)
		for _, rec := range report.Recommendations {
			fmt.Println("  -", rec)
		}
	}
}
