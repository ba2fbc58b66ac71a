// Package main demonstrates the smallest useful prism setup: an
// in-process client routing a single completion through Anthropic
// with the response cache enabled.
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

	client, err := prism.New(prism.WithConfig(cfg))
	if err != nil {
		log.Fatalf("creating client: %v", err)
	}
	ctx := context.Background()
	defer client.Close(ctx)

	resp, err := client.Complete(ctx, prism.Request{
		Tier:    prism.TierEconomy,
		UseCase: prism.UseCaseChat,
		Messages: []prism.Message{
			{Role: "user", Content: "In one sentence, what is a bloom filter?"},
		},
		MaxTokens: 200,
	})
	if err != nil {
		log.Fatalf("completion failed: %v", err)
	}

	fmt.Printf("[%s/%s] %s\n", resp.Backend, resp.Model, resp.Message.Content)
	fmt.Printf("tokens: %d prompt + %d completion\n",
		resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	// The identical request is now served from the cache.
	again, err := client.Complete(ctx, prism.Request{
		Tier:    prism.TierEconomy,
		UseCase: prism.UseCaseChat,
		Messages: []prism.Message{
			{Role: "user", Content: "In one sentence, what is a bloom filter?"},
		},
		MaxTokens: 200,
	})
	if err != nil {
		log.Fatalf("second completion failed: %v", err)
	}
	fmt.Printf("second call cached: %v\n", again.Cached)
}
