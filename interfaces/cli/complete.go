package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/prismworks/prism/domain/backend"
	"github.com/prismworks/prism/infrastructure/config"
)

// completeOptions holds options for the complete command.
type completeOptions struct {
	configPath string
	model      string
	tier       string
	useCase    string
	system     string
	maxTokens  int
	noCache    bool
	showUsage  bool
}

// newCompleteCmd creates the complete command.
func (a *App) newCompleteCmd() *cobra.Command {
	opts := &completeOptions{}

	cmd := &cobra.Command{
		Use:   "complete [prompt]",
		Short: "Route a completion request to the best backend",
		Long: `Send a prompt through the router: the cache is consulted first, then the
best available model is selected and called with retry and circuit breaker
protection.

Examples:
  # Route to the best model automatically
  prism complete -c config.yaml "Explain this error message"

  # Pin a model and skip the cache
  prism complete -c config.yaml --model claude-sonnet-4 --no-cache "..."

  # Prefer a cheap model for a quick task
  prism complete -c config.yaml --tier economy "Summarize: ..."`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runComplete(cmd, opts, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&opts.model, "model", "", "Pin a specific model")
	cmd.Flags().StringVar(&opts.tier, "tier", "", "Narrow selection to a tier (premium, standard, economy, specialized)")
	cmd.Flags().StringVar(&opts.useCase, "use-case", "", "Declare the use case (code_generation, chat, analysis, refactoring, documentation)")
	cmd.Flags().StringVar(&opts.system, "system", "", "System prompt")
	cmd.Flags().IntVar(&opts.maxTokens, "max-tokens", 0, "Maximum completion tokens")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "Bypass the response cache")
	cmd.Flags().BoolVar(&opts.showUsage, "usage", false, "Print token usage")

	return cmd
}

func (a *App) runComplete(cmd *cobra.Command, opts *completeOptions, prompt string) error {
	if opts.configPath == "" {
		return fmt.Errorf("configuration file path is required (-c flag)")
	}

	ctx := cmd.Context()

	cfg, err := config.NewLoader().LoadFile(opts.configPath)
	if err != nil {
		return err
	}

	components, err := config.NewBuilder(cfg).Build(ctx)
	if err != nil {
		return err
	}
	defer components.Close(ctx)

	req := backend.CompletionRequest{
		Model:     opts.model,
		Tier:      backend.Tier(opts.tier),
		UseCase:   backend.UseCase(opts.useCase),
		MaxTokens: opts.maxTokens,
		NoCache:   opts.noCache,
	}
	if opts.system != "" {
		req.Messages = append(req.Messages, backend.Message{Role: "system", Content: opts.system})
	}
	req.Messages = append(req.Messages, backend.Message{Role: "user", Content: prompt})

	start := time.Now()
	resp, err := components.Router.Complete(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, resp.Message.Content)

	if opts.showUsage {
		source := fmt.Sprintf("%s/%s", resp.Backend, resp.Model)
		if resp.Cached {
			source = "cache"
		}
		fmt.Fprintf(a.stderr, "\n[%s] %d prompt + %d completion = %d tokens, %s\n",
			source, resp.Usage.PromptTokens, resp.Usage.CompletionTokens,
			resp.Usage.TotalTokens, elapsed.Round(time.Millisecond))
	}

	return nil
}
