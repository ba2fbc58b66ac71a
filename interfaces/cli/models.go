package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/prismworks/prism/infrastructure/config"
)

// modelsOptions holds options for the models command.
type modelsOptions struct {
	configPath string
	tier       string
}

// newModelsCmd creates the models command.
func (a *App) newModelsCmd() *cobra.Command {
	opts := &modelsOptions{}

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the model catalog across enabled backends",
		Long: `List every model the enabled backends advertise, ordered by selection
priority. The router picks from this catalog on each request.

Examples:
  prism models -c config.yaml
  prism models -c config.yaml --tier economy`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listModels(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&opts.tier, "tier", "", "Only show models in this tier")

	return cmd
}

func (a *App) listModels(cmd *cobra.Command, opts *modelsOptions) error {
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

	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BACKEND\tMODEL\tTIER\tPRIORITY\tCOST/1K\tUSE CASES")
	for _, spec := range components.Router.Selector().Catalog() {
		if opts.tier != "" && string(spec.Tier) != opts.tier {
			continue
		}
		useCases := make([]string, 0, len(spec.UseCases))
		for _, uc := range spec.UseCases {
			useCases = append(useCases, string(uc))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t$%.4f\t%s\n",
			spec.Backend, spec.Model, spec.Tier, spec.Priority,
			spec.Capabilities.CostPer1K, strings.Join(useCases, ","))
	}
	return w.Flush()
}
