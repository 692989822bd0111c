package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwseok/lotto645-harvester/internal/draw"
)

// newResolveCmd creates and configures the 'resolve' subcommand. It prints
// the resolved newest round as JSON without harvesting anything.
func newResolveCmd() *cobra.Command {
	var (
		hint      int
		newerThan int
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolves the newest published round",
		Long: `Discovers the newest published round via the probe strategy with the
schedule fallback and prints the resolution as JSON. With --newer-than,
exits non-zero unless the resolved round exceeds the given value, which
makes the command usable as a freshness check in cron pipelines.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			res, err := appInstance.Resolve(cmd.Context(), draw.Round(hint))
			if err != nil {
				return fmt.Errorf("resolve round: %w", err)
			}

			out, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return fmt.Errorf("encode resolution: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if newerThan > 0 && int(res.Round) <= newerThan {
				return fmt.Errorf("resolved round %d is not newer than %d", res.Round, newerThan)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&hint, "hint", 0, "seed round for discovery")
	cmd.Flags().IntVar(&newerThan, "newer-than", 0, "fail unless the resolved round exceeds this value")

	return cmd
}
