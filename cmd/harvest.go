// Package cmd defines and implements the CLI commands for the harvester
// executable.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jwseok/lotto645-harvester/internal/app"
	"github.com/jwseok/lotto645-harvester/internal/draw"
)

// newHarvestCmd creates and configures the 'harvest' subcommand. It runs one
// synchronous harvest and prints a summary of the persisted snapshot.
func newHarvestCmd() *cobra.Command {
	var (
		roundFlags []int
		window     int
		hint       int
	)

	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Runs one harvest and writes a snapshot",
		Long: `Discovers the newest published round, harvests the winner-store listings
for the selected rounds, and writes the aggregated snapshot to the
configured directory. Explicit --rounds win over --window.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			opts := app.RunOptions{
				Window: window,
				Hint:   draw.Round(hint),
			}
			for _, round := range roundFlags {
				if round < 1 {
					return fmt.Errorf("round %d out of range", round)
				}
				opts.Rounds = append(opts.Rounds, draw.Round(round))
			}

			snap, err := appInstance.Run(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("run harvest: %w", err)
			}

			records := 0
			for _, recs := range snap.ByRound {
				records += len(recs)
			}
			appInstance.Logger().Info("harvest finished",
				zap.String("run_id", snap.Meta.RunID),
				zap.Int("latest_round", int(snap.Meta.LatestRound)),
				zap.Int("rounds", len(snap.Meta.Window)),
				zap.Int("records", records),
				zap.Int("failures", len(snap.Meta.Failures)))

			fmt.Fprintf(cmd.OutOrStdout(),
				"run %s: %d rounds, %d records, %d failures (latest round %d)\n",
				snap.Meta.RunID, len(snap.Meta.Window), records,
				len(snap.Meta.Failures), snap.Meta.LatestRound)
			for _, failure := range snap.Meta.Failures {
				fmt.Fprintf(cmd.OutOrStdout(), "  failed %s: %s\n", failure.Unit, failure.Reason)
			}
			return nil
		},
	}

	cmd.Flags().IntSliceVar(&roundFlags, "rounds", nil, "explicit rounds to harvest")
	cmd.Flags().IntVar(&window, "window", 0, "rounds back from the newest (default from config)")
	cmd.Flags().IntVar(&hint, "hint", 0, "seed round for discovery")
	cmd.Flags().StringVar(&outDir, "out", "", "snapshot directory (overrides config)")

	return cmd
}
