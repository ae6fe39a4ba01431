package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/splitkit/splitkit/internal/experiment"
	"github.com/splitkit/splitkit/internal/stats"
)

func init() {
	rootCmd.AddCommand(newWinnerCmd())
}

func newWinnerCmd() *cobra.Command {
	var variantID string

	cmd := &cobra.Command{
		Use:   "winner <experiment-id>",
		Short: "Declare a winner and complete an experiment",
		Long: `Declare a winning variant for an experiment and mark it completed.

Without --variant the winner is taken from the statistical analysis, and
the command refuses to complete an experiment that has no significant
winner yet. Pass --variant to override.

Example:
  splitkit winner exp-42
  splitkit winner exp-42 --variant b`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			experimentID := args[0]

			return withStore(func(s *experiment.Store) error {
				ctx := context.Background()

				exp, err := s.Get(ctx, experimentID)
				if err != nil {
					return fmt.Errorf("experiment not found: %s", experimentID)
				}

				if exp.Status != experiment.StatusRunning && exp.Status != experiment.StatusPaused {
					return fmt.Errorf("experiment is not active (current status: %s)", exp.Status)
				}

				winner := variantID
				if winner == "" {
					events, err := s.EventsByExperiment(ctx, experimentID)
					if err != nil {
						return fmt.Errorf("failed to fetch events: %w", err)
					}
					results := stats.Aggregate(exp, events)
					if results.Winner == "" {
						return fmt.Errorf("no statistically significant winner yet. Keep the experiment running, or pass --variant to override")
					}
					winner = results.Winner
				} else if exp.Variant(winner) == nil {
					return fmt.Errorf("unknown variant: %s", winner)
				}

				if err := s.Update(ctx, experimentID, map[string]any{
					"winnerVariantId": winner,
					"endDate":         time.Now().UTC().Format(time.RFC3339Nano),
				}); err != nil {
					return fmt.Errorf("failed to record winner: %w", err)
				}
				if err := s.SetStatus(ctx, experimentID, experiment.StatusCompleted); err != nil {
					return fmt.Errorf("failed to complete experiment: %w", err)
				}

				variant := exp.Variant(winner)
				fmt.Printf("Declared winner for '%s': %s (%q)\n", exp.Name, winner, variant.Name)
				fmt.Println("Experiment has been marked as completed.")

				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&variantID, "variant", "v", "", "winning variant id (default: statistical winner)")

	return cmd
}
