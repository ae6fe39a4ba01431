package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/splitkit/splitkit/internal/docstore"
	"github.com/splitkit/splitkit/internal/experiment"
	"github.com/splitkit/splitkit/internal/stats"
)

var resultsCmd = &cobra.Command{
	Use:   "results <experiment-id>",
	Short: "Show detailed results for an experiment",
	Long:  `Show per-variant metrics, confidence intervals, the significance verdict and the recommended action.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runResults,
}

func init() {
	rootCmd.AddCommand(resultsCmd)
}

func runResults(cmd *cobra.Command, args []string) error {
	experimentID := args[0]

	return withStore(func(s *experiment.Store) error {
		ctx := context.Background()

		exp, err := s.Get(ctx, experimentID)
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return fmt.Errorf("experiment '%s' not found", experimentID)
			}
			return fmt.Errorf("failed to get experiment: %w", err)
		}

		events, err := s.EventsByExperiment(ctx, experimentID)
		if err != nil {
			return fmt.Errorf("failed to get events: %w", err)
		}

		results := stats.Aggregate(exp, events)

		// Print header
		fmt.Printf("EXPERIMENT: %s (%s)\n", exp.Name, exp.ExperimentID)
		fmt.Printf("STATUS: %s\n", exp.Status)
		fmt.Printf("GOAL: %s\n", exp.GoalMetric)
		fmt.Printf("CREATED: %s\n", exp.CreatedAt.Format("2006-01-02"))
		fmt.Println()

		// Print table header
		fmt.Printf("VARIANT           IMPRESSIONS  CONVERSIONS  RATE     REVENUE    %d%% CI\n", exp.ConfidenceLevel)
		fmt.Println(strings.Repeat("─", 78))

		for _, v := range results.Variants {
			indicator := ""
			if v.VariantID == results.Winner {
				indicator = " ← WINNER"
			}

			ciStr := fmt.Sprintf("[%.1f%%, %.1f%%]", v.ConfidenceInterval[0]*100, v.ConfidenceInterval[1]*100)
			if v.Impressions == 0 {
				ciStr = "N/A"
			}

			// Truncate id if too long
			id := v.VariantID
			if len(id) > 16 {
				id = id[:13] + "..."
			}

			fmt.Printf("%-16s  %-11d  %-11d  %-7s  %-9s  %s%s\n",
				id,
				v.Impressions,
				v.Conversions,
				formatPercent(v.ConversionRate),
				fmt.Sprintf("$%.2f", v.Revenue),
				ciStr,
				indicator,
			)
		}

		fmt.Println()
		fmt.Printf("p-value: %.4f\n", results.StatisticalSignificance)

		switch results.RecommendedAction {
		case stats.ActionDeclareWinner:
			fmt.Printf("Recommended action: declare winner (\"%s\")\n", results.Winner)
		case stats.ActionStop:
			fmt.Println("Recommended action: stop (enough data collected, no significant difference)")
		default:
			fmt.Println("Recommended action: continue collecting data")
		}

		return nil
	})
}

func formatPercent(rate float64) string {
	if rate == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", rate*100)
}
