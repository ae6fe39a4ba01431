package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/splitkit/splitkit/internal/experiment"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all experiments",
	Long:  `List all experiments with their status and event counts.`,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	return withStore(func(s *experiment.Store) error {
		ctx := context.Background()

		experiments, err := s.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list experiments: %w", err)
		}

		if len(experiments) == 0 {
			fmt.Println("No experiments yet.")
			fmt.Println()
			fmt.Println("Create one with:")
			fmt.Println("  splitkit create hero --variants \"control:50,challenger:50\"")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tVARIANTS\tGOAL\tEVENTS\tCREATED")

		for _, exp := range experiments {
			events, err := s.EventsByExperiment(ctx, exp.ExperimentID)
			if err != nil {
				return fmt.Errorf("failed to get events for %s: %w", exp.ExperimentID, err)
			}

			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%d\t%s\n",
				exp.ExperimentID,
				exp.Name,
				strings.ToUpper(string(exp.Status)),
				len(exp.Variants),
				exp.GoalMetric,
				len(events),
				exp.CreatedAt.Format("2006-01-02"),
			)
		}

		w.Flush()
		return nil
	})
}
