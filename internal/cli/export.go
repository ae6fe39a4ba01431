package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/splitkit/splitkit/internal/docstore"
	"github.com/splitkit/splitkit/internal/experiment"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export <experiment-id>",
	Short: "Export raw conversion events",
	Long: `Export an experiment's raw conversion events in CSV or JSON format.

Examples:
  splitkit export exp-123 --format csv > events.csv
  splitkit export exp-123 --format json > events.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "output format (csv or json)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	experimentID := args[0]

	if exportFormat != "csv" && exportFormat != "json" {
		return fmt.Errorf("invalid format: must be 'csv' or 'json'")
	}

	return withStore(func(s *experiment.Store) error {
		ctx := context.Background()

		// Verify experiment exists
		_, err := s.Get(ctx, experimentID)
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

		if exportFormat == "csv" {
			return exportCSV(events)
		}
		return exportJSON(events)
	})
}

func exportCSV(events []experiment.Event) error {
	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	// Write header
	if err := w.Write([]string{"timestamp", "event_id", "variant_id", "session_id", "product_id", "event_type", "revenue"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, e := range events {
		revenue := ""
		if e.Revenue != nil {
			revenue = strconv.FormatFloat(*e.Revenue, 'f', 2, 64)
		}
		row := []string{
			strconv.FormatInt(e.Timestamp.Unix(), 10),
			e.EventID,
			e.VariantID,
			e.SessionID,
			e.ProductID,
			string(e.EventType),
			revenue,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	return nil
}

func exportJSON(events []experiment.Event) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string][]experiment.Event{"events": events})
}
