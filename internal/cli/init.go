package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Scaffold an experiment definition",
	Long: `Write a sample experiment definition for 'create --file' and print
quickstart instructions.

Example:
  splitkit init
  splitkit init experiments/hero.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	path := "experiment.yaml"
	if len(args) == 1 {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists, refusing to overwrite", path)
	}

	goal, err := promptGoalMetric()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte(scaffoldDefinition(goal)), 0644); err != nil {
		return fmt.Errorf("failed to write definition: %w", err)
	}

	printQuickstart(path)
	return nil
}

func promptGoalMetric() (string, error) {
	prompt := promptui.Select{
		Label: "Goal metric",
		Items: []string{"conversion", "addToCart", "revenue", "engagement"},
	}

	_, goal, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			os.Exit(0)
		}
		return "", err
	}
	return goal, nil
}

func scaffoldDefinition(goal string) string {
	return fmt.Sprintf(`name: hero
description: Product page hero test
goalMetric: %s
minSampleSize: 1000
confidenceLevel: 95
productIds:
  - prod-1
variants:
  - id: control
    name: Control
    templateId: tpl-control
    trafficAllocation: 50
  - id: challenger
    name: Challenger
    templateId: tpl-challenger
    trafficAllocation: 50
`, goal)
}

func printQuickstart(path string) {
	fmt.Printf("Wrote %s\n", path)
	fmt.Println()
	fmt.Println(strings.Repeat("-", 60))
	fmt.Println()
	fmt.Println("1. Edit the definition, then create the experiment")
	fmt.Println()
	fmt.Printf("   splitkit create --file %s\n", path)
	fmt.Println()
	fmt.Println("2. Start it")
	fmt.Println()
	fmt.Println("   splitkit status <experiment-id> --to running")
	fmt.Println()
	fmt.Println("3. Start the server and wire up your storefront")
	fmt.Println()
	fmt.Println("   splitkit serve")
	fmt.Println("   splitkit snippet <experiment-id>")
	fmt.Println()
	fmt.Println(strings.Repeat("-", 60))
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  results <id>   Show experiment statistics")
	fmt.Println("  winner <id>    Declare a winner and complete")
	fmt.Println("  list           List all experiments")
	fmt.Println("  export <id>    Export raw events")
}
