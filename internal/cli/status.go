package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/splitkit/splitkit/internal/docstore"
	"github.com/splitkit/splitkit/internal/experiment"
)

func init() {
	rootCmd.AddCommand(newStatusCmd())
}

func newStatusCmd() *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "status <experiment-id>",
		Short: "Show or change an experiment's lifecycle state",
		Long: `Show an experiment's lifecycle state, or transition it with --to.

Only running experiments accept new variant assignments. Allowed
transitions: draft→running, running→paused|completed, paused→running|completed.

Examples:
  splitkit status exp-123
  splitkit status exp-123 --to running
  splitkit status exp-123 --to completed`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

				if to == "" {
					allowed := allowedTransitions(exp.Status)
					if len(allowed) == 0 {
						fmt.Printf("Experiment '%s' is %s (terminal state).\n", exp.Name, exp.Status)
						return nil
					}

					prompt := promptui.Select{
						Label: fmt.Sprintf("Experiment is %s, transition to", exp.Status),
						Items: allowed,
					}
					_, to, err = prompt.Run()
					if err != nil {
						if err == promptui.ErrInterrupt {
							return fmt.Errorf("cancelled")
						}
						return err
					}
				}

				next := experiment.Status(to)
				if !next.Valid() {
					return fmt.Errorf("unknown status '%s'", to)
				}

				if err := s.SetStatus(ctx, experimentID, next); err != nil {
					return fmt.Errorf("failed to change status: %w", err)
				}

				fmt.Printf("Experiment '%s' is now %s.\n", exp.Name, next)
				if next == experiment.StatusRunning {
					fmt.Println("New sessions will receive variant assignments.")
				}

				return nil
			})
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "target status (running, paused, completed)")

	return cmd
}

func allowedTransitions(s experiment.Status) []string {
	var allowed []string
	for _, next := range []experiment.Status{
		experiment.StatusRunning,
		experiment.StatusPaused,
		experiment.StatusCompleted,
	} {
		if s.CanTransitionTo(next) {
			allowed = append(allowed, string(next))
		}
	}
	return allowed
}
