package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/splitkit/splitkit/internal/experiment"
	"github.com/splitkit/splitkit/internal/snippets"
)

func init() {
	rootCmd.AddCommand(newSnippetCmd())
}

func newSnippetCmd() *cobra.Command {
	var framework string
	var serverURL string

	cmd := &cobra.Command{
		Use:   "snippet <experiment-id>",
		Short: "Generate integration code for an experiment",
		Long: `Generate copy-paste-ready code for calling the assignment and tracking
API from a storefront.

For a completed experiment with a declared winner, the generated code
pins every visitor to the winning variant instead of calling the assign
endpoint.

Example:
  splitkit snippet exp-42 --framework react`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			experimentID := args[0]

			return withStore(func(s *experiment.Store) error {
				exp, err := s.Get(context.Background(), experimentID)
				if err != nil {
					return fmt.Errorf("experiment not found: %s", experimentID)
				}

				fw := snippets.Framework(framework)
				if framework == "" {
					fw, err = promptFramework()
					if err != nil {
						return err
					}
				}

				url := serverURL
				if url == "" {
					url, err = promptServerURL()
					if err != nil {
						return err
					}
				}

				variantIDs := make([]string, len(exp.Variants))
				for i, v := range exp.Variants {
					variantIDs[i] = v.ID
				}

				config := snippets.Config{
					ExperimentID: exp.ExperimentID,
					VariantIDs:   variantIDs,
					ServerURL:    url,
				}
				if exp.Status == experiment.StatusCompleted && exp.WinnerVariantID != "" {
					config.WinnerVariantID = exp.WinnerVariantID
				}

				files, err := snippets.Generate(fw, config)
				if err != nil {
					return fmt.Errorf("failed to generate snippet: %w", err)
				}

				printSnippets(files)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&framework, "framework", "f", "", "framework (curl, js, react, nextjs)")
	cmd.Flags().StringVarP(&serverURL, "server-url", "s", "", "server URL (e.g., https://splitkit.example.com)")

	return cmd
}

func promptFramework() (snippets.Framework, error) {
	frameworks := []struct {
		Name      string
		Framework snippets.Framework
	}{
		{"curl (plain HTTP)", snippets.FrameworkCurl},
		{"JavaScript (vanilla fetch)", snippets.FrameworkJS},
		{"React", snippets.FrameworkReact},
		{"Next.js", snippets.FrameworkNextJS},
	}

	items := make([]string, len(frameworks))
	for i, f := range frameworks {
		items[i] = f.Name
	}

	prompt := promptui.Select{
		Label: "Select framework",
		Items: items,
		Size:  4,
	}

	idx, _, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			os.Exit(0)
		}
		return "", err
	}

	return frameworks[idx].Framework, nil
}

func promptServerURL() (string, error) {
	defaultURL := os.Getenv("SPLITKIT_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}

	prompt := promptui.Prompt{
		Label:   "Server URL",
		Default: defaultURL,
	}

	result, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			os.Exit(0)
		}
		return "", err
	}

	return strings.TrimRight(result, "/"), nil
}

func printSnippets(files []snippets.SnippetFile) {
	for i, file := range files {
		if i > 0 {
			fmt.Println()
		}
		fmt.Println(strings.Repeat("=", 62))
		fmt.Printf(" %s\n", file.Filename)
		fmt.Println(strings.Repeat("=", 62))
		fmt.Println()
		fmt.Println(file.Content)
	}
}
