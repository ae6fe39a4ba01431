package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/splitkit/splitkit/internal/experiment"
)

func init() {
	rootCmd.AddCommand(newCreateCmd())
}

// experimentFile is the YAML shape accepted by --file.
type experimentFile struct {
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description"`
	GoalMetric      string   `yaml:"goalMetric"`
	MinSampleSize   int      `yaml:"minSampleSize"`
	ConfidenceLevel int      `yaml:"confidenceLevel"`
	ProductIDs      []string `yaml:"productIds"`
	Variants        []struct {
		ID                string  `yaml:"id"`
		Name              string  `yaml:"name"`
		TemplateID        string  `yaml:"templateId"`
		TrafficAllocation float64 `yaml:"trafficAllocation"`
	} `yaml:"variants"`
}

func newCreateCmd() *cobra.Command {
	var (
		variants    string
		description string
		products    []string
		goal        string
		confidence  int
		minSample   int
		file        string
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a new experiment",
		Long: `Create a new A/B experiment in draft state.

Variants are given as comma-separated id:allocation pairs; allocations
must sum to 100. Alternatively, pass a full YAML definition with --file.

Examples:
  splitkit create hero --variants "control:50,challenger:50"
  splitkit create hero --variants "a:70,b:30" --goal addToCart --confidence 99
  splitkit create --file experiment.yaml
  splitkit create hero --variants "a:50,b:50" --interactive`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var exp *experiment.Experiment

			if file != "" {
				loaded, err := loadExperimentFile(file)
				if err != nil {
					return err
				}
				exp = loaded
			} else {
				if len(args) != 1 {
					return fmt.Errorf("experiment name is required (or use --file)")
				}
				variantList, err := parseVariants(variants)
				if err != nil {
					return err
				}
				exp = &experiment.Experiment{
					Name:            args[0],
					Description:     description,
					Variants:        variantList,
					ProductIDs:      products,
					GoalMetric:      experiment.GoalMetric(goal),
					MinSampleSize:   minSample,
					ConfidenceLevel: confidence,
				}
			}

			if interactive {
				if err := promptExperimentOptions(exp); err != nil {
					return err
				}
			}

			exp.ExperimentID = experiment.NewExperimentID()
			exp.Status = experiment.StatusDraft
			exp.CreatedAt = time.Now().UTC()
			applyDefaults(exp)

			return withStore(func(s *experiment.Store) error {
				if err := s.Create(context.Background(), exp); err != nil {
					return fmt.Errorf("failed to create experiment: %w", err)
				}

				fmt.Printf("Created experiment '%s' (%s) with %d variants:\n", exp.Name, exp.ExperimentID, len(exp.Variants))
				for _, v := range exp.Variants {
					fmt.Printf("  %s: %.0f%%\n", v.ID, v.TrafficAllocation)
				}
				fmt.Printf("  Goal: %s, confidence: %d%%, min sample: %d\n", exp.GoalMetric, exp.ConfidenceLevel, exp.MinSampleSize)
				fmt.Println("\nThe experiment is in draft state. Run 'splitkit status' to start it.")

				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&variants, "variants", "v", "", "comma-separated id:allocation pairs (required unless --file)")
	cmd.Flags().StringVar(&description, "description", "", "experiment description")
	cmd.Flags().StringSliceVar(&products, "product", nil, "catalog product id the experiment applies to (repeatable)")
	cmd.Flags().StringVar(&goal, "goal", "conversion", "goal metric (conversion, addToCart, revenue, engagement)")
	cmd.Flags().IntVar(&confidence, "confidence", experiment.DefaultConfidenceLevel, "confidence level (90, 95 or 99)")
	cmd.Flags().IntVar(&minSample, "min-sample", experiment.DefaultMinSampleSize, "minimum impressions per variant")
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML experiment definition")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "prompt for goal metric and confidence level")

	return cmd
}

func parseVariants(spec string) ([]experiment.Variant, error) {
	if spec == "" {
		return nil, fmt.Errorf("--variants is required. Example: --variants \"a:50,b:50\"")
	}

	pairs := strings.Split(spec, ",")
	variants := make([]experiment.Variant, 0, len(pairs))
	for _, pair := range pairs {
		id, alloc, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			return nil, fmt.Errorf("invalid variant %q: expected id:allocation", pair)
		}
		allocation, err := strconv.ParseFloat(alloc, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid allocation for variant %q: %w", id, err)
		}
		variants = append(variants, experiment.Variant{
			ID:                id,
			Name:              id,
			TrafficAllocation: allocation,
		})
	}

	return variants, nil
}

func loadExperimentFile(path string) (*experiment.Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read experiment file: %w", err)
	}

	var def experimentFile
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse experiment file: %w", err)
	}

	variants := make([]experiment.Variant, len(def.Variants))
	for i, v := range def.Variants {
		name := v.Name
		if name == "" {
			name = v.ID
		}
		variants[i] = experiment.Variant{
			ID:                v.ID,
			Name:              name,
			TemplateID:        v.TemplateID,
			TrafficAllocation: v.TrafficAllocation,
		}
	}

	return &experiment.Experiment{
		Name:            def.Name,
		Description:     def.Description,
		Variants:        variants,
		ProductIDs:      def.ProductIDs,
		GoalMetric:      experiment.GoalMetric(def.GoalMetric),
		MinSampleSize:   def.MinSampleSize,
		ConfidenceLevel: def.ConfidenceLevel,
	}, nil
}

func applyDefaults(exp *experiment.Experiment) {
	if exp.GoalMetric == "" {
		exp.GoalMetric = experiment.GoalConversion
	}
	if exp.MinSampleSize == 0 {
		exp.MinSampleSize = experiment.DefaultMinSampleSize
	}
	if exp.ConfidenceLevel == 0 {
		exp.ConfidenceLevel = experiment.DefaultConfidenceLevel
	}
	if exp.ProductIDs == nil {
		exp.ProductIDs = []string{}
	}
}

func promptExperimentOptions(exp *experiment.Experiment) error {
	goalPrompt := promptui.Select{
		Label: "Goal metric",
		Items: []string{"conversion", "addToCart", "revenue", "engagement"},
	}
	_, goal, err := goalPrompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			return fmt.Errorf("cancelled")
		}
		return err
	}
	exp.GoalMetric = experiment.GoalMetric(goal)

	confidencePrompt := promptui.Select{
		Label: "Confidence level",
		Items: []string{"90", "95", "99"},
	}
	_, confidence, err := confidencePrompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			return fmt.Errorf("cancelled")
		}
		return err
	}
	exp.ConfidenceLevel, _ = strconv.Atoi(confidence)

	return nil
}
