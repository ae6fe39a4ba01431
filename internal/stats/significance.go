package stats

import "math"

// VariantMetrics is the per-variant aggregate the engine reasons about.
// Derived from the event stream, never stored.
type VariantMetrics struct {
	VariantID          string     `json:"variantId"`
	Impressions        int        `json:"impressions"`
	Conversions        int        `json:"conversions"`
	ConversionRate     float64    `json:"conversionRate"`
	Revenue            float64    `json:"revenue"`
	AverageOrderValue  float64    `json:"averageOrderValue"`
	ConfidenceInterval [2]float64 `json:"confidenceInterval"`
}

type Action string

const (
	ActionContinue      Action = "continue"
	ActionDeclareWinner Action = "declare_winner"
	ActionStop          Action = "stop"
)

// ExperimentResults is the significance verdict for one experiment.
// Variants keeps the experiment's variant order so tie-breaking is
// deterministic.
type ExperimentResults struct {
	ExperimentID            string           `json:"experimentId"`
	Variants                []VariantMetrics `json:"variants"`
	Winner                  string           `json:"winner,omitempty"`
	StatisticalSignificance float64          `json:"statisticalSignificance"`
	RecommendedAction       Action           `json:"recommendedAction"`
}

// Minimum impressions per variant before a winner may be declared. This is
// the engine's internal floor; experiments carry a separately configurable
// minSampleSize that is not consulted here.
const minimumSampleFloor = 1000

// Impressions past which an experiment without a significant winner is
// considered a near-tie not worth running further.
const diminishingReturnsCeiling = 10000

// Significance performs a two-proportion z-test between two variants and
// returns the two-tailed p-value. With no data on either side, or zero
// variance, the result is 1 (no evidence of a difference).
func Significance(a, b VariantMetrics) float64 {
	n1 := float64(a.Impressions)
	n2 := float64(b.Impressions)
	p1 := a.ConversionRate
	p2 := b.ConversionRate

	if n1 == 0 || n2 == 0 {
		return 1
	}

	pooled := (p1*n1 + p2*n2) / (n1 + n2)
	se := math.Sqrt(pooled * (1 - pooled) * (1/n1 + 1/n2))
	if se == 0 {
		return 1
	}

	z := (p1 - p2) / se

	return 2 * (1 - normalCDF(math.Abs(z)))
}

// DetermineWinner returns the id of the variant that may be declared the
// winner, or "" when no variant qualifies. The candidate is the highest
// conversion rate (ties broken by order) and must be significant at p < 0.05
// against every other variant, not just the runner-up.
func DetermineWinner(variants []VariantMetrics) string {
	if len(variants) < 2 {
		return ""
	}

	for _, v := range variants {
		if v.Impressions < minimumSampleFloor {
			return ""
		}
	}

	best := variants[0]
	for _, v := range variants[1:] {
		if v.ConversionRate > best.ConversionRate {
			best = v
		}
	}

	for _, v := range variants {
		if v.VariantID == best.VariantID {
			continue
		}
		if Significance(best, v) >= 0.05 {
			return ""
		}
	}

	return best.VariantID
}

// RecommendedAction turns per-variant metrics into an operator decision:
// declare the winner if there is one, stop once enough data has accrued
// without significance, otherwise keep collecting.
func RecommendedAction(variants []VariantMetrics) Action {
	if DetermineWinner(variants) != "" {
		return ActionDeclareWinner
	}

	maxImpressions := 0
	for _, v := range variants {
		if v.Impressions > maxImpressions {
			maxImpressions = v.Impressions
		}
	}
	if maxImpressions > diminishingReturnsCeiling {
		return ActionStop
	}

	return ActionContinue
}

// normalCDF approximates the cumulative distribution function
// of the standard normal distribution
func normalCDF(x float64) float64 {
	// Use the approximation from Abramowitz and Stegun
	// Handbook of Mathematical Functions, formula 7.1.26
	a1 := 0.254829592
	a2 := -0.284496736
	a3 := 1.421413741
	a4 := -1.453152027
	a5 := 1.061405429
	p := 0.3275911

	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	x = math.Abs(x) / math.Sqrt(2)

	t := 1.0 / (1.0 + p*x)
	y := 1.0 - (((((a5*t+a4)*t)+a3)*t+a2)*t+a1)*t*math.Exp(-x*x)

	return 0.5 * (1.0 + sign*y)
}
