package stats

import "math"

// ZScore returns the critical z-value for a confidence level expressed as a
// whole percentage. Unrecognized levels fall back to 1.96 (95%).
func ZScore(confidenceLevel int) float64 {
	switch confidenceLevel {
	case 90:
		return 1.645
	case 95:
		return 1.96
	case 99:
		return 2.576
	default:
		return 1.96
	}
}

// ConfidenceInterval calculates the Wald interval for a binomial proportion,
// clamped to [0, 1]. Zero impressions yield a degenerate [0, 0] interval.
func ConfidenceInterval(conversions, impressions, confidenceLevel int) (lower, upper float64) {
	if impressions == 0 {
		return 0, 0
	}

	p := float64(conversions) / float64(impressions)
	z := ZScore(confidenceLevel)
	se := math.Sqrt(p * (1 - p) / float64(impressions))

	lower = p - z*se
	upper = p + z*se

	// Clamp to [0, 1]
	if lower < 0 {
		lower = 0
	}
	if upper > 1 {
		upper = 1
	}

	return lower, upper
}
