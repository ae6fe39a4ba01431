package stats_test

import (
	"testing"

	"github.com/splitkit/splitkit/internal/stats"
)

func TestConfidenceInterval_MidRange(t *testing.T) {
	// 50/100 at 95%: Wald gives 0.5 ± 1.96·sqrt(0.25/100) ≈ [0.402, 0.598]
	lower, upper := stats.ConfidenceInterval(50, 100, 95)

	if lower < 0.39 || lower > 0.41 {
		t.Errorf("lower bound %f not in expected range [0.39, 0.41]", lower)
	}
	if upper < 0.59 || upper > 0.61 {
		t.Errorf("upper bound %f not in expected range [0.59, 0.61]", upper)
	}
}

func TestConfidenceInterval_ZeroImpressions(t *testing.T) {
	lower, upper := stats.ConfidenceInterval(0, 0, 95)

	if lower != 0 || upper != 0 {
		t.Errorf("expected [0, 0] for zero impressions, got [%f, %f]", lower, upper)
	}
}

func TestConfidenceInterval_ClampedToUnit(t *testing.T) {
	// Extreme proportions with tiny samples push Wald bounds out of [0, 1]
	lower, _ := stats.ConfidenceInterval(1, 10, 99)
	if lower < 0 {
		t.Errorf("lower bound %f below 0", lower)
	}

	_, upper := stats.ConfidenceInterval(9, 10, 99)
	if upper > 1 {
		t.Errorf("upper bound %f above 1", upper)
	}
}

func TestConfidenceInterval_Bounds(t *testing.T) {
	cases := []struct{ conversions, impressions int }{
		{0, 100}, {100, 100}, {1, 1}, {0, 1}, {37, 240}, {999, 1000},
	}

	for _, c := range cases {
		for _, level := range []int{90, 95, 99} {
			lower, upper := stats.ConfidenceInterval(c.conversions, c.impressions, level)
			if lower < 0 || lower > upper || upper > 1 {
				t.Errorf("interval [%f, %f] violates 0 ≤ lower ≤ upper ≤ 1 for %d/%d at %d%%",
					lower, upper, c.conversions, c.impressions, level)
			}
		}
	}
}

func TestZScore_Table(t *testing.T) {
	cases := map[int]float64{
		90: 1.645,
		95: 1.96,
		99: 2.576,
	}

	for level, want := range cases {
		if got := stats.ZScore(level); got != want {
			t.Errorf("ZScore(%d) = %f, want %f", level, got, want)
		}
	}

	// Unrecognized levels fall back to the 95% critical value
	if got := stats.ZScore(80); got != 1.96 {
		t.Errorf("ZScore(80) = %f, want fallback 1.96", got)
	}
	if got := stats.ZScore(0); got != 1.96 {
		t.Errorf("ZScore(0) = %f, want fallback 1.96", got)
	}
}
