package stats

import (
	"github.com/splitkit/splitkit/internal/experiment"
)

// goalEventType maps an experiment's goal metric to the event type counted
// as a conversion.
func goalEventType(goal experiment.GoalMetric) experiment.EventType {
	switch goal {
	case experiment.GoalAddToCart:
		return experiment.EventAddToCart
	case experiment.GoalEngagement:
		return experiment.EventClick
	default:
		// conversion and revenue goals both count purchases
		return experiment.EventPurchase
	}
}

// Aggregate recomputes ExperimentResults from the raw event stream. Pure
// function of its inputs; impressions come from view events and conversions
// from the experiment's goal event type.
func Aggregate(exp *experiment.Experiment, events []experiment.Event) *ExperimentResults {
	goal := goalEventType(exp.GoalMetric)

	variants := make([]VariantMetrics, len(exp.Variants))
	for i, v := range exp.Variants {
		metrics := VariantMetrics{VariantID: v.ID}

		for _, e := range events {
			if e.VariantID != v.ID {
				continue
			}
			switch {
			case e.EventType == experiment.EventView:
				metrics.Impressions++
			case e.EventType == goal:
				metrics.Conversions++
			}
			if e.Revenue != nil {
				metrics.Revenue += *e.Revenue
			}
		}

		if metrics.Impressions > 0 {
			metrics.ConversionRate = float64(metrics.Conversions) / float64(metrics.Impressions)
		}
		if metrics.Conversions > 0 {
			metrics.AverageOrderValue = metrics.Revenue / float64(metrics.Conversions)
		}

		lower, upper := ConfidenceInterval(metrics.Conversions, metrics.Impressions, exp.ConfidenceLevel)
		metrics.ConfidenceInterval = [2]float64{lower, upper}

		variants[i] = metrics
	}

	return &ExperimentResults{
		ExperimentID:            exp.ExperimentID,
		Variants:                variants,
		Winner:                  DetermineWinner(variants),
		StatisticalSignificance: overallSignificance(variants),
		RecommendedAction:       RecommendedAction(variants),
	}
}

// overallSignificance is the experiment-level p-value: the leading variant
// tested against its closest competitor.
func overallSignificance(variants []VariantMetrics) float64 {
	if len(variants) < 2 {
		return 1
	}

	best, second := 0, -1
	for i := 1; i < len(variants); i++ {
		if variants[i].ConversionRate > variants[best].ConversionRate {
			second = best
			best = i
		} else if second == -1 || variants[i].ConversionRate > variants[second].ConversionRate {
			second = i
		}
	}

	return Significance(variants[best], variants[second])
}
