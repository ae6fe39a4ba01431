package experiment

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var ErrValidation = errors.New("validation failed")

type Status string

const (
	StatusDraft     Status = "draft"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusRunning, StatusPaused, StatusCompleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving to next.
// Draft experiments start; running ones pause or complete; paused ones
// resume or complete. Completed is terminal.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusDraft:
		return next == StatusRunning
	case StatusRunning:
		return next == StatusPaused || next == StatusCompleted
	case StatusPaused:
		return next == StatusRunning || next == StatusCompleted
	}
	return false
}

type GoalMetric string

const (
	GoalConversion GoalMetric = "conversion"
	GoalAddToCart  GoalMetric = "addToCart"
	GoalRevenue    GoalMetric = "revenue"
	GoalEngagement GoalMetric = "engagement"
)

func (g GoalMetric) Valid() bool {
	switch g {
	case GoalConversion, GoalAddToCart, GoalRevenue, GoalEngagement:
		return true
	}
	return false
}

type EventType string

const (
	EventView      EventType = "view"
	EventAddToCart EventType = "addToCart"
	EventPurchase  EventType = "purchase"
	EventClick     EventType = "click"
)

func (e EventType) Valid() bool {
	switch e {
	case EventView, EventAddToCart, EventPurchase, EventClick:
		return true
	}
	return false
}

// Variant is one arm of an experiment. TrafficAllocation is a percentage
// in [0, 100].
type Variant struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	TemplateID        string  `json:"templateId"`
	TrafficAllocation float64 `json:"trafficAllocation"`
}

type Experiment struct {
	ExperimentID    string     `json:"experimentId"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	Status          Status     `json:"status"`
	Variants        []Variant  `json:"variants"`
	ProductIDs      []string   `json:"productIds"`
	GoalMetric      GoalMetric `json:"goalMetric"`
	MinSampleSize   int        `json:"minSampleSize"`
	ConfidenceLevel int        `json:"confidenceLevel"`
	WinnerVariantID string     `json:"winnerVariantId,omitempty"`
	StartDate       *time.Time `json:"startDate,omitempty"`
	EndDate         *time.Time `json:"endDate,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       *time.Time `json:"updatedAt,omitempty"`
}

const (
	DefaultMinSampleSize   = 1000
	DefaultConfidenceLevel = 95
)

// Validate checks an experiment definition before persistence. Traffic
// allocations must sum to 100 within a 0.01 tolerance.
func (e *Experiment) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if len(e.Variants) < 2 {
		return fmt.Errorf("%w: at least 2 variants are required", ErrValidation)
	}

	total := 0.0
	for i, v := range e.Variants {
		if v.ID == "" {
			return fmt.Errorf("%w: variant %d is missing an id", ErrValidation, i)
		}
		if v.TrafficAllocation < 0 || v.TrafficAllocation > 100 {
			return fmt.Errorf("%w: variant %q allocation %.2f out of range", ErrValidation, v.ID, v.TrafficAllocation)
		}
		total += v.TrafficAllocation
	}
	if math.Abs(total-100) > 0.01 {
		return fmt.Errorf("%w: traffic allocation must sum to 100%%, got %.2f", ErrValidation, total)
	}

	if !e.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, e.Status)
	}
	if !e.GoalMetric.Valid() {
		return fmt.Errorf("%w: unknown goal metric %q", ErrValidation, e.GoalMetric)
	}
	switch e.ConfidenceLevel {
	case 90, 95, 99:
	default:
		return fmt.Errorf("%w: confidence level must be 90, 95 or 99, got %d", ErrValidation, e.ConfidenceLevel)
	}

	return nil
}

// Variant returns the variant with the given id, or nil.
func (e *Experiment) Variant(variantID string) *Variant {
	for i := range e.Variants {
		if e.Variants[i].ID == variantID {
			return &e.Variants[i]
		}
	}
	return nil
}

// Session is the sticky binding of one visitor session to one variant of
// one experiment. Immutable once written.
type Session struct {
	SessionID    string    `json:"sessionId"`
	ExperimentID string    `json:"experimentId"`
	VariantID    string    `json:"variantId"`
	ProductID    string    `json:"productId"`
	AssignedAt   time.Time `json:"assignedAt"`
	UserID       string    `json:"userId,omitempty"`
}

// Event is an immutable conversion fact. Append-only.
type Event struct {
	EventID      string         `json:"eventId"`
	ExperimentID string         `json:"experimentId"`
	VariantID    string         `json:"variantId"`
	SessionID    string         `json:"sessionId"`
	ProductID    string         `json:"productId"`
	EventType    EventType      `json:"eventType"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Revenue      *float64       `json:"revenue,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}
