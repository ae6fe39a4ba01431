package split

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/splitkit/splitkit/internal/docstore"
	"github.com/splitkit/splitkit/internal/experiment"
)

// ErrNotRunning is returned when a variant is requested for an experiment
// that does not exist or is not accepting assignments.
var ErrNotRunning = errors.New("experiment not found or not running")

// Assigner splits traffic across an experiment's variants. Assignments are
// sticky: once a session has been given a variant, every later call returns
// the same one.
type Assigner struct {
	store *experiment.Store
	log   *zap.Logger
	rng   func() float64
}

func NewAssigner(store *experiment.Store, log *zap.Logger) *Assigner {
	return &Assigner{store: store, log: log, rng: rand.Float64}
}

// Assign resolves the variant for a session, drawing a fresh weighted
// assignment when none exists. Two racing first calls for the same session
// may both write the key; either outcome is a valid draw, so last write
// wins without coordination.
func (a *Assigner) Assign(ctx context.Context, experimentID, productID, sessionID string) (*experiment.Variant, error) {
	exp, err := a.store.Get(ctx, experimentID)
	if err != nil {
		if !errors.Is(err, docstore.ErrNotFound) {
			a.log.Warn("failed to load experiment for assignment",
				zap.String("experiment_id", experimentID),
				zap.Error(err))
		}
		return nil, ErrNotRunning
	}

	// Sticky lookup first: an existing binding is honored even while the
	// experiment is paused.
	if variant := a.existingAssignment(ctx, exp, sessionID); variant != nil {
		return variant, nil
	}

	if exp.Status != experiment.StatusRunning {
		return nil, ErrNotRunning
	}

	variant := a.draw(exp)

	session := &experiment.Session{
		SessionID:    sessionID,
		ExperimentID: experimentID,
		VariantID:    variant.ID,
		ProductID:    productID,
		AssignedAt:   time.Now().UTC(),
	}
	if err := a.store.PutSession(ctx, session); err != nil {
		return nil, err
	}

	return variant, nil
}

// existingAssignment resolves a stored session against the experiment's
// current variant list. Store read failures degrade to "no assignment":
// losing stickiness is preferable to failing the page render.
func (a *Assigner) existingAssignment(ctx context.Context, exp *experiment.Experiment, sessionID string) *experiment.Variant {
	session, err := a.store.GetSession(ctx, exp.ExperimentID, sessionID)
	if err != nil {
		if !errors.Is(err, docstore.ErrNotFound) {
			a.log.Warn("failed to load session assignment",
				zap.String("experiment_id", exp.ExperimentID),
				zap.String("session_id", sessionID),
				zap.Error(err))
		}
		return nil
	}

	return exp.Variant(session.VariantID)
}

// draw performs weighted random selection over the experiment's variants in
// stored order. When allocations sum below the draw (inconsistent data),
// the first variant is the deterministic fallback: traffic is never
// dropped.
func (a *Assigner) draw(exp *experiment.Experiment) *experiment.Variant {
	r := a.rng() * 100

	cumulative := 0.0
	for i := range exp.Variants {
		cumulative += exp.Variants[i].TrafficAllocation
		if r <= cumulative {
			return &exp.Variants[i]
		}
	}

	return &exp.Variants[0]
}
