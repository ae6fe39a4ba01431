package split_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/splitkit/splitkit/internal/docstore"
	"github.com/splitkit/splitkit/internal/experiment"
	"github.com/splitkit/splitkit/internal/split"
)

func setupExperiment(t *testing.T, docs docstore.Store, status experiment.Status, allocations map[string]float64) *experiment.Store {
	t.Helper()

	variants := make([]experiment.Variant, 0, len(allocations))
	for _, id := range []string{"a", "b", "c"} {
		if alloc, ok := allocations[id]; ok {
			variants = append(variants, experiment.Variant{ID: id, Name: id, TrafficAllocation: alloc})
		}
	}

	exp := &experiment.Experiment{
		ExperimentID:    "exp-1",
		Name:            "hero",
		Status:          status,
		Variants:        variants,
		ProductIDs:      []string{"prod-1"},
		GoalMetric:      experiment.GoalConversion,
		MinSampleSize:   1000,
		ConfidenceLevel: 95,
		CreatedAt:       time.Now().UTC(),
	}

	// Write directly so inconsistent allocations can be set up too
	if err := docs.Set(context.Background(), experiment.CollectionExperiments, exp.ExperimentID, exp); err != nil {
		t.Fatalf("failed to store experiment: %v", err)
	}

	return experiment.NewStore(docs)
}

func TestAssign_Stability(t *testing.T) {
	store := setupExperiment(t, docstore.NewMemoryStore(), experiment.StatusRunning, map[string]float64{"a": 50, "b": 50})
	assigner := split.NewAssigner(store, zap.NewNop())
	ctx := context.Background()

	first, err := assigner.Assign(ctx, "exp-1", "prod-1", "s1")
	if err != nil {
		t.Fatalf("failed to assign: %v", err)
	}
	if first.ID != "a" && first.ID != "b" {
		t.Fatalf("unexpected variant %q", first.ID)
	}

	for i := 0; i < 50; i++ {
		again, err := assigner.Assign(ctx, "exp-1", "prod-1", "s1")
		if err != nil {
			t.Fatalf("failed to re-assign: %v", err)
		}
		if again.ID != first.ID {
			t.Fatalf("assignment not sticky: got %q after %q", again.ID, first.ID)
		}
	}
}

func TestAssign_StickyThroughPause(t *testing.T) {
	docs := docstore.NewMemoryStore()
	store := setupExperiment(t, docs, experiment.StatusRunning, map[string]float64{"a": 50, "b": 50})
	assigner := split.NewAssigner(store, zap.NewNop())
	ctx := context.Background()

	first, err := assigner.Assign(ctx, "exp-1", "prod-1", "s1")
	if err != nil {
		t.Fatalf("failed to assign: %v", err)
	}

	if err := docs.Update(ctx, experiment.CollectionExperiments, "exp-1", map[string]any{"status": "paused"}); err != nil {
		t.Fatalf("failed to pause experiment: %v", err)
	}

	// The existing binding is still honored
	again, err := assigner.Assign(ctx, "exp-1", "prod-1", "s1")
	if err != nil {
		t.Fatalf("expected sticky assignment while paused, got error: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("expected %q, got %q", first.ID, again.ID)
	}

	// But fresh sessions are rejected
	if _, err := assigner.Assign(ctx, "exp-1", "prod-1", "s2"); !errors.Is(err, split.ErrNotRunning) {
		t.Errorf("expected ErrNotRunning for fresh session on paused experiment, got %v", err)
	}
}

func TestAssign_NotRunning(t *testing.T) {
	for _, status := range []experiment.Status{experiment.StatusDraft, experiment.StatusPaused, experiment.StatusCompleted} {
		store := setupExperiment(t, docstore.NewMemoryStore(), status, map[string]float64{"a": 50, "b": 50})
		assigner := split.NewAssigner(store, zap.NewNop())

		_, err := assigner.Assign(context.Background(), "exp-1", "prod-1", "s1")
		if !errors.Is(err, split.ErrNotRunning) {
			t.Errorf("status %s: expected ErrNotRunning, got %v", status, err)
		}
	}
}

func TestAssign_UnknownExperiment(t *testing.T) {
	store := experiment.NewStore(docstore.NewMemoryStore())
	assigner := split.NewAssigner(store, zap.NewNop())

	_, err := assigner.Assign(context.Background(), "nope", "prod-1", "s1")
	if !errors.Is(err, split.ErrNotRunning) {
		t.Errorf("expected ErrNotRunning for missing experiment, got %v", err)
	}
}

func TestAssign_AllocationFidelity(t *testing.T) {
	store := setupExperiment(t, docstore.NewMemoryStore(), experiment.StatusRunning, map[string]float64{"a": 70, "b": 30})
	assigner := split.NewAssigner(store, zap.NewNop())
	ctx := context.Background()

	const n = 20000
	counts := make(map[string]int)
	for i := 0; i < n; i++ {
		variant, err := assigner.Assign(ctx, "exp-1", "prod-1", fmt.Sprintf("fresh-%d", i))
		if err != nil {
			t.Fatalf("failed to assign: %v", err)
		}
		counts[variant.ID]++
	}

	observed := float64(counts["a"]) / n
	if math.Abs(observed-0.70) > 0.03 {
		t.Errorf("observed split %.3f for variant a, expected 0.70 ± 0.03", observed)
	}
}

func TestAssign_FallbackWhenAllocationsIncomplete(t *testing.T) {
	// Allocations sum to 0: every draw overshoots, so the first variant is
	// the deterministic fallback and no call may fail.
	store := setupExperiment(t, docstore.NewMemoryStore(), experiment.StatusRunning, map[string]float64{"a": 0, "b": 0})
	assigner := split.NewAssigner(store, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		variant, err := assigner.Assign(ctx, "exp-1", "prod-1", fmt.Sprintf("s%d", i))
		if err != nil {
			t.Fatalf("fallback assignment failed: %v", err)
		}
		if variant.ID != "a" {
			t.Fatalf("expected first variant as fallback, got %q", variant.ID)
		}
	}
}

func TestAssign_PersistsSession(t *testing.T) {
	docs := docstore.NewMemoryStore()
	store := setupExperiment(t, docs, experiment.StatusRunning, map[string]float64{"a": 100, "b": 0})
	assigner := split.NewAssigner(store, zap.NewNop())
	ctx := context.Background()

	variant, err := assigner.Assign(ctx, "exp-1", "prod-9", "s1")
	if err != nil {
		t.Fatalf("failed to assign: %v", err)
	}

	session, err := store.GetSession(ctx, "exp-1", "s1")
	if err != nil {
		t.Fatalf("expected persisted session, got %v", err)
	}
	if session.VariantID != variant.ID {
		t.Errorf("session variant %q does not match returned %q", session.VariantID, variant.ID)
	}
	if session.ProductID != "prod-9" {
		t.Errorf("expected product id carried onto the session, got %q", session.ProductID)
	}
	if session.AssignedAt.IsZero() {
		t.Error("expected assignedAt to be set")
	}
}

// flakyStore fails reads on one collection to exercise degradation paths.
type flakyStore struct {
	docstore.Store
	failCollection string
}

func (s *flakyStore) Get(ctx context.Context, collection, key string) (*docstore.Document, error) {
	if collection == s.failCollection {
		return nil, errors.New("store unavailable")
	}
	return s.Store.Get(ctx, collection, key)
}

func TestAssign_SessionReadFailureDegradesToFreshAssignment(t *testing.T) {
	docs := docstore.NewMemoryStore()
	setupExperiment(t, docs, experiment.StatusRunning, map[string]float64{"a": 100, "b": 0})

	store := experiment.NewStore(&flakyStore{Store: docs, failCollection: experiment.CollectionSessions})
	assigner := split.NewAssigner(store, zap.NewNop())

	variant, err := assigner.Assign(context.Background(), "exp-1", "prod-1", "s1")
	if err != nil {
		t.Fatalf("expected degradation to fresh assignment, got %v", err)
	}
	if variant.ID != "a" {
		t.Errorf("expected variant a, got %q", variant.ID)
	}
}
