package track

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/splitkit/splitkit/internal/experiment"
)

// Tracker records conversion events. Tracking is best-effort telemetry: a
// persistence failure is logged and swallowed so it can never break the
// user-facing interaction that triggered it.
type Tracker struct {
	store *experiment.Store
	log   *zap.Logger
}

func New(store *experiment.Store, log *zap.Logger) *Tracker {
	return &Tracker{store: store, log: log}
}

// Track appends one immutable conversion event with a generated id and a
// server timestamp. It deliberately returns nothing; callers cannot observe
// failure. No deduplication is performed.
func (t *Tracker) Track(ctx context.Context, sessionID, experimentID, variantID string, eventType experiment.EventType, metadata map[string]any) {
	event := &experiment.Event{
		EventID:      experiment.NewEventID(),
		ExperimentID: experimentID,
		VariantID:    variantID,
		SessionID:    sessionID,
		ProductID:    metadataProductID(metadata),
		EventType:    eventType,
		Metadata:     metadata,
		Revenue:      metadataRevenue(metadata),
		Timestamp:    time.Now().UTC(),
	}

	if err := t.store.AppendEvent(ctx, event); err != nil {
		t.log.Warn("failed to record conversion event",
			zap.String("experiment_id", experimentID),
			zap.String("variant_id", variantID),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}

func metadataProductID(metadata map[string]any) string {
	if id, ok := metadata["productId"].(string); ok {
		return id
	}
	return ""
}

func metadataRevenue(metadata map[string]any) *float64 {
	switch r := metadata["revenue"].(type) {
	case float64:
		return &r
	case int:
		v := float64(r)
		return &v
	}
	return nil
}
