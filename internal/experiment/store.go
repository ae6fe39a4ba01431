package experiment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/splitkit/splitkit/internal/docstore"
)

// Collection names in the document store.
const (
	CollectionExperiments = "experiments"
	CollectionSessions    = "experiment_sessions"
	CollectionEvents      = "conversion_events"
)

// Store is the typed layer over the document store. Documents are validated
// on decode; malformed store contents are rejected rather than trusted.
type Store struct {
	docs docstore.Store
}

func NewStore(docs docstore.Store) *Store {
	return &Store{docs: docs}
}

func (s *Store) Create(ctx context.Context, exp *Experiment) error {
	if err := exp.Validate(); err != nil {
		return err
	}
	if err := s.docs.Set(ctx, CollectionExperiments, exp.ExperimentID, exp); err != nil {
		return fmt.Errorf("failed to create experiment: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, experimentID string) (*Experiment, error) {
	doc, err := s.docs.Get(ctx, CollectionExperiments, experimentID)
	if err != nil {
		return nil, err
	}
	return decodeExperiment(doc)
}

func (s *Store) List(ctx context.Context) ([]*Experiment, error) {
	docs, err := s.docs.GetAll(ctx, CollectionExperiments)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}

	experiments := make([]*Experiment, 0, len(docs))
	for i := range docs {
		exp, err := decodeExperiment(&docs[i])
		if err != nil {
			return nil, err
		}
		experiments = append(experiments, exp)
	}

	return experiments, nil
}

// Update applies a partial update to an experiment document and refreshes
// its updatedAt field.
func (s *Store) Update(ctx context.Context, experimentID string, partial map[string]any) error {
	merged := make(map[string]any, len(partial)+1)
	for k, v := range partial {
		merged[k] = v
	}
	merged["updatedAt"] = time.Now().UTC().Format(time.RFC3339Nano)

	if err := s.docs.Update(ctx, CollectionExperiments, experimentID, merged); err != nil {
		return err
	}
	return nil
}

// SetStatus transitions an experiment's lifecycle state, enforcing the
// allowed transitions.
func (s *Store) SetStatus(ctx context.Context, experimentID string, next Status) error {
	exp, err := s.Get(ctx, experimentID)
	if err != nil {
		return err
	}

	if !exp.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrValidation, exp.Status, next)
	}

	return s.Update(ctx, experimentID, map[string]any{"status": string(next)})
}

// Delete removes an experiment along with its sessions and events.
func (s *Store) Delete(ctx context.Context, experimentID string) error {
	// Delete dependent documents first
	sessions, err := s.docs.QueryByField(ctx, CollectionSessions, "experimentId", docstore.OpEqual, experimentID)
	if err != nil {
		return fmt.Errorf("failed to query sessions: %w", err)
	}
	for _, doc := range sessions {
		if err := s.docs.Delete(ctx, CollectionSessions, doc.Key); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
	}

	events, err := s.docs.QueryByField(ctx, CollectionEvents, "experimentId", docstore.OpEqual, experimentID)
	if err != nil {
		return fmt.Errorf("failed to query events: %w", err)
	}
	for _, doc := range events {
		if err := s.docs.Delete(ctx, CollectionEvents, doc.Key); err != nil {
			return fmt.Errorf("failed to delete event: %w", err)
		}
	}

	return s.docs.Delete(ctx, CollectionExperiments, experimentID)
}

// SessionKey builds the composite document key binding a session to an
// experiment.
func SessionKey(experimentID, sessionID string) string {
	return docstore.CompositeKey(experimentID, sessionID)
}

func (s *Store) GetSession(ctx context.Context, experimentID, sessionID string) (*Session, error) {
	doc, err := s.docs.Get(ctx, CollectionSessions, SessionKey(experimentID, sessionID))
	if err != nil {
		return nil, err
	}

	var session Session
	if err := json.Unmarshal(doc.Data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", doc.Key, err)
	}
	if session.SessionID == "" || session.ExperimentID == "" || session.VariantID == "" {
		return nil, fmt.Errorf("malformed session document %s", doc.Key)
	}

	return &session, nil
}

func (s *Store) PutSession(ctx context.Context, session *Session) error {
	key := SessionKey(session.ExperimentID, session.SessionID)
	if err := s.docs.Set(ctx, CollectionSessions, key, session); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *Store) AppendEvent(ctx context.Context, event *Event) error {
	if !event.EventType.Valid() {
		return fmt.Errorf("%w: unknown event type %q", ErrValidation, event.EventType)
	}
	if err := s.docs.Set(ctx, CollectionEvents, event.EventID, event); err != nil {
		return fmt.Errorf("failed to store event: %w", err)
	}
	return nil
}

func (s *Store) EventsByExperiment(ctx context.Context, experimentID string) ([]Event, error) {
	docs, err := s.docs.QueryByField(ctx, CollectionEvents, "experimentId", docstore.OpEqual, experimentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	events := make([]Event, 0, len(docs))
	for i := range docs {
		var event Event
		if err := json.Unmarshal(docs[i].Data, &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event %s: %w", docs[i].Key, err)
		}
		if !event.EventType.Valid() {
			return nil, fmt.Errorf("malformed event document %s: unknown event type %q", docs[i].Key, event.EventType)
		}
		events = append(events, event)
	}

	return events, nil
}

func decodeExperiment(doc *docstore.Document) (*Experiment, error) {
	var exp Experiment
	if err := json.Unmarshal(doc.Data, &exp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal experiment %s: %w", doc.Key, err)
	}
	if exp.ExperimentID == "" || !exp.Status.Valid() {
		return nil, fmt.Errorf("malformed experiment document %s", doc.Key)
	}
	return &exp, nil
}
