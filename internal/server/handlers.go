package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/splitkit/splitkit/internal/docstore"
	"github.com/splitkit/splitkit/internal/experiment"
	"github.com/splitkit/splitkit/internal/split"
	"github.com/splitkit/splitkit/internal/stats"
)

type errorBody struct {
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Message: message, StatusCode: status}})
}

type HealthResponse struct {
	Status           string `json:"status"`
	ExperimentsCount int    `json:"experiments_count"`
	DBSizeBytes      int64  `json:"db_size_bytes"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	experiments, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	var dbSize int64
	row := s.docs.DB().QueryRow("SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()")
	if err := row.Scan(&dbSize); err != nil {
		dbSize = 0
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:           "ok",
		ExperimentsCount: len(experiments),
		DBSizeBytes:      dbSize,
		UptimeSeconds:    int64(time.Since(s.startTime).Seconds()),
	})
}

type createExperimentRequest struct {
	Name            string               `json:"name"`
	Description     string               `json:"description"`
	Variants        []experiment.Variant `json:"variants"`
	ProductIDs      []string             `json:"productIds"`
	GoalMetric      string               `json:"goalMetric"`
	MinSampleSize   int                  `json:"minSampleSize"`
	ConfidenceLevel int                  `json:"confidenceLevel"`
}

// handleExperiments serves the experiment collection: list and create.
func (s *Server) handleExperiments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		experiments, err := s.store.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to fetch experiments")
			return
		}
		if experiments == nil {
			experiments = []*experiment.Experiment{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"experiments": experiments})

	case http.MethodPost:
		if !s.requireAuth(w, r) {
			return
		}

		var req createExperimentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}

		exp := newExperiment(req)
		if err := s.store.Create(r.Context(), exp); err != nil {
			if errors.Is(err, experiment.ErrValidation) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "Failed to create experiment")
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{"experiment": exp})

	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// newExperiment builds a draft experiment from a create request, filling
// the documented defaults.
func newExperiment(req createExperimentRequest) *experiment.Experiment {
	goal := experiment.GoalMetric(req.GoalMetric)
	if req.GoalMetric == "" {
		goal = experiment.GoalConversion
	}
	minSample := req.MinSampleSize
	if minSample == 0 {
		minSample = experiment.DefaultMinSampleSize
	}
	confidence := req.ConfidenceLevel
	if confidence == 0 {
		confidence = experiment.DefaultConfidenceLevel
	}
	productIDs := req.ProductIDs
	if productIDs == nil {
		productIDs = []string{}
	}

	return &experiment.Experiment{
		ExperimentID:    experiment.NewExperimentID(),
		Name:            req.Name,
		Description:     req.Description,
		Status:          experiment.StatusDraft,
		Variants:        req.Variants,
		ProductIDs:      productIDs,
		GoalMetric:      goal,
		MinSampleSize:   minSample,
		ConfidenceLevel: confidence,
		CreatedAt:       time.Now().UTC(),
	}
}

type trackRequest struct {
	SessionID    string         `json:"sessionId"`
	ExperimentID string         `json:"experimentId"`
	VariantID    string         `json:"variantId"`
	EventType    string         `json:"eventType"`
	Metadata     map[string]any `json:"metadata"`
}

// handleTrack records a conversion event. Validation failures are rejected;
// a valid request always succeeds from the caller's point of view.
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.SessionID == "" || req.ExperimentID == "" || req.VariantID == "" || req.EventType == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	eventType := experiment.EventType(req.EventType)
	if !eventType.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid event type")
		return
	}

	s.tracker.Track(r.Context(), req.SessionID, req.ExperimentID, req.VariantID, eventType, req.Metadata)

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleExperiment routes item-level paths: /api/experiments/{id},
// /api/experiments/{id}/assign and /api/experiments/{id}/results.
func (s *Server) handleExperiment(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/experiments/")
	parts := strings.SplitN(rest, "/", 2)
	experimentID := parts[0]
	if experimentID == "" {
		writeError(w, http.StatusNotFound, "Experiment not found")
		return
	}

	if len(parts) == 2 {
		switch parts[1] {
		case "assign":
			s.handleAssign(w, r, experimentID)
		case "results":
			s.handleResults(w, r, experimentID)
		default:
			writeError(w, http.StatusNotFound, "Not found")
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetExperiment(w, r, experimentID)
	case http.MethodPut:
		if s.requireAuth(w, r) {
			s.handleUpdateExperiment(w, r, experimentID)
		}
	case http.MethodDelete:
		if s.requireAuth(w, r) {
			s.handleDeleteExperiment(w, r, experimentID)
		}
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleGetExperiment(w http.ResponseWriter, r *http.Request, experimentID string) {
	exp, err := s.store.Get(r.Context(), experimentID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Experiment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to fetch experiment")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"experiment": exp})
}

func (s *Server) handleUpdateExperiment(w http.ResponseWriter, r *http.Request, experimentID string) {
	var partial map[string]any
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// The id is the document key and must not change under an update.
	delete(partial, "experimentId")

	if raw, ok := partial["status"]; ok {
		status, isString := raw.(string)
		if !isString || !experiment.Status(status).Valid() {
			writeError(w, http.StatusBadRequest, "Invalid status")
			return
		}
	}

	if err := s.store.Update(r.Context(), experimentID, partial); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Experiment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update experiment")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleDeleteExperiment(w http.ResponseWriter, r *http.Request, experimentID string) {
	if err := s.store.Delete(r.Context(), experimentID); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Experiment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete experiment")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type assignRequest struct {
	SessionID string `json:"sessionId"`
	ProductID string `json:"productId"`
}

// handleAssign resolves the sticky variant for a session, consumed by the
// storefront's page-render layer.
func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request, experimentID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	variant, err := s.assigner.Assign(r.Context(), experimentID, req.ProductID, req.SessionID)
	if err != nil {
		if errors.Is(err, split.ErrNotRunning) {
			writeError(w, http.StatusConflict, "Experiment not found or not running")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to assign variant")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"variant": variant})
}

// handleResults aggregates the experiment's event stream on demand.
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request, experimentID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	exp, err := s.store.Get(r.Context(), experimentID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Experiment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to fetch experiment")
		return
	}

	events, err := s.store.EventsByExperiment(r.Context(), experimentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": stats.Aggregate(exp, events)})
}
