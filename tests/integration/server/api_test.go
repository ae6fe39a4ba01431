package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/splitkit/splitkit/internal/experiment"
	"github.com/splitkit/splitkit/internal/server"
	"github.com/splitkit/splitkit/tests/testutil"
)

func setupServer(t *testing.T) *server.Server {
	t.Helper()
	return server.New(testutil.SetupTestStore(t), zap.NewNop(), 0, "")
}

func postJSON(t *testing.T, srv *server.Server, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	encoded, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(encoded))
	if token != "" {
		req.Header.Set("X-Splitkit-Token", token)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func createRequestBody() map[string]any {
	return map[string]any{
		"name": "hero",
		"variants": []map[string]any{
			{"id": "a", "name": "Control", "templateId": "tpl-1", "trafficAllocation": 50},
			{"id": "b", "name": "Challenger", "templateId": "tpl-2", "trafficAllocation": 50},
		},
		"productIds": []string{"prod-1"},
	}
}

func createExperiment(t *testing.T, srv *server.Server) string {
	t.Helper()

	w := postJSON(t, srv, "/api/experiments", createRequestBody(), srv.Token())
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Experiment experiment.Experiment `json:"experiment"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Experiment.ExperimentID == "" {
		t.Fatal("expected generated experiment id")
	}
	return resp.Experiment.ExperimentID
}

func TestCreateExperiment_Defaults(t *testing.T) {
	srv := setupServer(t)

	id := createExperiment(t, srv)

	exp, err := srv.Store().Get(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to load experiment: %v", err)
	}
	if exp.Status != experiment.StatusDraft {
		t.Errorf("expected draft status, got %s", exp.Status)
	}
	if exp.GoalMetric != experiment.GoalConversion {
		t.Errorf("expected default goal conversion, got %s", exp.GoalMetric)
	}
	if exp.MinSampleSize != 1000 || exp.ConfidenceLevel != 95 {
		t.Errorf("expected defaults 1000/95, got %d/%d", exp.MinSampleSize, exp.ConfidenceLevel)
	}
}

func TestCreateExperiment_RejectsBadAllocation(t *testing.T) {
	srv := setupServer(t)

	body := createRequestBody()
	body["variants"] = []map[string]any{
		{"id": "a", "trafficAllocation": 50},
		{"id": "b", "trafficAllocation": 40},
	}

	w := postJSON(t, srv, "/api/experiments", body, srv.Token())
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for allocation sum 90, got %d", w.Code)
	}
}

func TestCreateExperiment_RejectsSingleVariant(t *testing.T) {
	srv := setupServer(t)

	body := createRequestBody()
	body["variants"] = []map[string]any{{"id": "a", "trafficAllocation": 100}}

	w := postJSON(t, srv, "/api/experiments", body, srv.Token())
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for single variant, got %d", w.Code)
	}
}

func TestCreateExperiment_RequiresToken(t *testing.T) {
	srv := setupServer(t)

	w := postJSON(t, srv, "/api/experiments", createRequestBody(), "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}
}

func TestTrack_MissingFields(t *testing.T) {
	srv := setupServer(t)

	cases := []map[string]any{
		{"experimentId": "exp-1", "variantId": "a", "eventType": "view"},
		{"sessionId": "s1", "variantId": "a", "eventType": "view"},
		{"sessionId": "s1", "experimentId": "exp-1", "eventType": "view"},
		{"sessionId": "s1", "experimentId": "exp-1", "variantId": "a"},
	}

	for i, body := range cases {
		w := postJSON(t, srv, "/api/experiments/track", body, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("case %d: expected 400, got %d", i, w.Code)
		}
	}
}

func TestTrack_InvalidEventType(t *testing.T) {
	srv := setupServer(t)

	w := postJSON(t, srv, "/api/experiments/track", map[string]any{
		"sessionId": "s1", "experimentId": "exp-1", "variantId": "a", "eventType": "pageview",
	}, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown event type, got %d", w.Code)
	}
}

func TestAssign_NotRunning(t *testing.T) {
	srv := setupServer(t)
	id := createExperiment(t, srv)

	// Experiment is still in draft
	w := postJSON(t, srv, "/api/experiments/"+id+"/assign", map[string]any{"sessionId": "s1"}, "")
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for draft experiment, got %d", w.Code)
	}
}

func TestAssign_RequiresSessionID(t *testing.T) {
	srv := setupServer(t)
	id := createExperiment(t, srv)

	w := postJSON(t, srv, "/api/experiments/"+id+"/assign", map[string]any{"productId": "prod-1"}, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without sessionId, got %d", w.Code)
	}
}

func TestExperimentLifecycleScenario(t *testing.T) {
	srv := setupServer(t)
	ctx := context.Background()

	id := createExperiment(t, srv)

	if err := srv.Store().SetStatus(ctx, id, experiment.StatusRunning); err != nil {
		t.Fatalf("failed to start experiment: %v", err)
	}

	// Assign a variant to a fresh session
	w := postJSON(t, srv, "/api/experiments/"+id+"/assign", map[string]any{
		"sessionId": "s1", "productId": "prod-1",
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from assign, got %d: %s", w.Code, w.Body.String())
	}

	var assignResp struct {
		Variant experiment.Variant `json:"variant"`
	}
	if err := json.NewDecoder(w.Body).Decode(&assignResp); err != nil {
		t.Fatalf("failed to decode assign response: %v", err)
	}
	if assignResp.Variant.ID != "a" && assignResp.Variant.ID != "b" {
		t.Fatalf("unexpected variant %q", assignResp.Variant.ID)
	}

	// Re-assigning the same session returns the identical variant
	w = postJSON(t, srv, "/api/experiments/"+id+"/assign", map[string]any{
		"sessionId": "s1", "productId": "prod-1",
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from re-assign, got %d", w.Code)
	}
	var again struct {
		Variant experiment.Variant `json:"variant"`
	}
	if err := json.NewDecoder(w.Body).Decode(&again); err != nil {
		t.Fatalf("failed to decode assign response: %v", err)
	}
	if again.Variant.ID != assignResp.Variant.ID {
		t.Fatalf("assignment not sticky: %q then %q", assignResp.Variant.ID, again.Variant.ID)
	}

	// Track a view and a purchase with revenue
	w = postJSON(t, srv, "/api/experiments/track", map[string]any{
		"sessionId": "s1", "experimentId": id, "variantId": assignResp.Variant.ID,
		"eventType": "view", "metadata": map[string]any{"productId": "prod-1"},
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from track, got %d", w.Code)
	}
	w = postJSON(t, srv, "/api/experiments/track", map[string]any{
		"sessionId": "s1", "experimentId": id, "variantId": assignResp.Variant.ID,
		"eventType": "purchase", "metadata": map[string]any{"productId": "prod-1", "revenue": 49.99},
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from track, got %d", w.Code)
	}

	// Aggregate results on demand
	req := httptest.NewRequest(http.MethodGet, "/api/experiments/"+id+"/results", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from results, got %d", rec.Code)
	}

	var resultsResp struct {
		Results struct {
			Variants []struct {
				VariantID   string  `json:"variantId"`
				Impressions int     `json:"impressions"`
				Conversions int     `json:"conversions"`
				Revenue     float64 `json:"revenue"`
			} `json:"variants"`
			RecommendedAction string `json:"recommendedAction"`
		} `json:"results"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resultsResp); err != nil {
		t.Fatalf("failed to decode results: %v", err)
	}

	found := false
	for _, v := range resultsResp.Results.Variants {
		if v.VariantID == assignResp.Variant.ID {
			found = true
			if v.Impressions != 1 || v.Conversions != 1 {
				t.Errorf("expected 1 impression and 1 conversion, got %d/%d", v.Impressions, v.Conversions)
			}
			if v.Revenue != 49.99 {
				t.Errorf("expected revenue 49.99, got %f", v.Revenue)
			}
		}
	}
	if !found {
		t.Errorf("assigned variant missing from results: %+v", resultsResp.Results.Variants)
	}
	if resultsResp.Results.RecommendedAction != "continue" {
		t.Errorf("expected continue with this little data, got %q", resultsResp.Results.RecommendedAction)
	}
}

func TestGetExperiment_NotFound(t *testing.T) {
	srv := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/experiments/exp-missing", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestUpdateExperiment(t *testing.T) {
	srv := setupServer(t)
	id := createExperiment(t, srv)

	encoded, _ := json.Marshal(map[string]any{"description": "updated copy"})
	req := httptest.NewRequest(http.MethodPut, "/api/experiments/"+id, bytes.NewReader(encoded))
	req.Header.Set("X-Splitkit-Token", srv.Token())
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	exp, err := srv.Store().Get(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to reload experiment: %v", err)
	}
	if exp.Description != "updated copy" {
		t.Errorf("expected updated description, got %q", exp.Description)
	}
	if exp.UpdatedAt == nil || time.Since(*exp.UpdatedAt) > time.Minute {
		t.Errorf("expected fresh updatedAt, got %v", exp.UpdatedAt)
	}
}

func TestUpdateExperiment_RejectsInvalidStatus(t *testing.T) {
	srv := setupServer(t)
	id := createExperiment(t, srv)

	encoded, _ := json.Marshal(map[string]any{"status": "archived"})
	req := httptest.NewRequest(http.MethodPut, "/api/experiments/"+id, bytes.NewReader(encoded))
	req.Header.Set("X-Splitkit-Token", srv.Token())
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid status, got %d", w.Code)
	}
}

func TestDeleteExperiment(t *testing.T) {
	srv := setupServer(t)
	id := createExperiment(t, srv)

	req := httptest.NewRequest(http.MethodDelete, "/api/experiments/"+id, nil)
	req.Header.Set("X-Splitkit-Token", srv.Token())
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/experiments/"+id, nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", w.Code)
	}
}

func TestListExperiments(t *testing.T) {
	srv := setupServer(t)

	for i := 0; i < 2; i++ {
		body := createRequestBody()
		body["name"] = fmt.Sprintf("hero-%d", i)
		w := postJSON(t, srv, "/api/experiments", body, srv.Token())
		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/experiments", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Experiments []experiment.Experiment `json:"experiments"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Experiments) != 2 {
		t.Errorf("expected 2 experiments, got %d", len(resp.Experiments))
	}
}

func TestHealth(t *testing.T) {
	srv := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp server.HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected status ok, got %q", resp.Status)
	}
}
