package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/lifesignal/backend/internal/apierror"
	"github.com/lifesignal/backend/internal/models"
	"github.com/lifesignal/backend/internal/service"
)

type stubEngine struct {
	insights []models.CorrelationInsight
	record   *models.ComputationRecord
	records  []models.ComputationRecord
	err      error

	gotCategory string
	gotLimit    int
}

func (s *stubEngine) RunComputation(ctx context.Context) (*models.ComputationRecord, error) {
	return s.record, s.err
}

func (s *stubEngine) GetActiveInsights(ctx context.Context) ([]models.CorrelationInsight, error) {
	return s.insights, s.err
}

func (s *stubEngine) GetInsightsByCategory(ctx context.Context, category string) ([]models.CorrelationInsight, error) {
	s.gotCategory = category
	return s.insights, s.err
}

func (s *stubEngine) GetTopInsights(ctx context.Context, limit int) ([]models.CorrelationInsight, error) {
	s.gotLimit = limit
	return s.insights, s.err
}

func (s *stubEngine) RefreshCache(ctx context.Context) error {
	return s.err
}

func (s *stubEngine) GetComputationHistory(ctx context.Context, limit int) ([]models.ComputationRecord, error) {
	s.gotLimit = limit
	return s.records, s.err
}

func newTestRouter(engine service.IntelligenceService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewInsightsHandler(engine)
	router := gin.New()
	router.GET("/insights", h.GetInsights)
	router.GET("/insights/category/:category", h.GetInsightsByCategory)
	router.GET("/insights/top", h.GetTopInsights)
	router.GET("/insights/history", h.GetHistory)
	router.POST("/insights/compute", h.Compute)
	router.POST("/insights/refresh", h.RefreshCache)
	return router
}

func doRequest(t *testing.T, router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetInsights(t *testing.T) {
	engine := &stubEngine{insights: []models.CorrelationInsight{
		{ID: "a", SourceMetric: models.MetricSleepHours, TargetMetric: models.MetricHRV},
		{ID: "b", SourceMetric: models.MetricWorkMinutes, TargetMetric: models.MetricMoodScore},
	}}
	w := doRequest(t, newTestRouter(engine), http.MethodGet, "/insights")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Insights []models.CorrelationInsight `json:"insights"`
		Count    int                         `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Count != 2 || len(body.Insights) != 2 {
		t.Errorf("count = %d with %d insights, want 2", body.Count, len(body.Insights))
	}
}

func TestGetInsightsByCategory(t *testing.T) {
	engine := &stubEngine{}
	w := doRequest(t, newTestRouter(engine), http.MethodGet, "/insights?category=sleep")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if engine.gotCategory != "sleep" {
		t.Errorf("category = %q, want %q", engine.gotCategory, "sleep")
	}
}

func TestGetInsightsByCategoryPath(t *testing.T) {
	engine := &stubEngine{insights: []models.CorrelationInsight{{ID: "a"}}}
	w := doRequest(t, newTestRouter(engine), http.MethodGet, "/insights/category/recovery")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if engine.gotCategory != "recovery" {
		t.Errorf("category = %q, want %q", engine.gotCategory, "recovery")
	}
}

func TestGetTopInsights(t *testing.T) {
	engine := &stubEngine{}

	w := doRequest(t, newTestRouter(engine), http.MethodGet, "/insights/top")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if engine.gotLimit != 5 {
		t.Errorf("default limit = %d, want 5", engine.gotLimit)
	}

	w = doRequest(t, newTestRouter(engine), http.MethodGet, "/insights/top?limit=3")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if engine.gotLimit != 3 {
		t.Errorf("limit = %d, want 3", engine.gotLimit)
	}
}

func TestGetTopInsightsBadLimit(t *testing.T) {
	for _, limit := range []string{"0", "-1", "abc"} {
		w := doRequest(t, newTestRouter(&stubEngine{}), http.MethodGet, "/insights/top?limit="+limit)
		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d, want 400", limit, w.Code)
		}
		var problem apierror.ProblemDetails
		if err := json.Unmarshal(w.Body.Bytes(), &problem); err != nil {
			t.Fatalf("decode problem: %v", err)
		}
		if problem.Type != apierror.TypeBadRequest {
			t.Errorf("problem type = %q, want %q", problem.Type, apierror.TypeBadRequest)
		}
	}
}

func TestComputeSuccess(t *testing.T) {
	engine := &stubEngine{record: &models.ComputationRecord{ID: "run-1", InsightsCreated: 2}}
	w := doRequest(t, newTestRouter(engine), http.MethodPost, "/insights/compute")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Status string                   `json:"status"`
		Record models.ComputationRecord `json:"record"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != "success" || body.Record.ID != "run-1" {
		t.Errorf("body = %+v, want success with run-1", body)
	}
}

func TestComputeConflict(t *testing.T) {
	engine := &stubEngine{err: service.ErrComputationInProgress}
	w := doRequest(t, newTestRouter(engine), http.MethodPost, "/insights/compute")

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != apierror.ContentTypeProblemJSON {
		t.Errorf("content type = %q, want %q", got, apierror.ContentTypeProblemJSON)
	}
	if got := w.Header().Get("Retry-After"); got != "30" {
		t.Errorf("Retry-After = %q, want %q", got, "30")
	}
	var problem apierror.ProblemDetails
	if err := json.Unmarshal(w.Body.Bytes(), &problem); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if problem.Type != apierror.TypeComputationInProgress {
		t.Errorf("problem type = %q, want %q", problem.Type, apierror.TypeComputationInProgress)
	}
}

func TestComputeInvalidDateRange(t *testing.T) {
	engine := &stubEngine{err: service.ErrInvalidDateRange}
	w := doRequest(t, newTestRouter(engine), http.MethodPost, "/insights/compute")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var problem apierror.ProblemDetails
	if err := json.Unmarshal(w.Body.Bytes(), &problem); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if problem.Type != apierror.TypeInvalidDateRange {
		t.Errorf("problem type = %q, want %q", problem.Type, apierror.TypeInvalidDateRange)
	}
}

func TestComputeInternalError(t *testing.T) {
	engine := &stubEngine{err: errors.New("store exploded")}
	w := doRequest(t, newTestRouter(engine), http.MethodPost, "/insights/compute")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var problem apierror.ProblemDetails
	if err := json.Unmarshal(w.Body.Bytes(), &problem); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	// Internal details must never leak to the client.
	if problem.Detail == "store exploded" {
		t.Error("internal error detail leaked to the response")
	}
}

func TestRefreshCache(t *testing.T) {
	w := doRequest(t, newTestRouter(&stubEngine{}), http.MethodPost, "/insights/refresh")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	w = doRequest(t, newTestRouter(&stubEngine{err: errors.New("load failed")}), http.MethodPost, "/insights/refresh")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestGetHistory(t *testing.T) {
	engine := &stubEngine{records: []models.ComputationRecord{{ID: "r1"}, {ID: "r2"}}}
	w := doRequest(t, newTestRouter(engine), http.MethodGet, "/insights/history")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if engine.gotLimit != 20 {
		t.Errorf("default limit = %d, want 20", engine.gotLimit)
	}
	var body struct {
		Records []models.ComputationRecord `json:"records"`
		Count   int                        `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Count != 2 {
		t.Errorf("count = %d, want 2", body.Count)
	}
}
