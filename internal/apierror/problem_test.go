package apierror

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	// Set gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

func TestProblemDetailsJSON(t *testing.T) {
	retryAfter := 30
	problem := &ProblemDetails{
		Type:        TypeComputationInProgress,
		Title:       TitleComputationInProgress,
		Status:      http.StatusConflict,
		Detail:      "An insight computation is already running",
		Instance:    "/api/v1/insights/compute",
		RequestID:   "req-abc123",
		UserMessage: "Please try again shortly",
		RetryAfter:  &retryAfter,
	}

	data, err := json.Marshal(problem)
	if err != nil {
		t.Fatalf("Failed to marshal ProblemDetails: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Failed to unmarshal JSON: %v", err)
	}

	// Check standard RFC 9457 fields
	if result["type"] != TypeComputationInProgress {
		t.Errorf("Expected type=%q, got %q", TypeComputationInProgress, result["type"])
	}
	if result["title"] != TitleComputationInProgress {
		t.Errorf("Expected title=%q, got %q", TitleComputationInProgress, result["title"])
	}
	if result["status"] != float64(http.StatusConflict) {
		t.Errorf("Expected status=%d, got %v", http.StatusConflict, result["status"])
	}
	if result["instance"] != "/api/v1/insights/compute" {
		t.Errorf("Expected instance=%q, got %q", "/api/v1/insights/compute", result["instance"])
	}

	// Check extension fields
	if result["request_id"] != "req-abc123" {
		t.Errorf("Expected request_id=%q, got %q", "req-abc123", result["request_id"])
	}
	if result["retry_after"] != float64(30) {
		t.Errorf("Expected retry_after=%d, got %v", 30, result["retry_after"])
	}
}

func TestProblemDetailsJSONOmitsEmpty(t *testing.T) {
	// Minimal problem - should omit empty fields
	problem := &ProblemDetails{
		Type:   TypeInternal,
		Title:  TitleInternal,
		Status: http.StatusInternalServerError,
	}

	data, err := json.Marshal(problem)
	if err != nil {
		t.Fatalf("Failed to marshal ProblemDetails: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Failed to unmarshal JSON: %v", err)
	}

	omittedFields := []string{"detail", "instance", "request_id", "user_message", "retry_after"}
	for _, field := range omittedFields {
		if _, exists := result[field]; exists {
			t.Errorf("Expected field %q to be omitted when empty, but it was present", field)
		}
	}

	requiredFields := []string{"type", "title", "status"}
	for _, field := range requiredFields {
		if _, exists := result[field]; !exists {
			t.Errorf("Expected required field %q to be present", field)
		}
	}
}

func TestWriteProblemContentType(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	problem := NewInternalError("req-123")
	WriteProblem(c, problem)

	contentType := w.Header().Get("Content-Type")
	if contentType != ContentTypeProblemJSON {
		t.Errorf("Expected Content-Type=%q, got %q", ContentTypeProblemJSON, contentType)
	}
}

func TestWriteProblemRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	problem := NewComputationInProgressError("req-456", 30)
	WriteProblem(c, problem)

	retryAfterHeader := w.Header().Get("Retry-After")
	if retryAfterHeader != "30" {
		t.Errorf("Expected Retry-After header=%q, got %q", "30", retryAfterHeader)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to unmarshal response body: %v", err)
	}

	if result["retry_after"] != float64(30) {
		t.Errorf("Expected retry_after in body=%d, got %v", 30, result["retry_after"])
	}
}

func TestWriteProblemNoRetryAfterWhenNil(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	problem := NewInternalError("req-789")
	WriteProblem(c, problem)

	retryAfterHeader := w.Header().Get("Retry-After")
	if retryAfterHeader != "" {
		t.Errorf("Expected no Retry-After header, got %q", retryAfterHeader)
	}
}

func TestNewComputationInProgressError(t *testing.T) {
	problem := NewComputationInProgressError("req-abc", 30)

	if problem.Type != TypeComputationInProgress {
		t.Errorf("Expected type=%q, got %q", TypeComputationInProgress, problem.Type)
	}
	if problem.Status != http.StatusConflict {
		t.Errorf("Expected status=%d, got %d", http.StatusConflict, problem.Status)
	}
	if problem.RetryAfter == nil || *problem.RetryAfter != 30 {
		t.Errorf("Expected retry_after=30, got %v", problem.RetryAfter)
	}
}

func TestNewInvalidDateRangeError(t *testing.T) {
	problem := NewInvalidDateRangeError("req-def")

	if problem.Type != TypeInvalidDateRange {
		t.Errorf("Expected type=%q, got %q", TypeInvalidDateRange, problem.Type)
	}
	if problem.Status != http.StatusBadRequest {
		t.Errorf("Expected status=%d, got %d", http.StatusBadRequest, problem.Status)
	}
}

func TestNewInternalErrorHidesDetails(t *testing.T) {
	problem := NewInternalError("req-xyz")

	if problem.Detail == "" {
		t.Error("Expected a generic detail message, got empty string")
	}

	// The detail should be generic, not exposing internal error information
	expectedDetail := "An unexpected error occurred"
	if problem.Detail != expectedDetail {
		t.Errorf("Expected detail=%q, got %q", expectedDetail, problem.Detail)
	}

	if problem.UserMessage == "" {
		t.Error("Expected user_message to be set")
	}
}

func TestProblemDetailsError(t *testing.T) {
	p1 := &ProblemDetails{
		Type:   TypeBadRequest,
		Title:  TitleBadRequest,
		Detail: "Custom error message",
	}
	if p1.Error() != "Custom error message" {
		t.Errorf("Expected Error()=%q, got %q", "Custom error message", p1.Error())
	}

	// Without detail, Error() falls back to the title
	p2 := &ProblemDetails{
		Type:  TypeBadRequest,
		Title: TitleBadRequest,
	}
	if p2.Error() != TitleBadRequest {
		t.Errorf("Expected Error()=%q, got %q", TitleBadRequest, p2.Error())
	}
}

func TestGetRequestID(t *testing.T) {
	// Test with request_id in gin context
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("request_id", "ctx-req-123")

	requestID := GetRequestID(c)
	if requestID != "ctx-req-123" {
		t.Errorf("Expected request_id=%q, got %q", "ctx-req-123", requestID)
	}

	// Test with X-Request-ID header fallback
	c2, _ := gin.CreateTestContext(httptest.NewRecorder())
	c2.Request = httptest.NewRequest("GET", "/test", nil)
	c2.Request.Header.Set("X-Request-ID", "header-req-456")

	requestID2 := GetRequestID(c2)
	if requestID2 != "header-req-456" {
		t.Errorf("Expected request_id from header=%q, got %q", "header-req-456", requestID2)
	}

	// Test with neither (returns empty)
	c3, _ := gin.CreateTestContext(httptest.NewRecorder())
	c3.Request = httptest.NewRequest("GET", "/test", nil)

	requestID3 := GetRequestID(c3)
	if requestID3 != "" {
		t.Errorf("Expected empty request_id, got %q", requestID3)
	}
}
