package apierror

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ContentTypeProblemJSON is the MIME type for RFC 9457 Problem Details.
const ContentTypeProblemJSON = "application/problem+json"

// WriteProblem writes a ProblemDetails response to the gin context.
// It sets the correct Content-Type header and, if RetryAfter is set,
// also sets the Retry-After header.
func WriteProblem(c *gin.Context, problem *ProblemDetails) {
	c.Header("Content-Type", ContentTypeProblemJSON)

	if problem.RetryAfter != nil {
		c.Header("Retry-After", strconv.Itoa(*problem.RetryAfter))
	}

	c.JSON(problem.Status, problem)
}

// GetRequestID extracts the request ID from the gin context.
// Returns empty string if not found.
func GetRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return c.GetHeader("X-Request-ID")
}

// NewComputationInProgressError creates a 409 Conflict response for a
// rejected concurrent computation attempt. Callers should back off and
// retry after retryAfter seconds; requests are never queued.
func NewComputationInProgressError(requestID string, retryAfter int) *ProblemDetails {
	return &ProblemDetails{
		Type:        TypeComputationInProgress,
		Title:       TitleComputationInProgress,
		Status:      http.StatusConflict,
		Detail:      "An insight computation is already running",
		RequestID:   requestID,
		UserMessage: "Insights are being recomputed. Please try again shortly.",
		RetryAfter:  &retryAfter,
	}
}

// NewInvalidDateRangeError creates a 400 Bad Request response for a run
// whose analysis window could not be resolved.
func NewInvalidDateRangeError(requestID string) *ProblemDetails {
	return &ProblemDetails{
		Type:        TypeInvalidDateRange,
		Title:       TitleInvalidDateRange,
		Status:      http.StatusBadRequest,
		Detail:      "The analysis window could not be resolved",
		RequestID:   requestID,
		UserMessage: "Could not compute insights for the requested period.",
	}
}

// NewBadRequestError creates a 400 Bad Request response for malformed requests.
func NewBadRequestError(requestID, detail, userMessage string) *ProblemDetails {
	return &ProblemDetails{
		Type:        TypeBadRequest,
		Title:       TitleBadRequest,
		Status:      http.StatusBadRequest,
		Detail:      detail,
		RequestID:   requestID,
		UserMessage: userMessage,
	}
}

// NewInternalError creates a 500 Internal Server Error response.
// IMPORTANT: This intentionally hides internal error details from the client.
// The actual error should be logged server-side for debugging.
func NewInternalError(requestID string) *ProblemDetails {
	return &ProblemDetails{
		Type:        TypeInternal,
		Title:       TitleInternal,
		Status:      http.StatusInternalServerError,
		Detail:      "An unexpected error occurred",
		RequestID:   requestID,
		UserMessage: "Something went wrong. Please try again later.",
	}
}
