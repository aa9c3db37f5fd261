package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lifesignal/backend/internal/apierror"
	"github.com/lifesignal/backend/internal/logger"
	"github.com/lifesignal/backend/internal/models"
	"github.com/lifesignal/backend/internal/service"
)

// retry hint for rejected concurrent compute attempts, in seconds
const computeRetryAfter = 30

// InsightsHandler handles insight-related HTTP requests.
type InsightsHandler struct {
	engine service.IntelligenceService
}

// NewInsightsHandler creates a new insights handler.
func NewInsightsHandler(engine service.IntelligenceService) *InsightsHandler {
	return &InsightsHandler{engine: engine}
}

// GetInsights returns the active insight set sorted by display priority.
// An optional ?category= filters to one category.
// GET /api/v1/insights
func (h *InsightsHandler) GetInsights(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.Ctx(ctx)

	insights, err := h.getInsights(c, c.Query("category"))
	if err != nil {
		log.Error("failed to get insights", logger.Err(err))
		apierror.WriteProblem(c, apierror.NewInternalError(apierror.GetRequestID(c)))
		return
	}

	c.JSON(http.StatusOK, gin.H{"insights": insights, "count": len(insights)})
}

func (h *InsightsHandler) getInsights(c *gin.Context, category string) ([]models.CorrelationInsight, error) {
	if category != "" {
		return h.engine.GetInsightsByCategory(c.Request.Context(), category)
	}
	return h.engine.GetActiveInsights(c.Request.Context())
}

// GetInsightsByCategory returns the active insights for one category.
// GET /api/v1/insights/category/:category
func (h *InsightsHandler) GetInsightsByCategory(c *gin.Context) {
	insights, err := h.engine.GetInsightsByCategory(c.Request.Context(), c.Param("category"))
	if err != nil {
		logger.Ctx(c.Request.Context()).Error("failed to get insights by category", logger.Err(err))
		apierror.WriteProblem(c, apierror.NewInternalError(apierror.GetRequestID(c)))
		return
	}

	c.JSON(http.StatusOK, gin.H{"insights": insights, "count": len(insights)})
}

// GetTopInsights returns the highest-priority insights.
// GET /api/v1/insights/top?limit=5
func (h *InsightsHandler) GetTopInsights(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "5"))
	if err != nil || limit < 1 {
		apierror.WriteProblem(c, apierror.NewBadRequestError(
			apierror.GetRequestID(c),
			"limit must be a positive integer",
			"Invalid limit parameter"))
		return
	}

	insights, err := h.engine.GetTopInsights(c.Request.Context(), limit)
	if err != nil {
		logger.Ctx(c.Request.Context()).Error("failed to get top insights", logger.Err(err))
		apierror.WriteProblem(c, apierror.NewInternalError(apierror.GetRequestID(c)))
		return
	}

	c.JSON(http.StatusOK, gin.H{"insights": insights, "count": len(insights)})
}

// Compute triggers a full computation run. A concurrent attempt while a
// run is active gets 409 and should retry later.
// POST /api/v1/insights/compute
func (h *InsightsHandler) Compute(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.Ctx(ctx)

	record, err := h.engine.RunComputation(ctx)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrComputationInProgress):
			apierror.WriteProblem(c, apierror.NewComputationInProgressError(
				apierror.GetRequestID(c), computeRetryAfter))
		case errors.Is(err, service.ErrInvalidDateRange):
			apierror.WriteProblem(c, apierror.NewInvalidDateRangeError(apierror.GetRequestID(c)))
		default:
			log.Error("computation run failed", logger.Err(err))
			apierror.WriteProblem(c, apierror.NewInternalError(apierror.GetRequestID(c)))
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "record": record})
}

// RefreshCache reloads the active insight set from the store without
// recomputation.
// POST /api/v1/insights/refresh
func (h *InsightsHandler) RefreshCache(c *gin.Context) {
	if err := h.engine.RefreshCache(c.Request.Context()); err != nil {
		logger.Ctx(c.Request.Context()).Error("failed to refresh insight cache", logger.Err(err))
		apierror.WriteProblem(c, apierror.NewInternalError(apierror.GetRequestID(c)))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// GetHistory returns recent computation records, most recent first.
// GET /api/v1/insights/history?limit=20
func (h *InsightsHandler) GetHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		apierror.WriteProblem(c, apierror.NewBadRequestError(
			apierror.GetRequestID(c),
			"limit must be a positive integer",
			"Invalid limit parameter"))
		return
	}

	records, err := h.engine.GetComputationHistory(c.Request.Context(), limit)
	if err != nil {
		logger.Ctx(c.Request.Context()).Error("failed to get computation history", logger.Err(err))
		apierror.WriteProblem(c, apierror.NewInternalError(apierror.GetRequestID(c)))
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}
