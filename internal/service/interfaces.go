package service

import (
	"context"

	"github.com/lifesignal/backend/internal/models"
)

// IntelligenceService is the engine's public API, consumed by the HTTP
// handlers and other subsystems.
type IntelligenceService interface {
	// RunComputation executes one full pipeline pass. Returns
	// ErrComputationInProgress if a run is already active; concurrent
	// attempts are rejected, not queued.
	RunComputation(ctx context.Context) (*models.ComputationRecord, error)

	// GetActiveInsights returns the active insight set sorted by display
	// priority, descending. Never triggers a computation.
	GetActiveInsights(ctx context.Context) ([]models.CorrelationInsight, error)

	// GetInsightsByCategory filters the active set to insights touching
	// the given category.
	GetInsightsByCategory(ctx context.Context, category string) ([]models.CorrelationInsight, error)

	// GetTopInsights returns the highest-priority active insights,
	// capped at limit.
	GetTopInsights(ctx context.Context, limit int) ([]models.CorrelationInsight, error)

	// RefreshCache forces a reload from the store without recomputation.
	RefreshCache(ctx context.Context) error

	// GetComputationHistory returns recent computation records, most
	// recent first.
	GetComputationHistory(ctx context.Context, limit int) ([]models.ComputationRecord, error)
}
