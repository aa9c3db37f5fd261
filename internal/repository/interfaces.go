package repository

import (
	"context"
	"time"

	"github.com/lifesignal/backend/internal/models"
)

// EventRepository defines the interface for querying raw tracked events.
type EventRepository interface {
	QueryByTypesAndDateRange(ctx context.Context, types []models.EventType, from, to time.Time) ([]models.Event, error)
}

// InsightRepository defines the interface for insight persistence.
type InsightRepository interface {
	Load(ctx context.Context, includeDeleted bool) ([]models.CorrelationInsight, error)
	Upsert(ctx context.Context, insights []models.CorrelationInsight) error
	// SoftDeleteNotIn marks every persisted insight whose id is absent
	// from ids as deleted. This is how removed insights leave the active
	// set without a hard delete.
	SoftDeleteNotIn(ctx context.Context, ids []string) error
}

// ComputationRepository defines the interface for the append-only run log.
type ComputationRepository interface {
	Append(ctx context.Context, record models.ComputationRecord) error
	List(ctx context.Context, limit int) ([]models.ComputationRecord, error)
}
