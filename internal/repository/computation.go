package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lifesignal/backend/internal/models"
	"github.com/lifesignal/backend/pkg/supabase"
)

type computationRepository struct {
	client *supabase.Client
}

// NewComputationRepository creates a Supabase-backed computation log.
func NewComputationRepository(client *supabase.Client) ComputationRepository {
	return &computationRepository{client: client}
}

func (r *computationRepository) Append(ctx context.Context, record models.ComputationRecord) error {
	data := map[string]interface{}{
		"id":                 record.ID,
		"window_start":       record.WindowStart,
		"window_end":         record.WindowEnd,
		"data_points":        record.DataPoints,
		"metrics_analyzed":   record.MetricsAnalyzed,
		"correlations_found": record.CorrelationsFound,
		"insights_created":   record.InsightsCreated,
		"insights_validated": record.InsightsValidated,
		"insights_decayed":   record.InsightsDecayed,
		"insights_removed":   record.InsightsRemoved,
		"duration_ms":        record.DurationMS,
		"cloud_enriched":     record.CloudEnriched,
		"computed_at":        record.ComputedAt,
	}

	if _, err := r.client.Insert("computation_records", data); err != nil {
		return fmt.Errorf("failed to append computation record: %w", err)
	}

	return nil
}

func (r *computationRepository) List(ctx context.Context, limit int) ([]models.ComputationRecord, error) {
	query := map[string]interface{}{
		"select": "*",
		"order":  "computed_at.desc",
	}
	if limit > 0 {
		query["limit"] = limit
	}

	body, err := r.client.Query("computation_records", query)
	if err != nil {
		return nil, fmt.Errorf("failed to list computation records: %w", err)
	}

	var records []models.ComputationRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return records, nil
}
