package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lifesignal/backend/internal/models"
	"github.com/lifesignal/backend/pkg/supabase"
)

type insightRepository struct {
	client *supabase.Client
}

// NewInsightRepository creates a Supabase-backed insight repository.
func NewInsightRepository(client *supabase.Client) InsightRepository {
	return &insightRepository{client: client}
}

func (r *insightRepository) Load(ctx context.Context, includeDeleted bool) ([]models.CorrelationInsight, error) {
	query := map[string]interface{}{
		"select": "*",
		"order":  "last_validated.desc",
	}
	if !includeDeleted {
		query["deleted_at"] = "is.null"
	}

	body, err := r.client.Query("correlation_insights", query)
	if err != nil {
		return nil, fmt.Errorf("failed to load insights: %w", err)
	}

	var insights []models.CorrelationInsight
	if err := json.Unmarshal(body, &insights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return insights, nil
}

func (r *insightRepository) Upsert(ctx context.Context, insights []models.CorrelationInsight) error {
	if len(insights) == 0 {
		return nil
	}

	// PostgREST requires identical keys on every object in a batch, so
	// optional fields are always present, nil when unset.
	data := make([]map[string]interface{}, len(insights))
	for i, ins := range insights {
		item := map[string]interface{}{
			"id":             ins.ID,
			"source_metric":  ins.SourceMetric,
			"target_metric":  ins.TargetMetric,
			"lag_days":       ins.LagDays,
			"coefficient":    ins.Coefficient,
			"effect_size":    ins.EffectSize,
			"occurrences":    ins.Occurrences,
			"confidence":     ins.Confidence,
			"decay_factor":   ins.DecayFactor,
			"type":           ins.Type,
			"strength":       ins.Strength,
			"category":       ins.Category,
			"description":    ins.Description,
			"advice":         nil,
			"first_observed": ins.FirstObserved,
			"last_validated": ins.LastValidated,
			"deleted_at":     nil,
		}
		if ins.Advice != nil {
			item["advice"] = *ins.Advice
		}
		data[i] = item
	}

	if _, err := r.client.Upsert("correlation_insights", data, "id"); err != nil {
		return fmt.Errorf("failed to upsert insights: %w", err)
	}

	return nil
}

func (r *insightRepository) SoftDeleteNotIn(ctx context.Context, ids []string) error {
	filters := map[string]interface{}{
		"deleted_at": "is.null",
	}
	if len(ids) > 0 {
		filters["id"] = fmt.Sprintf("not.in.(%s)", strings.Join(ids, ","))
	}

	data := map[string]interface{}{
		"deleted_at": time.Now().Format(time.RFC3339),
	}

	if _, err := r.client.UpdateWhere("correlation_insights", filters, data); err != nil {
		return fmt.Errorf("failed to soft delete insights: %w", err)
	}

	return nil
}
