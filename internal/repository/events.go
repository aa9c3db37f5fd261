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

type eventRepository struct {
	client *supabase.Client
}

// NewEventRepository creates a Supabase-backed event repository.
func NewEventRepository(client *supabase.Client) EventRepository {
	return &eventRepository{client: client}
}

func (r *eventRepository) QueryByTypesAndDateRange(ctx context.Context, types []models.EventType, from, to time.Time) ([]models.Event, error) {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}

	query := map[string]interface{}{
		"type": fmt.Sprintf("in.(%s)", strings.Join(names, ",")),
		"and": fmt.Sprintf("(created_at.gte.%s,created_at.lt.%s)",
			from.Format(time.RFC3339), to.Format(time.RFC3339)),
		"select": "*",
		"order":  "created_at.asc",
	}

	body, err := r.client.Query("events", query)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	var events []models.Event
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return events, nil
}
