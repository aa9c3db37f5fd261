package service

import (
	"context"
	"sort"
	"time"

	"github.com/lifesignal/backend/internal/logger"
	"github.com/lifesignal/backend/internal/models"
	"github.com/lifesignal/backend/internal/repository"
)

// ExtractorFunc pulls named numeric metrics out of a single event. An
// empty map means the event carried nothing usable and is skipped.
type ExtractorFunc func(models.Event) map[string]float64

// MetricExtractor reduces raw events to one value per (day, metric).
// Extraction rules are registered per event type at construction so new
// metric sources can be added without touching the core loop.
type MetricExtractor struct {
	eventRepo repository.EventRepository
	rules     map[models.EventType]ExtractorFunc
	counters  map[string]bool
	log       logger.Logger
}

// NewMetricExtractor creates an extractor with the default rule set.
func NewMetricExtractor(eventRepo repository.EventRepository, log logger.Logger) *MetricExtractor {
	x := &MetricExtractor{
		eventRepo: eventRepo,
		rules:     make(map[models.EventType]ExtractorFunc),
		counters:  make(map[string]bool),
		log:       log,
	}
	x.registerDefaults()
	return x
}

// Register adds or replaces the extraction rule for an event type.
// Metrics named in counterMetrics accumulate additively instead of by
// running average.
func (x *MetricExtractor) Register(t models.EventType, fn ExtractorFunc, counterMetrics ...string) {
	x.rules[t] = fn
	for _, m := range counterMetrics {
		x.counters[m] = true
	}
}

// EventTypes returns the allow-list of event types the extractor queries,
// in stable order.
func (x *MetricExtractor) EventTypes() []models.EventType {
	types := make([]models.EventType, 0, len(x.rules))
	for t := range x.rules {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Extract returns one aggregate per day in [windowStart, windowEnd),
// inclusive of empty days so lag alignment by index is always valid.
// The second return value is the number of data points folded in.
func (x *MetricExtractor) Extract(ctx context.Context, windowStart, windowEnd time.Time) ([]*models.DailyMetricAggregate, int, error) {
	start := startOfDay(windowStart)
	end := startOfDay(windowEnd)
	if !end.After(start) {
		return nil, 0, ErrInvalidDateRange
	}

	// One empty aggregate per day, created eagerly.
	days := int(end.Sub(start).Hours() / 24)
	aggregates := make([]*models.DailyMetricAggregate, days)
	for i := 0; i < days; i++ {
		aggregates[i] = models.NewDailyMetricAggregate(start.AddDate(0, 0, i))
	}

	events, err := x.eventRepo.QueryByTypesAndDateRange(ctx, x.EventTypes(), start, end)
	if err != nil {
		return nil, 0, dbErr("event query", err)
	}

	points := x.extractPoints(events, start, days)
	for _, p := range points {
		idx := int(startOfDay(p.Timestamp).Sub(start).Hours() / 24)
		if x.counters[p.Metric] {
			aggregates[idx].Count(p.Metric, p.Value)
		} else {
			aggregates[idx].Observe(p.Metric, p.Value)
		}
	}

	return aggregates, len(points), nil
}

// extractPoints runs the per-type rules over the raw events, yielding one
// scalar observation per (event, metric) inside the window.
func (x *MetricExtractor) extractPoints(events []models.Event, start time.Time, days int) []models.MetricDataPoint {
	points := make([]models.MetricDataPoint, 0, len(events))
	for _, evt := range events {
		rule, ok := x.rules[evt.Type]
		if !ok {
			continue
		}
		idx := int(startOfDay(evt.CreatedAt).Sub(start).Hours() / 24)
		if idx < 0 || idx >= days {
			continue
		}
		metrics := rule(evt)
		if len(metrics) == 0 {
			// A single malformed event must never abort the analysis.
			x.log.Debug("skipping event with no extractable metrics",
				logger.String("event_id", evt.ID),
				logger.String("event_type", string(evt.Type)))
			continue
		}
		for metric, value := range metrics {
			points = append(points, models.MetricDataPoint{
				Timestamp: evt.CreatedAt,
				Metric:    metric,
				Value:     value,
				EventID:   evt.ID,
			})
		}
	}
	return points
}

func (x *MetricExtractor) registerDefaults() {
	x.Register(models.EventTypeHRV, func(e models.Event) map[string]float64 {
		out := map[string]float64{}
		if v, ok := e.Numeric("value"); ok {
			out[models.MetricHRV] = v
		}
		if v, ok := e.Numeric("rmssd"); ok {
			out[models.MetricHRVRMSSD] = v
		}
		return out
	})

	x.Register(models.EventTypeSleep, func(e models.Event) map[string]float64 {
		out := map[string]float64{}
		if v, ok := e.Numeric("hours"); ok {
			out[models.MetricSleepHours] = v
		}
		if v, ok := e.Numeric("quality"); ok {
			out[models.MetricSleepQuality] = v
		}
		return out
	})

	x.Register(models.EventTypeWorkSession, func(e models.Event) map[string]float64 {
		out := map[string]float64{}
		if v, ok := e.Numeric("duration_minutes"); ok {
			out[models.MetricWorkMinutes] = v
		}
		if v, ok := e.Numeric("focus"); ok {
			out[models.MetricFocusScore] = v
		}
		return out
	})

	x.Register(models.EventTypeMood, func(e models.Event) map[string]float64 {
		out := map[string]float64{}
		if v, ok := e.Numeric("score"); ok {
			out[models.MetricMoodScore] = v
		}
		if v, ok := e.Numeric("energy"); ok {
			out[models.MetricEnergyLevel] = v
		}
		return out
	})

	x.Register(models.EventTypeWorkout, func(e models.Event) map[string]float64 {
		out := map[string]float64{}
		if v, ok := e.Numeric("duration_minutes"); ok {
			out[models.MetricWorkoutMinutes] = v
		}
		return out
	})

	// Tasks count occurrences, not averages. An explicit count property
	// overrides the default of one completion per event.
	x.Register(models.EventTypeTask, func(e models.Event) map[string]float64 {
		n := 1.0
		if v, ok := e.Numeric("count"); ok {
			n = v
		}
		return map[string]float64{models.MetricTasksCompleted: n}
	}, models.MetricTasksCompleted)

	x.Register(models.EventTypeXP, func(e models.Event) map[string]float64 {
		out := map[string]float64{}
		if v, ok := e.Numeric("amount"); ok {
			out[models.MetricXPGained] = v
		}
		return out
	}, models.MetricXPGained)

	x.Register(models.EventTypeContent, func(e models.Event) map[string]float64 {
		out := map[string]float64{}
		if v, ok := e.Numeric("views"); ok {
			out[models.MetricContentViews] = v
		}
		if v, ok := e.Numeric("engagement"); ok {
			out[models.MetricContentEngagement] = v
		}
		return out
	})
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
