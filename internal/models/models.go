package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// EventType identifies the kind of tracked event a record represents.
type EventType string

const (
	EventTypeHRV         EventType = "hrv"
	EventTypeSleep       EventType = "sleep"
	EventTypeWorkSession EventType = "work_session"
	EventTypeMood        EventType = "mood"
	EventTypeWorkout     EventType = "workout"
	EventTypeTask        EventType = "task"
	EventTypeXP          EventType = "xp"
	EventTypeContent     EventType = "content"
)

// Event represents a raw tracked event from the event store.
// Properties is an opaque bag of event-specific fields; extraction rules
// pull named numeric values out of it.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	CreatedAt  time.Time      `json:"created_at"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Numeric returns the property under key as a float64 if it holds any
// JSON-ish numeric representation.
func (e Event) Numeric(key string) (float64, bool) {
	raw, ok := e.Properties[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// MetricDataPoint is a single scalar observation derived from an event.
// Never mutated after creation.
type MetricDataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	EventID   string    `json:"event_id"`
}

// DailyMetricAggregate holds one aggregated value per metric for a single
// calendar day. Measurement metrics accumulate as a running average,
// counter metrics add up.
type DailyMetricAggregate struct {
	Date   time.Time          `json:"date"`
	Values map[string]float64 `json:"values"`

	obsCounts map[string]int
}

// NewDailyMetricAggregate creates an empty aggregate for the given day.
func NewDailyMetricAggregate(date time.Time) *DailyMetricAggregate {
	return &DailyMetricAggregate{
		Date:      date,
		Values:    make(map[string]float64),
		obsCounts: make(map[string]int),
	}
}

// Observe folds a measurement-style observation into the day's value
// using running-average semantics.
func (a *DailyMetricAggregate) Observe(metric string, value float64) {
	n := a.obsCounts[metric]
	avg := a.Values[metric]
	a.Values[metric] = avg + (value-avg)/float64(n+1)
	a.obsCounts[metric] = n + 1
}

// Count folds a counter-style observation into the day's value using
// additive semantics.
func (a *DailyMetricAggregate) Count(metric string, delta float64) {
	a.Values[metric] += delta
	a.obsCounts[metric]++
}

// Value returns the aggregated value for metric and whether the day has
// any observation for it.
func (a *DailyMetricAggregate) Value(metric string) (float64, bool) {
	v, ok := a.Values[metric]
	return v, ok
}

// Observations returns how many raw observations were folded into metric.
func (a *DailyMetricAggregate) Observations(metric string) int {
	return a.obsCounts[metric]
}
