package service

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lifesignal/backend/internal/models"
)

// Metrics a user can deliberately change. Advice is only generated for
// relationships driven by one of these.
var actionableSources = map[string]bool{
	models.MetricSleepHours:     true,
	models.MetricSleepQuality:   true,
	models.MetricWorkoutMinutes: true,
	models.MetricWorkMinutes:    true,
}

// Outcome metrics worth improving. Advice requires the target to be one
// of these and the relationship to be positive.
var positiveOutcomes = map[string]bool{
	models.MetricHRV:         true,
	models.MetricHRVRMSSD:    true,
	models.MetricFocusScore:  true,
	models.MetricMoodScore:   true,
	models.MetricEnergyLevel: true,
}

// decayEpsilon absorbs float drift from repeated decay subtraction so
// the removal floor comparison stays exact at tier boundaries.
const decayEpsilon = 1e-9

// ReconcileOutcome is the result of reconciling persisted insights
// against one batch of fresh correlation results.
type ReconcileOutcome struct {
	Kept      []models.CorrelationInsight
	Validated int
	Decayed   int
	Removed   int
}

// InsightLifecycleManager owns all mutation of correlation insights:
// validation, decay, removal and creation. Every other component treats
// insights as read-only.
type InsightLifecycleManager struct {
	now   func() time.Time
	newID func() string
}

// NewInsightLifecycleManager creates a lifecycle manager using wall-clock
// time and random ids.
func NewInsightLifecycleManager() *InsightLifecycleManager {
	return &InsightLifecycleManager{
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Reconcile validates, decays or removes each existing insight against
// the fresh result batch. The input slice is never mutated; survivors are
// returned in a new collection so concurrent readers only ever see the
// pre-run or post-run snapshot. Each insight's outcome depends only on
// the fresh-result set, so processing order cannot change the result.
func (m *InsightLifecycleManager) Reconcile(existing []models.CorrelationInsight, fresh []models.CorrelationResult) ReconcileOutcome {
	byKey := make(map[string]models.CorrelationResult, len(fresh))
	for _, res := range fresh {
		byKey[res.Key()] = res
	}

	outcome := ReconcileOutcome{Kept: make([]models.CorrelationInsight, 0, len(existing))}
	now := m.now()

	for _, ins := range existing {
		res, matched := byKey[ins.Key()]
		if matched {
			outcome.Kept = append(outcome.Kept, m.validate(ins, res, now))
			outcome.Validated++
			continue
		}

		ins.DecayFactor -= models.DecayRate
		if ins.DecayFactor <= models.DecayRemovalFloor+decayEpsilon {
			outcome.Removed++
			continue
		}
		outcome.Decayed++
		outcome.Kept = append(outcome.Kept, ins)
	}

	return outcome
}

// validate reinforces an insight with a fresh observation of the same
// relationship.
func (m *InsightLifecycleManager) validate(ins models.CorrelationInsight, res models.CorrelationResult, now time.Time) models.CorrelationInsight {
	ins.Occurrences++
	ins.Confidence = models.TierForOccurrences(ins.Occurrences)
	// Equal-weight average of old and new. Deliberately not occurrence
	// weighted, which biases toward the most recent reading.
	ins.Coefficient = (ins.Coefficient + res.Coefficient) / 2
	ins.EffectSize = (ins.EffectSize + res.EffectSize) / 2
	ins.Strength = models.ClassifyStrength(ins.Coefficient)
	ins.DecayFactor = 1.0
	ins.LastValidated = now
	return ins
}

// CreateNew instantiates insights for qualifying fresh results that no
// existing insight tracks.
func (m *InsightLifecycleManager) CreateNew(existing []models.CorrelationInsight, fresh []models.CorrelationResult) []models.CorrelationInsight {
	tracked := make(map[string]bool, len(existing))
	for _, ins := range existing {
		tracked[ins.Key()] = true
	}

	now := m.now()
	var created []models.CorrelationInsight
	for _, res := range fresh {
		if tracked[res.Key()] || !res.MeetsThreshold() {
			continue
		}
		ins := models.CorrelationInsight{
			ID:            m.newID(),
			SourceMetric:  res.SourceMetric,
			TargetMetric:  res.TargetMetric,
			LagDays:       res.LagDays,
			Coefficient:   res.Coefficient,
			EffectSize:    res.EffectSize,
			Occurrences:   1,
			Confidence:    models.TierEmerging,
			DecayFactor:   1.0,
			Type:          res.Type,
			Strength:      res.Strength,
			Category:      models.CategoryForMetric(res.TargetMetric),
			Description:   describeCorrelation(res),
			Advice:        adviceFor(res),
			FirstObserved: now,
			LastValidated: now,
		}
		created = append(created, ins)
	}
	return created
}

// describeCorrelation renders the human-readable summary of a result.
func describeCorrelation(res models.CorrelationResult) string {
	source := humanizeMetric(res.SourceMetric)
	target := humanizeMetric(res.TargetMetric)
	direction := "higher"
	if res.Coefficient < 0 {
		direction = "lower"
	}
	pct := int(math.Round(math.Abs(res.EffectSize) * 100))

	if res.LagDays == 0 {
		return fmt.Sprintf("Higher %s correlates with %d%% %s %s", source, pct, direction, target)
	}

	dayWord := "days"
	if res.LagDays == 1 {
		dayWord = "day"
	}
	return fmt.Sprintf("When %s is high, %s tends to be %d%% %s %d %s later",
		source, target, pct, direction, res.LagDays, dayWord)
}

// adviceFor generates actionable advice only when the source is something
// the user controls, the target is a positive outcome, and the
// relationship is positive.
func adviceFor(res models.CorrelationResult) *string {
	if !actionableSources[res.SourceMetric] || !positiveOutcomes[res.TargetMetric] || res.Coefficient <= 0 {
		return nil
	}
	source := humanizeMetric(res.SourceMetric)
	target := humanizeMetric(res.TargetMetric)

	var advice string
	if res.LagDays == 0 {
		advice = fmt.Sprintf("Prioritizing %s tends to improve your %s.", source, target)
	} else {
		dayWord := "days"
		if res.LagDays == 1 {
			dayWord = "day"
		}
		advice = fmt.Sprintf("Prioritizing %s tends to improve your %s %d %s later.",
			source, target, res.LagDays, dayWord)
	}
	return &advice
}

func humanizeMetric(metric string) string {
	return strings.ReplaceAll(metric, "_", " ")
}
