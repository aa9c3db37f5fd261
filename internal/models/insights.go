package models

import (
	"fmt"
	"math"
	"time"
)

// CorrelationType categorizes the shape of a discovered relationship.
type CorrelationType string

const (
	CorrelationTypeDirect    CorrelationType = "direct"
	CorrelationTypeLagged    CorrelationType = "lagged"
	CorrelationTypeInverse   CorrelationType = "inverse"
	CorrelationTypeCompound  CorrelationType = "compound"
	CorrelationTypeThreshold CorrelationType = "threshold"
	CorrelationTypePeriodic  CorrelationType = "periodic"
)

// CorrelationStrength buckets the absolute coefficient into coarse bands.
type CorrelationStrength string

const (
	StrengthWeak       CorrelationStrength = "weak"
	StrengthModerate   CorrelationStrength = "moderate"
	StrengthStrong     CorrelationStrength = "strong"
	StrengthVeryStrong CorrelationStrength = "very_strong"
)

// ClassifyStrength maps |r| onto the fixed coefficient bands.
func ClassifyStrength(r float64) CorrelationStrength {
	abs := math.Abs(r)
	switch {
	case abs >= 0.85:
		return StrengthVeryStrong
	case abs >= 0.7:
		return StrengthStrong
	case abs >= 0.5:
		return StrengthModerate
	default:
		return StrengthWeak
	}
}

// ConfidenceTier is the coarse trust bucket an insight has earned through
// repeated reinforcement.
type ConfidenceTier string

const (
	TierEmerging    ConfidenceTier = "emerging"
	TierDeveloping  ConfidenceTier = "developing"
	TierEstablished ConfidenceTier = "established"
	TierProven      ConfidenceTier = "proven"
)

// MinOccurrences returns the reinforcement count an insight must reach to
// count as active at this tier.
func (t ConfidenceTier) MinOccurrences() int {
	switch t {
	case TierProven:
		return 50
	case TierEstablished:
		return 20
	case TierDeveloping:
		return 10
	default:
		return 5
	}
}

// TierForOccurrences derives the confidence tier from how many times an
// insight has been reinforced.
func TierForOccurrences(n int) ConfidenceTier {
	switch {
	case n >= 50:
		return TierProven
	case n >= 20:
		return TierEstablished
	case n >= 10:
		return TierDeveloping
	default:
		return TierEmerging
	}
}

// Thresholds a correlation result must clear to be reported or to seed a
// new insight.
const (
	MinAbsCoefficient = 0.3
	MaxPValue         = 0.05
	MinSampleSize     = 10
	MinAbsEffectSize  = 0.10
)

// Insight lifecycle constants.
const (
	DecayRate            = 0.02
	DecayRemovalFloor    = 0.30
	MinActiveOccurrences = 5
)

// CorrelationResult is the ephemeral outcome of one pairwise correlation
// computation. Results are never persisted; they feed the lifecycle stage.
type CorrelationResult struct {
	SourceMetric string              `json:"source_metric"`
	TargetMetric string              `json:"target_metric"`
	Coefficient  float64             `json:"coefficient"`
	PValue       float64             `json:"p_value"`
	SampleSize   int                 `json:"sample_size"`
	LagDays      int                 `json:"lag_days"`
	Type         CorrelationType     `json:"type"`
	Strength     CorrelationStrength `json:"strength"`
	EffectSize   float64             `json:"effect_size"`
}

// MeetsThreshold reports whether the result is strong, significant and
// well-sampled enough to surface.
func (r CorrelationResult) MeetsThreshold() bool {
	return math.Abs(r.Coefficient) >= MinAbsCoefficient &&
		r.PValue < MaxPValue &&
		r.SampleSize >= MinSampleSize &&
		math.Abs(r.EffectSize) >= MinAbsEffectSize
}

// Key is the natural dedup key matching results to persisted insights.
func (r CorrelationResult) Key() string {
	return fmt.Sprintf("%s|%s|%d", r.SourceMetric, r.TargetMetric, r.LagDays)
}

// CorrelationInsight is the persisted, evolving record of a validated
// relationship between two metrics. Exclusively mutated by the lifecycle
// manager; read-only everywhere else.
type CorrelationInsight struct {
	ID            string              `json:"id"`
	SourceMetric  string              `json:"source_metric"`
	TargetMetric  string              `json:"target_metric"`
	LagDays       int                 `json:"lag_days"`
	Coefficient   float64             `json:"coefficient"`
	EffectSize    float64             `json:"effect_size"`
	Occurrences   int                 `json:"occurrences"`
	Confidence    ConfidenceTier      `json:"confidence"`
	DecayFactor   float64             `json:"decay_factor"`
	Type          CorrelationType     `json:"type"`
	Strength      CorrelationStrength `json:"strength"`
	Category      string              `json:"category"`
	Description   string              `json:"description"`
	Advice        *string             `json:"advice,omitempty"`
	FirstObserved time.Time           `json:"first_observed"`
	LastValidated time.Time           `json:"last_validated"`
	DeletedAt     *time.Time          `json:"deleted_at,omitempty"`
}

// Key is the natural dedup key, order-sensitive for lagged pairs.
func (i CorrelationInsight) Key() string {
	return fmt.Sprintf("%s|%s|%d", i.SourceMetric, i.TargetMetric, i.LagDays)
}

// IsActive reports whether the insight is eligible for display.
func (i CorrelationInsight) IsActive() bool {
	return i.Occurrences >= MinActiveOccurrences &&
		i.DecayFactor > DecayRemovalFloor &&
		i.Occurrences >= i.Confidence.MinOccurrences()
}

// ComputationRecord is the immutable audit entry describing one engine
// run. Write-once.
type ComputationRecord struct {
	ID                string    `json:"id"`
	WindowStart       time.Time `json:"window_start"`
	WindowEnd         time.Time `json:"window_end"`
	DataPoints        int       `json:"data_points"`
	MetricsAnalyzed   int       `json:"metrics_analyzed"`
	CorrelationsFound int       `json:"correlations_found"`
	InsightsCreated   int       `json:"insights_created"`
	InsightsValidated int       `json:"insights_validated"`
	InsightsDecayed   int       `json:"insights_decayed"`
	InsightsRemoved   int       `json:"insights_removed"`
	DurationMS        int64     `json:"duration_ms"`
	CloudEnriched     bool      `json:"cloud_enriched"`
	ComputedAt        time.Time `json:"computed_at"`
}
