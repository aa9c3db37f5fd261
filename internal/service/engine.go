package service

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lifesignal/backend/internal/logger"
	"github.com/lifesignal/backend/internal/models"
	"github.com/lifesignal/backend/internal/repository"
)

// DefaultWindowDays is the rolling analysis window.
const DefaultWindowDays = 90

// Display priority weights. Priority is a ranking aid only and is never
// persisted.
const (
	priorityWeightStrength   = 0.30
	priorityWeightConfidence = 0.25
	priorityWeightFreshness  = 0.25
	priorityWeightEffect     = 0.20
)

// DisplayPriority scores an insight for ranking: a weighted sum of
// normalized strength, confidence, freshness and effect size.
func DisplayPriority(ins models.CorrelationInsight) float64 {
	confidence := float64(ins.Occurrences) / 50
	if confidence > 1 {
		confidence = 1
	}
	effect := math.Abs(ins.EffectSize)
	if effect > 0.5 {
		effect = 0.5
	}
	return priorityWeightStrength*math.Abs(ins.Coefficient) +
		priorityWeightConfidence*confidence +
		priorityWeightFreshness*ins.DecayFactor +
		priorityWeightEffect*effect*2
}

// Engine is the computation orchestrator: it owns the single-flight
// guard, sequences extraction, correlation, lifecycle reconciliation and
// persistence, and serves cached reads.
type Engine struct {
	extractor       *MetricExtractor
	calculator      *CorrelationCalculator
	lifecycle       *InsightLifecycleManager
	insightRepo     repository.InsightRepository
	computationRepo repository.ComputationRepository
	log             logger.Logger

	windowDays int
	now        func() time.Time

	// mu guards busy and the cached active set; they are the engine's
	// only mutable shared state.
	mu          sync.Mutex
	busy        bool
	cache       []models.CorrelationInsight
	cacheLoaded bool
}

var _ IntelligenceService = (*Engine)(nil)

// NewEngine creates the orchestrator with the default 90-day window.
func NewEngine(
	extractor *MetricExtractor,
	calculator *CorrelationCalculator,
	lifecycle *InsightLifecycleManager,
	insightRepo repository.InsightRepository,
	computationRepo repository.ComputationRepository,
	log logger.Logger,
) *Engine {
	return &Engine{
		extractor:       extractor,
		calculator:      calculator,
		lifecycle:       lifecycle,
		insightRepo:     insightRepo,
		computationRepo: computationRepo,
		log:             log,
		windowDays:      DefaultWindowDays,
		now:             time.Now,
	}
}

// SetWindowDays overrides the rolling window, for configuration.
func (e *Engine) SetWindowDays(days int) {
	e.windowDays = days
}

// RunComputation executes one full pipeline pass. At most one run may be
// active; a second concurrent attempt fails fast with
// ErrComputationInProgress and performs no work.
func (e *Engine) RunComputation(ctx context.Context) (*models.ComputationRecord, error) {
	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return nil, ErrComputationInProgress
	}
	e.busy = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.busy = false
		e.mu.Unlock()
	}()

	started := e.now()
	windowEnd := startOfDay(started)
	windowStart := windowEnd.AddDate(0, 0, -e.windowDays)
	if e.windowDays <= 0 || !windowEnd.After(windowStart) {
		return nil, ErrInvalidDateRange
	}

	log := e.log.WithContext(ctx)
	log.Info("starting insight computation",
		logger.Time("window_start", windowStart),
		logger.Time("window_end", windowEnd))

	aggregates, dataPoints, err := e.extractor.Extract(ctx, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	results := e.calculator.Compute(aggregates)

	existing, err := e.insightRepo.Load(ctx, false)
	if err != nil {
		return nil, dbErr("insight load", err)
	}

	outcome := e.lifecycle.Reconcile(existing, results)
	created := e.lifecycle.CreateNew(existing, results)
	final := append(outcome.Kept, created...)

	// Full-batch persistence: a failure here means the run produced no
	// durable effect and re-running is safe.
	if err := e.insightRepo.Upsert(ctx, final); err != nil {
		return nil, dbErr("insight upsert", err)
	}
	ids := make([]string, len(final))
	for i, ins := range final {
		ids[i] = ins.ID
	}
	if err := e.insightRepo.SoftDeleteNotIn(ctx, ids); err != nil {
		return nil, dbErr("insight soft delete", err)
	}

	record := models.ComputationRecord{
		ID:                uuid.NewString(),
		WindowStart:       windowStart,
		WindowEnd:         windowEnd,
		DataPoints:        dataPoints,
		MetricsAnalyzed:   countMetrics(aggregates),
		CorrelationsFound: len(results),
		InsightsCreated:   len(created),
		InsightsValidated: outcome.Validated,
		InsightsDecayed:   outcome.Decayed,
		InsightsRemoved:   outcome.Removed,
		DurationMS:        e.now().Sub(started).Milliseconds(),
		CloudEnriched:     false,
		ComputedAt:        started,
	}
	if err := e.computationRepo.Append(ctx, record); err != nil {
		return nil, dbErr("computation record append", err)
	}

	e.setCache(activeSorted(final))

	log.Info("insight computation finished",
		logger.Int("correlations", record.CorrelationsFound),
		logger.Int("created", record.InsightsCreated),
		logger.Int("validated", record.InsightsValidated),
		logger.Int("decayed", record.InsightsDecayed),
		logger.Int("removed", record.InsightsRemoved),
		logger.Int64("duration_ms", record.DurationMS))

	return &record, nil
}

// GetActiveInsights returns the cached active set, lazily loading from
// the store when the cache is empty. It never triggers a computation and
// falls back to the last cached set on store errors.
func (e *Engine) GetActiveInsights(ctx context.Context) ([]models.CorrelationInsight, error) {
	return e.snapshot(ctx)
}

// GetInsightsByCategory filters the active set to insights whose source
// or target metric belongs to the category.
func (e *Engine) GetInsightsByCategory(ctx context.Context, category string) ([]models.CorrelationInsight, error) {
	all, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	filtered := make([]models.CorrelationInsight, 0, len(all))
	for _, ins := range all {
		if ins.Category == category ||
			models.CategoryForMetric(ins.SourceMetric) == category ||
			models.CategoryForMetric(ins.TargetMetric) == category {
			filtered = append(filtered, ins)
		}
	}
	return filtered, nil
}

// GetTopInsights returns up to limit insights by display priority.
func (e *Engine) GetTopInsights(ctx context.Context, limit int) ([]models.CorrelationInsight, error) {
	all, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// RefreshCache forces a reload of the active set from the store.
func (e *Engine) RefreshCache(ctx context.Context) error {
	insights, err := e.insightRepo.Load(ctx, false)
	if err != nil {
		return dbErr("insight load", err)
	}
	e.setCache(activeSorted(insights))
	return nil
}

// GetComputationHistory returns recent computation records.
func (e *Engine) GetComputationHistory(ctx context.Context, limit int) ([]models.ComputationRecord, error) {
	records, err := e.computationRepo.List(ctx, limit)
	if err != nil {
		return nil, dbErr("computation record list", err)
	}
	return records, nil
}

// snapshot returns the cached active set, loading it on first use.
func (e *Engine) snapshot(ctx context.Context) ([]models.CorrelationInsight, error) {
	e.mu.Lock()
	loaded := e.cacheLoaded
	cached := e.cache
	e.mu.Unlock()

	if loaded {
		return cached, nil
	}

	if err := e.RefreshCache(ctx); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cache, nil
}

func (e *Engine) setCache(insights []models.CorrelationInsight) {
	e.mu.Lock()
	e.cache = insights
	e.cacheLoaded = true
	e.mu.Unlock()
}

// activeSorted filters to active insights and orders them by display
// priority, descending, with the natural key as a deterministic
// tie-break.
func activeSorted(insights []models.CorrelationInsight) []models.CorrelationInsight {
	active := make([]models.CorrelationInsight, 0, len(insights))
	for _, ins := range insights {
		if ins.IsActive() {
			active = append(active, ins)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		pi, pj := DisplayPriority(active[i]), DisplayPriority(active[j])
		if pi != pj {
			return pi > pj
		}
		return active[i].Key() < active[j].Key()
	})
	return active
}

func countMetrics(aggregates []*models.DailyMetricAggregate) int {
	seen := make(map[string]bool)
	for _, agg := range aggregates {
		for metric := range agg.Values {
			seen[metric] = true
		}
	}
	return len(seen)
}
