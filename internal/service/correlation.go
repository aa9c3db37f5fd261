package service

import (
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/lifesignal/backend/internal/models"
)

const (
	// DefaultMaxLagDays bounds the lagged pass: source at day i is
	// compared with target at day i+L for L in 1..DefaultMaxLagDays.
	DefaultMaxLagDays = 7

	maxCorrelationWorkers = 8
)

// CorrelationCalculator computes pairwise and lagged Pearson correlations
// over the daily aggregates and keeps only results that clear the
// significance thresholds.
type CorrelationCalculator struct {
	MinSamples int
	MaxLag     int
	Workers    int
}

// NewCorrelationCalculator returns a calculator with the standard window
// parameters and a bounded worker pool sized to the machine.
func NewCorrelationCalculator() *CorrelationCalculator {
	workers := runtime.NumCPU()
	if workers > maxCorrelationWorkers {
		workers = maxCorrelationWorkers
	}
	if workers < 1 {
		workers = 1
	}
	return &CorrelationCalculator{
		MinSamples: models.MinSampleSize,
		MaxLag:     DefaultMaxLagDays,
		Workers:    workers,
	}
}

// metricSeries is one metric's values aligned to the day index of the
// aggregate window, with a presence mask for days without observations.
type metricSeries struct {
	values  []float64
	present []bool
}

// buildSeries pivots the daily aggregates into per-metric series indexed
// by day. Every metric observed anywhere in the window gets a series
// spanning the whole window.
func buildSeries(aggregates []*models.DailyMetricAggregate) map[string]metricSeries {
	series := make(map[string]metricSeries)
	days := len(aggregates)
	for i, agg := range aggregates {
		for metric, value := range agg.Values {
			s, ok := series[metric]
			if !ok {
				s = metricSeries{
					values:  make([]float64, days),
					present: make([]bool, days),
				}
			}
			s.values[i] = value
			s.present[i] = true
			series[metric] = s
		}
	}
	return series
}

type pairJob struct {
	source string
	target string
	lag    int
}

// Compute returns every correlation result that meets the reporting
// threshold. Pair computations are independent and fan out over a worker
// pool; output membership is deterministic, order is normalized by key.
func (c *CorrelationCalculator) Compute(aggregates []*models.DailyMetricAggregate) []models.CorrelationResult {
	series := buildSeries(aggregates)
	metrics := make([]string, 0, len(series))
	for m := range series {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)

	if len(metrics) < 2 {
		return nil
	}

	jobs := make([]pairJob, 0, len(metrics)*len(metrics)*(c.MaxLag+1)/2)
	// Same-day pass over unordered pairs.
	for i := 0; i < len(metrics); i++ {
		for j := i + 1; j < len(metrics); j++ {
			jobs = append(jobs, pairJob{source: metrics[i], target: metrics[j], lag: 0})
		}
	}
	// Lagged pass over ordered pairs.
	for lag := 1; lag <= c.MaxLag; lag++ {
		for _, src := range metrics {
			for _, tgt := range metrics {
				if src == tgt {
					continue
				}
				jobs = append(jobs, pairJob{source: src, target: tgt, lag: lag})
			}
		}
	}

	jobCh := make(chan pairJob)
	var mu sync.Mutex
	var results []models.CorrelationResult
	var wg sync.WaitGroup

	for w := 0; w < c.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				res, ok := c.computePair(series[job.source], series[job.target], job)
				if !ok || !res.MeetsThreshold() {
					continue
				}
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
			}
		}()
	}

	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)
	wg.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Key() < results[j].Key()
	})
	return results
}

// computePair aligns source day i against target day i+lag and runs the
// full statistical pipeline for one metric pair.
func (c *CorrelationCalculator) computePair(src, tgt metricSeries, job pairJob) (models.CorrelationResult, bool) {
	n := len(src.values) - job.lag
	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if src.present[i] && tgt.present[i+job.lag] {
			xs = append(xs, src.values[i])
			ys = append(ys, tgt.values[i+job.lag])
		}
	}
	if len(xs) < c.MinSamples {
		return models.CorrelationResult{}, false
	}

	r, ok := pearson(xs, ys)
	if !ok {
		return models.CorrelationResult{}, false
	}

	result := models.CorrelationResult{
		SourceMetric: job.source,
		TargetMetric: job.target,
		Coefficient:  r,
		PValue:       twoTailedPValue(r, len(xs)),
		SampleSize:   len(xs),
		LagDays:      job.lag,
		Type:         classifyType(r, job.lag),
		Strength:     models.ClassifyStrength(r),
		EffectSize:   effectSize(r, ys),
	}
	return result, true
}

// pearson computes the correlation coefficient with the standard
// sum-of-products formula. Returns false when either series has no
// variance.
func pearson(xs, ys []float64) (float64, bool) {
	n := float64(len(xs))
	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / n
	meanY := sumY / n

	var numerator, denomX, denomY float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		numerator += dx * dy
		denomX += dx * dx
		denomY += dy * dy
	}

	if denomX <= 0 || denomY <= 0 {
		return 0, false
	}

	r := numerator / math.Sqrt(denomX*denomY)
	// Clamp floating-point overshoot.
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return r, true
}

// twoTailedPValue approximates the significance of r for a sample of n.
//
// The t statistic is mapped through the standard normal CDF rather than
// an exact Student-t CDF. For df > 30 the absolute error in p is below
// ~0.01; for smaller df the statistic is rescaled by the t variance
// df/(df-2), which keeps the error below ~0.02 near the 0.05 cutoff.
// Callers must not treat these p-values as exact.
func twoTailedPValue(r float64, n int) float64 {
	if math.Abs(r) >= 1 {
		return 0
	}
	df := n - 2
	if df < 1 {
		return 1
	}
	t := r * math.Sqrt(float64(df)/(1-r*r))
	z := math.Abs(t)
	if df > 2 && df <= 30 {
		z /= math.Sqrt(float64(df) / float64(df-2))
	}
	return 2 * (1 - normalCDF(z))
}

// normalCDF is the standard normal cumulative distribution function.
func normalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// effectSize estimates the fractional change in the target per unit
// source, relative to the target's mean.
func effectSize(r float64, target []float64) float64 {
	n := float64(len(target))
	var sum float64
	for _, v := range target {
		sum += v
	}
	mean := sum / n
	if math.Abs(mean) < 1e-9 {
		return 0
	}

	var variance float64
	for _, v := range target {
		d := v - mean
		variance += d * d
	}
	stdDev := math.Sqrt(variance / n)

	return r * stdDev / mean
}

func classifyType(r float64, lag int) models.CorrelationType {
	switch {
	case lag > 0:
		return models.CorrelationTypeLagged
	case r < 0:
		return models.CorrelationTypeInverse
	default:
		return models.CorrelationTypeDirect
	}
}
