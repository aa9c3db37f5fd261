package service

import (
	"math"
	"testing"
	"time"

	"github.com/lifesignal/backend/internal/models"
)

// aggsFromSeries builds one aggregate per day from aligned value slices.
// NaN marks a day with no observation for that metric.
func aggsFromSeries(series map[string][]float64) []*models.DailyMetricAggregate {
	days := 0
	for _, vs := range series {
		if len(vs) > days {
			days = len(vs)
		}
	}
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	aggs := make([]*models.DailyMetricAggregate, days)
	for i := range aggs {
		aggs[i] = models.NewDailyMetricAggregate(start.AddDate(0, 0, i))
		for metric, vs := range series {
			if i < len(vs) && !math.IsNaN(vs[i]) {
				aggs[i].Observe(metric, vs[i])
			}
		}
	}
	return aggs
}

func TestPearsonPerfectCorrelation(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5, 6}
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = 2*x + 3
	}

	r, ok := pearson(xs, ys)
	if !ok {
		t.Fatal("pearson reported no variance")
	}
	if math.Abs(r-1) > 1e-12 {
		t.Errorf("r = %v, want 1", r)
	}

	for i := range ys {
		ys[i] = -ys[i]
	}
	r, ok = pearson(xs, ys)
	if !ok || math.Abs(r+1) > 1e-12 {
		t.Errorf("r = %v (ok=%v), want -1", r, ok)
	}
}

func TestPearsonSymmetry(t *testing.T) {
	xs := []float64{5, 3, 8, 2, 9, 4, 7, 1, 6, 2, 8, 5}
	ys := []float64{4, 6, 2, 7, 1, 5, 3, 8, 2, 6, 3, 7}

	r1, ok1 := pearson(xs, ys)
	r2, ok2 := pearson(ys, xs)
	if !ok1 || !ok2 {
		t.Fatal("pearson reported no variance")
	}
	if math.Abs(r1-r2) > 1e-12 {
		t.Errorf("pearson is not symmetric: %v vs %v", r1, r2)
	}
	if math.Abs(r1) > 1 {
		t.Errorf("|r| = %v exceeds 1", math.Abs(r1))
	}
}

func TestPearsonNoVariance(t *testing.T) {
	xs := []float64{5, 5, 5, 5, 5}
	ys := []float64{1, 2, 3, 4, 5}
	if _, ok := pearson(xs, ys); ok {
		t.Error("pearson should reject a constant series")
	}
}

func TestTwoTailedPValue(t *testing.T) {
	if p := twoTailedPValue(0, 100); math.Abs(p-1) > 1e-9 {
		t.Errorf("p(r=0) = %v, want 1", p)
	}
	if p := twoTailedPValue(0.9, 30); p >= 0.001 {
		t.Errorf("p(r=0.9, n=30) = %v, want < 0.001", p)
	}
	if twoTailedPValue(0.3, 50) <= twoTailedPValue(0.6, 50) {
		t.Error("p should decrease as |r| grows at fixed n")
	}
	if twoTailedPValue(0.3, 20) <= twoTailedPValue(0.3, 80) {
		t.Error("p should decrease as n grows at fixed r")
	}
	if p1, p2 := twoTailedPValue(0.6, 40), twoTailedPValue(-0.6, 40); math.Abs(p1-p2) > 1e-12 {
		t.Errorf("p must be sign-symmetric: %v vs %v", p1, p2)
	}
	if p := twoTailedPValue(0.5, 2); p != 1 {
		t.Errorf("p with df < 1 = %v, want 1", p)
	}
	if p := twoTailedPValue(1, 10); p != 0 {
		t.Errorf("p(|r|=1) = %v, want 0", p)
	}
}

func TestEffectSize(t *testing.T) {
	// Target mean 10, population std dev 2.
	if got := effectSize(0.5, []float64{8, 12, 8, 12}); math.Abs(got-0.1) > 1e-12 {
		t.Errorf("effectSize = %v, want 0.1", got)
	}
	// Near-zero mean is guarded.
	if got := effectSize(0.5, []float64{-1, 1, -1, 1}); got != 0 {
		t.Errorf("effectSize with zero mean = %v, want 0", got)
	}
}

func TestComputeSameDayPair(t *testing.T) {
	days := 14
	hrv := make([]float64, days)
	sleep := make([]float64, days)
	for i := 0; i < days; i++ {
		sleep[i] = 5 + float64(i%5)
		hrv[i] = 30 + 4*float64(i%5)
	}

	calc := NewCorrelationCalculator()
	calc.MaxLag = 0
	results := calc.Compute(aggsFromSeries(map[string][]float64{
		"hrv":         hrv,
		"sleep_hours": sleep,
	}))

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	res := results[0]
	if res.SourceMetric != "hrv" || res.TargetMetric != "sleep_hours" || res.LagDays != 0 {
		t.Errorf("unexpected pair: %s -> %s lag %d", res.SourceMetric, res.TargetMetric, res.LagDays)
	}
	if math.Abs(res.Coefficient-1) > 1e-9 {
		t.Errorf("coefficient = %v, want 1", res.Coefficient)
	}
	if res.Type != models.CorrelationTypeDirect {
		t.Errorf("type = %q, want direct", res.Type)
	}
	if res.Strength != models.StrengthVeryStrong {
		t.Errorf("strength = %q, want very_strong", res.Strength)
	}
	if res.SampleSize != days {
		t.Errorf("sample size = %d, want %d", res.SampleSize, days)
	}
}

func TestComputeInverseRelationship(t *testing.T) {
	days := 12
	work := make([]float64, days)
	mood := make([]float64, days)
	for i := 0; i < days; i++ {
		work[i] = 100 + 20*float64(i%4)
		mood[i] = 9 - 2*float64(i%4)
	}

	calc := NewCorrelationCalculator()
	calc.MaxLag = 0
	results := calc.Compute(aggsFromSeries(map[string][]float64{
		"work_minutes": work,
		"mood_score":   mood,
	}))

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	res := results[0]
	if math.Abs(res.Coefficient+1) > 1e-9 {
		t.Errorf("coefficient = %v, want -1", res.Coefficient)
	}
	if res.Type != models.CorrelationTypeInverse {
		t.Errorf("type = %q, want inverse", res.Type)
	}
	if res.EffectSize >= 0 {
		t.Errorf("effect size = %v, want negative", res.EffectSize)
	}
}

func TestComputeFindsLaggedRelationship(t *testing.T) {
	src := []float64{5, 3, 8, 2, 9, 4, 7, 1, 6, 2, 8, 5, 3, 9, 4, 6, 2, 7, 5, 1, 9, 3, 6, 8, 2, 5, 7, 4, 1, 6}
	lag := 3
	tgt := make([]float64, len(src))
	for i := range tgt {
		if i < lag {
			tgt[i] = 4
			continue
		}
		tgt[i] = 2*src[i-lag] + 1
	}

	calc := NewCorrelationCalculator()
	results := calc.Compute(aggsFromSeries(map[string][]float64{
		"workout_minutes": src,
		"hrv":             tgt,
	}))

	var found *models.CorrelationResult
	for i := range results {
		r := results[i]
		if r.SourceMetric == "workout_minutes" && r.TargetMetric == "hrv" && r.LagDays == lag {
			found = &results[i]
			break
		}
	}
	if found == nil {
		t.Fatalf("lag-%d relationship not reported; got %d results", lag, len(results))
	}
	if found.Coefficient < 0.99 {
		t.Errorf("coefficient = %v, want ~1", found.Coefficient)
	}
	if found.Type != models.CorrelationTypeLagged {
		t.Errorf("type = %q, want lagged", found.Type)
	}
	if found.SampleSize != len(src)-lag {
		t.Errorf("sample size = %d, want %d", found.SampleSize, len(src)-lag)
	}
}

func TestComputeSkipsSparseSeries(t *testing.T) {
	// 9 aligned days is one short of the minimum sample size.
	days := 9
	a := make([]float64, days)
	b := make([]float64, days)
	for i := 0; i < days; i++ {
		a[i] = float64(i)
		b[i] = float64(i) * 2
	}

	calc := NewCorrelationCalculator()
	results := calc.Compute(aggsFromSeries(map[string][]float64{"a": a, "b": b}))
	if len(results) != 0 {
		t.Errorf("got %d results from a sparse window, want 0", len(results))
	}
}

func TestComputeIgnoresMissingDays(t *testing.T) {
	nan := math.NaN()
	days := 20
	a := make([]float64, days)
	b := make([]float64, days)
	for i := 0; i < days; i++ {
		a[i] = 5 + float64(i%5)
		b[i] = 50 + 10*float64(i%5)
	}
	// Punch holes in both series; alignment must use only shared days.
	a[4], a[11] = nan, nan
	b[7], b[15] = nan, nan

	calc := NewCorrelationCalculator()
	calc.MaxLag = 0
	results := calc.Compute(aggsFromSeries(map[string][]float64{"a": a, "b": b}))
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].SampleSize != days-4 {
		t.Errorf("sample size = %d, want %d", results[0].SampleSize, days-4)
	}
}

func TestComputeSingleMetric(t *testing.T) {
	vs := make([]float64, 15)
	for i := range vs {
		vs[i] = float64(i % 4)
	}
	calc := NewCorrelationCalculator()
	if results := calc.Compute(aggsFromSeries(map[string][]float64{"hrv": vs})); results != nil {
		t.Errorf("single metric should yield no results, got %d", len(results))
	}
}

func TestComputeDeterministicOrder(t *testing.T) {
	days := 16
	series := map[string][]float64{}
	for _, m := range []string{"hrv", "sleep_hours", "mood_score"} {
		vs := make([]float64, days)
		for i := 0; i < days; i++ {
			vs[i] = 10 + float64(i%4)
		}
		series[m] = vs
	}

	calc := NewCorrelationCalculator()
	first := calc.Compute(aggsFromSeries(series))
	for run := 0; run < 5; run++ {
		again := calc.Compute(aggsFromSeries(series))
		if len(again) != len(first) {
			t.Fatalf("run %d: got %d results, want %d", run, len(again), len(first))
		}
		for i := range first {
			if again[i].Key() != first[i].Key() {
				t.Fatalf("run %d: result %d key %q, want %q", run, i, again[i].Key(), first[i].Key())
			}
		}
	}
}
