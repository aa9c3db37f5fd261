package models

import "strings"

// Metric names produced by the extraction rules. Correlation results and
// insights refer to metrics by these keys.
const (
	MetricHRV               = "hrv"
	MetricHRVRMSSD          = "hrv_rmssd"
	MetricSleepHours        = "sleep_hours"
	MetricSleepQuality      = "sleep_quality"
	MetricWorkMinutes       = "work_minutes"
	MetricFocusScore        = "focus_score"
	MetricMoodScore         = "mood_score"
	MetricEnergyLevel       = "energy_level"
	MetricWorkoutMinutes    = "workout_minutes"
	MetricTasksCompleted    = "tasks_completed"
	MetricXPGained          = "xp_gained"
	MetricContentViews      = "content_views"
	MetricContentEngagement = "content_engagement"
)

// Insight categories, derived from the metrics an insight relates.
const (
	CategorySleep        = "sleep"
	CategoryRecovery     = "recovery"
	CategoryProductivity = "productivity"
	CategoryMood         = "mood"
	CategoryFitness      = "fitness"
	CategoryContent      = "content"
	CategoryGeneral      = "general"
)

// CategoryForMetric maps a metric name onto its insight category.
func CategoryForMetric(metric string) string {
	switch {
	case strings.HasPrefix(metric, "sleep_"):
		return CategorySleep
	case strings.HasPrefix(metric, "hrv"):
		return CategoryRecovery
	case metric == MetricWorkMinutes, metric == MetricFocusScore,
		metric == MetricTasksCompleted, metric == MetricXPGained:
		return CategoryProductivity
	case metric == MetricMoodScore, metric == MetricEnergyLevel:
		return CategoryMood
	case metric == MetricWorkoutMinutes:
		return CategoryFitness
	case strings.HasPrefix(metric, "content_"):
		return CategoryContent
	default:
		return CategoryGeneral
	}
}
