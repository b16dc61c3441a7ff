package service

import (
	"time"

	"github.com/25x8/recyclemart/internal/recyclemart/models"
)

// Week is the length of the rolling weekly window
const Week = 7 * 24 * time.Hour

// TodayStart returns local midnight of the day containing now
func TodayStart(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// WeekStart returns the start of the rolling seven-day window ending at now
func WeekStart(now time.Time) time.Time {
	return now.Add(-Week)
}

// ComputeStats aggregates the items updated within [windowStart, windowEnd]
func ComputeStats(items []models.ScoredItem, windowStart, windowEnd time.Time) models.AssessmentStats {
	stats := models.AssessmentStats{
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
	}

	qualitySum := 0
	for _, item := range items {
		if item.UpdatedAt.Before(windowStart) || item.UpdatedAt.After(windowEnd) {
			continue
		}
		stats.AssessmentCount++
		stats.TotalWeightKg += item.WeightKg
		stats.CreditsIssued += item.CreditsEarned
		qualitySum += item.QualityScore

		switch models.TierFor(item.QualityScore) {
		case models.TierHigh:
			stats.QualityBreakdown.High++
		case models.TierMedium:
			stats.QualityBreakdown.Medium++
		default:
			stats.QualityBreakdown.Low++
		}
	}

	if stats.AssessmentCount > 0 {
		stats.AverageQuality = float64(qualitySum) / float64(stats.AssessmentCount)
	}

	return stats
}

// Trend returns the percentage change from previous to current, 0 when previous is 0
func Trend(current, previous int) float64 {
	if previous == 0 {
		return 0
	}
	return float64(current-previous) / float64(previous) * 100
}

// BuildReport computes today, this week and the week before from one item set
func BuildReport(items []models.ScoredItem, now time.Time) models.StatsReport {
	weekStart := WeekStart(now)
	previousStart := weekStart.Add(-Week)

	report := models.StatsReport{
		Today:        ComputeStats(items, TodayStart(now), now),
		Week:         ComputeStats(items, weekStart, now),
		PreviousWeek: ComputeStats(items, previousStart, weekStart.Add(-time.Nanosecond)),
		ComputedAt:   now,
	}
	report.WeeklyTrend = Trend(report.Week.AssessmentCount, report.PreviousWeek.AssessmentCount)

	return report
}
