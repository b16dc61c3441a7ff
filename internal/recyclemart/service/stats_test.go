package service

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/25x8/recyclemart/internal/recyclemart/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func scored(quality int, at time.Time) models.ScoredItem {
	return models.ScoredItem{
		Source:        models.ProvenanceAssessment,
		ID:            uuid.New(),
		WeightKg:      2,
		QualityScore:  quality,
		CreditsEarned: quality,
		UpdatedAt:     at,
	}
}

func TestComputeStatsToday(t *testing.T) {
	now := time.Date(2026, 5, 14, 15, 0, 0, 0, time.UTC)
	items := []models.ScoredItem{
		scored(9, now.Add(-time.Hour)),
		scored(6, now.Add(-2*time.Hour)),
		scored(3, now.Add(-3*time.Hour)),
		scored(10, now.Add(-20*time.Hour)), // yesterday
	}

	stats := ComputeStats(items, TodayStart(now), now)

	assert.Equal(t, 3, stats.AssessmentCount)
	assert.Equal(t, models.QualityBreakdown{High: 1, Medium: 1, Low: 1}, stats.QualityBreakdown)
	assert.InDelta(t, 6.0, stats.AverageQuality, 1e-9)
	assert.InDelta(t, 6.0, stats.TotalWeightKg, 1e-9)
	assert.Equal(t, 18, stats.CreditsIssued)
}

func TestComputeStatsEmpty(t *testing.T) {
	now := time.Now()
	stats := ComputeStats(nil, now.Add(-time.Hour), now)

	assert.Zero(t, stats.AssessmentCount)
	assert.False(t, math.IsNaN(stats.AverageQuality))
	assert.Zero(t, stats.AverageQuality)
}

func TestTrend(t *testing.T) {
	assert.Zero(t, Trend(5, 0))
	assert.False(t, math.IsInf(Trend(5, 0), 0))
	assert.InDelta(t, 50.0, Trend(6, 4), 1e-9)
	assert.InDelta(t, -100.0, Trend(0, 3), 1e-9)
}

func TestBuildReportWeeks(t *testing.T) {
	now := time.Date(2026, 5, 14, 15, 0, 0, 0, time.UTC)
	var items []models.ScoredItem
	for i := 0; i < 5; i++ {
		items = append(items, scored(8, now.Add(-time.Duration(i+1)*24*time.Hour)))
	}

	report := BuildReport(items, now)

	assert.Equal(t, 5, report.Week.AssessmentCount)
	assert.Zero(t, report.PreviousWeek.AssessmentCount)
	assert.Zero(t, report.WeeklyTrend)
	assert.Equal(t, now, report.ComputedAt)
}

func TestBuildReportWindowsDoNotOverlap(t *testing.T) {
	now := time.Date(2026, 5, 14, 15, 0, 0, 0, time.UTC)
	boundary := WeekStart(now)
	items := []models.ScoredItem{
		scored(8, boundary),
		scored(8, boundary.Add(-time.Nanosecond)),
		scored(4, boundary.Add(-Week)),
	}

	report := BuildReport(items, now)

	assert.Equal(t, 1, report.Week.AssessmentCount)
	assert.Equal(t, 2, report.PreviousWeek.AssessmentCount)
	assert.InDelta(t, -50.0, report.WeeklyTrend, 1e-9)
}

func TestQualityTiersPartition(t *testing.T) {
	now := time.Now()
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 100; i++ {
		var items []models.ScoredItem
		for j := 0; j < rng.Intn(30); j++ {
			items = append(items, scored(rng.Intn(models.MaxQualityScore+1), now.Add(-time.Minute)))
		}

		stats := ComputeStats(items, now.Add(-time.Hour), now)
		assert.Equal(t, len(items), stats.QualityBreakdown.Total())
		assert.Equal(t, stats.AssessmentCount, stats.QualityBreakdown.Total())
	}
}
