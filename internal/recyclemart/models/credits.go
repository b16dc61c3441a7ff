package models

import "time"

// NairaPerCredit is the fixed conversion rate of one credit point
const NairaPerCredit = 1.5

// CreditsToNaira converts credit points to their Naira value
func CreditsToNaira(credits int) float64 {
	return float64(credits) * NairaPerCredit
}

// CreditLedger is a per-user projection computed on demand
type CreditLedger struct {
	TotalCredits     int     `json:"total_credits"`
	PendingCredits   int     `json:"pending_credits"`
	AvailableCredits int     `json:"available_credits"`
	TotalNaira       float64 `json:"total_naira"`
	PendingNaira     float64 `json:"pending_naira"`
	AvailableNaira   float64 `json:"available_naira"`
	PayoutEligible   bool    `json:"payout_eligible"`
}

// QualityBreakdown counts scored items per tier
type QualityBreakdown struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Total returns the number of items across all tiers
func (b QualityBreakdown) Total() int {
	return b.High + b.Medium + b.Low
}

// AssessmentStats is a time-windowed rollup of scored items
type AssessmentStats struct {
	WindowStart      time.Time        `json:"window_start"`
	WindowEnd        time.Time        `json:"window_end"`
	AssessmentCount  int              `json:"assessment_count"`
	TotalWeightKg    float64          `json:"total_weight_kg"`
	AverageQuality   float64          `json:"average_quality"`
	CreditsIssued    int              `json:"credits_issued"`
	QualityBreakdown QualityBreakdown `json:"quality_breakdown"`
}

// StatsReport bundles the dashboard windows
type StatsReport struct {
	Today        AssessmentStats `json:"today"`
	Week         AssessmentStats `json:"week"`
	PreviousWeek AssessmentStats `json:"previous_week"`
	WeeklyTrend  float64         `json:"weekly_trend"`
	ComputedAt   time.Time       `json:"computed_at"`
	Stale        bool            `json:"stale"`
}
