package models

// Quality score bounds
const (
	MinQualityScore = 0
	MaxQualityScore = 10
)

// Quality tier thresholds. Stats and any badge rendering read these.
const (
	HighQualityMin   = 8
	MediumQualityMin = 5
)

// QualityTier buckets a quality score
type QualityTier string

const (
	TierHigh   QualityTier = "high"
	TierMedium QualityTier = "medium"
	TierLow    QualityTier = "low"
)

// TierFor returns the tier of a quality score
func TierFor(score int) QualityTier {
	switch {
	case score >= HighQualityMin:
		return TierHigh
	case score >= MediumQualityMin:
		return TierMedium
	default:
		return TierLow
	}
}

// ValidQualityScore reports whether score is within [0,10]
func ValidQualityScore(score int) bool {
	return score >= MinQualityScore && score <= MaxQualityScore
}
