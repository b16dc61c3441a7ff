package service

import (
	"math"

	"github.com/25x8/recyclemart/internal/recyclemart/models"
)

// PricingPolicy turns an assessment into credit points. Implementations must be
// non-decreasing in weight and in quality for a fixed category and must award
// nothing for a quality score of 0.
type PricingPolicy interface {
	Credits(category models.WasteCategory, weightKg float64, qualityScore int) int
}

// RateTable prices waste at a per-kilogram rate for each category, scaled
// linearly by quality: credits = floor(weight * rate * quality / 10).
type RateTable struct {
	Rates       map[models.WasteCategory]float64
	DefaultRate float64
}

// DefaultRateTable returns the standard credit rates per kilogram at full quality
func DefaultRateTable() *RateTable {
	return &RateTable{
		Rates: map[models.WasteCategory]float64{
			models.CategoryPET:  4,
			models.CategoryHDPE: 3.5,
			models.CategoryPP:   3,
			models.CategoryLDPE: 2.5,
			models.CategoryPS:   2,
			models.CategoryPVC:  1.5,
		},
		DefaultRate: 1,
	}
}

// Credits implements PricingPolicy
func (t *RateTable) Credits(category models.WasteCategory, weightKg float64, qualityScore int) int {
	if qualityScore <= models.MinQualityScore || weightKg <= 0 || math.IsNaN(weightKg) || math.IsInf(weightKg, 0) {
		return 0
	}
	if qualityScore > models.MaxQualityScore {
		qualityScore = models.MaxQualityScore
	}

	rate, ok := t.Rates[category]
	if !ok {
		rate = t.DefaultRate
	}
	if rate <= 0 {
		return 0
	}

	// Epsilon keeps exact products like 5kg*4*0.9 from flooring to 17
	raw := weightKg * rate * float64(qualityScore) / float64(models.MaxQualityScore)
	return int(math.Floor(raw + 1e-9))
}
