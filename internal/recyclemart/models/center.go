package models

import (
	"time"

	"github.com/google/uuid"
)

// CapacityLevel is the display bucket for a center's utilization
type CapacityLevel string

const (
	CapacityNearlyFull     CapacityLevel = "nearly_full"
	CapacityModeratelyFull CapacityLevel = "moderately_full"
	CapacityAvailable      CapacityLevel = "available"
)

// CollationCenter is a physical drop-off point
type CollationCenter struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Address        string    `json:"address"`
	CapacityKg     float64   `json:"capacity_kg"`
	CurrentStockKg float64   `json:"current_stock_kg"`
	CreatedAt      time.Time `json:"created_at"`
}

// Utilization returns current stock as a fraction of capacity
func (c *CollationCenter) Utilization() float64 {
	if c.CapacityKg <= 0 {
		return 1
	}
	return c.CurrentStockKg / c.CapacityKg
}

// Level buckets the utilization: above 80% nearly full, above 60% moderately full
func (c *CollationCenter) Level() CapacityLevel {
	u := c.Utilization()
	switch {
	case u > 0.8:
		return CapacityNearlyFull
	case u > 0.6:
		return CapacityModeratelyFull
	default:
		return CapacityAvailable
	}
}

// AcceptsDropOffs reports whether the center has room left
func (c *CollationCenter) AcceptsDropOffs() bool {
	return c.Utilization() < 1
}
