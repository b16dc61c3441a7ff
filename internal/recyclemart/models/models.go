package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the marketplace role carried by every authenticated caller
type Role string

// Roles known to the marketplace
const (
	RoleGenerator  Role = "generator"
	RoleController Role = "controller"
	RoleDriver     Role = "driver"
	RoleRecycler   Role = "recycler"
	RoleMarshal    Role = "marshal"
	RoleAdmin      Role = "admin"
)

// ParseRole converts a raw string into a Role
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleGenerator, RoleController, RoleDriver, RoleRecycler, RoleMarshal, RoleAdmin:
		return r, true
	}
	return "", false
}

// User represents a registered profile
type User struct {
	ID           uuid.UUID `json:"id"`
	Login        string    `json:"login"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Actor is the authenticated caller of a core operation
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

// Is reports whether the actor holds one of the given roles
func (a Actor) Is(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// Authenticated reports whether the actor carries an identity
func (a Actor) Authenticated() bool {
	return a.UserID != uuid.Nil && a.Role != ""
}

// Provenance tags where a scored item came from
type Provenance string

const (
	ProvenanceAssessment      Provenance = "assessment"
	ProvenanceMarshalDelivery Provenance = "marshal_delivery"
)

// HistoryEntry is one row of a user's waste history
type HistoryEntry struct {
	Source        Provenance    `json:"source"`
	ID            uuid.UUID     `json:"id"`
	CenterID      uuid.UUID     `json:"center_id"`
	Category      WasteCategory `json:"waste_category"`
	Status        string        `json:"status"`
	WeightKg      float64       `json:"weight_kg"`
	QualityScore  *int          `json:"quality_score"`
	CreditsEarned *int          `json:"credits_earned"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
