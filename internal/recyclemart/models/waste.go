package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// WasteCategory is the plastic resin class of a submission
type WasteCategory string

// Waste categories
const (
	CategoryPET   WasteCategory = "PET"
	CategoryHDPE  WasteCategory = "HDPE"
	CategoryPVC   WasteCategory = "PVC"
	CategoryLDPE  WasteCategory = "LDPE"
	CategoryPP    WasteCategory = "PP"
	CategoryPS    WasteCategory = "PS"
	CategoryOther WasteCategory = "OTHER"
)

// Categories lists every accepted waste category
var Categories = []WasteCategory{
	CategoryPET, CategoryHDPE, CategoryPVC, CategoryLDPE, CategoryPP, CategoryPS, CategoryOther,
}

// ParseCategory normalizes and validates a category name
func ParseCategory(s string) (WasteCategory, bool) {
	c := WasteCategory(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// RecordStatus is the lifecycle status of a waste record
type RecordStatus string

// Record statuses in lifecycle order
const (
	StatusPending   RecordStatus = "pending"
	StatusSorted    RecordStatus = "sorted"
	StatusPickedUp  RecordStatus = "picked_up"
	StatusDelivered RecordStatus = "delivered"
	StatusRecycled  RecordStatus = "recycled"
)

var statusOrder = map[RecordStatus]int{
	StatusPending:   0,
	StatusSorted:    1,
	StatusPickedUp:  2,
	StatusDelivered: 3,
	StatusRecycled:  4,
}

// ParseStatus validates a status name
func ParseStatus(s string) (RecordStatus, bool) {
	st := RecordStatus(strings.ToLower(strings.TrimSpace(s)))
	_, ok := statusOrder[st]
	return st, ok
}

// Precedes reports whether s comes strictly before next in the lifecycle
func (s RecordStatus) Precedes(next RecordStatus) bool {
	a, okA := statusOrder[s]
	b, okB := statusOrder[next]
	return okA && okB && a < b
}

// Assessment holds the pricing fields a controller sets on a record.
// They are always written together.
type Assessment struct {
	WeightKg      float64   `json:"weight_kg"`
	QualityScore  int       `json:"quality_score"`
	CreditsEarned int       `json:"credits_earned"`
	AssessedBy    uuid.UUID `json:"assessed_by"`
	Notes         string    `json:"notes,omitempty"`
	AssessedAt    time.Time `json:"assessed_at"`
}

// WasteRecord is a unit of plastic waste submitted by a generator.
// A nil Assessment means the record is awaiting assessment.
type WasteRecord struct {
	ID          uuid.UUID     `json:"id"`
	GeneratorID uuid.UUID     `json:"generator_id"`
	CenterID    uuid.UUID     `json:"center_id"`
	Category    WasteCategory `json:"waste_category"`
	PhotoURL    *string       `json:"photo_url,omitempty"`
	Status      RecordStatus  `json:"status"`
	Assessment  *Assessment   `json:"assessment"`
	Version     int           `json:"version"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Assessed reports whether pricing fields are set
func (r *WasteRecord) Assessed() bool {
	return r.Assessment != nil
}

// WeightKg returns the assessed weight, 0 while unassessed
func (r *WasteRecord) WeightKg() float64 {
	if r.Assessment == nil {
		return 0
	}
	return r.Assessment.WeightKg
}

// Credits returns the awarded credits, 0 while unassessed
func (r *WasteRecord) Credits() int {
	if r.Assessment == nil {
		return 0
	}
	return r.Assessment.CreditsEarned
}

// History converts the record into a history row
func (r *WasteRecord) History() HistoryEntry {
	e := HistoryEntry{
		Source:    ProvenanceAssessment,
		ID:        r.ID,
		CenterID:  r.CenterID,
		Category:  r.Category,
		Status:    string(r.Status),
		WeightKg:  r.WeightKg(),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Assessment != nil {
		q, c := r.Assessment.QualityScore, r.Assessment.CreditsEarned
		e.QualityScore = &q
		e.CreditsEarned = &c
	}
	return e
}

// FieldMarshal is a registered agent delivering pre-weighed waste
type FieldMarshal struct {
	ID           uuid.UUID  `json:"id"`
	UserID       *uuid.UUID `json:"user_id,omitempty"`
	FullName     string     `json:"full_name"`
	Phone        string     `json:"phone"`
	CenterID     uuid.UUID  `json:"center_id"`
	RegisteredBy uuid.UUID  `json:"registered_by"`
	CreatedAt    time.Time  `json:"created_at"`
}

// MarshalDelivery is waste logged by a field marshal. Weight is known at
// creation; QualityScore and CreditsEarned stay nil until a controller scores it.
type MarshalDelivery struct {
	ID            uuid.UUID     `json:"id"`
	MarshalID     uuid.UUID     `json:"marshal_id"`
	CenterID      uuid.UUID     `json:"center_id"`
	Category      WasteCategory `json:"waste_category"`
	WeightKg      float64       `json:"weight_kg"`
	QualityScore  *int          `json:"quality_score"`
	CreditsEarned *int          `json:"credits_earned"`
	LoggedBy      uuid.UUID     `json:"logged_by"`
	Version       int           `json:"version"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Assessed reports whether the delivery carries a quality score
func (d *MarshalDelivery) Assessed() bool {
	return d.QualityScore != nil
}

// Credits returns the awarded credits, 0 while unscored
func (d *MarshalDelivery) Credits() int {
	if d.CreditsEarned == nil {
		return 0
	}
	return *d.CreditsEarned
}

// History converts the delivery into a history row
func (d *MarshalDelivery) History() HistoryEntry {
	status := "logged"
	if d.Assessed() {
		status = "assessed"
	}
	return HistoryEntry{
		Source:        ProvenanceMarshalDelivery,
		ID:            d.ID,
		CenterID:      d.CenterID,
		Category:      d.Category,
		Status:        status,
		WeightKg:      d.WeightKg,
		QualityScore:  d.QualityScore,
		CreditsEarned: d.CreditsEarned,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// ScoredItem is the common shape the stats engine aggregates over
type ScoredItem struct {
	Source        Provenance
	ID            uuid.UUID
	CenterID      uuid.UUID
	WeightKg      float64
	QualityScore  int
	CreditsEarned int
	UpdatedAt     time.Time
}
