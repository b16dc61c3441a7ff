package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/25x8/recyclemart/internal/recyclemart/apperr"
	"github.com/25x8/recyclemart/internal/recyclemart/models"
	"github.com/25x8/recyclemart/internal/recyclemart/service"
	"github.com/25x8/recyclemart/internal/recyclemart/utils"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	defaultQueueLimit = 50
	maxQueueLimit     = 200
)

// recordResponse flattens the assessment so unassessed records read as weight 0
type recordResponse struct {
	ID            uuid.UUID            `json:"id"`
	GeneratorID   uuid.UUID            `json:"generator_id"`
	CenterID      uuid.UUID            `json:"center_id"`
	Category      models.WasteCategory `json:"waste_category"`
	PhotoURL      *string              `json:"photo_url,omitempty"`
	Status        models.RecordStatus  `json:"status"`
	Assessed      bool                 `json:"assessed"`
	WeightKg      float64              `json:"weight_kg"`
	QualityScore  *int                 `json:"quality_score"`
	CreditsEarned *int                 `json:"credits_earned"`
	AssessedBy    *uuid.UUID           `json:"assessed_by,omitempty"`
	Notes         string               `json:"notes,omitempty"`
	Version       int                  `json:"version"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

func toRecordResponse(rec *models.WasteRecord) recordResponse {
	resp := recordResponse{
		ID:          rec.ID,
		GeneratorID: rec.GeneratorID,
		CenterID:    rec.CenterID,
		Category:    rec.Category,
		PhotoURL:    rec.PhotoURL,
		Status:      rec.Status,
		Assessed:    rec.Assessed(),
		WeightKg:    rec.WeightKg(),
		Version:     rec.Version,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
	if a := rec.Assessment; a != nil {
		q, c, by := a.QualityScore, a.CreditsEarned, a.AssessedBy
		resp.QualityScore = &q
		resp.CreditsEarned = &c
		resp.AssessedBy = &by
		resp.Notes = a.Notes
	}
	return resp
}

func toRecordResponses(records []models.WasteRecord) []recordResponse {
	out := make([]recordResponse, 0, len(records))
	for i := range records {
		out = append(out, toRecordResponse(&records[i]))
	}
	return out
}

// SubmitWaste records a generator's waste drop
func (h *Handler) SubmitWaste(w http.ResponseWriter, r *http.Request) {
	caller, ok := actor(w, r)
	if !ok {
		return
	}

	var req struct {
		CenterID      uuid.UUID `json:"center_id"`
		WasteCategory string    `json:"waste_category"`
		PhotoURL      string    `json:"photo_url"`
	}

	// Parse request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	rec, err := h.Waste.Submit(r.Context(), caller, service.SubmitInput{
		CenterID: req.CenterID,
		Category: req.WasteCategory,
		PhotoURL: req.PhotoURL,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRecordResponse(rec))
}

// PendingAssessments lists unassessed records oldest first
func (h *Handler) PendingAssessments(w http.ResponseWriter, r *http.Request) {
	caller, ok := actor(w, r)
	if !ok {
		return
	}

	centerID, err := optionalUUID(r.URL.Query().Get("center_id"))
	if err != nil {
		h.writeError(w, r, apperr.Invalid("center_id", "must be a UUID"))
		return
	}
	limit, err := utils.ParseLimit(r.URL.Query().Get("limit"), defaultQueueLimit, maxQueueLimit)
	if err != nil {
		h.writeError(w, r, apperr.Invalid("limit", "%s", err.Error()))
		return
	}

	records, err := h.Waste.PendingQueue(r.Context(), caller, centerID, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if len(records) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponses(records))
}

// AssessRecord weighs, scores and prices one record
func (h *Handler) AssessRecord(w http.ResponseWriter, r *http.Request) {
	caller, ok := actor(w, r)
	if !ok {
		return
	}

	var req struct {
		RecordID        uuid.UUID `json:"record_id"`
		WeightKg        float64   `json:"weight_kg"`
		QualityScore    *int      `json:"quality_score"`
		TargetStatus    string    `json:"target_status"`
		Notes           string    `json:"notes"`
		ExpectedVersion *int      `json:"expected_version"`
	}

	// Parse request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if req.QualityScore == nil {
		h.writeError(w, r, apperr.Invalid("quality_score", "is required"))
		return
	}

	rec, err := h.Waste.Assess(r.Context(), caller, service.AssessInput{
		RecordID:        req.RecordID,
		WeightKg:        req.WeightKg,
		QualityScore:    *req.QualityScore,
		TargetStatus:    req.TargetStatus,
		Notes:           req.Notes,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

// BulkAssess applies one score to many records
func (h *Handler) BulkAssess(w http.ResponseWriter, r *http.Request) {
	caller, ok := actor(w, r)
	if !ok {
		return
	}

	var req struct {
		Items []struct {
			RecordID uuid.UUID `json:"record_id"`
			WeightKg float64   `json:"weight_kg"`
		} `json:"items"`
		QualityScore *int   `json:"quality_score"`
		Preset       string `json:"preset"`
		TargetStatus string `json:"target_status"`
		Notes        string `json:"notes"`
	}

	// Parse request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	in := service.BulkAssessInput{
		Items:        make([]service.BulkItem, 0, len(req.Items)),
		QualityScore: req.QualityScore,
		Preset:       req.Preset,
		TargetStatus: req.TargetStatus,
		Notes:        req.Notes,
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, service.BulkItem{RecordID: item.RecordID, WeightKg: item.WeightKg})
	}

	records, err := h.Waste.BulkAssess(r.Context(), caller, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toRecordResponses(records))
}

// UpdateRecordStatus moves a record forward through logistics
func (h *Handler) UpdateRecordStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := actor(w, r)
	if !ok {
		return
	}

	recordID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid record id", http.StatusBadRequest)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	rec, err := h.Waste.UpdateStatus(r.Context(), caller, recordID, req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

func optionalUUID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
