package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/25x8/recyclemart/internal/recyclemart/apperr"
	"github.com/25x8/recyclemart/internal/recyclemart/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// RegisterMarshal adds a field marshal
func (h *Handler) RegisterMarshal(w http.ResponseWriter, r *http.Request) {
	caller, ok := actor(w, r)
	if !ok {
		return
	}

	var req struct {
		FullName string     `json:"full_name"`
		Phone    string     `json:"phone"`
		CenterID uuid.UUID  `json:"center_id"`
		UserID   *uuid.UUID `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	marshal, err := h.Waste.RegisterMarshal(r.Context(), caller, service.RegisterMarshalInput{
		FullName: req.FullName,
		Phone:    req.Phone,
		CenterID: req.CenterID,
		UserID:   req.UserID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, marshal)
}

// LogDelivery records a pre-weighed marshal delivery
func (h *Handler) LogDelivery(w http.ResponseWriter, r *http.Request) {
	caller, ok := actor(w, r)
	if !ok {
		return
	}

	var req struct {
		MarshalID     uuid.UUID `json:"marshal_id"`
		WasteCategory string    `json:"waste_category"`
		WeightKg      float64   `json:"weight_kg"`
		QualityScore  *int      `json:"quality_score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	delivery, err := h.Waste.LogDelivery(r.Context(), caller, service.LogDeliveryInput{
		MarshalID:    req.MarshalID,
		Category:     req.WasteCategory,
		WeightKg:     req.WeightKg,
		QualityScore: req.QualityScore,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, delivery)
}

// AssessDelivery scores a marshal delivery
func (h *Handler) AssessDelivery(w http.ResponseWriter, r *http.Request) {
	caller, ok := actor(w, r)
	if !ok {
		return
	}

	deliveryID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid delivery id", http.StatusBadRequest)
		return
	}

	var req struct {
		QualityScore    *int     `json:"quality_score"`
		WeightKg        *float64 `json:"weight_kg"`
		ExpectedVersion *int     `json:"expected_version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if req.QualityScore == nil {
		h.writeError(w, r, apperr.Invalid("quality_score", "is required"))
		return
	}

	delivery, err := h.Waste.AssessDelivery(r.Context(), caller, service.AssessDeliveryInput{
		DeliveryID:      deliveryID,
		QualityScore:    *req.QualityScore,
		WeightKg:        req.WeightKg,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, delivery)
}
