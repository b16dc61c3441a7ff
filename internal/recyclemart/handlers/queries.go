package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/25x8/recyclemart/internal/recyclemart/apperr"
	"github.com/25x8/recyclemart/internal/recyclemart/models"
	"github.com/25x8/recyclemart/internal/recyclemart/service"
	"github.com/25x8/recyclemart/internal/recyclemart/utils"
)

// GetCredits returns the caller's credit ledger
func (h *Handler) GetCredits(w http.ResponseWriter, r *http.Request) {
	caller, ok := actor(w, r)
	if !ok {
		return
	}

	view, err := h.Waste.Ledger(r.Context(), caller)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// GetHistory returns the caller's submissions and deliveries
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	caller, ok := actor(w, r)
	if !ok {
		return
	}

	entries, err := h.Waste.History(r.Context(), caller)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// If no history, return 204
	if len(entries) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type centerResponse struct {
	models.CollationCenter
	Utilization float64              `json:"utilization"`
	Level       models.CapacityLevel `json:"level"`
	Accepting   bool                 `json:"accepting_drop_offs"`
}

func toCenterResponse(c models.CollationCenter) centerResponse {
	return centerResponse{
		CollationCenter: c,
		Utilization:     c.Utilization(),
		Level:           c.Level(),
		Accepting:       c.AcceptsDropOffs(),
	}
}

// ListCenters returns every collation center with its capacity level
func (h *Handler) ListCenters(w http.ResponseWriter, r *http.Request) {
	centers, err := h.Waste.ListCenters(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response := make([]centerResponse, 0, len(centers))
	for _, c := range centers {
		response = append(response, toCenterResponse(c))
	}
	writeJSON(w, http.StatusOK, response)
}

// CreateCenter registers a collation center
func (h *Handler) CreateCenter(w http.ResponseWriter, r *http.Request) {
	caller, ok := actor(w, r)
	if !ok {
		return
	}

	var req struct {
		Name           string  `json:"name"`
		Address        string  `json:"address"`
		CapacityKg     float64 `json:"capacity_kg"`
		CurrentStockKg float64 `json:"current_stock_kg"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	center, err := h.Waste.CreateCenter(r.Context(), caller, service.CreateCenterInput{
		Name:           req.Name,
		Address:        req.Address,
		CapacityKg:     req.CapacityKg,
		CurrentStockKg: req.CurrentStockKg,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCenterResponse(*center))
}

// RecordsInRange exports records and deliveries created in a time range
func (h *Handler) RecordsInRange(w http.ResponseWriter, r *http.Request) {
	caller, ok := actor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	from, to, err := utils.ParseTimeRange(q.Get("from"), q.Get("to"), time.Now())
	if err != nil {
		h.writeError(w, r, apperr.Invalid("range", "%s", err.Error()))
		return
	}

	export, err := h.Waste.RecordsInRange(r.Context(), caller, from, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		From       time.Time                `json:"from"`
		To         time.Time                `json:"to"`
		Records    []recordResponse         `json:"records"`
		Deliveries []models.MarshalDelivery `json:"deliveries"`
	}{
		From:       export.From,
		To:         export.To,
		Records:    toRecordResponses(export.Records),
		Deliveries: export.Deliveries,
	})
}

// AssessmentStats returns today's and weekly assessment rollups
func (h *Handler) AssessmentStats(w http.ResponseWriter, r *http.Request) {
	centerID, err := optionalUUID(r.URL.Query().Get("center_id"))
	if err != nil {
		h.writeError(w, r, apperr.Invalid("center_id", "must be a UUID"))
		return
	}

	report, err := h.Stats.Report(r.Context(), centerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}
