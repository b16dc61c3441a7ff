package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/25x8/recyclemart/internal/recyclemart/apperr"
	"github.com/25x8/recyclemart/internal/recyclemart/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestWriteErrorMapping(t *testing.T) {
	h := &Handler{Log: zap.NewNop()}

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", apperr.Invalid("weight_kg", "must be greater than 0"), http.StatusUnprocessableEntity},
		{"unauthenticated", apperr.ErrUnauthenticated, http.StatusUnauthorized},
		{"forbidden", apperr.Forbidden("only controllers assess waste"), http.StatusForbidden},
		{"not found", apperr.NotFound("waste record"), http.StatusNotFound},
		{"conflict", apperr.ErrConflict, http.StatusConflict},
		{"transient", apperr.Transient("list records", errors.New("dial tcp: refused")), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.writeError(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil), tt.err)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestWriteErrorTransientSetsRetryAfter(t *testing.T) {
	h := &Handler{Log: zap.NewNop()}
	rec := httptest.NewRecorder()

	h.writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), apperr.Transient("op", errors.New("down")))

	assert.Equal(t, retryAfterSeconds, rec.Header().Get("Retry-After"))
}

func TestRecordResponseUnassessed(t *testing.T) {
	rec := &models.WasteRecord{ID: uuid.New(), Status: models.StatusPending, Category: models.CategoryPP}

	resp := toRecordResponse(rec)

	assert.False(t, resp.Assessed)
	assert.Zero(t, resp.WeightKg)
	assert.Nil(t, resp.QualityScore)
	assert.Nil(t, resp.CreditsEarned)
	assert.Nil(t, resp.AssessedBy)
}

func TestRecordResponseAssessed(t *testing.T) {
	controller := uuid.New()
	rec := &models.WasteRecord{
		ID:         uuid.New(),
		Status:     models.StatusSorted,
		Assessment: &models.Assessment{WeightKg: 5, QualityScore: 9, CreditsEarned: 18, AssessedBy: controller},
	}

	resp := toRecordResponse(rec)

	assert.True(t, resp.Assessed)
	assert.InDelta(t, 5.0, resp.WeightKg, 1e-9)
	assert.Equal(t, 9, *resp.QualityScore)
	assert.Equal(t, 18, *resp.CreditsEarned)
	assert.Equal(t, controller, *resp.AssessedBy)
}
