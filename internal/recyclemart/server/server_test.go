package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/25x8/recyclemart/internal/recyclemart/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type client struct {
	t       *testing.T
	handler http.Handler
	ip      int
}

func newTestServer(t *testing.T) *client {
	t.Helper()

	cfg := &config.Config{
		RunAddress:       ":0",
		JWTSecret:        "test-secret",
		StatsRefresh:     "@every 1h",
		CacheTTL:         30 * time.Second,
		AdminLogins:      []string{"root"},
		PendingEstimate:  5,
		MinPayoutCredits: 100,
	}
	s := NewServer(cfg, zap.NewNop())
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	return &client{t: t, handler: s.Handler()}
}

// do sends body as JSON; each call comes from a fresh client address
func (c *client) do(method, path, token string, body any) *httptest.ResponseRecorder {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	c.ip++
	req.Header.Set("X-Real-IP", fmt.Sprintf("203.0.113.%d", c.ip))
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func (c *client) register(login, role string) string {
	c.t.Helper()

	rec := c.do(http.MethodPost, "/api/user/register", "", map[string]string{
		"login": login, "password": "s3cret-" + login, "role": role,
	})
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())
	token := rec.Header().Get("Authorization")
	require.NotEmpty(c.t, token)
	return token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestSubmitAssessAndProject(t *testing.T) {
	c := newTestServer(t)

	admin := c.register("root", "")
	generator := c.register("ada", "")
	controller := c.register("ctrl", "controller")

	// Admin opens a center
	rec := c.do(http.MethodPost, "/api/admin/centers", admin, map[string]any{"name": "Yaba", "capacity_kg": 1000})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	center := decode[struct {
		ID    string `json:"id"`
		Level string `json:"level"`
	}](t, rec)
	assert.Equal(t, "available", center.Level)

	rec = c.do(http.MethodPost, "/api/admin/centers", generator, map[string]any{"name": "Nope", "capacity_kg": 10})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Generator submits
	rec = c.do(http.MethodPost, "/api/waste", generator, map[string]any{"center_id": center.ID, "waste_category": "PET"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	submitted := decode[struct {
		ID       string  `json:"id"`
		Status   string  `json:"status"`
		WeightKg float64 `json:"weight_kg"`
		Assessed bool    `json:"assessed"`
	}](t, rec)
	assert.Equal(t, "pending", submitted.Status)
	assert.Zero(t, submitted.WeightKg)
	assert.False(t, submitted.Assessed)

	rec = c.do(http.MethodPost, "/api/waste", generator, map[string]any{"center_id": center.ID, "waste_category": "GLASS"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"waste_category"`)

	// Queue is staff only
	rec = c.do(http.MethodGet, "/api/assessments/pending", generator, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = c.do(http.MethodGet, "/api/assessments/pending?center_id="+center.ID, controller, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	queue := decode[[]struct {
		ID string `json:"id"`
	}](t, rec)
	require.Len(t, queue, 1)
	assert.Equal(t, submitted.ID, queue[0].ID)

	// Controller assesses
	rec = c.do(http.MethodPost, "/api/assessments", controller, map[string]any{
		"record_id": submitted.ID, "weight_kg": 5.0, "quality_score": 9,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assessed := decode[struct {
		Status        string `json:"status"`
		QualityScore  *int   `json:"quality_score"`
		CreditsEarned *int   `json:"credits_earned"`
		Version       int    `json:"version"`
	}](t, rec)
	assert.Equal(t, "sorted", assessed.Status)
	require.NotNil(t, assessed.CreditsEarned)
	assert.Equal(t, 18, *assessed.CreditsEarned)

	rec = c.do(http.MethodPost, "/api/assessments", controller, map[string]any{
		"record_id": submitted.ID, "weight_kg": 5.0, "quality_score": 2, "expected_version": 1,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Ledger and history
	rec = c.do(http.MethodGet, "/api/user/credits", generator, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ledger := decode[struct {
		TotalCredits     int     `json:"total_credits"`
		AvailableCredits int     `json:"available_credits"`
		PendingCredits   int     `json:"pending_credits"`
		TotalNaira       float64 `json:"total_naira"`
		PayoutEligible   bool    `json:"payout_eligible"`
	}](t, rec)
	assert.Equal(t, 18, ledger.TotalCredits)
	assert.Zero(t, ledger.AvailableCredits)
	assert.Zero(t, ledger.PendingCredits)
	assert.InDelta(t, 27.0, ledger.TotalNaira, 1e-9)
	assert.False(t, ledger.PayoutEligible)

	rec = c.do(http.MethodGet, "/api/user/history", generator, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"source":"assessment"`)

	// Stats
	rec = c.do(http.MethodGet, "/api/stats/assessments", controller, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[struct {
		Week struct {
			AssessmentCount int `json:"assessment_count"`
		} `json:"week"`
	}](t, rec)
	assert.Equal(t, 1, stats.Week.AssessmentCount)

	// Logistics
	rec = c.do(http.MethodPatch, "/api/records/"+submitted.ID+"/status", generator, map[string]string{"status": "recycled"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = c.do(http.MethodPatch, "/api/records/"+submitted.ID+"/status", controller, map[string]string{"status": "recycled"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Admin export
	rec = c.do(http.MethodGet, "/api/admin/records", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	export := decode[struct {
		Records []json.RawMessage `json:"records"`
	}](t, rec)
	assert.Len(t, export.Records, 1)
}

func TestRegistrationRules(t *testing.T) {
	c := newTestServer(t)

	rec := c.do(http.MethodPost, "/api/user/register", "", map[string]string{"login": "eve", "password": "pw", "role": "admin"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	c.register("bob", "driver")
	rec = c.do(http.MethodPost, "/api/user/register", "", map[string]string{"login": "bob", "password": "pw"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = c.do(http.MethodPost, "/api/user/login", "", map[string]string{"login": "bob", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = c.do(http.MethodPost, "/api/user/login", "", map[string]string{"login": "bob", "password": "s3cret-bob"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"driver"`)

	rec = c.do(http.MethodGet, "/api/user/credits", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = c.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginIsRateLimited(t *testing.T) {
	c := newTestServer(t)
	c.register("mallory", "")

	var last int
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/user/login",
			bytes.NewBufferString(`{"login":"mallory","password":"guess"}`))
		req.Header.Set("X-Real-IP", "198.51.100.9")
		rec := httptest.NewRecorder()
		c.handler.ServeHTTP(rec, req)
		last = rec.Code
	}

	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestPhotoUploadDisabledWithoutBucket(t *testing.T) {
	c := newTestServer(t)
	generator := c.register("ada", "")

	rec := c.do(http.MethodPost, "/api/uploads/photo", generator, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
