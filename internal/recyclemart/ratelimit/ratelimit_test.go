package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func fixedLimiter(policies map[string]Policy) (*Limiter, *time.Time) {
	clock := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	l := New(policies, zap.NewNop())
	l.now = func() time.Time { return clock }
	return l, &clock
}

func TestAllowBurstThenRefill(t *testing.T) {
	l, clock := fixedLimiter(map[string]Policy{ActionLogin: PerMinute(3)})

	for i := 0; i < 3; i++ {
		ok, _ := l.Allow(ActionLogin, "10.0.0.1")
		assert.True(t, ok, "attempt %d", i)
	}

	ok, wait := l.Allow(ActionLogin, "10.0.0.1")
	assert.False(t, ok)
	assert.InDelta(t, 20*time.Second, wait, float64(time.Second))

	ok, _ = l.Allow(ActionLogin, "10.0.0.2")
	assert.True(t, ok, "subjects have separate buckets")

	*clock = clock.Add(21 * time.Second)
	ok, _ = l.Allow(ActionLogin, "10.0.0.1")
	assert.True(t, ok)
}

func TestUnknownActionIsUnlimited(t *testing.T) {
	l, _ := fixedLimiter(map[string]Policy{})
	for i := 0; i < 100; i++ {
		ok, _ := l.Allow("anything", "x")
		assert.True(t, ok)
	}
}

func TestReset(t *testing.T) {
	l, _ := fixedLimiter(map[string]Policy{ActionRegister: PerMinute(1)})

	ok, _ := l.Allow(ActionRegister, "a")
	assert.True(t, ok)
	ok, _ = l.Allow(ActionRegister, "a")
	assert.False(t, ok)

	l.Reset()
	ok, _ = l.Allow(ActionRegister, "a")
	assert.True(t, ok)
}

func TestMiddlewareReturns429(t *testing.T) {
	l, _ := fixedLimiter(map[string]Policy{ActionSubmit: PerMinute(1)})
	h := l.Middleware(ActionSubmit, ClientIP)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/waste", nil)
	req.RemoteAddr = "192.0.2.7:5555"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, []string{"60", "61"}, rec.Header().Get("Retry-After"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.4:443"
	assert.Equal(t, "198.51.100.4", ClientIP(req))

	req.RemoteAddr = "198.51.100.4"
	assert.Equal(t, "198.51.100.4", ClientIP(req))
}
