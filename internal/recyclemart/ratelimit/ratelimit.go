package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Rate-limited actions
const (
	ActionLogin    = "login"
	ActionRegister = "register"
	ActionSubmit   = "submit"
	ActionUpload   = "upload"
)

const idleTTL = 10 * time.Minute

// Policy is a token bucket: Limit tokens per second refilling up to Burst
type Policy struct {
	Limit rate.Limit
	Burst int
}

// PerMinute returns a policy allowing n events per minute with a burst of n
func PerMinute(n int) Policy {
	return Policy{Limit: rate.Limit(float64(n) / 60), Burst: n}
}

// DefaultPolicies returns the standard limits for each action
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		ActionLogin:    PerMinute(5),
		ActionRegister: PerMinute(3),
		ActionSubmit:   PerMinute(30),
		ActionUpload:   PerMinute(10),
	}
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter tracks one token bucket per action and subject. Actions without a
// policy are never limited.
type Limiter struct {
	mu       sync.Mutex
	policies map[string]Policy
	buckets  map[string]*bucket
	swept    time.Time
	now      func() time.Time
	log      *zap.Logger
}

// New creates a limiter with the given policies
func New(policies map[string]Policy, log *zap.Logger) *Limiter {
	return &Limiter{
		policies: policies,
		buckets:  make(map[string]*bucket),
		now:      time.Now,
		log:      log.With(zap.String("component", "rate_limiter")),
	}
}

// Allow takes one token for subject performing action. When refused it
// returns how long until a token is available.
func (l *Limiter) Allow(action, subject string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	policy, ok := l.policies[action]
	if !ok {
		return true, 0
	}

	now := l.now()
	l.sweep(now)

	key := action + "|" + subject
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(policy.Limit, policy.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	res := b.lim.ReserveN(now, 1)
	if !res.OK() {
		return false, 0
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// sweep drops buckets idle long enough to have refilled
func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.swept) < idleTTL {
		return
	}
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > idleTTL {
			delete(l.buckets, key)
		}
	}
	l.swept = now
}

// Reset forgets every bucket
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buckets = make(map[string]*bucket)
}

// Middleware refuses requests over the action's limit with 429. subject keys
// the bucket, e.g. ClientIP or the authenticated user.
func (l *Limiter) Middleware(action string, subject func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			who := subject(r)
			allowed, wait := l.Allow(action, who)
			if !allowed {
				l.log.Warn("rate limit exceeded",
					zap.String("action", action),
					zap.String("subject", who),
					zap.Duration("retry_after", wait),
				)
				if wait > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				}
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP keys requests by remote address without the port
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
