package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/25x8/recyclemart/internal/recyclemart/apperr"
	"github.com/25x8/recyclemart/internal/recyclemart/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatsKeyPrefix prefixes assessment stats cache keys
const StatsKeyPrefix = "stats:"

// DefaultStatsIdle is how long a per-center report stays on the refresh list
// after it was last requested
const DefaultStatsIdle = 10 * time.Minute

const allCenters = "all"

// ScoredSource supplies the scored items the stats are computed from
type ScoredSource interface {
	ListScoredSince(ctx context.Context, since time.Time, centerID *uuid.UUID) ([]models.ScoredItem, error)
}

// CenterSource resolves collation centers
type CenterSource interface {
	GetCenter(ctx context.Context, id uuid.UUID) (*models.CollationCenter, error)
}

// StatsService serves assessment stats from a TTL cache, recomputing on
// expiry or invalidation
type StatsService struct {
	source  ScoredSource
	centers CenterSource
	cache   *ProjectionCache
	log     *zap.Logger
	now     func() time.Time
	idle    time.Duration

	mu        sync.Mutex
	keyLocks  map[string]*sync.Mutex
	requested map[string]time.Time
}

// NewStatsService creates a new stats service
func NewStatsService(source ScoredSource, centers CenterSource, cache *ProjectionCache, log *zap.Logger) *StatsService {
	return &StatsService{
		source:    source,
		centers:   centers,
		cache:     cache,
		log:       log.With(zap.String("component", "stats_service")),
		now:       time.Now,
		idle:      DefaultStatsIdle,
		keyLocks:  make(map[string]*sync.Mutex),
		requested: make(map[string]time.Time),
	}
}

func statsKey(centerID *uuid.UUID) string {
	if centerID == nil {
		return StatsKeyPrefix + allCenters
	}
	return StatsKeyPrefix + centerID.String()
}

func centerFromKey(key string) (*uuid.UUID, bool) {
	raw := strings.TrimPrefix(key, StatsKeyPrefix)
	if raw == allCenters {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, false
	}
	return &id, true
}

// Report returns today's, this week's and last week's stats for one center
// or, with a nil centerID, for every center
func (s *StatsService) Report(ctx context.Context, centerID *uuid.UUID) (models.StatsReport, error) {
	key := statsKey(centerID)
	if cached, ok := s.cache.Get(key); ok {
		s.touch(key)
		return cached.(models.StatsReport), nil
	}

	if centerID != nil {
		center, err := s.centers.GetCenter(ctx, *centerID)
		if err != nil {
			return s.fallback(key, apperr.Transient("get collation center", err))
		}
		if center == nil {
			return models.StatsReport{}, apperr.NotFound("collation center")
		}
	}
	s.touch(key)

	unlock := s.lockKey(key)
	defer unlock()

	// Another caller may have refreshed while we waited
	if cached, ok := s.cache.Get(key); ok {
		return cached.(models.StatsReport), nil
	}

	report, err := s.compute(ctx, centerID)
	if err != nil {
		return s.fallback(key, err)
	}

	s.cache.Set(key, report)
	return report, nil
}

// fallback serves the last good report marked stale, or err when there is none
func (s *StatsService) fallback(key string, err error) (models.StatsReport, error) {
	last, ok := s.cache.LastGood(key)
	if !ok {
		return models.StatsReport{}, err
	}
	s.log.Warn("serving stale stats", zap.String("key", key), zap.Error(err))
	stale := last.(models.StatsReport)
	stale.Stale = true
	return stale, nil
}

func (s *StatsService) touch(key string) {
	s.mu.Lock()
	s.requested[key] = s.now()
	s.mu.Unlock()
}

// lockKey serializes recomputation of one key
func (s *StatsService) lockKey(key string) func() {
	s.mu.Lock()
	l, ok := s.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.keyLocks[key] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// forgetIdle drops per-center reports nobody asked for within the idle window
// and returns the keys still worth refreshing
func (s *StatsService) forgetIdle(keys []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.idle)
	live := keys[:0]
	for _, key := range keys {
		if key != statsKey(nil) {
			if last, ok := s.requested[key]; !ok || last.Before(cutoff) {
				s.cache.Remove(key)
				delete(s.requested, key)
				delete(s.keyLocks, key)
				continue
			}
		}
		live = append(live, key)
	}
	return live
}

func (s *StatsService) compute(ctx context.Context, centerID *uuid.UUID) (models.StatsReport, error) {
	now := s.now()
	since := WeekStart(now).Add(-Week)
	if today := TodayStart(now); today.Before(since) {
		since = today
	}

	items, err := s.source.ListScoredSince(ctx, since, centerID)
	if err != nil {
		return models.StatsReport{}, apperr.Transient("list scored items", err)
	}

	return BuildReport(items, now), nil
}

// Invalidate marks every cached stats report stale
func (s *StatsService) Invalidate() {
	s.cache.InvalidatePrefix(StatsKeyPrefix)
}

// Refresh recomputes every recently requested stats report plus the
// all-centers report. Failures keep the previous value.
func (s *StatsService) Refresh(ctx context.Context) {
	keys := s.forgetIdle(s.cache.Keys(StatsKeyPrefix))
	if !containsKey(keys, statsKey(nil)) {
		keys = append(keys, statsKey(nil))
	}

	for _, key := range keys {
		centerID, ok := centerFromKey(key)
		if !ok {
			continue
		}
		report, err := s.compute(ctx, centerID)
		if err != nil {
			s.log.Warn("stats refresh failed", zap.String("key", key), zap.Error(err))
			continue
		}
		s.cache.Set(key, report)
	}
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
