package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/25x8/recyclemart/internal/recyclemart/changefeed"
	"github.com/25x8/recyclemart/internal/recyclemart/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type collectingSink struct {
	mu     sync.Mutex
	events []changefeed.Event
}

func (s *collectingSink) Broadcast(ev changefeed.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *collectingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestRefresherHandleEventInvalidates(t *testing.T) {
	source := new(mockScoredSource)
	source.On("ListScoredSince", mock.Anything, mock.Anything, mock.Anything).Return([]models.ScoredItem{}, nil)
	cache := NewProjectionCache(time.Minute)
	stats := NewStatsService(source, centerSet{}, cache, zap.NewNop())
	sink := &collectingSink{}

	owner := uuid.New()
	cache.Set(statsKey(nil), models.StatsReport{})
	cache.Set(LedgerKeyPrefix+owner.String(), models.CreditLedger{})
	waste := &WasteService{cache: cache}

	r := NewRefresher(stats, waste, nil, sink, "", zap.NewNop())

	r.HandleEvent(changefeed.Event{Table: changefeed.TableCenters})
	_, ok := cache.Get(statsKey(nil))
	assert.True(t, ok, "center events leave stats alone")

	r.HandleEvent(changefeed.Event{Table: changefeed.TableWasteRecords, OwnerID: owner})
	_, ok = cache.Get(statsKey(nil))
	assert.False(t, ok)
	_, ok = cache.Get(LedgerKeyPrefix + owner.String())
	assert.False(t, ok)

	assert.Equal(t, 2, sink.count())
}

func TestRefresherFollowsFeed(t *testing.T) {
	source := new(mockScoredSource)
	source.On("ListScoredSince", mock.Anything, mock.Anything, mock.Anything).Return([]models.ScoredItem{}, nil)
	stats := NewStatsService(source, centerSet{}, NewProjectionCache(time.Minute), zap.NewNop())
	feed := changefeed.NewLocalFeed(zap.NewNop())
	defer feed.Close()
	sink := &collectingSink{}

	r := NewRefresher(stats, nil, feed, sink, "@every 1h", zap.NewNop())
	require.NoError(t, r.Start(context.Background()))
	assert.Error(t, r.Start(context.Background()))

	require.NoError(t, feed.Publish(context.Background(), changefeed.Event{Table: changefeed.TableMarshalDeliveries}))
	assert.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 10*time.Millisecond)

	r.Stop()
	r.Stop()
}

func TestRefresherRejectsBadSchedule(t *testing.T) {
	stats := NewStatsService(new(mockScoredSource), centerSet{}, NewProjectionCache(time.Minute), zap.NewNop())
	r := NewRefresher(stats, nil, nil, nil, "every now and then", zap.NewNop())

	assert.Error(t, r.Start(context.Background()))
}
