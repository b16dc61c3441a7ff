package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/25x8/recyclemart/internal/recyclemart/changefeed"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultRefreshSchedule is the polling fallback for dashboards
const DefaultRefreshSchedule = "@every 30s"

// Subscriber delivers change events until ctx is done
type Subscriber interface {
	Subscribe(ctx context.Context, onEvent func(changefeed.Event)) error
}

// EventSink receives every change event after the caches are invalidated
type EventSink interface {
	Broadcast(ev changefeed.Event)
}

// Refresher keeps projections current. Change events invalidate the affected
// cache entries right away and a cron job recomputes stats on a fixed schedule
// in case an event was missed.
type Refresher struct {
	stats    *StatsService
	waste    *WasteService
	feed     Subscriber
	sink     EventSink
	schedule string
	cron     *cron.Cron
	log      *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// NewRefresher creates a new refresher. feed and sink may be nil.
func NewRefresher(stats *StatsService, waste *WasteService, feed Subscriber, sink EventSink, schedule string, log *zap.Logger) *Refresher {
	if schedule == "" {
		schedule = DefaultRefreshSchedule
	}
	return &Refresher{
		stats:    stats,
		waste:    waste,
		feed:     feed,
		sink:     sink,
		schedule: schedule,
		cron:     cron.New(),
		log:      log.With(zap.String("component", "refresher")),
	}
}

// Start subscribes to the change feed and starts the polling job
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("refresher already running")
	}

	runCtx, cancel := context.WithCancel(ctx)

	if r.feed != nil {
		if err := r.feed.Subscribe(runCtx, r.HandleEvent); err != nil {
			cancel()
			return fmt.Errorf("subscribe to change feed: %w", err)
		}
	}

	if _, err := r.cron.AddFunc(r.schedule, func() { r.stats.Refresh(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule stats refresh %q: %w", r.schedule, err)
	}
	r.cron.Start()

	r.cancel = cancel
	r.running = true
	r.log.Info("refresher started", zap.String("schedule", r.schedule))
	return nil
}

// Stop stops the polling job and the feed subscription
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}

	stopCtx := r.cron.Stop()
	<-stopCtx.Done()
	r.cancel()

	r.running = false
	r.log.Info("refresher stopped")
}

// HandleEvent invalidates the projections ev affects and forwards it to the sink
func (r *Refresher) HandleEvent(ev changefeed.Event) {
	switch ev.Table {
	case changefeed.TableWasteRecords, changefeed.TableMarshalDeliveries:
		r.stats.Invalidate()
		if r.waste != nil {
			r.waste.InvalidateLedger(ev)
		}
	}

	if r.sink != nil {
		r.sink.Broadcast(ev)
	}
}
