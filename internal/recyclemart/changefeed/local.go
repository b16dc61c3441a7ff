package changefeed

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

const subscriberBuffer = 64

// LocalFeed fans events out to in-process subscribers
type LocalFeed struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool
	log    *zap.Logger
}

// NewLocalFeed creates an in-process feed
func NewLocalFeed(log *zap.Logger) *LocalFeed {
	return &LocalFeed{
		subs: make(map[int]chan Event),
		log:  log.With(zap.String("component", "local_feed")),
	}
}

// Publish delivers ev to every subscriber without blocking. A full subscriber
// drops the event; the polling refresh catches it up.
func (f *LocalFeed) Publish(_ context.Context, ev Event) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return errors.New("change feed closed")
	}
	for id, ch := range f.subs {
		select {
		case ch <- ev:
		default:
			f.log.Warn("subscriber lagging, event dropped", zap.Int("subscriber", id), zap.String("table", ev.Table))
		}
	}
	return nil
}

// Subscribe calls onEvent for every published event until ctx is done
func (f *LocalFeed) Subscribe(ctx context.Context, onEvent func(Event)) error {
	if onEvent == nil {
		return errors.New("onEvent callback required")
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return errors.New("change feed closed")
	}
	id := f.nextID
	f.nextID++
	ch := make(chan Event, subscriberBuffer)
	f.subs[id] = ch
	f.mu.Unlock()

	go func() {
		defer f.unsubscribe(id)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				onEvent(ev)
			}
		}
	}()

	return nil
}

func (f *LocalFeed) unsubscribe(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ch, ok := f.subs[id]; ok {
		delete(f.subs, id)
		close(ch)
	}
}

// Close stops every subscription
func (f *LocalFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
	return nil
}
