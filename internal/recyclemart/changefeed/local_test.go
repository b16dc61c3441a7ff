package changefeed

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for change event")
	}
	return Event{}
}

func TestLocalFeedFanOut(t *testing.T) {
	feed := NewLocalFeed(zap.NewNop())
	defer feed.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, b := make(chan Event, 1), make(chan Event, 1)
	require.NoError(t, feed.Subscribe(ctx, func(ev Event) { a <- ev }))
	require.NoError(t, feed.Subscribe(ctx, func(ev Event) { b <- ev }))

	ev := Event{Table: TableWasteRecords, Op: OpInsert, RecordID: uuid.New()}
	require.NoError(t, feed.Publish(ctx, ev))

	assert.Equal(t, ev.RecordID, recv(t, a).RecordID)
	assert.Equal(t, ev.RecordID, recv(t, b).RecordID)
}

func TestLocalFeedStopsOnCancel(t *testing.T) {
	feed := NewLocalFeed(zap.NewNop())
	defer feed.Close()

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan Event, 1)
	require.NoError(t, feed.Subscribe(ctx, func(ev Event) { got <- ev }))
	cancel()

	assert.Eventually(t, func() bool {
		feed.mu.RLock()
		defer feed.mu.RUnlock()
		return len(feed.subs) == 0
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, feed.Publish(context.Background(), Event{Table: TableWasteRecords}))
	assert.Len(t, got, 0)
}

func TestLocalFeedClosed(t *testing.T) {
	feed := NewLocalFeed(zap.NewNop())
	require.NoError(t, feed.Close())

	assert.Error(t, feed.Publish(context.Background(), Event{}))
	assert.Error(t, feed.Subscribe(context.Background(), func(Event) {}))
}
