package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the Redis channel change events travel on
const DefaultChannel = "recyclemart:changes"

// RedisFeed carries change events over Redis pub/sub so every API instance
// invalidates its projections
type RedisFeed struct {
	log     *zap.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisFeed connects to Redis at addr
func NewRedisFeed(ctx context.Context, addr, channel string, log *zap.Logger) (*RedisFeed, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if channel == "" {
		channel = DefaultChannel
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisFeed{
		log:     log.With(zap.String("component", "redis_feed"), zap.String("channel", channel)),
		rdb:     rdb,
		channel: channel,
	}, nil
}

// Publish implements Publisher
func (f *RedisFeed) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return f.rdb.Publish(ctx, f.channel, raw).Err()
}

// Subscribe forwards events from the channel to onEvent until ctx is done
func (f *RedisFeed) Subscribe(ctx context.Context, onEvent func(Event)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := f.rdb.Subscribe(ctx, f.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					f.log.Warn("bad change event payload", zap.Error(err))
					continue
				}
				onEvent(ev)
			}
		}
	}()

	return nil
}

// Close releases the Redis client
func (f *RedisFeed) Close() error {
	return f.rdb.Close()
}
