package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProjectionCacheExpiry(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewProjectionCache(30 * time.Second)
	cache.now = func() time.Time { return clock }

	cache.Set("ledger:a", 10)
	v, ok := cache.Get("ledger:a")
	assert.True(t, ok)
	assert.Equal(t, 10, v)

	clock = clock.Add(31 * time.Second)
	_, ok = cache.Get("ledger:a")
	assert.False(t, ok)

	last, ok := cache.LastGood("ledger:a")
	assert.True(t, ok)
	assert.Equal(t, 10, last)
}

func TestProjectionCacheInvalidateKeepsLastGood(t *testing.T) {
	cache := NewProjectionCache(time.Minute)
	cache.Set("stats:all", "report")
	cache.Set("stats:center", "center report")
	cache.Set("ledger:a", 1)

	cache.InvalidatePrefix("stats:")

	_, ok := cache.Get("stats:all")
	assert.False(t, ok)
	_, ok = cache.Get("stats:center")
	assert.False(t, ok)
	_, ok = cache.Get("ledger:a")
	assert.True(t, ok)

	last, ok := cache.LastGood("stats:all")
	assert.True(t, ok)
	assert.Equal(t, "report", last)

	assert.ElementsMatch(t, []string{"stats:all", "stats:center"}, cache.Keys("stats:"))

	cache.Invalidate("ledger:a")
	_, ok = cache.Get("ledger:a")
	assert.False(t, ok)

	cache.Clear()
	_, ok = cache.LastGood("ledger:a")
	assert.False(t, ok)
}

func TestProjectionCacheDefaultTTL(t *testing.T) {
	cache := NewProjectionCache(0)
	assert.Equal(t, DefaultCacheTTL, cache.ttl)
}
