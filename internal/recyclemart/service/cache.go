package service

import (
	"strings"
	"sync"
	"time"
)

// DefaultCacheTTL matches the dashboard polling interval
const DefaultCacheTTL = 30 * time.Second

// ProjectionCache keeps recently computed projections for a TTL. Invalidated or
// expired entries stop being served as fresh but stay available as the last
// good value for callers that hit a backend failure.
type ProjectionCache struct {
	data map[string]*cacheEntry
	ttl  time.Duration
	mu   sync.RWMutex
	now  func() time.Time
}

// cacheEntry represents a cache entry with expiration
type cacheEntry struct {
	value      any
	expiration time.Time
}

// NewProjectionCache creates a new projection cache
func NewProjectionCache(ttl time.Duration) *ProjectionCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ProjectionCache{
		data: make(map[string]*cacheEntry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Get retrieves a fresh value from the cache
func (c *ProjectionCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[key]
	if !ok || !c.now().Before(entry.expiration) {
		return nil, false
	}

	return entry.value, true
}

// LastGood retrieves the most recent value regardless of freshness
func (c *ProjectionCache) LastGood(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[key]
	if !ok {
		return nil, false
	}
	return entry.value, true
}

// Set stores a value in the cache
func (c *ProjectionCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = &cacheEntry{
		value:      value,
		expiration: c.now().Add(c.ttl),
	}
}

// Invalidate marks key as stale
func (c *ProjectionCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.data[key]; ok {
		entry.expiration = time.Time{}
	}
}

// Remove drops key along with its last good value
func (c *ProjectionCache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, key)
}

// InvalidatePrefix marks every key starting with prefix as stale
func (c *ProjectionCache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.data {
		if strings.HasPrefix(key, prefix) {
			entry.expiration = time.Time{}
		}
	}
}

// Keys returns all keys with the given prefix
func (c *ProjectionCache) Keys(prefix string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.data))
	for key := range c.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Clear removes all entries from the cache
func (c *ProjectionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = make(map[string]*cacheEntry)
}
