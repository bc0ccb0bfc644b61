package memory

import (
	"context"
	"sync"
	"time"

	"iot-climate-monitor/internal/analytics/domain/statistic"
)

type cacheEntry struct {
	summary   statistic.Summary
	expiresAt time.Time
}

// StatsCache is an in-process TTL cache used when Redis is not configured.
type StatsCache struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	data map[string]cacheEntry
}

// NewStatsCache constructs a cache. A non-positive ttl disables storage.
func NewStatsCache(ttl time.Duration) *StatsCache {
	return &StatsCache{ttl: ttl, now: time.Now, data: make(map[string]cacheEntry)}
}

// Get returns a live entry or nil.
func (c *StatsCache) Get(_ context.Context, key string) (*statistic.Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.data[key]
	if !ok {
		return nil, nil
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.data, key)
		return nil, nil
	}
	summary := entry.summary
	return &summary, nil
}

// Set stores a summary until the TTL elapses.
func (c *StatsCache) Set(_ context.Context, key string, summary statistic.Summary) error {
	if c.ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, entry := range c.data {
		if !now.Before(entry.expiresAt) {
			delete(c.data, k)
		}
	}
	c.data[key] = cacheEntry{summary: summary, expiresAt: now.Add(c.ttl)}
	return nil
}
