package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"iot-climate-monitor/internal/analytics/domain/statistic"
)

const keyPrefix = "climate:"

// StatsCache stores summaries in Redis with a TTL.
type StatsCache struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// NewClient builds a client and verifies connectivity.
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	if addr == "" {
		return nil, errors.New("redis: empty addr")
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// NewStatsCache constructs a cache over client.
func NewStatsCache(client goredis.UniversalClient, ttl time.Duration) (*StatsCache, error) {
	if client == nil {
		return nil, errors.New("redis: nil client")
	}
	if ttl <= 0 {
		return nil, errors.New("redis: ttl must be positive")
	}
	return &StatsCache{client: client, ttl: ttl}, nil
}

// Get returns the cached summary or nil on a miss.
func (c *StatsCache) Get(ctx context.Context, key string) (*statistic.Summary, error) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var summary statistic.Summary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Set stores summary under key for the configured TTL.
func (c *StatsCache) Set(ctx context.Context, key string, summary statistic.Summary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+key, raw, c.ttl).Err()
}
