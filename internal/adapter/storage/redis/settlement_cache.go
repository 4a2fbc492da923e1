package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// SettlementCache implements ports.SettlementCache using Redis. It is a
// best-effort fast path for replayed webhook deliveries; the transaction row
// in PostgreSQL stays authoritative.
type SettlementCache struct {
	client *goredis.Client
	prefix string
}

// NewSettlementCache creates a new Redis-backed settlement cache.
func NewSettlementCache(client *goredis.Client) *SettlementCache {
	return &SettlementCache{
		client: client,
		prefix: "settled:",
	}
}

// IsSettled reports whether the reference was settled recently.
func (c *SettlementCache) IsSettled(ctx context.Context, reference string) (bool, error) {
	n, err := c.client.Exists(ctx, c.prefix+reference).Result()
	if err != nil {
		return false, fmt.Errorf("redis settlement check: %w", err)
	}
	return n > 0, nil
}

// MarkSettled records a settled reference with TTL.
func (c *SettlementCache) MarkSettled(ctx context.Context, reference string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+reference, 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis settlement mark: %w", err)
	}
	return nil
}
