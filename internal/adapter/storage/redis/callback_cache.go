package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fairplay-wallet/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// CallbackCache implements ports.CallbackCache. It remembers the terminal
// status of settled deposit orders so duplicate callbacks skip the database.
type CallbackCache struct {
	client goredis.Cmdable
	prefix string
}

// NewCallbackCache creates a new Redis-backed callback cache.
func NewCallbackCache(client goredis.Cmdable) *CallbackCache {
	return &CallbackCache{
		client: client,
		prefix: "callback:",
	}
}

// Get returns the cached status, or "" if the order is not cached.
func (c *CallbackCache) Get(ctx context.Context, orderID string) (domain.EntryStatus, error) {
	val, err := c.client.Get(ctx, c.prefix+orderID).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis callback get: %w", err)
	}
	return domain.EntryStatus(val), nil
}

// Set caches a terminal status with TTL.
func (c *CallbackCache) Set(ctx context.Context, orderID string, status domain.EntryStatus, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+orderID, string(status), ttl).Err(); err != nil {
		return fmt.Errorf("redis callback set: %w", err)
	}
	return nil
}
