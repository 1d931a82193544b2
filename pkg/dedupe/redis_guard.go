package dedupe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces guard keys in a shared Redis instance.
const keyPrefix = "dedupe:"

// RedisGuard implements Guard with Redis SET NX, giving all worker
// instances a shared dedupe window.
type RedisGuard struct {
	client redis.UniversalClient
}

// NewRedisGuard creates a guard over the given Redis client.
func NewRedisGuard(client redis.UniversalClient) (*RedisGuard, error) {
	if client == nil {
		return nil, errors.New("dedupe: redis client cannot be nil")
	}
	return &RedisGuard{client: client}, nil
}

// Once atomically claims the key for the TTL window.
// Returns true if this caller claimed it first.
func (g *RedisGuard) Once(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	claimed, err := g.client.SetNX(ctx, keyPrefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe: failed to claim key %q: %w", key, err)
	}
	return claimed, nil
}
