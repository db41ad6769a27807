package replay

import (
	"context"
	"time"

	platformredis "veritas/internal/platform/redis"
	dErrors "veritas/pkg/domain-errors"
)

const keyPrefix = "replay:"

// RedisGuard backs the replay guard with Redis so multiple engine instances
// share one view. SET NX with expiry gives the atomic check-and-set and
// Redis handles TTL eviction.
type RedisGuard struct {
	client *platformredis.Client
}

// NewRedisGuard constructs a Redis-backed guard.
func NewRedisGuard(client *platformredis.Client) *RedisGuard {
	return &RedisGuard{client: client}
}

func (g *RedisGuard) Exists(ctx context.Context, fingerprint string) (bool, error) {
	n, err := g.client.Exists(ctx, keyPrefix+fingerprint).Result()
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "replay guard lookup")
	}
	return n > 0, nil
}

func (g *RedisGuard) Add(ctx context.Context, fingerprint string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, keyPrefix+fingerprint, "1", ttl).Result()
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "replay guard insert")
	}
	return ok, nil
}
