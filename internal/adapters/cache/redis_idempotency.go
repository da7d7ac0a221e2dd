package cache

import (
	"context"
	"time"

	redisclient "github.com/garrettjsmith/localpresence/internal/infrastructure/clients/redis"
	apperrors "github.com/garrettjsmith/localpresence/pkg/errors"
)

const idempotencyPrefix = "idem:"

// RedisIdempotencyGuard claims request idempotency keys with SET NX so
// retried cron deliveries run the underlying job at most once per window.
type RedisIdempotencyGuard struct {
	client *redisclient.Client
}

// NewRedisIdempotencyGuard creates a new Redis-backed idempotency guard
func NewRedisIdempotencyGuard(client *redisclient.Client) *RedisIdempotencyGuard {
	return &RedisIdempotencyGuard{client: client}
}

// Claim reports whether this caller won the key for the given window.
func (g *RedisIdempotencyGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	claimed, err := g.client.Client().SetNX(ctx, idempotencyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, apperrors.NewExternalError("failed to claim idempotency key", err)
	}
	return claimed, nil
}
