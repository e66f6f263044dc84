package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard holds short-lived marker keys: OTP resend cooldowns and request
// idempotency keys.
type Guard interface {
	// Acquire sets key for ttl and reports false if it was already held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
	// Remaining returns the time left on key, or 0 when it is not held.
	Remaining(ctx context.Context, key string) (time.Duration, error)
}

type RedisGuard struct {
	client *redis.Client
}

func NewRedisGuard(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return g.client.SetNX(ctx, key, time.Now().Unix(), ttl).Result()
}

func (g *RedisGuard) Release(ctx context.Context, key string) error {
	return g.client.Del(ctx, key).Err()
}

func (g *RedisGuard) Remaining(ctx context.Context, key string) (time.Duration, error) {
	d, err := g.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

func OTPCooldownKey(accountID, purpose string) string {
	return "otp:cooldown:" + accountID + ":" + purpose
}

func IdempotencyKey(scope, accountID, key string) string {
	return "idem:" + scope + ":" + accountID + ":" + key
}
