package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/yashrajoria/storefront-api/models"
)

type CartCache interface {
	Get(ctx context.Context, accountID uuid.UUID) (*models.CartView, error)
	// Generation returns the account's cart generation. Read it before
	// loading the cart and pass it to Set.
	Generation(ctx context.Context, accountID uuid.UUID) (int64, error)
	// Set stores view only while the generation still equals gen, and
	// reports whether it did.
	Set(ctx context.Context, view *models.CartView, gen int64) (bool, error)
	// Invalidate bumps the generation and drops the cached view.
	Invalidate(ctx context.Context, accountID uuid.UUID) error
}

// setIfGeneration writes KEYS[2] only when KEYS[1] still holds ARGV[1].
var setIfGeneration = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then cur = '0' end
if cur ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

type RedisCartCache struct {
	client  *redis.Client
	baseTTL time.Duration
	genTTL  time.Duration
}

func NewRedisCartCache(client *redis.Client) *RedisCartCache {
	return &RedisCartCache{client: client, baseTTL: 10 * time.Minute, genTTL: 24 * time.Hour}
}

func (c *RedisCartCache) Get(ctx context.Context, accountID uuid.UUID) (*models.CartView, error) {
	data, err := c.client.Get(ctx, cartKey(accountID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var view models.CartView
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, fmt.Errorf("unmarshal cart view failed: %w", err)
	}
	return &view, nil
}

func (c *RedisCartCache) Generation(ctx context.Context, accountID uuid.UUID) (int64, error) {
	gen, err := c.client.Get(ctx, cartGenKey(accountID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation failed: %w", err)
	}
	return gen, nil
}

func (c *RedisCartCache) Set(ctx context.Context, view *models.CartView, gen int64) (bool, error) {
	data, err := json.Marshal(view)
	if err != nil {
		return false, fmt.Errorf("marshal cart view failed: %w", err)
	}
	ttl := jittered(c.baseTTL, 5*time.Minute)
	keys := []string{cartGenKey(view.AccountID), cartKey(view.AccountID)}
	stored, err := setIfGeneration.Run(ctx, c.client, keys, gen, data, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis set failed: %w", err)
	}
	return stored == 1, nil
}

func (c *RedisCartCache) Invalidate(ctx context.Context, accountID uuid.UUID) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, cartGenKey(accountID))
		pipe.Expire(ctx, cartGenKey(accountID), c.genTTL)
		pipe.Del(ctx, cartKey(accountID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate failed: %w", err)
	}
	return nil
}

func cartKey(accountID uuid.UUID) string {
	return "cart:view:" + accountID.String()
}

func cartGenKey(accountID uuid.UUID) string {
	return "cart:gen:" + accountID.String()
}
