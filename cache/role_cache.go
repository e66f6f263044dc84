package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RoleCache interface {
	GetPermissions(ctx context.Context, role string) ([]string, error)
	SetPermissions(ctx context.Context, role string, perms []string) error
	Delete(ctx context.Context, role string) error
}

type RedisRoleCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRoleCache(client *redis.Client, ttl time.Duration) *RedisRoleCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisRoleCache{client: client, ttl: ttl}
}

func (c *RedisRoleCache) GetPermissions(ctx context.Context, role string) ([]string, error) {
	data, err := c.client.Get(ctx, roleKey(role)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	var perms []string
	if err := json.Unmarshal(data, &perms); err != nil {
		return nil, fmt.Errorf("unmarshal permissions failed: %w", err)
	}
	return perms, nil
}

func (c *RedisRoleCache) SetPermissions(ctx context.Context, role string, perms []string) error {
	data, err := json.Marshal(perms)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, roleKey(role), data, c.ttl).Err()
}

func (c *RedisRoleCache) Delete(ctx context.Context, role string) error {
	return c.client.Del(ctx, roleKey(role)).Err()
}

func roleKey(role string) string {
	return "role:perms:" + role
}
