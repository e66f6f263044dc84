package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yashrajoria/storefront-api/models"
	"go.uber.org/zap"
)

const (
	ProductListCachePrefix = "products:v:"
	ProductVersionKey      = "products:version"
)

type ProductPage = models.ListResponse[models.Product]

type ProductCache interface {
	// GetList returns the cached page and the list version it was looked up
	// under. A miss still reports the version, which the caller passes to
	// SetListAsync so a page read before an Invalidate is filed under the
	// old version. Version 0 means the version could not be read.
	GetList(ctx context.Context, filter models.ProductFilter) (*ProductPage, int64, bool)
	SetListAsync(version int64, filter models.ProductFilter, page *ProductPage)
	Invalidate(ctx context.Context) error
}

// RedisProductCache caches list pages under a version number. Bumping the
// version orphans every cached page at once.
type RedisProductCache struct {
	client *redis.Client
	log    *zap.Logger
	ttl    time.Duration
}

func NewRedisProductCache(client *redis.Client, log *zap.Logger) *RedisProductCache {
	return &RedisProductCache{client: client, log: log, ttl: 5 * time.Minute}
}

func (pc *RedisProductCache) GetList(ctx context.Context, filter models.ProductFilter) (*ProductPage, int64, bool) {
	version, err := pc.version(ctx)
	if err != nil {
		pc.log.Warn("product list version read failed", zap.Error(err))
		return nil, 0, false
	}

	data, err := pc.client.Get(ctx, listKey(version, filter)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			pc.log.Warn("product list cache read failed", zap.Error(err))
		}
		return nil, version, false
	}

	var page ProductPage
	if err := json.Unmarshal(data, &page); err != nil {
		pc.log.Warn("failed to unmarshal cached product list", zap.Error(err))
		return nil, version, false
	}
	return &page, version, true
}

func (pc *RedisProductCache) SetListAsync(version int64, filter models.ProductFilter, page *ProductPage) {
	if version == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		pc.setList(ctx, version, filter, page)
	}()
}

func (pc *RedisProductCache) setList(ctx context.Context, version int64, filter models.ProductFilter, page *ProductPage) {
	data, err := json.Marshal(page)
	if err != nil {
		pc.log.Warn("failed to marshal product list for cache", zap.Error(err))
		return
	}
	if err := pc.client.Set(ctx, listKey(version, filter), data, jittered(pc.ttl, time.Minute)).Err(); err != nil {
		pc.log.Warn("failed to cache product list", zap.Error(err))
	}
}

// Invalidate bumps the list version.
func (pc *RedisProductCache) Invalidate(ctx context.Context) error {
	v, err := pc.client.Incr(ctx, ProductVersionKey).Result()
	if err != nil {
		return fmt.Errorf("failed to invalidate product cache: %w", err)
	}
	pc.log.Debug("product cache invalidated", zap.Int64("version", v))
	return nil
}

func (pc *RedisProductCache) version(ctx context.Context) (int64, error) {
	v, err := pc.client.Get(ctx, ProductVersionKey).Int64()
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, redis.Nil) {
		return 0, err
	}
	// SETNX so a concurrent Invalidate is not overwritten.
	if err := pc.client.SetNX(ctx, ProductVersionKey, 1, 0).Err(); err != nil {
		return 0, err
	}
	return pc.client.Get(ctx, ProductVersionKey).Int64()
}

func listKey(version int64, filter models.ProductFilter) string {
	raw, _ := json.Marshal(filter)
	sum := sha1.Sum(raw)
	return fmt.Sprintf("%s%d:%s", ProductListCachePrefix, version, hex.EncodeToString(sum[:]))
}
