package cache

import (
	"context"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
)

// RedisCache stores encoded documents in redis under namespace:key
type RedisCache struct {
	cache *cache.Cache[string]
}

func New(client *redis.Client, expiration time.Duration) *RedisCache {
	redisStore := redisstore.NewRedis(client, store.WithExpiration(expiration))

	return &RedisCache{
		cache: cache.New[string](redisStore),
	}
}

func cacheKey(namespace string, key string) string {
	return namespace + ":" + key
}

func (c *RedisCache) Get(ctx context.Context, namespace string, key string) ([]byte, error) {
	value, err := c.cache.Get(ctx, cacheKey(namespace, key))
	if err != nil {
		return nil, err
	}

	return []byte(value), nil
}

func (c *RedisCache) Set(ctx context.Context, namespace string, key string, value []byte) error {
	return c.cache.Set(ctx, cacheKey(namespace, key), string(value))
}

func (c *RedisCache) Delete(ctx context.Context, namespace string, key string) error {
	return c.cache.Delete(ctx, cacheKey(namespace, key))
}
