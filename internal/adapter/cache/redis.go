// Package cache provides the ephemeral session cache backed by Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"joby/internal/domain"
)

// RedisCache implements domain.SessionCache on a go-redis client.
type RedisCache struct {
	client *goredis.Client
	logger *slog.Logger
}

// NewRedisCache parses the Redis URL, connects, and pings once so a dead
// cache fails fast at startup: the orchestrator cannot run without it.
func NewRedisCache(ctx context.Context, redisURL string, logger *slog.Logger) (*RedisCache, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, domain.NewDomainError("RedisCache.New", domain.ErrCacheUnavailable, err.Error())
	}

	return &RedisCache{client: client, logger: logger}, nil
}

// newWithClient injects a client for testing.
func newWithClient(client *goredis.Client, logger *slog.Logger) *RedisCache {
	return &RedisCache{client: client, logger: logger}
}

// Get implements domain.SessionCache. A missing key is not an error.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, domain.NewDomainError("RedisCache.Get", domain.ErrCacheUnavailable, err.Error())
	}
	return val, true, nil
}

// Set implements domain.SessionCache.
func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return domain.NewDomainError("RedisCache.Set", domain.ErrCacheUnavailable, err.Error())
	}
	return nil
}

// Del implements domain.SessionCache.
func (c *RedisCache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return domain.NewDomainError("RedisCache.Del", domain.ErrCacheUnavailable, err.Error())
	}
	return nil
}

// Close shuts down the client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

var _ domain.SessionCache = (*RedisCache)(nil)
