package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces analysis results in Redis.
const KeyPrefix = "analysis:"

// RedisCache stores JSON values in Redis.
type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{Client: client}
}

// DialRedis connects to addr and verifies the connection with PING.
func DialRedis(ctx context.Context, addr string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection to %s failed: %w", addr, err)
	}
	return NewRedisCache(client), nil
}

func (r *RedisCache) Get(ctx context.Context, key string, dst any) error {
	raw, err := r.Client.Get(ctx, KeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("redis get: %w", err)
	}
	return json.Unmarshal(raw, dst)
}

func (r *RedisCache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, KeyPrefix+key, data, ttl).Err()
}

// Close releases the client.
func (r *RedisCache) Close() error {
	return r.Client.Close()
}
