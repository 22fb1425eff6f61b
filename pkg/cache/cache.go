// Package cache is a small JSON-over-Redis cache. Every call is a no-op
// when Redis is not connected, so callers never branch on availability.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shashiranjanraj/ferremas/config"
	"github.com/shashiranjanraj/ferremas/pkg/metrics"
)

var RDB *redis.Client

// Connect initialises the Redis client and verifies it with a ping.
// On failure RDB stays nil and the cache is disabled.
func Connect(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr(),
		Password: config.RedisPassword(),
		DB:       0,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("cache: redis ping: %w", err)
	}
	RDB = client
	return nil
}

// Close releases the Redis connection pool.
func Close() error {
	if RDB == nil {
		return nil
	}
	err := RDB.Close()
	RDB = nil
	return err
}

// Get unmarshals the value under key into dest. It reports a hit.
func Get(ctx context.Context, key string, dest interface{}) bool {
	if RDB == nil {
		return false
	}

	val, err := RDB.Get(ctx, key).Bytes()
	if err != nil {
		metrics.CacheMiss()
		return false
	}
	if err := json.Unmarshal(val, dest); err != nil {
		metrics.CacheMiss()
		return false
	}

	metrics.CacheHit()
	return true
}

// Set stores value under key for ttl.
func Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if RDB == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return RDB.Set(ctx, key, data, ttl).Err()
}

// Del removes keys.
func Del(ctx context.Context, keys ...string) error {
	if RDB == nil || len(keys) == 0 {
		return nil
	}
	return RDB.Del(ctx, keys...).Err()
}

// DelPrefix removes every key starting with prefix, e.g. "catalog:".
func DelPrefix(ctx context.Context, prefix string) error {
	if RDB == nil {
		return nil
	}

	iter := RDB.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := RDB.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return Del(ctx, batch...)
}
