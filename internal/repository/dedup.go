package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDeduper marks change events as seen so an at-least-once redelivery
// never sends a second notification. Keys expire after the TTL; by then the
// feed has long stopped redelivering the event.
type RedisDeduper struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisDeduper(rdb *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{rdb: rdb, ttl: ttl}
}

// Seen atomically marks key and reports whether it was already marked.
func (d *RedisDeduper) Seen(ctx context.Context, key string) (bool, error) {
	set, err := d.rdb.SetNX(ctx, "notify:seen:"+key, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup setnx: %w", err)
	}
	return !set, nil
}

// Forget releases key so a redelivery can retry a failed dispatch.
func (d *RedisDeduper) Forget(ctx context.Context, key string) error {
	if err := d.rdb.Del(ctx, "notify:seen:"+key).Err(); err != nil {
		return fmt.Errorf("dedup del: %w", err)
	}
	return nil
}
