package api

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dedupeKeyPrefix = "idem"
	// pendingMarker holds a claimed key until the create finished.
	pendingMarker = "*"
)

// RedisDeduper stores idempotency keys in Redis so every API instance sees
// the same claims.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(key string) string {
	return dedupeKeyPrefix + ":" + key
}

func (r *RedisDeduper) Claim(ctx context.Context, key string) (bool, string, error) {
	ok, err := r.client.SetNX(ctx, r.key(key), pendingMarker, r.ttl).Result()
	if err != nil {
		return false, "", err
	}
	if ok {
		return true, "", nil
	}
	id, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between the two calls; treat as still in flight.
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	if id == pendingMarker {
		return false, "", nil
	}
	return false, id, nil
}

func (r *RedisDeduper) Complete(ctx context.Context, key, id string) error {
	return r.client.Set(ctx, r.key(key), id, r.ttl).Err()
}

func (r *RedisDeduper) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}
