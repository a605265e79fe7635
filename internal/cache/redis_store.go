package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore adapts *redis.Client to RemoteStore, the minimal surface
// Tiered needs — keeping the package's own interface rather than
// threading *redis.Client through call sites makes the in-memory test
// fake trivial and avoids tying this package to one client's error
// types (redis.Nil is mapped to a plain empty-string miss here).
type redisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) RemoteStore {
	return &redisStore{client: client}
}

func (r *redisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

func (r *redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisStore) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
