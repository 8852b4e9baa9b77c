package cache

import (
	"context"
	"time"
)

// RedisStore persists collections in Redis.
type RedisStore struct {
	redis *RedisClient
	ttl   time.Duration
}

// NewRedisStore creates a Store on top of an existing client. A zero ttl keeps
// collections until they are explicitly cleared.
func NewRedisStore(redis *RedisClient, ttl time.Duration) *RedisStore {
	return &RedisStore{redis: redis, ttl: ttl}
}

func (s *RedisStore) key(key string) string {
	return "collection:" + key
}

// Get retrieves the stored collection bytes.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.redis.Get(ctx, s.key(key))
}

// Set stores the collection bytes.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return s.redis.Set(ctx, s.key(key), value, s.ttl)
}

// Delete removes the collection.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.redis.Delete(ctx, s.key(key))
}
