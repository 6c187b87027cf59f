package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore Store backed by Redis. All keys are prefixed with the
// configured namespace so multiple deployments can share one instance.
type RedisStore struct {
	client    *redis.Client
	namespace string
}

// NewRedisStore creates a namespaced Redis-backed store.
func NewRedisStore(client *redis.Client, namespace string) *RedisStore {
	return &RedisStore{client: client, namespace: namespace}
}

func (s *RedisStore) key(k string) string {
	if s.namespace == "" {
		return k
	}
	return s.namespace + ":" + k
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) SetEx(ctx context.Context, key string, ttl time.Duration, value string) error {
	return s.client.Set(ctx, s.key(key), value, ttl).Err()
}

func (s *RedisStore) AppendList(ctx context.Context, key, value string) error {
	return s.client.RPush(ctx, s.key(key), value).Err()
}

func (s *RedisStore) TailList(ctx context.Context, key string, count int) ([]string, error) {
	return s.client.LRange(ctx, s.key(key), int64(-count), -1).Result()
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, s.key(key), ttl).Err()
}

func (s *RedisStore) SAdd(ctx context.Context, key, member string) error {
	return s.client.SAdd(ctx, s.key(key), member).Err()
}

func (s *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	return s.client.SMembers(ctx, s.key(key)).Result()
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	namespaced := make([]string, len(keys))
	for i, k := range keys {
		namespaced[i] = s.key(k)
	}
	return s.client.Del(ctx, namespaced...).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
