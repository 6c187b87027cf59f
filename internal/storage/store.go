// Package storage abstracts the TTL key-value operations the chat core
// needs (history appends, short-lived answer cache, log trails). The Redis
// implementation is the production backend; the memory implementation
// serves tests and the degraded no-Redis mode.
package storage

import (
	"context"
	"time"
)

// Store the narrow persistence surface consumed by the services. Every
// write carries or refreshes an explicit TTL; nothing is retained
// indefinitely.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetEx(ctx context.Context, key string, ttl time.Duration, value string) error
	AppendList(ctx context.Context, key, value string) error
	TailList(ctx context.Context, key string, count int) ([]string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	SAdd(ctx context.Context, key, member string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	Del(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}
