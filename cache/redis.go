package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/syssam/quill"
)

// scanCount is the COUNT hint of the SCAN calls issued by DeletePrefix.
const scanCount = 100

// Redis stores entries in Redis under a namespace.
type Redis struct {
	client    redis.UniversalClient
	namespace string
}

var _ quill.Cache = (*Redis)(nil)

// RedisOption configures a Redis cache.
type RedisOption func(*Redis)

// WithNamespace prefixes every key with ns and ':'. The default is
// "quill".
func WithNamespace(ns string) RedisOption {
	return func(r *Redis) {
		r.namespace = ns
	}
}

// NewRedis returns a cache on client. The client is not closed by the
// cache.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{client: client, namespace: "quill"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Key returns the Redis key of a cache key.
func (r *Redis) Key(key string) string {
	if r.namespace == "" {
		return key
	}
	return r.namespace + ":" + key
}

// Get implements quill.Cache.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, r.Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: redis get: %w", err)
	}
	return b, nil
}

// Set implements quill.Cache.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.Key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	return nil
}

// Delete implements quill.Cache.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.Key(key)).Err(); err != nil {
		return fmt.Errorf("cache: redis delete: %w", err)
	}
	return nil
}

// DeletePrefix implements quill.Cache. Keys are found with SCAN so the
// server is never blocked.
func (r *Redis) DeletePrefix(ctx context.Context, prefix string) error {
	return r.deleteMatch(ctx, escapeGlob(r.Key(prefix))+"*")
}

// Clear implements quill.Cache. Only keys of the namespace are removed;
// without a namespace the whole database is flushed.
func (r *Redis) Clear(ctx context.Context) error {
	if r.namespace == "" {
		if err := r.client.FlushDB(ctx).Err(); err != nil {
			return fmt.Errorf("cache: redis flush: %w", err)
		}
		return nil
	}
	return r.deleteMatch(ctx, escapeGlob(r.namespace)+":*")
}

func (r *Redis) deleteMatch(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return fmt.Errorf("cache: redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("cache: redis delete: %w", err)
			}
		}
		if cursor = next; cursor == 0 {
			return nil
		}
	}
}

// escapeGlob escapes the characters SCAN MATCH treats specially.
func escapeGlob(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\', '^':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
