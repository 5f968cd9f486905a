package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a shared Redis instance. Every operation is
// bounded by opTimeout so a slow Redis can never hang the request path.
type RedisStore struct {
	client    *redis.Client
	opTimeout time.Duration
}

// NewRedisStore connects to the Redis URL (redis://... or rediss://...) and
// verifies the connection before returning.
func NewRedisStore(url string, opTimeout time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStore{client: client, opTimeout: opTimeout}, nil
}

// NewRedisStoreFromClient wraps an existing client; used by tests.
func NewRedisStoreFromClient(client *redis.Client, opTimeout time.Duration) *RedisStore {
	return &RedisStore{client: client, opTimeout: opTimeout}
}

func (s *RedisStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// IncrWindow increments the key and arms the window TTL only when the key
// has no expiry yet (EXPIRE NX), which gives fixed-window reset semantics.
func (s *RedisStore) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("incr %q: %w", key, err)
	}
	return incr.Val(), nil
}

func (s *RedisStore) GetCount(ctx context.Context, key string) (int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	n, err := s.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("get count %q: %w", key, err)
	}
	return n, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get %q: %w", key, err)
	}
	return val, nil
}

func (s *RedisStore) SetTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("exists %q: %w", key, err)
	}
	return n > 0, nil
}

func (s *RedisStore) Del(ctx context.Context, key string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
