package redisx

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Cache is the small key/value surface handlers and consumers use.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

// Store adapts a go-redis client to Cache.
type Store struct{ R redis.Cmdable }

func (s Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.R.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.R.Set(ctx, key, value, ttl).Err()
}

func (s Store) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.R.SetNX(ctx, key, value, ttl).Result()
}

func (s Store) Del(ctx context.Context, keys ...string) error {
	return s.R.Del(ctx, keys...).Err()
}
