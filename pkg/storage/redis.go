package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"secevents/pkg/config"
)

// RedisStore writes each page to the key <prefix><name>
type RedisStore struct {
	client *redis.Client
	cfg    config.RedisConfig
}

// NewRedisStore connects to Redis and pings it
func NewRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	return NewRedisStoreWithClient(client, cfg), nil
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client *redis.Client, cfg config.RedisConfig) *RedisStore {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{client: client, cfg: cfg}
}

// Key returns the Redis key a page with the given name is written to
func (s *RedisStore) Key(name string) string {
	return s.cfg.KeyPrefix + name
}

// SavePage sets the page key to data, expiring it after the configured TTL
func (s *RedisStore) SavePage(ctx context.Context, name string, data []byte) error {
	if err := s.client.Set(ctx, s.Key(name), data, s.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisStore) Close() error {
	return s.client.Close()
}
