// Package redisstore implements kv.Store on top of go-redis/v9, for
// deployments that want the credential store and persisted-response
// record to survive a process restart.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/devon-ng/gatewaycore/internal/kv"
)

// Store namespaces every key under a prefix so the gateway can share a
// Redis instance with other tenants without key collisions.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// New wraps an already-constructed redis.UniversalClient (a *redis.Client
// or a miniredis-backed client in tests) in a kv.Store.
func New(client redis.UniversalClient, keyPrefix string) *Store {
	if keyPrefix == "" {
		keyPrefix = "gatewaycore"
	}
	return &Store{client: client, prefix: keyPrefix}
}

func (s *Store) makeKey(key string) string {
	return fmt.Sprintf("%s:%s", s.prefix, key)
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, s.makeKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", kv.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return val, nil
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	if err := s.client.Set(ctx, s.makeKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.makeKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.makeKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists failed: %w", err)
	}
	return n > 0, nil
}
