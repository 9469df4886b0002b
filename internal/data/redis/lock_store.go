// Package redis implements the processing lock store on Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockValue is the sentinel stored under every claimed key
const LockValue = "true"

// LockStore is a key/value store with per-key expiry. A missing key means the
// transaction is not owned by any poller.
type LockStore struct {
	client redis.Cmdable
	logger *slog.Logger
}

// NewLockStore creates a lock store on top of a Redis client
func NewLockStore(logger *slog.Logger, client redis.Cmdable) *LockStore {
	return &LockStore{
		client: client,
		logger: logger,
	}
}

// Get returns the value stored under key. The boolean is false when the key is absent or expired.
func (s *LockStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		s.logger.Error("Failed to get lock", "key", key, "error", err)
		return "", false, fmt.Errorf("failed to get lock %s: %w", key, err)
	}
	return val, true, nil
}

// PutIfAbsent stores value under key with the given ttl only if the key does not exist.
// It reports whether this call created the key.
func (s *LockStore) PutIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		s.logger.Error("Failed to put lock", "key", key, "ttl", ttl, "error", err)
		return false, fmt.Errorf("failed to put lock %s: %w", key, err)
	}
	return ok, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *LockStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.logger.Error("Failed to delete lock", "key", key, "error", err)
		return fmt.Errorf("failed to delete lock %s: %w", key, err)
	}
	return nil
}
