// SPDX-FileCopyrightText: Copyright 2026 ApexID, Inc.
// SPDX-License-Identifier: Apache-2.0

package columns

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/apexid/tokend/pkg/logger"
)

// Default timeouts for Redis operations.
const (
	// DefaultDialTimeout is the default timeout for establishing connections
	DefaultDialTimeout = 5 * time.Second
	// DefaultReadTimeout is the default timeout for read operations
	DefaultReadTimeout = 3 * time.Second
	// DefaultWriteTimeout is the default timeout for write operations
	DefaultWriteTimeout = 3 * time.Second
)

// RedisConfig holds the connection settings for a Redis-backed store.
type RedisConfig struct {
	// Address is the host:port of the Redis server.
	Address string
	// Password authenticates the connection; empty disables AUTH.
	Password string
	// DB selects the Redis logical database.
	DB int
	// KeyPrefix namespaces every key written by the store.
	KeyPrefix string
}

func (c *RedisConfig) validate() error {
	if c.Address == "" {
		return fmt.Errorf("redis address is required")
	}
	if c.KeyPrefix == "" {
		return fmt.Errorf("redis key prefix is required")
	}
	return nil
}

// RedisStore implements the Store interface on Redis. Every column is
// stored as its own string key so that Redis server-side expiration
// provides the per-column TTL semantics. A per-row set tracks the column
// names ever written, so DeleteRow can remove the whole row without a
// SCAN.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStore creates a Redis-backed store and verifies connectivity
// with a ping before returning.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid redis config: %w", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  DefaultDialTimeout,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}

	logger.Infow("connected to redis", "address", cfg.Address, "db", cfg.DB)

	return &RedisStore{client: client, keyPrefix: cfg.KeyPrefix}, nil
}

// NewRedisStoreWithClient creates a RedisStore using an existing Redis
// client. This is useful for testing with miniredis or for sharing a
// client across components.
func NewRedisStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

// columnKey returns the Redis key holding one column value.
func (s *RedisStore) columnKey(rowKey []byte, name string) string {
	return fmt.Sprintf("%s:row:%x:col:%s", s.keyPrefix, rowKey, name)
}

// indexKey returns the Redis key of the set tracking a row's column names.
func (s *RedisStore) indexKey(rowKey []byte) string {
	return fmt.Sprintf("%s:row:%x:cols", s.keyPrefix, rowKey)
}

// PutColumns writes every column as its own key inside one MULTI/EXEC
// transaction and refreshes the row index alongside.
func (s *RedisStore) PutColumns(ctx context.Context, rowKey []byte, cols map[string][]byte, ttl time.Duration) error {
	if len(cols) == 0 {
		return nil
	}

	expiration := ttl
	if expiration < 0 {
		expiration = 0
	}

	names := make([]any, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for name, value := range cols {
			pipe.Set(ctx, s.columnKey(rowKey, name), value, expiration)
		}
		pipe.SAdd(ctx, s.indexKey(rowKey), names...)
		if expiration > 0 {
			// Every batch uses the same persistence TTL, so refreshing the
			// index keeps it alive at least as long as the newest column.
			pipe.Expire(ctx, s.indexKey(rowKey), expiration)
		} else {
			pipe.Persist(ctx, s.indexKey(rowKey))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write columns: %w", err)
	}

	return nil
}

// GetColumns fetches the named columns with a single MGET. Keys that
// Redis already expired come back nil and are left out of the result.
func (s *RedisStore) GetColumns(ctx context.Context, rowKey []byte, names []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(names))
	if len(names) == 0 {
		return result, nil
	}

	keys := make([]string, 0, len(names))
	for _, name := range names {
		keys = append(keys, s.columnKey(rowKey, name))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			// MGET reports missing keys as untyped nils.
			continue
		}
		result[names[i]] = []byte(str)
	}

	return result, nil
}

// DeleteRow removes all column keys listed in the row index, then the
// index itself.
func (s *RedisStore) DeleteRow(ctx context.Context, rowKey []byte) error {
	names, err := s.client.SMembers(ctx, s.indexKey(rowKey)).Result()
	if err != nil {
		return fmt.Errorf("failed to read row index: %w", err)
	}

	keys := make([]string, 0, len(names)+1)
	for _, name := range names {
		keys = append(keys, s.columnKey(rowKey, name))
	}
	keys = append(keys, s.indexKey(rowKey))

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete row: %w", err)
	}

	return nil
}

// Ping verifies the Redis connection is alive.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Compile-time interface compliance check
var _ Store = (*RedisStore)(nil)
