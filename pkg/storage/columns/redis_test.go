// SPDX-FileCopyrightText: Copyright 2026 ApexID, Inc.
// SPDX-License-Identifier: Apache-2.0

package columns

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRedisStore spins up a miniredis server and a store backed by it.
func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStoreWithClient(client, "tokend-test"), mr
}

func TestNewRedisStore(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)

	store, err := NewRedisStore(context.Background(), RedisConfig{
		Address:   mr.Addr(),
		KeyPrefix: "tokend",
	})
	require.NoError(t, err)

	require.NoError(t, store.Ping(context.Background()))
	require.NoError(t, store.Close())
}

func TestNewRedisStore_InvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  RedisConfig
		wantErr string
	}{
		{
			name:    "missing address",
			config:  RedisConfig{KeyPrefix: "tokend"},
			wantErr: "redis address is required",
		},
		{
			name:    "missing key prefix",
			config:  RedisConfig{Address: "127.0.0.1:6379"},
			wantErr: "redis key prefix is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewRedisStore(context.Background(), tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewRedisStore_ConnectionFailure(t *testing.T) {
	t.Parallel()
	// Port 1 is never a Redis server; the dial fails immediately.
	_, err := NewRedisStore(context.Background(), RedisConfig{
		Address:   "127.0.0.1:1",
		KeyPrefix: "tokend",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestRedisStore_PutAndGet(t *testing.T) {
	t.Parallel()
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	rowKey := []byte{0xde, 0xad, 0xbe, 0xef}
	cols := map[string][]byte{
		"uuid": {0x01, 0x02},
		"type": []byte("access"),
	}
	require.NoError(t, store.PutColumns(ctx, rowKey, cols, time.Minute))

	got, err := store.GetColumns(ctx, rowKey, []string{"uuid", "type", "missing"})
	require.NoError(t, err)
	assert.Equal(t, cols, got)
}

func TestRedisStore_KeyLayout(t *testing.T) {
	t.Parallel()
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	rowKey := []byte{0xab, 0xcd}
	require.NoError(t, store.PutColumns(ctx, rowKey, map[string][]byte{"type": []byte("access")}, time.Minute))

	assert.True(t, mr.Exists("tokend-test:row:abcd:col:type"))
	assert.True(t, mr.Exists("tokend-test:row:abcd:cols"))

	members, err := mr.SMembers("tokend-test:row:abcd:cols")
	require.NoError(t, err)
	assert.Equal(t, []string{"type"}, members)
}

func TestRedisStore_GetMissingRow(t *testing.T) {
	t.Parallel()
	store, _ := newTestRedisStore(t)

	got, err := store.GetColumns(context.Background(), []byte("absent"), []string{"uuid", "type"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisStore_ExpirationViaServer(t *testing.T) {
	t.Parallel()
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	rowKey := []byte("row-1")
	require.NoError(t, store.PutColumns(ctx, rowKey, map[string][]byte{"uuid": {0x01}}, time.Minute))

	mr.FastForward(2 * time.Minute)

	got, err := store.GetColumns(ctx, rowKey, []string{"uuid"})
	require.NoError(t, err)
	assert.Empty(t, got, "the server should have expired the column key")
}

func TestRedisStore_RewriteExtendsOnlyWrittenColumns(t *testing.T) {
	t.Parallel()
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	rowKey := []byte("row-1")
	require.NoError(t, store.PutColumns(ctx, rowKey, map[string][]byte{
		"uuid":     {0x01},
		"accessed": {0x02},
	}, time.Minute))

	mr.FastForward(30 * time.Second)
	require.NoError(t, store.PutColumns(ctx, rowKey, map[string][]byte{"accessed": {0x03}}, time.Minute))

	// 70s in: the first batch (60s TTL) is gone, the rewrite (expires at
	// 90s) is still live.
	mr.FastForward(40 * time.Second)

	got, err := store.GetColumns(ctx, rowKey, []string{"uuid", "accessed"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"accessed": {0x03}}, got)
}

func TestRedisStore_DeleteRow(t *testing.T) {
	t.Parallel()
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	rowKey := []byte("row-1")
	require.NoError(t, store.PutColumns(ctx, rowKey, map[string][]byte{
		"uuid": {0x01},
		"type": []byte("access"),
	}, time.Minute))
	require.NoError(t, store.DeleteRow(ctx, rowKey))

	got, err := store.GetColumns(ctx, rowKey, []string{"uuid", "type"})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, mr.Keys(), "delete should leave no keys behind")
}

func TestRedisStore_DeleteMissingRow(t *testing.T) {
	t.Parallel()
	store, _ := newTestRedisStore(t)
	assert.NoError(t, store.DeleteRow(context.Background(), []byte("absent")))
}

func TestRedisStore_RowsAreIsolatedByKey(t *testing.T) {
	t.Parallel()
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	for i := range 3 {
		rowKey := []byte(fmt.Sprintf("row-%d", i))
		cols := map[string][]byte{"uuid": {byte(i)}}
		require.NoError(t, store.PutColumns(ctx, rowKey, cols, time.Minute))
	}

	require.NoError(t, store.DeleteRow(ctx, []byte("row-1")))

	for i, want := range map[int]int{0: 1, 1: 0, 2: 1} {
		rowKey := []byte(fmt.Sprintf("row-%d", i))
		got, err := store.GetColumns(ctx, rowKey, []string{"uuid"})
		require.NoError(t, err)
		assert.Len(t, got, want)
	}
}
