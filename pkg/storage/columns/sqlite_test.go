// SPDX-FileCopyrightText: Copyright 2026 ApexID, Inc.
// SPDX-License-Identifier: Apache-2.0

package columns

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestSQLiteStore creates a store backed by an isolated in-memory
// database named after the test.
func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	store, err := NewSQLiteStore(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewSQLiteStore_AppliesMigrations(t *testing.T) {
	t.Parallel()
	store := newTestSQLiteStore(t)

	var count int
	err := store.db.QueryRow(`SELECT COUNT(*) FROM token_columns`).Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSQLiteStore_PutAndGet(t *testing.T) {
	t.Parallel()
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	rowKey := []byte{0x01, 0x02}
	cols := map[string][]byte{
		"uuid": {0xaa, 0xbb},
		"type": []byte("access"),
	}
	require.NoError(t, store.PutColumns(ctx, rowKey, cols, time.Minute))

	got, err := store.GetColumns(ctx, rowKey, []string{"uuid", "type", "missing"})
	require.NoError(t, err)
	assert.Equal(t, cols, got)
}

func TestSQLiteStore_OverwriteColumn(t *testing.T) {
	t.Parallel()
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	rowKey := []byte("row-1")
	require.NoError(t, store.PutColumns(ctx, rowKey, map[string][]byte{"type": []byte("access")}, time.Minute))
	require.NoError(t, store.PutColumns(ctx, rowKey, map[string][]byte{"type": []byte("offline")}, time.Minute))

	got, err := store.GetColumns(ctx, rowKey, []string{"type"})
	require.NoError(t, err)
	assert.Equal(t, []byte("offline"), got["type"])

	var count int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM token_columns`).Scan(&count))
	assert.Equal(t, 1, count, "the upsert must not duplicate the column")
}

func TestSQLiteStore_GetMissingRow(t *testing.T) {
	t.Parallel()
	store := newTestSQLiteStore(t)

	got, err := store.GetColumns(context.Background(), []byte("absent"), []string{"uuid"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteStore_ExpiredColumnsAreHidden(t *testing.T) {
	t.Parallel()
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	rowKey := []byte("row-1")
	require.NoError(t, store.PutColumns(ctx, rowKey, map[string][]byte{"uuid": {0x01}}, 30*time.Millisecond))

	time.Sleep(60 * time.Millisecond)

	got, err := store.GetColumns(ctx, rowKey, []string{"uuid"})
	require.NoError(t, err)
	assert.Empty(t, got, "reads filter expired columns even before the sweep runs")
}

func TestSQLiteStore_ZeroTTLNeverExpires(t *testing.T) {
	t.Parallel()
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	rowKey := []byte("row-1")
	require.NoError(t, store.PutColumns(ctx, rowKey, map[string][]byte{"state": []byte("{}")}, 0))

	time.Sleep(30 * time.Millisecond)

	got, err := store.GetColumns(ctx, rowKey, []string{"state"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSQLiteStore_SweepReclaimsExpiredColumns(t *testing.T) {
	t.Parallel()
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutColumns(ctx, []byte("row-1"), map[string][]byte{"uuid": {0x01}}, 30*time.Millisecond))
	require.NoError(t, store.PutColumns(ctx, []byte("row-2"), map[string][]byte{"uuid": {0x02}}, time.Hour))

	time.Sleep(60 * time.Millisecond)
	require.NoError(t, store.sweepExpired(ctx))

	var count int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM token_columns`).Scan(&count))
	assert.Equal(t, 1, count, "only the live column should survive the sweep")
}

func TestSQLiteStore_DeleteRow(t *testing.T) {
	t.Parallel()
	store := newTestSQLiteStore(t)
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
}

func TestSQLiteStore_DeleteMissingRow(t *testing.T) {
	t.Parallel()
	store := newTestSQLiteStore(t)
	assert.NoError(t, store.DeleteRow(context.Background(), []byte("absent")))
}
