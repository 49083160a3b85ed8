// SPDX-FileCopyrightText: Copyright 2026 ApexID, Inc.
// SPDX-License-Identifier: Apache-2.0

package tokens

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/apexid/tokend/pkg/storage/columns"
	"github.com/apexid/tokend/pkg/storage/columns/mocks"
)

// newTestRecordStore returns an adapter over a fresh in-memory column
// store, plus the store itself for direct column inspection.
func newTestRecordStore(t *testing.T) (recordStore, *columns.MemoryStore) {
	t.Helper()

	store := columns.NewMemoryStore()
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return recordStore{store: store, ttl: time.Hour}, store
}

func TestRecordStore_PutAndGet(t *testing.T) {
	t.Parallel()

	r, _ := newTestRecordStore(t)
	id := uuidAtMillis(t, 1_000)
	principal := &Principal{
		Type:          PrincipalAdminUser,
		EntityID:      uuid.MustParse("11111111-2222-3333-4444-555555555555"),
		ApplicationID: uuid.MustParse("66666666-7777-8888-9999-aaaaaaaaaaaa"),
	}

	require.NoError(t, r.put(context.Background(), TokenInfo{
		UUID:      id,
		Type:      "access",
		Created:   1_000,
		Accessed:  1_000,
		Principal: principal,
		// Numeric state values round-trip through JSON as float64.
		State: map[string]any{"client": "web", "attempt": float64(3)},
	}))

	got, err := r.get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, TokenInfo{
		UUID:      id,
		Type:      "access",
		Created:   1_000,
		Accessed:  1_000,
		Inactive:  0,
		Principal: principal,
		State:     map[string]any{"client": "web", "attempt": float64(3)},
	}, got)
}

func TestRecordStore_NoPrincipalOmitsColumns(t *testing.T) {
	t.Parallel()

	r, store := newTestRecordStore(t)
	id := uuidAtMillis(t, 1_000)

	require.NoError(t, r.put(context.Background(), TokenInfo{
		UUID:     id,
		Type:     "access",
		Created:  1_000,
		Accessed: 1_000,
	}))

	cols, err := store.GetColumns(context.Background(), id[:], tokenColumns)
	require.NoError(t, err)
	assert.NotContains(t, cols, colPrincipal)
	assert.NotContains(t, cols, colEntity)
	assert.NotContains(t, cols, colApplication)

	got, err := r.get(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, got.Principal)
	assert.Equal(t, map[string]any{}, got.State)
}

func TestRecordStore_UnknownPrincipalTypeReadsAsAbsent(t *testing.T) {
	t.Parallel()

	r, store := newTestRecordStore(t)
	id := uuidAtMillis(t, 1_000)

	require.NoError(t, r.put(context.Background(), TokenInfo{
		UUID:     id,
		Type:     "access",
		Created:  1_000,
		Accessed: 1_000,
	}))
	require.NoError(t, store.PutColumns(context.Background(), id[:], map[string][]byte{
		colPrincipal:   []byte("robot"),
		colEntity:      id[:],
		colApplication: id[:],
	}, time.Hour))

	got, err := r.get(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, got.Principal)
}

func TestRecordStore_MissingRecord(t *testing.T) {
	t.Parallel()

	r, _ := newTestRecordStore(t)

	_, err := r.get(context.Background(), uuidAtMillis(t, 1_000))
	require.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorContains(t, err, "token not found")
}

func TestRecordStore_PartialRecordIsNotFound(t *testing.T) {
	t.Parallel()

	r, store := newTestRecordStore(t)
	id := uuidAtMillis(t, 1_000)

	// A row missing any required column reads as absent, the state a
	// record passes through while its columns age out one by one.
	require.NoError(t, store.PutColumns(context.Background(), id[:], map[string][]byte{
		colUUID: id[:],
		colType: []byte("access"),
	}, time.Hour))

	_, err := r.get(context.Background(), id)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRecordStore_NullStateReadsAsEmptyMap(t *testing.T) {
	t.Parallel()

	r, store := newTestRecordStore(t)
	id := uuidAtMillis(t, 1_000)

	require.NoError(t, r.put(context.Background(), TokenInfo{
		UUID:     id,
		Type:     "access",
		Created:  1_000,
		Accessed: 1_000,
	}))
	require.NoError(t, store.PutColumns(context.Background(), id[:], map[string][]byte{
		colState: []byte("null"),
	}, time.Hour))

	got, err := r.get(context.Background(), id)
	require.NoError(t, err)
	assert.NotNil(t, got.State)
	assert.Empty(t, got.State)
}

func TestRecordStore_TouchGapRule(t *testing.T) {
	t.Parallel()

	r, _ := newTestRecordStore(t)
	id := uuidAtMillis(t, 0)

	require.NoError(t, r.put(context.Background(), TokenInfo{UUID: id, Type: "access"}))

	// First validation after 10 s: the gap becomes the new maximum.
	inactive, err := r.touch(context.Background(), id, 10_000, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), inactive)

	// A faster follow-up does not shrink it.
	inactive, err = r.touch(context.Background(), id, 15_000, 10_000, 10_000)
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), inactive)

	got, err := r.get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(15_000), got.Accessed)
	assert.Equal(t, int64(10_000), got.Inactive)
}

func TestRecordStore_Delete(t *testing.T) {
	t.Parallel()

	r, _ := newTestRecordStore(t)
	id := uuidAtMillis(t, 1_000)

	require.NoError(t, r.put(context.Background(), TokenInfo{UUID: id, Type: "access"}))
	require.NoError(t, r.delete(context.Background(), id))

	_, err := r.get(context.Background(), id)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRecordStore_StoreFailuresWrapErrStore(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	r := recordStore{store: store, ttl: time.Hour}
	id := uuidAtMillis(t, 1_000)
	boom := errors.New("connection reset")

	store.EXPECT().PutColumns(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(boom)
	require.ErrorIs(t, r.put(context.Background(), TokenInfo{UUID: id}), ErrStore)

	store.EXPECT().GetColumns(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, boom)
	_, err := r.get(context.Background(), id)
	require.ErrorIs(t, err, ErrStore)

	store.EXPECT().PutColumns(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(boom)
	_, err = r.touch(context.Background(), id, 1_000, 0, 0)
	require.ErrorIs(t, err, ErrStore)

	store.EXPECT().DeleteRow(gomock.Any(), gomock.Any()).Return(boom)
	require.ErrorIs(t, r.delete(context.Background(), id), ErrStore)
}

func TestInt64Columns(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(-5), decodeInt64(encodeInt64(-5)))
	assert.Equal(t, int64(1735689600000), decodeInt64(encodeInt64(1735689600000)))
	assert.Zero(t, decodeInt64(nil))
	assert.Zero(t, decodeInt64([]byte{1, 2, 3}))
}
