// SPDX-FileCopyrightText: Copyright 2026 ApexID, Inc.
// SPDX-License-Identifier: Apache-2.0

package tokens

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/apexid/tokend/pkg/storage/columns"
)

// Column names of a token record.
const (
	colUUID        = "uuid"
	colType        = "type"
	colCreated     = "created"
	colAccessed    = "accessed"
	colInactive    = "inactive"
	colPrincipal   = "principal"
	colEntity      = "entity"
	colApplication = "application"
	colState       = "state"
)

// tokenColumns is the full column set read by get.
var tokenColumns = []string{
	colUUID, colType, colCreated, colAccessed, colInactive,
	colPrincipal, colEntity, colApplication, colState,
}

// requiredColumns must all be present for a record to count as found.
var requiredColumns = []string{colUUID, colType, colCreated, colAccessed, colInactive}

// recordStore translates between TokenInfo records and rows in the
// wide-column store. Rows are keyed by the 16-byte identifier; every
// column is written with the configured persistence TTL, so a record
// silently disappears once its last full write ages out.
type recordStore struct {
	store columns.Store
	ttl   time.Duration
}

// put writes the full record as a single batch.
func (r recordStore) put(ctx context.Context, info TokenInfo) error {
	state, err := json.Marshal(stateOrEmpty(info.State))
	if err != nil {
		return fmt.Errorf("encoding token state: %w", err)
	}

	cols := map[string][]byte{
		colUUID:     info.UUID[:],
		colType:     []byte(info.Type),
		colCreated:  encodeInt64(info.Created),
		colAccessed: encodeInt64(info.Accessed),
		colInactive: encodeInt64(info.Inactive),
		colState:    state,
	}
	if info.Principal != nil {
		cols[colPrincipal] = []byte(info.Principal.Type)
		cols[colEntity] = info.Principal.EntityID[:]
		cols[colApplication] = info.Principal.ApplicationID[:]
	}

	if err := r.store.PutColumns(ctx, info.UUID[:], cols, r.ttl); err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	return nil
}

// get loads a record by identifier. Any missing required column means
// the record does not exist, typically because its TTL elapsed.
func (r recordStore) get(ctx context.Context, id uuid.UUID) (TokenInfo, error) {
	cols, err := r.store.GetColumns(ctx, id[:], tokenColumns)
	if err != nil {
		return TokenInfo{}, fmt.Errorf("%w: %w", ErrStore, err)
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return TokenInfo{}, fmt.Errorf("%w: token not found", ErrInvalidToken)
		}
	}

	info := TokenInfo{
		UUID:     id,
		Type:     string(cols[colType]),
		Created:  decodeInt64(cols[colCreated]),
		Accessed: decodeInt64(cols[colAccessed]),
		Inactive: decodeInt64(cols[colInactive]),
		State:    map[string]any{},
	}

	if raw, ok := cols[colPrincipal]; ok {
		// An unrecognized principal type reads as an absent principal.
		if pt, ok := ParsePrincipalType(string(raw)); ok {
			p := &Principal{Type: pt}
			copy(p.EntityID[:], cols[colEntity])
			copy(p.ApplicationID[:], cols[colApplication])
			info.Principal = p
		}
	}

	if raw, ok := cols[colState]; ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &info.State); err != nil {
			return TokenInfo{}, fmt.Errorf("decoding token state: %w", err)
		}
		if info.State == nil {
			info.State = map[string]any{}
		}
	}

	return info, nil
}

// touch refreshes the activity columns after a successful validation:
// accessed is always rewritten, inactive only when the gap since the
// previous validation exceeds every earlier one. Both land in a single
// batch. Returns the resulting inactive value.
func (r recordStore) touch(ctx context.Context, id uuid.UUID, now, prevAccessed, prevInactive int64) (int64, error) {
	cols := map[string][]byte{
		colAccessed: encodeInt64(now),
	}
	inactive := prevInactive
	if gap := now - prevAccessed; gap > prevInactive {
		inactive = gap
		cols[colInactive] = encodeInt64(gap)
	}
	if err := r.store.PutColumns(ctx, id[:], cols, r.ttl); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStore, err)
	}
	return inactive, nil
}

// delete removes the record row.
func (r recordStore) delete(ctx context.Context, id uuid.UUID) error {
	if err := r.store.DeleteRow(ctx, id[:]); err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	return nil
}

func stateOrEmpty(state map[string]any) map[string]any {
	if state == nil {
		return map[string]any{}
	}
	return state
}

func encodeInt64(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func decodeInt64(b []byte) int64 {
	if len(b) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}
