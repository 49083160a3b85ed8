// SPDX-FileCopyrightText: Copyright 2026 ApexID, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package columns provides a minimal wide-column storage abstraction for
// token records: rows addressed by an opaque binary key, each row holding
// named byte-valued columns, and every column carrying its own expiration.
package columns

import (
	"context"
	"time"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=interfaces.go Store

// DefaultCleanupInterval is how often backends with a background sweep
// remove expired columns.
const DefaultCleanupInterval = 5 * time.Minute

// Store defines the column-store operations the token layer relies on.
//
// Expiration is tracked per column, not per row: a later write can extend
// the lifetime of some columns of a row while the rest keep their original
// expiry. Reads never return expired columns.
type Store interface {
	// PutColumns writes the given columns to the row as a single batch.
	// Every written column gets the same ttl; ttl <= 0 stores the columns
	// without expiration.
	PutColumns(ctx context.Context, rowKey []byte, cols map[string][]byte, ttl time.Duration) error
	// GetColumns reads the named columns of a row. Columns that were never
	// written, or whose ttl has elapsed, are absent from the result; a
	// missing row yields an empty map, not an error.
	GetColumns(ctx context.Context, rowKey []byte, names []string) (map[string][]byte, error)
	// DeleteRow removes a row and all of its columns. Deleting a row that
	// does not exist is not an error.
	DeleteRow(ctx context.Context, rowKey []byte) error
	// Close releases any resources held by the store.
	Close() error
}
