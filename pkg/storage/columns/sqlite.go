// SPDX-FileCopyrightText: Copyright 2026 ApexID, Inc.
// SPDX-License-Identifier: Apache-2.0

package columns

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/apexid/tokend/pkg/logger"
)

// InMemoryDSN is a shared in-memory SQLite database, useful for tests and
// ephemeral deployments.
const InMemoryDSN = "file:tokend?mode=memory&cache=shared"

// SQLiteStore implements the Store interface on a single SQLite table,
// one table row per column value. Expired columns are filtered out at
// read time and reclaimed by a background sweep.
type SQLiteStore struct {
	db *sql.DB

	// cleanupInterval is how often the background sweep runs
	cleanupInterval time.Duration

	// stopCleanup is used to signal the sweep goroutine to stop
	stopCleanup chan struct{}

	// cleanupDone is closed when the sweep goroutine has fully stopped
	cleanupDone chan struct{}
}

// SQLiteStoreOption configures a SQLiteStore instance.
type SQLiteStoreOption func(*SQLiteStore)

// WithSweepInterval sets a custom interval for the expired-column sweep.
func WithSweepInterval(interval time.Duration) SQLiteStoreOption {
	return func(s *SQLiteStore) {
		s.cleanupInterval = interval
	}
}

// NewSQLiteStore opens (or creates) the database described by dsn, applies
// pending migrations, and starts the background sweep goroutine.
func NewSQLiteStore(ctx context.Context, dsn string, opts ...SQLiteStoreOption) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteStore{
		db:              db,
		cleanupInterval: DefaultCleanupInterval,
		stopCleanup:     make(chan struct{}),
		cleanupDone:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	go s.sweepLoop()

	return s, nil
}

// PutColumns upserts every column inside one transaction.
func (s *SQLiteStore) PutColumns(ctx context.Context, rowKey []byte, cols map[string][]byte, ttl time.Duration) error {
	if len(cols) == 0 {
		return nil
	}

	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: time.Now().Add(ttl).UnixMilli(), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollback(tx)

	for name, value := range cols {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO token_columns (row_key, name, value, expires_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (row_key, name) DO UPDATE SET
				value = excluded.value,
				expires_at = excluded.expires_at`,
			rowKey, name, value, expiresAt,
		); err != nil {
			return fmt.Errorf("upserting column %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// GetColumns reads the named columns, filtering out those whose expiry
// already passed.
func (s *SQLiteStore) GetColumns(ctx context.Context, rowKey []byte, names []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(names))
	if len(names) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(names)), ",")

	args := make([]any, 0, len(names)+2)
	args = append(args, rowKey)
	for _, name := range names {
		args = append(args, name)
	}
	args = append(args, time.Now().UnixMilli())

	// The concatenated fragment holds only "?" markers, never user input.
	query := `SELECT name, value FROM token_columns
		WHERE row_key = ? AND name IN (` + placeholders + `)
		AND (expires_at IS NULL OR expires_at > ?)`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var name string
		var value []byte
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scanning column: %w", err)
		}
		result[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating columns: %w", err)
	}

	return result, nil
}

// DeleteRow removes every column of the row.
func (s *SQLiteStore) DeleteRow(ctx context.Context, rowKey []byte) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM token_columns WHERE row_key = ?`, rowKey); err != nil {
		return fmt.Errorf("deleting row: %w", err)
	}
	return nil
}

// Close stops the background sweep and closes the database.
func (s *SQLiteStore) Close() error {
	close(s.stopCleanup)
	<-s.cleanupDone
	return s.db.Close()
}

// sweepLoop runs periodic deletion of expired columns.
func (s *SQLiteStore) sweepLoop() {
	defer close(s.cleanupDone)

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			if err := s.sweepExpired(context.Background()); err != nil {
				logger.Warnw("expired column sweep failed", "error", err)
			}
		}
	}
}

// sweepExpired deletes columns whose expiry has passed. Reads already
// filter these out; the sweep reclaims the space.
func (s *SQLiteStore) sweepExpired(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM token_columns WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("deleting expired columns: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		logger.Debugw("swept expired columns", "count", n)
	}
	return nil
}

// rollback rolls back tx, ignoring errors (tx may already be committed).
func rollback(tx *sql.Tx) { _ = tx.Rollback() }

// Compile-time interface compliance check
var _ Store = (*SQLiteStore)(nil)
