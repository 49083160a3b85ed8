// SPDX-FileCopyrightText: Copyright 2026 ApexID, Inc.
// SPDX-License-Identifier: Apache-2.0

package columns

import (
	"context"
	"fmt"
)

// Backend identifies a column store implementation.
type Backend string

// Supported storage backends.
const (
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
	BackendSQLite Backend = "sqlite"
)

// SQLiteConfig holds the settings for a SQLite-backed store.
type SQLiteConfig struct {
	// DSN is the database/sql connection string, typically a file path.
	// Empty uses a shared in-memory database.
	DSN string
}

// Config selects and configures a storage backend.
type Config struct {
	// Backend picks the implementation. Defaults to BackendMemory.
	Backend Backend
	// Redis configures the redis backend.
	Redis RedisConfig
	// SQLite configures the sqlite backend.
	SQLite SQLiteConfig
}

// NewStore creates the column store selected by cfg.Backend.
func NewStore(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendRedis:
		return NewRedisStore(ctx, cfg.Redis)
	case BackendSQLite:
		dsn := cfg.SQLite.DSN
		if dsn == "" {
			dsn = InMemoryDSN
		}
		return NewSQLiteStore(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
