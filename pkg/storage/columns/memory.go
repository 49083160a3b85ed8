// SPDX-FileCopyrightText: Copyright 2026 ApexID, Inc.
// SPDX-License-Identifier: Apache-2.0

package columns

import (
	"context"
	"sync"
	"time"
)

// timedEntry wraps a column value with its write time for TTL tracking.
type timedEntry struct {
	value     []byte
	createdAt time.Time
	expiresAt time.Time // zero means the column never expires
}

func (e *timedEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore implements the Store interface with in-memory maps.
// This implementation is thread-safe and suitable for development, testing,
// and single-node deployments where token records may be lost on restart.
type MemoryStore struct {
	mu sync.RWMutex

	// rows maps string(rowKey) -> column name -> entry.
	rows map[string]map[string]*timedEntry

	// cleanupInterval is how often the background cleanup runs
	cleanupInterval time.Duration

	// stopCleanup is used to signal the cleanup goroutine to stop
	stopCleanup chan struct{}

	// cleanupDone is closed when the cleanup goroutine has fully stopped
	cleanupDone chan struct{}
}

// MemoryStoreOption configures a MemoryStore instance.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets a custom cleanup interval.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.cleanupInterval = interval
	}
}

// NewMemoryStore creates a new MemoryStore instance and starts the
// background cleanup goroutine.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		rows:            make(map[string]map[string]*timedEntry),
		cleanupInterval: DefaultCleanupInterval,
		stopCleanup:     make(chan struct{}),
		cleanupDone:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	// Start background cleanup goroutine
	go s.cleanupLoop()

	return s
}

// PutColumns writes the given columns under the row key as one batch.
func (s *MemoryStore) PutColumns(_ context.Context, rowKey []byte, cols map[string][]byte, ttl time.Duration) error {
	if len(cols) == 0 {
		return nil
	}

	now := time.Now()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[string(rowKey)]
	if !ok {
		row = make(map[string]*timedEntry, len(cols))
		s.rows[string(rowKey)] = row
	}

	for name, value := range cols {
		// Defensive copy so callers can reuse their buffers.
		row[name] = &timedEntry{
			value:     append([]byte(nil), value...),
			createdAt: now,
			expiresAt: expiresAt,
		}
	}

	return nil
}

// GetColumns reads the named columns of the row, skipping expired entries.
func (s *MemoryStore) GetColumns(_ context.Context, rowKey []byte, names []string) (map[string][]byte, error) {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string][]byte, len(names))
	row, ok := s.rows[string(rowKey)]
	if !ok {
		return result, nil
	}

	for _, name := range names {
		entry, ok := row[name]
		if !ok || entry.expired(now) {
			continue
		}
		result[name] = append([]byte(nil), entry.value...)
	}

	return result, nil
}

// DeleteRow removes the row and all of its columns.
func (s *MemoryStore) DeleteRow(_ context.Context, rowKey []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rows, string(rowKey))
	return nil
}

// Close stops the background cleanup goroutine and waits for it to finish.
// This should be called when the store is no longer needed.
func (s *MemoryStore) Close() error {
	close(s.stopCleanup)
	<-s.cleanupDone
	return nil
}

// cleanupLoop runs periodic cleanup of expired columns.
func (s *MemoryStore) cleanupLoop() {
	defer close(s.cleanupDone)

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.cleanupExpired()
		}
	}
}

// cleanupExpired removes all expired columns, dropping rows that end up
// empty. Uses collect-then-delete pattern: collects expired entries under
// read lock, then deletes under write lock. This minimizes write lock
// hold time.
func (s *MemoryStore) cleanupExpired() {
	now := time.Now()

	// Phase 1: Collect expired entries under read lock
	s.mu.RLock()
	expired := make(map[string][]string)
	for rowKey, row := range s.rows {
		for name, entry := range row {
			if entry.expired(now) {
				expired[rowKey] = append(expired[rowKey], name)
			}
		}
	}
	s.mu.RUnlock()

	// Phase 2: Early return if nothing to delete (no write lock needed)
	if len(expired) == 0 {
		return
	}

	// Phase 3: Delete collected entries under write lock
	s.mu.Lock()
	defer s.mu.Unlock()

	for rowKey, names := range expired {
		row, ok := s.rows[rowKey]
		if !ok {
			continue
		}
		for _, name := range names {
			// Re-check: the column may have been rewritten since collection.
			if entry, ok := row[name]; ok && entry.expired(now) {
				delete(row, name)
			}
		}
		if len(row) == 0 {
			delete(s.rows, rowKey)
		}
	}
}

// Stats contains statistics about the store contents.
type Stats struct {
	Rows    int
	Columns int
}

// Stats returns current statistics about the store contents. Columns that
// have expired but not yet been swept are still counted.
// This is useful for testing and monitoring.
func (s *MemoryStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Rows: len(s.rows)}
	for _, row := range s.rows {
		st.Columns += len(row)
	}
	return st
}

// Compile-time interface compliance check
var _ Store = (*MemoryStore)(nil)
