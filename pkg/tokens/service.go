// SPDX-FileCopyrightText: Copyright 2026 ApexID, Inc.
// SPDX-License-Identifier: Apache-2.0

package tokens

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/apexid/tokend/pkg/storage/columns"
)

// TokenTypeAccess is the record type stamped on tokens issued without
// an explicit type.
const TokenTypeAccess = "access"

// Service issues, validates, and refreshes signed opaque tokens backed
// by a wide-column record store. It is safe for concurrent use; all
// mutable state lives in the store.
type Service struct {
	store   recordStore
	codec   codec
	cfg     Config
	now     func() time.Time
	newUUID func() (uuid.UUID, error)
	// refreshGroup ensures only one refresh runs per token at a time,
	// so concurrent refreshes cannot race on the record rewrite.
	refreshGroup singleflight.Group
}

// Option customizes a Service.
type Option func(*Service)

// WithTimeSource overrides the wall clock, mainly for tests.
func WithTimeSource(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithUUIDSource overrides the identifier allocator, mainly for tests.
// The source must yield version-1 identifiers; creation time is read
// back out of them.
func WithUUIDSource(newUUID func() (uuid.UUID, error)) Option {
	return func(s *Service) {
		s.newUUID = newUUID
	}
}

// NewService builds a token service on top of the given column store.
// Empty or non-positive config fields fall back to DefaultConfig.
func NewService(store columns.Store, cfg Config, opts ...Option) *Service {
	cfg = cfg.withDefaults()
	s := &Service{
		store:   recordStore{store: store, ttl: cfg.MaxPersistenceAge},
		codec:   codec{signer: signer{salt: cfg.SecretSalt}, expirations: cfg.Expirations},
		cfg:     cfg,
		now:     time.Now,
		newUUID: uuid.NewUUID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue allocates a time-ordered identifier, persists the record, and
// returns the signed opaque token. An empty tokenType defaults to
// TokenTypeAccess; principal and state may be nil.
func (s *Service) Issue(ctx context.Context, category Category, tokenType string, principal *Principal, state map[string]any) (string, error) {
	if _, ok := categories[category]; !ok {
		return "", fmt.Errorf("%w: unknown token category %q", ErrBadToken, category)
	}
	id, err := s.newUUID()
	if err != nil {
		return "", fmt.Errorf("allocating token identifier: %w", err)
	}
	if tokenType == "" {
		tokenType = TokenTypeAccess
	}
	ms := millisFromUUID(id)
	info := TokenInfo{
		UUID:      id,
		Type:      tokenType,
		Created:   ms,
		Accessed:  ms,
		Principal: principal,
		State:     state,
	}
	if err := s.store.put(ctx, info); err != nil {
		return "", err
	}
	return s.codec.encode(category, id), nil
}

// Validate verifies the token, loads its record, applies the expiry
// policy, and touches the activity columns. The returned record
// reflects the touch: Accessed is the validation time and Inactive
// carries the updated maximum gap.
func (s *Service) Validate(ctx context.Context, token string) (*TokenInfo, error) {
	d, err := s.codec.decode(token)
	if err != nil {
		return nil, err
	}
	now := s.now().UnixMilli()
	if !s.cfg.ExpiresFromLastUse {
		if err := s.checkExpiry(d.category, millisFromUUID(d.id), now); err != nil {
			return nil, err
		}
	}
	info, err := s.store.get(ctx, d.id)
	if err != nil {
		return nil, err
	}
	if s.cfg.ExpiresFromLastUse {
		if err := s.checkExpiry(d.category, info.Accessed, now); err != nil {
			return nil, err
		}
	}
	inactive, err := s.store.touch(ctx, d.id, now, info.Accessed, info.Inactive)
	if err != nil {
		return nil, err
	}
	info.Accessed = now
	info.Inactive = inactive
	return &info, nil
}

// Refresh re-validates the token, rewrites the full record with fresh
// activity timestamps (resetting the persistence TTL), and returns a
// new Access-category token regardless of the input category. With
// RefreshRotatesID set the record moves to a new identifier and the
// old row is removed.
//
// Concurrent refreshes of the same token collapse into a single
// execution; under rotation every caller receives the same replacement
// instead of racing to delete the row.
func (s *Service) Refresh(ctx context.Context, token string) (string, error) {
	refreshed, err, _ := s.refreshGroup.Do(token, func() (any, error) {
		return s.refresh(ctx, token)
	})
	if err != nil {
		return "", err
	}
	return refreshed.(string), nil
}

func (s *Service) refresh(ctx context.Context, token string) (string, error) {
	d, err := s.codec.decode(token)
	if err != nil {
		return "", err
	}
	now := s.now().UnixMilli()
	if !s.cfg.ExpiresFromLastUse {
		if err := s.checkExpiry(d.category, millisFromUUID(d.id), now); err != nil {
			return "", err
		}
	}
	info, err := s.store.get(ctx, d.id)
	if err != nil {
		return "", err
	}
	if s.cfg.ExpiresFromLastUse {
		if err := s.checkExpiry(d.category, info.Accessed, now); err != nil {
			return "", err
		}
	}
	if s.cfg.RefreshRotatesID {
		return s.rotate(ctx, d.id, info)
	}
	if gap := now - info.Accessed; gap > info.Inactive {
		info.Inactive = gap
	}
	info.Accessed = now
	if err := s.store.put(ctx, info); err != nil {
		return "", err
	}
	return s.codec.encode(CategoryAccess, d.id), nil
}

// rotate moves a record to a freshly allocated identifier and removes
// the old row. Creation and activity timestamps restart; type,
// principal, and state carry over.
func (s *Service) rotate(ctx context.Context, oldID uuid.UUID, info TokenInfo) (string, error) {
	id, err := s.newUUID()
	if err != nil {
		return "", fmt.Errorf("allocating token identifier: %w", err)
	}
	ms := millisFromUUID(id)
	fresh := TokenInfo{
		UUID:      id,
		Type:      info.Type,
		Created:   ms,
		Accessed:  ms,
		Principal: info.Principal,
		State:     info.State,
	}
	if err := s.store.put(ctx, fresh); err != nil {
		return "", err
	}
	if err := s.store.delete(ctx, oldID); err != nil {
		return "", err
	}
	return s.codec.encode(CategoryAccess, id), nil
}

// MaxTokenAge reports the absolute maximum age in milliseconds baked
// into the token body. Categories that carry no expiration report
// math.MaxInt64. The signature is verified but the record store is
// never consulted, so an already expired token still reports its age.
func (s *Service) MaxTokenAge(token string) (int64, error) {
	d, err := s.codec.decode(token)
	if err != nil {
		return 0, err
	}
	if !d.category.carriesExpiration() {
		return math.MaxInt64, nil
	}
	return d.expires - millisFromUUID(d.id), nil
}

// checkExpiry enforces the absolute age bound of a category against the
// given anchor, either creation time or last use depending on policy.
func (s *Service) checkExpiry(cat Category, anchor, now int64) error {
	deadline := anchor + s.codec.expirationFor(cat).Milliseconds()
	if now > deadline {
		return fmt.Errorf("%w: token expired %d milliseconds ago", ErrExpiredToken, now-deadline)
	}
	return nil
}
