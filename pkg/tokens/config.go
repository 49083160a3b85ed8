// SPDX-FileCopyrightText: Copyright 2026 ApexID, Inc.
// SPDX-License-Identifier: Apache-2.0

package tokens

import "time"

const (
	// DefaultSecretSalt signs tokens when no salt is configured. Every
	// real deployment should override it.
	DefaultSecretSalt = "super secret token value"

	// DefaultShortTokenAge bounds short-lived (access) tokens.
	DefaultShortTokenAge = 24 * time.Hour

	// DefaultLongTokenAge bounds long-lived tokens and record persistence.
	DefaultLongTokenAge = 7 * 24 * time.Hour
)

// Config carries the immutable settings of a token service. The zero
// value is usable: NewService fills missing pieces from DefaultConfig,
// and the zero value of each boolean policy is its default.
type Config struct {
	// SecretSalt is the shared secret mixed into every signature.
	SecretSalt string

	// MaxPersistenceAge bounds how long a record outlives its last full
	// write; every column is stored with this TTL.
	MaxPersistenceAge time.Duration

	// Expirations holds the absolute maximum age per category.
	// Non-positive or missing entries fall back to the defaults.
	Expirations map[Category]time.Duration

	// ExpiresFromLastUse slides the absolute expiry window to the last
	// successful validation instead of anchoring it at creation.
	ExpiresFromLastUse bool

	// RefreshRotatesID makes every refresh allocate a fresh identifier
	// and delete the old record. The default keeps the same identifier
	// and rewrites the row in place.
	RefreshRotatesID bool
}

// DefaultConfig returns the stock configuration: 24 h access tokens,
// 7 day everything else, identifier reuse on refresh.
func DefaultConfig() Config {
	return Config{
		SecretSalt:        DefaultSecretSalt,
		MaxPersistenceAge: DefaultLongTokenAge,
		Expirations: map[Category]time.Duration{
			CategoryAccess:  DefaultShortTokenAge,
			CategoryRefresh: DefaultLongTokenAge,
			CategoryEmail:   DefaultLongTokenAge,
			CategoryOffline: DefaultLongTokenAge,
		},
	}
}

// withDefaults fills empty or non-positive settings with their defaults.
// The boolean policies pass through; their zero values are the defaults.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SecretSalt == "" {
		c.SecretSalt = d.SecretSalt
	}
	if c.MaxPersistenceAge <= 0 {
		c.MaxPersistenceAge = d.MaxPersistenceAge
	}
	merged := make(map[Category]time.Duration, len(d.Expirations))
	for cat, def := range d.Expirations {
		merged[cat] = def
		if age, ok := c.Expirations[cat]; ok && age > 0 {
			merged[cat] = age
		}
	}
	c.Expirations = merged
	return c
}
