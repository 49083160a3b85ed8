// SPDX-FileCopyrightText: Copyright 2026 ApexID, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package tokens implements issuance, validation, and refresh of signed
// opaque bearer tokens backed by a wide-column record store. A token is a
// small binary blob carrying a time-ordered identifier, an optional
// absolute expiration, and a keyed SHA-1 signature; the companion record
// holds the principal, opaque state, and activity timestamps under a
// storage-enforced TTL.
package tokens

import (
	"fmt"
	"strings"
)

// Category identifies one of the four recognized token kinds.
type Category string

// The closed set of token categories.
const (
	// CategoryAccess is a short-lived bearer token. It is the only
	// category whose wire form embeds an absolute expiration.
	CategoryAccess Category = "access"
	// CategoryRefresh is exchanged for fresh access tokens.
	CategoryRefresh Category = "refresh"
	// CategoryEmail backs one-shot email confirmation flows.
	CategoryEmail Category = "email"
	// CategoryOffline is a long-lived grant for offline use.
	CategoryOffline Category = "offline"
)

// base64PrefixLength is the number of leading characters of an opaque
// token that identify its category.
const base64PrefixLength = 2

type categoryInfo struct {
	// textPrefix is the two-byte tag mixed into the signed string.
	textPrefix string
	// base64Prefix is the first two characters of the encoded token. It
	// must equal the first two characters of the URL-safe base64 encoding
	// of textPrefix so the prefix survives as-is in the output.
	base64Prefix string
	// carriesExpiration marks categories whose wire form embeds an
	// absolute expiration.
	carriesExpiration bool
}

var categories = map[Category]categoryInfo{
	CategoryAccess:  {textPrefix: "ac", base64Prefix: "YW", carriesExpiration: true},
	CategoryRefresh: {textPrefix: "re", base64Prefix: "cm", carriesExpiration: false},
	CategoryEmail:   {textPrefix: "em", base64Prefix: "ZW", carriesExpiration: false},
	CategoryOffline: {textPrefix: "of", base64Prefix: "b2", carriesExpiration: false},
}

var categoriesByBase64Prefix = func() map[string]Category {
	m := make(map[string]Category, len(categories))
	for cat, info := range categories {
		m[info.base64Prefix] = cat
	}
	return m
}()

func (c Category) textPrefix() string      { return categories[c].textPrefix }
func (c Category) base64Prefix() string    { return categories[c].base64Prefix }
func (c Category) carriesExpiration() bool { return categories[c].carriesExpiration }

// ParseCategory maps a category name, case-insensitively, to its Category
// value.
func ParseCategory(s string) (Category, error) {
	cat := Category(strings.ToLower(s))
	if _, ok := categories[cat]; !ok {
		return "", fmt.Errorf("%w: unknown token category %q", ErrBadToken, s)
	}
	return cat, nil
}

// CategoryFromToken resolves the category of an opaque token from its
// first two characters.
func CategoryFromToken(token string) (Category, error) {
	if len(token) < base64PrefixLength {
		return "", fmt.Errorf("%w: token too short", ErrBadToken)
	}
	cat, ok := categoriesByBase64Prefix[token[:base64PrefixLength]]
	if !ok {
		return "", fmt.Errorf("%w: unrecognized token prefix %q", ErrBadToken, token[:base64PrefixLength])
	}
	return cat, nil
}
