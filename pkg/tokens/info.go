// SPDX-FileCopyrightText: Copyright 2026 ApexID, Inc.
// SPDX-License-Identifier: Apache-2.0

package tokens

import (
	"strings"

	"github.com/google/uuid"
)

// PrincipalType identifies the kind of principal a token was issued to.
type PrincipalType string

// The recognized principal types. The values double as the stored
// column encoding, so they stay lowercase.
const (
	PrincipalAdminUser       PrincipalType = "admin_user"
	PrincipalApplicationUser PrincipalType = "application_user"
	PrincipalOrganization    PrincipalType = "organization"
	PrincipalApplication     PrincipalType = "application"
)

// ParsePrincipalType maps a stored or client-supplied name to a
// PrincipalType. The second return is false for unrecognized names.
func ParsePrincipalType(s string) (PrincipalType, bool) {
	switch pt := PrincipalType(strings.ToLower(s)); pt {
	case PrincipalAdminUser, PrincipalApplicationUser, PrincipalOrganization, PrincipalApplication:
		return pt, true
	default:
		return "", false
	}
}

// Principal ties a token to the entity it was issued for. All three
// fields are always set together; an absent principal is a nil pointer
// on TokenInfo.
type Principal struct {
	Type          PrincipalType
	EntityID      uuid.UUID
	ApplicationID uuid.UUID
}

// TokenInfo is the persistent record behind an issued token.
type TokenInfo struct {
	// UUID is the time-ordered identifier embedded in the token.
	UUID uuid.UUID
	// Type is a free-form type tag, "access" when unspecified at issue.
	Type string
	// Created is the unix-millisecond timestamp extracted from UUID at
	// issue time. The persisted value is authoritative thereafter.
	Created int64
	// Accessed is the unix-millisecond time of the last successful
	// validation.
	Accessed int64
	// Inactive is the longest observed gap in milliseconds between two
	// consecutive validations. It never decreases.
	Inactive int64
	// Principal is the optional owning principal.
	Principal *Principal
	// State is an opaque JSON-serializable map carried alongside the
	// token. Never nil on records loaded from the store.
	State map[string]any
}
