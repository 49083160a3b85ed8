// SPDX-FileCopyrightText: Copyright 2026 ApexID, Inc.
// SPDX-License-Identifier: Apache-2.0

package tokens

import "errors"

// The error taxonomy of the token service. Callers branch on these with
// errors.Is; the HTTP layer maps them to status codes.
var (
	// ErrBadToken reports a token that cannot be parsed or whose signature
	// does not verify.
	ErrBadToken = errors.New("bad token")

	// ErrExpiredToken reports a correctly signed token whose absolute
	// expiration has passed.
	ErrExpiredToken = errors.New("expired token")

	// ErrInvalidToken reports a well-formed, correctly signed token that
	// has no underlying record, either because it never existed or because
	// the record's TTL elapsed.
	ErrInvalidToken = errors.New("invalid token")

	// ErrStore wraps I/O failures from the column store. These are
	// operational errors, not statements about the token itself.
	ErrStore = errors.New("token store error")
)
