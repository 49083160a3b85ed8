// SPDX-FileCopyrightText: Copyright 2026 ApexID, Inc.
// SPDX-License-Identifier: Apache-2.0

package tokens

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Wire layout of the binary token body, before base64 encoding:
//
//	offset 0     16 bytes  identifier (big-endian UUID)
//	offset 16     8 bytes  absolute expiration (big-endian int64),
//	                       present iff the category carries expiration
//	offset 16/24 20 bytes  signature
const (
	uuidLength    = 16
	expiresLength = 8
)

// decoded is the parsed, authenticated content of an opaque token.
type decoded struct {
	category Category
	id       uuid.UUID
	// expires is the embedded absolute expiration in unix milliseconds,
	// math.MaxInt64 when the category carries none.
	expires int64
}

// codec renders tokens to and from their opaque wire form.
type codec struct {
	signer      signer
	expirations map[Category]time.Duration
}

// expirationFor returns the configured absolute max age of a category.
func (c codec) expirationFor(cat Category) time.Duration {
	if age, ok := c.expirations[cat]; ok {
		return age
	}
	return DefaultShortTokenAge
}

// encode renders the opaque wire form of a token: the category's two
// base64 prefix characters followed by the unpadded URL-safe base64
// encoding of identifier, optional absolute expiration, and signature.
func (c codec) encode(cat Category, id uuid.UUID) string {
	expires := int64(math.MaxInt64)
	body := make([]byte, 0, uuidLength+expiresLength+signatureLength)
	body = append(body, id[:]...)
	if cat.carriesExpiration() {
		expires = millisFromUUID(id) + c.expirationFor(cat).Milliseconds()
		body = binary.BigEndian.AppendUint64(body, uint64(expires))
	}
	body = append(body, c.signer.sign(cat, id, expires)...)
	return cat.base64Prefix() + base64.RawURLEncoding.EncodeToString(body)
}

// decode parses and authenticates a token string. It consults neither
// the store nor the clock: signature verification happens before any
// expiry policy, so a forged token is indistinguishable from a tampered
// one regardless of its claimed age.
func (c codec) decode(token string) (decoded, error) {
	cat, err := CategoryFromToken(token)
	if err != nil {
		return decoded{}, err
	}

	body, err := base64.RawURLEncoding.DecodeString(token[base64PrefixLength:])
	if err != nil {
		return decoded{}, fmt.Errorf("%w: malformed token body: %w", ErrBadToken, err)
	}

	want := uuidLength + signatureLength
	if cat.carriesExpiration() {
		want += expiresLength
	}
	if len(body) != want {
		return decoded{}, fmt.Errorf("%w: token body is %d bytes, want %d", ErrBadToken, len(body), want)
	}

	id, err := uuid.FromBytes(body[:uuidLength])
	if err != nil {
		return decoded{}, fmt.Errorf("%w: %w", ErrBadToken, err)
	}

	expires := int64(math.MaxInt64)
	offset := uuidLength
	if cat.carriesExpiration() {
		expires = int64(binary.BigEndian.Uint64(body[offset : offset+expiresLength]))
		offset += expiresLength
	}

	if !c.signer.verify(cat, id, expires, body[offset:offset+signatureLength]) {
		return decoded{}, fmt.Errorf("%w: invalid token signature", ErrBadToken)
	}

	return decoded{category: cat, id: id, expires: expires}, nil
}
