// SPDX-FileCopyrightText: Copyright 2026 ApexID, Inc.
// SPDX-License-Identifier: Apache-2.0

package tokens

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // G505: SHA-1 is the historical wire format; it acts as a keyed MAC here, collision resistance is not relied upon
	"strconv"

	"github.com/google/uuid"
)

// signatureLength is the size in bytes of a token signature.
const signatureLength = sha1.Size

// signer computes the keyed digest that authenticates a token.
//
// The signed string is the UTF-8 concatenation, in this order and with no
// delimiters, of the category's two-byte text prefix, the lowercase
// 36-character hyphenated identifier, the secret salt, and the decimal
// form of the absolute expiration. Categories without an embedded
// expiration sign the maximum positive 64-bit value.
type signer struct {
	salt string
}

func (s signer) sign(cat Category, id uuid.UUID, expires int64) []byte {
	payload := cat.textPrefix() + id.String() + s.salt + strconv.FormatInt(expires, 10)
	sum := sha1.Sum([]byte(payload)) //nolint:gosec // G401: see the package note on SHA-1
	return sum[:]
}

// verify compares sig against the expected digest in constant time.
func (s signer) verify(cat Category, id uuid.UUID, expires int64, sig []byte) bool {
	return hmac.Equal(sig, s.sign(cat, id, expires))
}
