// SPDX-FileCopyrightText: Copyright 2026 ApexID, Inc.
// SPDX-License-Identifier: Apache-2.0

package tokens

import (
	"time"

	"github.com/google/uuid"
)

// millisFromUUID extracts the millisecond wall-clock timestamp embedded
// in a time-ordered (version 1) identifier.
func millisFromUUID(id uuid.UUID) int64 {
	sec, nsec := id.Time().UnixTime()
	return sec*1000 + nsec/int64(time.Millisecond)
}
