// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

package codec

import (
	"crypto/sha1" //nolint:gosec // PBKDF2-HMAC-SHA1 is a fixed legacy interoperability requirement, not a new design choice.

	"golang.org/x/crypto/pbkdf2"
)

// legacySalt is the process-wide PBKDF2 salt shared by every node that
// writes or reads this format. It is a compile-time constant by design
// (see the fixed-salt design note in the package doc): every archive ever
// written with this engine used this exact byte sequence, so changing it
// would silently make existing backups unreadable. A future, non-legacy
// codec version would derive a per-object salt instead.
var legacySalt = []byte("vaultkeep-legacy-codec-salt-v1!!")

// legacyIterations is the fixed PBKDF2 iteration count for this codec
// version.
const legacyIterations = 100_000

// DeriveKey derives the 32-byte AES-256 key from a user-supplied password
// using PBKDF2-HMAC-SHA1 with the fixed legacy salt and iteration count.
// Deterministic: the same password always yields the same key, which is
// required so that any node holding the password can decrypt an object
// written by any other node.
func DeriveKey(password string) []byte {
	return pbkdf2.Key([]byte(password), legacySalt, legacyIterations, KeySize, sha1.New)
}
