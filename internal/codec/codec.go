// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

/*
Package codec implements the backup engine's streaming AES-256-CBC framing
format: one plaintext payload plus an optional thumbnail and an optional
metadata blob, folded into a single ciphertext with a fixed 312-byte header.

The wire layout is a legacy constraint shared by every node that can read an
existing archive — the fixed PBKDF2 salt, the absence of a version byte, and
the exact header field order and widths below MUST be reproduced exactly by
any implementation that wants to interoperate with existing backups.

	offset  size  field
	0       16    IV
	16      4     encrypted thumbnail length (big-endian uint32, 0 if absent)
	20      4     encrypted metadata length (big-endian uint32, 0 if absent)
	24      32    thumbnail mime, space-padded, truncated
	56      256   source mime, space-padded, truncated
	312     Te    AES-256-CBC(PKCS7)(thumbnail)
	312+Te   Me    AES-256-CBC(PKCS7)(metadata)
	312+Te+Me ...  AES-256-CBC(PKCS7)(payload)
*/
package codec

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// IVSize is the AES block / IV length in bytes.
	IVSize = 16
	// blockSize is the AES block size, used for PKCS7 padding math.
	blockSize = 16

	thumbMimeSize  = 32
	sourceMimeSize = 256

	// HeaderSize is the fixed size of the frame header (IV + two length
	// fields + the two mime fields).
	HeaderSize = IVSize + 4 + 4 + thumbMimeSize + sourceMimeSize // 312
)

// pad16 returns the PKCS7-padded size of a plaintext section of length n:
// round up to the next multiple of 16, and if n is already a multiple of
// 16, add one full padding block. This mirrors the fixed-point arithmetic
// in the original format's size estimator exactly.
func pad16(n int64) int64 {
	rounded := (n + int64(blockSize-1)) &^ int64(blockSize-1)
	if n%int64(blockSize) == 0 {
		rounded += int64(blockSize)
	}
	return rounded
}

// EstimatedSize computes the ciphertext length for a payload of p plaintext
// bytes, an optional thumbnail of tSize bytes, and optional metadata of
// mSize bytes, without performing the encryption. Destination providers
// that need a content-length up front call this before open_write.
//
// A component that is entirely absent (nil) contributes 0 bytes, not a
// padding block — only the mandatory payload always contributes pad16(p),
// even when p == 0. This resolves the zero-length-plaintext ambiguity to
// 328 bytes (312 + one padding block) per the documented design decision.
func EstimatedSize(p int64, tSize, mSize *int64) int64 {
	size := int64(HeaderSize)
	if tSize != nil {
		size += pad16(*tSize)
	}
	if mSize != nil {
		size += pad16(*mSize)
	}
	size += pad16(p)
	return size
}

// padMime copies s into a fixed-size, space-padded, byte-truncated buffer.
func padMime(s string, size int) []byte {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = ' '
	}
	copy(buf, s)
	return buf
}

// trimMime reverses padMime, trimming trailing spaces.
func trimMime(buf []byte) string {
	end := len(buf)
	for end > 0 && buf[end-1] == ' ' {
		end--
	}
	return string(buf[:end])
}
