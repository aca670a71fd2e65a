// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

package codec

import "fmt"

// pkcs7Pad appends PKCS7 padding to data so its length becomes a multiple
// of blockSize. Always appends at least one byte of padding, so a plaintext
// that is already block-aligned gains a full padding block.
func pkcs7Pad(data []byte) []byte {
	padding := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padding)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padding)
	}
	return padded
}

// pkcs7Unpad removes and verifies PKCS7 padding. Every padding byte is
// checked for defense-in-depth against a truncated or corrupted final
// block rather than trusting the last byte alone.
func pkcs7Unpad(data []byte) ([]byte, error) {
	n := len(data)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty padded block", errCorruptPadding)
	}
	padding := int(data[n-1])
	if padding == 0 || padding > n || padding > blockSize {
		return nil, fmt.Errorf("%w: invalid padding length %d", errCorruptPadding, padding)
	}
	for i := n - padding; i < n; i++ {
		if data[i] != byte(padding) {
			return nil, fmt.Errorf("%w: inconsistent padding byte at offset %d", errCorruptPadding, i)
		}
	}
	return data[:n-padding], nil
}
