// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

package codec

import (
	"encoding/binary"
	"fmt"
	"io"

	gojson "github.com/goccy/go-json"
)

// LibraryDescriptor identifies which library a library-embedded snapshot
// object belongs to. It is the payload of the envelope below, not part
// of the Stream Codec frame itself.
type LibraryDescriptor struct {
	Library string `json:"library"`
	File    string `json:"file"`
}

// WriteEnvelope writes the library-embedded-object envelope — a 4-byte
// little-endian length followed by that many bytes of descriptor JSON —
// to w, ahead of the codec frame that follows it. This prefix sits
// outside the Stream Codec's own framing: a reader strips it before
// ever handing the remaining bytes to NewDecryptor. Returns the number
// of envelope bytes written, which callers fold into the object's
// recorded size.
func WriteEnvelope(w io.Writer, desc LibraryDescriptor) (int64, error) {
	body, err := gojson.Marshal(desc)
	if err != nil {
		return 0, fmt.Errorf("marshal library descriptor: %w", err)
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return 0, fmt.Errorf("write envelope length: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return 0, fmt.Errorf("write envelope descriptor: %w", err)
	}
	return int64(len(lenBuf) + len(body)), nil
}

// ReadEnvelope strips a library-embedded-object envelope from the front
// of r, returning the descriptor and leaving r positioned at the start
// of the codec frame.
func ReadEnvelope(r io.Reader) (LibraryDescriptor, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return LibraryDescriptor{}, fmt.Errorf("read envelope length: %w", err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return LibraryDescriptor{}, fmt.Errorf("read envelope descriptor: %w", err)
	}
	var desc LibraryDescriptor
	if err := gojson.Unmarshal(body, &desc); err != nil {
		return LibraryDescriptor{}, fmt.Errorf("unmarshal library descriptor: %w", err)
	}
	return desc, nil
}
