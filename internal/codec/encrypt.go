// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"io"
)

// Encryptor frames one plaintext payload, with an optional thumbnail and
// optional metadata sidecar, into the engine's single-use ciphertext
// stream. Create one with NewEncryptor, call Write any number of times
// with payload bytes in order, then call Finalize exactly once to flush
// the trailing PKCS7-padded block. An Encryptor is single-use and must not
// be reused after Finalize.
type Encryptor struct {
	w             io.Writer
	mode          cipher.BlockMode
	header        []byte
	encThumb      []byte
	encMeta       []byte
	headerWritten bool
	buf           []byte
}

// ThumbInput is an optional thumbnail to embed in the frame.
type ThumbInput struct {
	Bytes []byte
	Mime  string
}

// NewEncryptor prepares an Encryptor for streaming encryption. key must be
// 32 bytes (AES-256) and iv must be 16 bytes; both are validated eagerly.
// Thumbnail and metadata, when present, are small enough to encrypt
// up-front rather than streamed.
func NewEncryptor(w io.Writer, key, iv []byte, sourceMime string, thumb *ThumbInput, meta []byte) (*Encryptor, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", errCorruptHeader, KeySize, len(key))
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: iv must be %d bytes, got %d", errCorruptHeader, IVSize, len(iv))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create aes cipher: %w", err)
	}

	var encThumb, encMeta []byte
	thumbMime := ""
	if thumb != nil {
		encThumb = encryptWhole(block, iv, thumb.Bytes)
		thumbMime = thumb.Mime
	}
	if meta != nil {
		encMeta = encryptWhole(block, iv, meta)
	}

	header := make([]byte, HeaderSize)
	copy(header[0:IVSize], iv)
	binary.BigEndian.PutUint32(header[16:20], uint32(len(encThumb)))
	binary.BigEndian.PutUint32(header[20:24], uint32(len(encMeta)))
	copy(header[24:24+thumbMimeSize], padMime(thumbMime, thumbMimeSize))
	copy(header[24+thumbMimeSize:HeaderSize], padMime(sourceMime, sourceMimeSize))

	return &Encryptor{
		w:        w,
		mode:     cipher.NewCBCEncrypter(block, iv),
		header:   header,
		encThumb: encThumb,
		encMeta:  encMeta,
	}, nil
}

// encryptWhole pads and encrypts a small, fully-buffered plaintext under a
// fresh CBC encrypter using the same key and IV as the stream's header.
// Independent from the streaming payload encrypter: the wire format treats
// thumbnail, metadata, and payload as three separately-framed AES-CBC
// applications sharing one (key, iv) pair, not one chained stream.
func encryptWhole(block cipher.Block, iv, plaintext []byte) []byte {
	padded := pkcs7Pad(plaintext)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out
}

func (e *Encryptor) writeHeaderIfNeeded() error {
	if e.headerWritten {
		return nil
	}
	if _, err := e.w.Write(e.header); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if len(e.encThumb) > 0 {
		if _, err := e.w.Write(e.encThumb); err != nil {
			return fmt.Errorf("write encrypted thumbnail: %w", err)
		}
	}
	if len(e.encMeta) > 0 {
		if _, err := e.w.Write(e.encMeta); err != nil {
			return fmt.Errorf("write encrypted metadata: %w", err)
		}
	}
	e.headerWritten = true
	return nil
}

// Write appends plaintext payload bytes to the stream. Complete 16-byte
// blocks are encrypted and forwarded immediately; one complete block is
// always held back for Finalize so PKCS7 padding is applied exactly once,
// at end-of-stream — never mid-stream, even when a Write call happens to
// land exactly on a block boundary.
func (e *Encryptor) Write(p []byte) (int, error) {
	if err := e.writeHeaderIfNeeded(); err != nil {
		return 0, err
	}

	e.buf = append(e.buf, p...)

	completeBlocks := len(e.buf) / blockSize
	if completeBlocks == 0 {
		return len(p), nil
	}
	completeBlocks-- // always hold back one block for Finalize
	if completeBlocks == 0 {
		return len(p), nil
	}

	n := completeBlocks * blockSize
	encrypted := make([]byte, n)
	e.mode.CryptBlocks(encrypted, e.buf[:n])
	if _, err := e.w.Write(encrypted); err != nil {
		return 0, fmt.Errorf("write encrypted payload block: %w", err)
	}
	e.buf = e.buf[n:]
	return len(p), nil
}

// Finalize PKCS7-pads and flushes the trailing block held since the last
// Write, completing the stream. It is an error to call Write after
// Finalize.
func (e *Encryptor) Finalize() error {
	if err := e.writeHeaderIfNeeded(); err != nil {
		return err
	}
	padded := pkcs7Pad(e.buf)
	encrypted := make([]byte, len(padded))
	e.mode.CryptBlocks(encrypted, padded)
	if _, err := e.w.Write(encrypted); err != nil {
		return fmt.Errorf("write final encrypted block: %w", err)
	}
	e.buf = nil
	return nil
}
