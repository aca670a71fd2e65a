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

const payloadChunkSize = 32 * 1024

// Decryptor parses a ciphertext stream produced by Encryptor and exposes
// the decrypted payload as an io.Reader. The thumbnail and metadata
// sidecars, being small, are fully decrypted during NewDecryptor and
// available immediately as Thumb/Meta.
type Decryptor struct {
	SourceMime string
	ThumbMime  string
	Thumb      []byte
	Meta       []byte

	src  io.Reader
	mode cipher.BlockMode

	held []byte // ciphertext bytes read but not yet decrypted
	out  []byte // decrypted bytes ready to be returned by Read
	eof  bool
}

// NewDecryptor reads the cleartext frame header from r, decrypts the
// thumbnail and metadata sidecars, and prepares a Decryptor whose Read
// method streams the decrypted payload. key must be the correct AES-256
// key. The header carries no key check, so a wrong key usually surfaces
// as a padding error: here when a sidecar is present, otherwise once Read
// reaches the final payload block.
func NewDecryptor(r io.Reader, key []byte) (*Decryptor, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", errCorruptHeader, KeySize, len(key))
	}

	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: short header (%v)", errCorruptHeader, err)
	}

	iv := header[0:IVSize]
	thumbLen := binary.BigEndian.Uint32(header[16:20])
	metaLen := binary.BigEndian.Uint32(header[20:24])
	thumbMime := trimMime(header[24 : 24+thumbMimeSize])
	sourceMime := trimMime(header[24+thumbMimeSize : HeaderSize])

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create aes cipher: %w", err)
	}

	thumb, err := readAndDecryptWhole(r, block, iv, thumbLen)
	if err != nil {
		return nil, fmt.Errorf("decrypt thumbnail: %w", err)
	}
	meta, err := readAndDecryptWhole(r, block, iv, metaLen)
	if err != nil {
		return nil, fmt.Errorf("decrypt metadata: %w", err)
	}

	return &Decryptor{
		SourceMime: sourceMime,
		ThumbMime:  thumbMime,
		Thumb:      thumb,
		Meta:       meta,
		src:        r,
		mode:       cipher.NewCBCDecrypter(block, iv),
	}, nil
}

func readAndDecryptWhole(r io.Reader, block cipher.Block, iv []byte, n uint32) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	ciphertext := make([]byte, n)
	if _, err := io.ReadFull(r, ciphertext); err != nil {
		return nil, fmt.Errorf("%w: short section (%v)", errCorruptHeader, err)
	}
	if n%blockSize != 0 {
		return nil, fmt.Errorf("%w: section length %d not block-aligned", errCorruptHeader, n)
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return pkcs7Unpad(plaintext)
}

// Read streams decrypted payload bytes. Like Encryptor.Write in reverse, it
// always holds back the final ciphertext block until the underlying reader
// is exhausted, so PKCS7 unpadding is applied exactly once, to the true
// final block, regardless of how the caller chunks its reads.
func (d *Decryptor) Read(p []byte) (int, error) {
	for len(d.out) == 0 {
		if d.eof {
			return 0, io.EOF
		}
		if err := d.fill(); err != nil {
			return 0, err
		}
	}
	n := copy(p, d.out)
	d.out = d.out[n:]
	return n, nil
}

func (d *Decryptor) fill() error {
	chunk := make([]byte, payloadChunkSize)
	n, err := d.src.Read(chunk)
	d.held = append(d.held, chunk[:n]...)

	if err == io.EOF {
		if len(d.held)%blockSize != 0 {
			return fmt.Errorf("%w: final payload length %d not block-aligned", errCorruptPadding, len(d.held))
		}
		plaintext := make([]byte, len(d.held))
		d.mode.CryptBlocks(plaintext, d.held)
		unpadded, uerr := pkcs7Unpad(plaintext)
		if uerr != nil {
			return uerr
		}
		d.out = unpadded
		d.held = nil
		d.eof = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("read ciphertext: %w", err)
	}

	completeBlocks := len(d.held) / blockSize
	if completeBlocks <= 1 {
		// Hold back everything: fewer than two complete blocks means we
		// cannot yet be sure which block is the true final one.
		return nil
	}
	completeBlocks-- // always hold back one block until EOF confirms it's final
	decryptLen := completeBlocks * blockSize
	plaintext := make([]byte, decryptLen)
	d.mode.CryptBlocks(plaintext, d.held[:decryptLen])
	d.out = plaintext
	d.held = d.held[decryptLen:]
	return nil
}
