// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

package codec

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io"
	"testing"

	"github.com/tomtom215/vaultkeep/internal/engineerr"
)

func mustIV(t *testing.T) []byte {
	t.Helper()
	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		t.Fatalf("generate iv: %v", err)
	}
	return iv
}

func encryptAll(t *testing.T, key, iv []byte, sourceMime string, thumb *ThumbInput, meta, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc, err := NewEncryptor(&buf, key, iv, sourceMime, thumb, meta)
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	if len(payload) > 0 {
		if _, err := enc.Write(payload); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := enc.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		payload []byte
		thumb   *ThumbInput
		meta    []byte
	}{
		{name: "empty payload no sidecars", payload: nil},
		{name: "small payload", payload: []byte("hello, vaultkeep")},
		{name: "block aligned payload", payload: bytes.Repeat([]byte{0xAB}, 64)},
		{name: "with thumb and meta", payload: bytes.Repeat([]byte("x"), 5000),
			thumb: &ThumbInput{Bytes: []byte("thumbnail-bytes"), Mime: "image/jpeg"},
			meta:  []byte(`{"title":"example"}`)},
		{name: "large payload", payload: bytes.Repeat([]byte{0x42}, 1 << 20)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key := bytes.Repeat([]byte{0x01}, KeySize)
			iv := mustIV(t)

			ciphertext := encryptAll(t, key, iv, "application/octet-stream", tc.thumb, tc.meta, tc.payload)

			dec, err := NewDecryptor(bytes.NewReader(ciphertext), key)
			if err != nil {
				t.Fatalf("NewDecryptor: %v", err)
			}
			if dec.SourceMime != "application/octet-stream" {
				t.Errorf("SourceMime = %q", dec.SourceMime)
			}
			if tc.thumb != nil {
				if !bytes.Equal(dec.Thumb, tc.thumb.Bytes) {
					t.Errorf("Thumb mismatch: got %q want %q", dec.Thumb, tc.thumb.Bytes)
				}
				if dec.ThumbMime != tc.thumb.Mime {
					t.Errorf("ThumbMime = %q want %q", dec.ThumbMime, tc.thumb.Mime)
				}
			} else if len(dec.Thumb) != 0 {
				t.Errorf("expected no thumb, got %d bytes", len(dec.Thumb))
			}
			if !bytes.Equal(dec.Meta, tc.meta) && !(len(dec.Meta) == 0 && len(tc.meta) == 0) {
				t.Errorf("Meta mismatch: got %q want %q", dec.Meta, tc.meta)
			}

			got, err := io.ReadAll(dec)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if !bytes.Equal(got, tc.payload) && !(len(got) == 0 && len(tc.payload) == 0) {
				t.Errorf("payload mismatch: got %d bytes want %d bytes", len(got), len(tc.payload))
			}
		})
	}
}

// TestEstimatedSizeEmptyPlaintext pins the zero-length-plaintext ambiguity
// resolution: an empty payload with no thumbnail or metadata produces
// exactly one padding block beyond the header.
func TestEstimatedSizeEmptyPlaintext(t *testing.T) {
	got := EstimatedSize(0, nil, nil)
	want := int64(328)
	if got != want {
		t.Errorf("EstimatedSize(0, nil, nil) = %d, want %d", got, want)
	}

	key := bytes.Repeat([]byte{0x02}, KeySize)
	iv := mustIV(t)
	ciphertext := encryptAll(t, key, iv, "text/plain", nil, nil, nil)
	if int64(len(ciphertext)) != want {
		t.Errorf("actual empty-payload ciphertext length = %d, want %d", len(ciphertext), want)
	}
}

// TestEstimatedSizeSixteenBytePlaintext pins the scenario where a payload
// already block-aligned still gains a full padding block.
func TestEstimatedSizeSixteenBytePlaintext(t *testing.T) {
	sixteen := int64(16)
	got := EstimatedSize(sixteen, nil, nil)
	want := int64(344)
	if got != want {
		t.Errorf("EstimatedSize(16, nil, nil) = %d, want %d", got, want)
	}

	key := bytes.Repeat([]byte{0x03}, KeySize)
	iv := mustIV(t)
	ciphertext := encryptAll(t, key, iv, "text/plain", nil, nil, bytes.Repeat([]byte{0x09}, 16))
	if int64(len(ciphertext)) != want {
		t.Errorf("actual 16-byte-payload ciphertext length = %d, want %d", len(ciphertext), want)
	}
}

func TestEstimatedSizeAbsentSidecarsContributeZero(t *testing.T) {
	withNil := EstimatedSize(100, nil, nil)
	zero := int64(0)
	withZero := EstimatedSize(100, &zero, &zero)
	if withNil == withZero {
		t.Fatalf("expected absent (nil) sidecars to differ from present-but-empty sidecars")
	}
	// absent thumb/meta: 0 contribution each; present-but-empty: pad16(0)=16 each.
	if withZero-withNil != 32 {
		t.Errorf("present-but-empty sidecars should each add one padding block: diff = %d, want 32", withZero-withNil)
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	key := bytes.Repeat([]byte{0x04}, KeySize)
	wrongKey := bytes.Repeat([]byte{0x05}, KeySize)
	iv := mustIV(t)

	ciphertext := encryptAll(t, key, iv, "text/plain", nil, nil, []byte("some plaintext payload"))

	dec, err := NewDecryptor(bytes.NewReader(ciphertext), wrongKey)
	if err != nil {
		// Header decryption success/failure depends only on the IV stored
		// in cleartext, so NewDecryptor itself should succeed; the wrong
		// key surfaces when decrypting the payload below. Either failure
		// point is acceptable as long as it is reported.
		if !errors.Is(err, engineerr.ErrCorruptObject) {
			t.Fatalf("expected ErrCorruptObject, got %v", err)
		}
		return
	}

	_, err = io.ReadAll(dec)
	if err == nil {
		t.Fatal("expected decrypting payload with wrong key to fail")
	}
	if !errors.Is(err, engineerr.ErrCorruptObject) {
		t.Errorf("expected ErrCorruptObject, got %v", err)
	}
}

func TestNewEncryptorRejectsBadKeySize(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewEncryptor(&buf, []byte("too short"), mustIV(t), "text/plain", nil, nil)
	if err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestNewDecryptorRejectsShortHeader(t *testing.T) {
	_, err := NewDecryptor(bytes.NewReader([]byte("too short to be a header")), bytes.Repeat([]byte{0x06}, KeySize))
	if !errors.Is(err, engineerr.ErrCorruptObject) {
		t.Errorf("expected ErrCorruptObject, got %v", err)
	}
}

func TestPad16(t *testing.T) {
	cases := map[int64]int64{
		0:  16,
		1:  16,
		15: 16,
		16: 32,
		17: 32,
		31: 32,
		32: 48,
	}
	for n, want := range cases {
		if got := pad16(n); got != want {
			t.Errorf("pad16(%d) = %d, want %d", n, got, want)
		}
	}
}
