// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

package codec

import (
	"bytes"
	"testing"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := LibraryDescriptor{Library: "lib-1", File: "db"}

	n, err := WriteEnvelope(&buf, want)
	if err != nil {
		t.Fatalf("WriteEnvelope: %v", err)
	}
	if n != int64(buf.Len()) {
		t.Errorf("WriteEnvelope returned %d, buffer holds %d bytes", n, buf.Len())
	}

	buf.WriteString("trailing codec frame bytes")

	got, err := ReadEnvelope(&buf)
	if err != nil {
		t.Fatalf("ReadEnvelope: %v", err)
	}
	if got != want {
		t.Errorf("ReadEnvelope = %+v, want %+v", got, want)
	}

	rest, err := buf.ReadString(0)
	if err == nil {
		t.Fatalf("unexpected read: %q", rest)
	}
	if rest != "trailing codec frame bytes" {
		t.Errorf("remaining reader = %q, want trailing codec frame bytes", rest)
	}
}

func TestReadEnvelopeTruncated(t *testing.T) {
	if _, err := ReadEnvelope(bytes.NewReader([]byte{1, 2})); err == nil {
		t.Fatal("expected error reading truncated envelope length")
	}
}
