// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

package backup

import (
	"context"
	"io"
	"time"
)

// MediaCandidate is one item the Library Index offers the Scheduler as a
// backup candidate.
type MediaCandidate struct {
	MediaID  string
	Modified int64 // ms
	Size     int64 // plaintext bytes, best-effort estimate
}

// Tombstone is a library-side record that a media id has been deleted.
type Tombstone struct {
	MediaID string
	At      int64 // ms
}

// LibraryIndex is the external collaborator that knows about media items,
// their modification times, and their deletions. The engine never embeds a
// Library value — only its id — and resolves everything else through this
// interface, per the cyclic-graph design note.
type LibraryIndex interface {
	// MediaModifiedSince returns candidates whose Modified exceeds cutoff
	// and which satisfy the backup's opaque filter, ordered ascending by
	// (Modified, MediaID).
	MediaModifiedSince(ctx context.Context, library string, cutoff int64, filter *string) ([]MediaCandidate, error)

	// TombstonesSince returns media deletions recorded after `since`.
	TombstonesSince(ctx context.Context, library string, since int64) ([]Tombstone, error)

	// SourceHash returns the current plaintext hash of a media item, used
	// for the dedupe check in the candidate loop.
	SourceHash(ctx context.Context, library, mediaID string) (string, error)

	// DatabaseFilePath returns the on-disk path of the library's database
	// file, for the per-run DB snapshot step.
	DatabaseFilePath(ctx context.Context, library string) (string, error)
}

// SourceProvider yields plaintext byte streams for library items. It is the
// read-side counterpart of Destination Provider and is supplied by the host
// application (media storage, not this engine's concern).
type SourceProvider interface {
	// Open returns a plaintext reader for the given media id, its reported
	// mime type, and its size if known up front.
	Open(ctx context.Context, mediaID string) (r io.ReadCloser, mime string, size *int64, err error)
}

// Credential is the resolved secret material a Destination Provider needs
// to authenticate, opaque to the engine itself.
type Credential struct {
	Handle string
	Secret []byte
	Extra  map[string]string
}

// CredentialResolver resolves a Backup.Credentials handle into usable
// secret material. Supplied by the host application; the engine never
// persists resolved credentials.
type CredentialResolver interface {
	Resolve(ctx context.Context, handle string) (Credential, error)
}

// RunClock abstracts wall-clock time so scheduler tests can control "now"
// without sleeping. Production code uses systemClock.
type RunClock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the production RunClock.
var SystemClock RunClock = systemClock{}
