// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

// Package engineerr defines the backup engine's error taxonomy as sentinel
// errors, compared with errors.Is and wrapped with fmt.Errorf("...: %w", err)
// at each call site in the style the rest of this codebase uses for
// database and provider errors.
package engineerr

import "errors"

var (
	// ErrNotFound: a referenced Backup, Object, library, or media is absent.
	ErrNotFound = errors.New("not found")

	// ErrConflict: an attempted run overlaps an ongoing one. Surfaced as a
	// skip, never recorded as a backup_errors row.
	ErrConflict = errors.New("backup already in progress")

	// ErrDestinationIO: provider-level failure (network, auth, quota).
	// Retried implicitly on the next scheduled run.
	ErrDestinationIO = errors.New("destination provider I/O failure")

	// ErrCorruptObject: codec header or padding invalid on read. Fatal to
	// the read attempt; does not mutate state. A decrypt attempt with the
	// wrong key is indistinguishable from this and fails the same way.
	ErrCorruptObject = errors.New("unable to decrypt or verify backup object")

	// ErrCredentialRejected: provider reports auth failure. Surfaces to the
	// user; the run aborts for that backup only.
	ErrCredentialRejected = errors.New("destination provider rejected credentials")

	// ErrUserCancel: explicit cancellation. Not recorded as an error row.
	ErrUserCancel = errors.New("backup run cancelled")

	// ErrInternal: invariants violated, e.g. a provider returned a writer
	// that refused flush.
	ErrInternal = errors.New("internal backup engine error")
)
