// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

/*
Package backup defines the domain model of the encrypted incremental backup
engine: the persistent Backup definition, the per-object BackupObject
catalogue row, and the ephemeral progress messages the scheduler emits while
a run is in flight.

The shapes here are deliberately thin. Ownership is one-directional — a
Backup owns its objects by id, never by embedding them — so a Library can be
deleted or reloaded without invalidating any in-memory Backup value. Nothing
in this package holds a reference to a Library; callers resolve Library (an
id) through the Library Index collaborator when they need the object.
*/
package backup

import "time"

// BackupStatus is the run-level state of a Backup's most recent or current
// execution.
type BackupStatus string

const (
	StatusIdle       BackupStatus = "idle"
	StatusInProgress BackupStatus = "in_progress"
	StatusDone       BackupStatus = "done"
	StatusError      BackupStatus = "error"
)

// FileProgressStatus is the state-machine position of a single file upload
// (or deletion) within a run. Queued/Opening/Transferring/Finalizing are
// transient; Done and Error are terminal.
type FileProgressStatus string

const (
	FileQueued       FileProgressStatus = "queued"
	FileOpening      FileProgressStatus = "opening"
	FileTransferring FileProgressStatus = "transferring"
	FileFinalizing   FileProgressStatus = "finalizing"
	FileDone         FileProgressStatus = "done"
	FileError        FileProgressStatus = "error"
)

// Reserved logical file names for server-wide snapshots. These MUST NOT
// collide with a media id.
const (
	LogicalDB     = "db"
	LogicalConfig = "config"
)

// Backup is a persistent, user-configured definition of what to copy where.
// A Backup is created, mutated, and destroyed only through the Controller
// (C6); deleting a Backup does not cascade-delete its BackupObjects —
// orphan collection is explicit, by design (see the pruning primitives on
// the Object Store).
type Backup struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Source      string  `json:"source"` // Destination Provider tag
	Plugin      *string `json:"plugin,omitempty"`
	Credentials *string `json:"credentials,omitempty"` // opaque handle, see CredentialResolver
	Library     *string `json:"library,omitempty"`     // nil => server-wide (db + config only)
	Path        string  `json:"path"`                  // root prefix inside the destination
	Schedule    *string `json:"schedule,omitempty"`     // cron-style or monotonic period; nil => trigger-only
	Filter      *string `json:"filter,omitempty"`       // opaque media query handed to the Library Index
	Last        *int64  `json:"last,omitempty"`         // ms, timestamp of last successful run
	Password    *string `json:"-"`                      // never serialized; if set, objects are encrypted
	Size        int64   `json:"size"`                   // running total bytes, informational
}

// Encrypted reports whether objects written under this backup must be
// encrypted (invariant 4, spec §3).
func (b *Backup) Encrypted() bool {
	return b.Password != nil && *b.Password != ""
}

// BackupCreate is the Controller-boundary DTO for creating a Backup.
// Unlike the stored Backup, every optional field is explicit here so the
// validator can enforce presence independent of the domain struct's zero
// values. Grounded on the original BackupForAdd, which carries the same
// fields with the same optionality.
type BackupCreate struct {
	Name        string  `json:"name" validate:"required"`
	Source      string  `json:"source" validate:"required"`
	Plugin      *string `json:"plugin,omitempty"`
	Credentials *string `json:"credentials,omitempty"`
	Library     *string `json:"library,omitempty"`
	Path        string  `json:"path" validate:"required"`
	Schedule    *string `json:"schedule,omitempty"`
	Filter      *string `json:"filter,omitempty"`
	Password    *string `json:"password,omitempty"`
}

// BackupUpdate is the Controller-boundary DTO for partial updates. A nil
// field means "leave unchanged".
type BackupUpdate struct {
	Name        *string `json:"name,omitempty"`
	Plugin      *string `json:"plugin,omitempty"`
	Credentials *string `json:"credentials,omitempty"`
	Path        *string `json:"path,omitempty"`
	Schedule    *string `json:"schedule,omitempty"`
	Filter      *string `json:"filter,omitempty"`
	Password    *string `json:"password,omitempty"`
}

// BackupObject is one stored, possibly-encrypted artefact on the
// destination, tied to exactly one source item (or to the reserved logical
// names "db"/"config" for server-wide snapshots).
type BackupObject struct {
	ID         string  `json:"id"`
	Backup     string  `json:"backup"`
	Library    *string `json:"library,omitempty"`
	File       string  `json:"file"` // media id, or "db"/"config"
	Path       string  `json:"path"` // destination-relative path
	Hash       *string `json:"hash,omitempty"`
	SourceHash string  `json:"sourcehash"` // dedupe key within a backup
	Size       int64   `json:"size"`       // plaintext bytes
	Modified   int64   `json:"modified"`   // source mtime, ms
	Added      int64   `json:"added"`      // capture time, ms
	IV         *string `json:"iv,omitempty"`
	ThumbSize  *int64  `json:"thumb_size,omitempty"`
	InfoSize   *int64  `json:"info_size,omitempty"`
	Error      *string `json:"error,omitempty"`
}

// BackupError is a per-candidate failure row (error taxonomy: DestinationIO,
// CorruptObject, CredentialRejected, Internal). Per-file errors never abort
// a run; they are recorded here and the candidate loop continues.
type BackupError struct {
	Backup  string    `json:"backup"`
	Library *string   `json:"library,omitempty"`
	Media   string    `json:"media"`
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// BackupProcessStatus is the ephemeral run-level status broadcast on the
// Progress Bus.
type BackupProcessStatus struct {
	Backup                    string               `json:"backup"`
	Library                   *string              `json:"library,omitempty"`
	Status                    BackupStatus         `json:"status"`
	Time                      int64                `json:"time"` // ms
	Total                     int                  `json:"total"`
	Current                   int                  `json:"current"`
	TotalSize                 int64                `json:"total_size"`
	CurrentSize               int64                `json:"current_size"`
	EstimatedRemainingSeconds *uint64              `json:"estimated_remaining_seconds,omitempty"`
	Files                     []BackupFileProgress `json:"files,omitempty"`
}

// NewBackupProcessStatusInProgress starts a run-level status at the
// beginning of a run.
func NewBackupProcessStatusInProgress(b *Backup, total int, totalSize int64) BackupProcessStatus {
	return BackupProcessStatus{
		Backup:    b.ID,
		Library:   b.Library,
		Status:    StatusInProgress,
		Time:      nowMillis(),
		Total:     total,
		TotalSize: totalSize,
	}
}

// NewBackupProcessStatusIdle is the at-rest status for a backup with no run
// in flight.
func NewBackupProcessStatusIdle(b *Backup) BackupProcessStatus {
	return BackupProcessStatus{Backup: b.ID, Library: b.Library, Status: StatusIdle}
}

// NewBackupProcessStatusDone is the terminal status for a completed run.
func NewBackupProcessStatusDone(b *Backup) BackupProcessStatus {
	return BackupProcessStatus{Backup: b.ID, Library: b.Library, Status: StatusDone, Time: nowMillis()}
}

// NewBackupProcessStatusError is the terminal status for a run aborted by
// a per-run error (as opposed to an isolated per-file error, which never
// aborts the run).
func NewBackupProcessStatusError(b *Backup) BackupProcessStatus {
	return BackupProcessStatus{Backup: b.ID, Library: b.Library, Status: StatusError, Time: nowMillis()}
}

// BackupFileProgress is the ephemeral per-file status broadcast on the
// Progress Bus, following the Queued->Opening->Transferring->Finalizing->
// {Done,Error} state machine.
type BackupFileProgress struct {
	ID                        string             `json:"id"`
	Backup                    string             `json:"backup"`
	Library                   *string            `json:"library,omitempty"`
	File                      string             `json:"file"`
	Name                      string             `json:"name"`
	Size                      *int64             `json:"size,omitempty"`
	Progress                  uint64             `json:"progress"` // bytes transferred so far
	Status                    FileProgressStatus `json:"status"`
	Error                     *string            `json:"error,omitempty"`
	EstimatedRemainingSeconds *uint64            `json:"estimated_remaining_seconds,omitempty"`
}

// nowMillis is overridable in tests; production code always uses wall time.
var nowMillis = func() int64 { return time.Now().UnixMilli() }
