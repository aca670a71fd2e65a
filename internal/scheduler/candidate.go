// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

package scheduler

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	domainbackup "github.com/tomtom215/vaultkeep/internal/backup"
	"github.com/tomtom215/vaultkeep/internal/codec"
	"github.com/tomtom215/vaultkeep/internal/destination"
	"github.com/tomtom215/vaultkeep/internal/engineerr"
	"github.com/tomtom215/vaultkeep/internal/metrics"
	"github.com/tomtom215/vaultkeep/internal/progressbus"
	"github.com/tomtom215/vaultkeep/internal/progressreader"
)

// backupOne performs candidate-loop steps (a)-(f) for one candidate:
// dedupe check, source open, destination write, and catalogue commit or
// error recording. A returned error never aborts the run; the caller
// logs it and proceeds to the next candidate.
func (s *Scheduler) backupOne(ctx context.Context, b *domainbackup.Backup, dest destination.Provider, c domainbackup.MediaCandidate, current, total int, totalSize int64, currentSize *int64) error {
	library := ""
	if b.Library != nil {
		library = *b.Library
	}

	sourcehash, err := s.Index.SourceHash(ctx, library, c.MediaID)
	if err != nil {
		return s.recordFileError(ctx, b, c.MediaID, fmt.Errorf("compute source hash: %w", err))
	}

	// Step 4a: dedupe check. A matching sourcehash means the media is
	// unchanged since the last successful upload of this exact content;
	// skip the candidate without opening a source stream at all.
	exists, err := s.Store.ExistsWithSourceHash(ctx, b.ID, c.MediaID, sourcehash)
	if err != nil {
		return s.recordFileError(ctx, b, c.MediaID, fmt.Errorf("check dedupe: %w", err))
	}
	if exists {
		metrics.DedupeSkips.WithLabelValues(b.ID).Inc()
		return nil
	}

	progress := domainbackup.BackupFileProgress{
		ID:      newObjectID(),
		Backup:  b.ID,
		Library: b.Library,
		File:    c.MediaID,
		Name:    c.MediaID,
		Size:    &c.Size,
	}
	s.Bus.Publish(progressbus.Event{Kind: progressbus.KindFileProgress, File: withStatus(progress, domainbackup.FileOpening)})

	// Step 4b: open source stream.
	src, mime, _, err := s.Sources.Open(ctx, c.MediaID)
	if err != nil {
		return s.recordFileError(ctx, b, c.MediaID, fmt.Errorf("open source: %w", err))
	}

	path := objectPath(b, c.MediaID)

	// Step 4c: open destination writer, hinting the expected ciphertext
	// size (accounting for encryption overhead when the backup encrypts)
	// and the source mime type.
	expectedSize := estimatedWriteSize(b.Encrypted(), c.Size)
	w, err := dest.OpenWrite(ctx, path, &expectedSize, &mime)
	if err != nil {
		src.Close()
		return s.recordFileError(ctx, b, c.MediaID, fmt.Errorf("%w: open destination write: %v", engineerr.ErrDestinationIO, err))
	}

	wrapped := progressreader.New(src, s.Bus, progress)

	var iv []byte
	var objSize int64
	if b.Encrypted() {
		iv = make([]byte, codec.IVSize)
		if _, err := rand.Read(iv); err != nil {
			wrapped.Close()
			w.Close()
			return s.recordFileError(ctx, b, c.MediaID, fmt.Errorf("generate iv: %w", err))
		}
		key := codec.DeriveKey(*b.Password)
		enc, err := codec.NewEncryptor(w, key, iv, mime, nil, nil)
		if err != nil {
			wrapped.Close()
			w.Close()
			return s.recordFileError(ctx, b, c.MediaID, fmt.Errorf("create encryptor: %w", err))
		}
		n, err := io.Copy(enc, wrapped)
		closeErr := wrapped.Close()
		if err == nil {
			err = enc.Finalize()
		}
		if werr := w.Close(); err == nil {
			err = werr
		}
		if err == nil {
			err = closeErr
		}
		if err != nil {
			return s.recordFileError(ctx, b, c.MediaID, fmt.Errorf("%w: encrypt and write: %v", engineerr.ErrDestinationIO, err))
		}
		objSize = n
	} else {
		n, err := io.Copy(w, wrapped)
		closeErr := wrapped.Close()
		if werr := w.Close(); err == nil {
			err = werr
		}
		if err == nil {
			err = closeErr
		}
		if err != nil {
			return s.recordFileError(ctx, b, c.MediaID, fmt.Errorf("%w: write: %v", engineerr.ErrDestinationIO, err))
		}
		objSize = n
	}

	*currentSize += objSize

	// Step 4d: fill_info the landed object so the catalogue row carries
	// the destination-observed hash of what was actually written.
	landed, err := dest.FillInfo(ctx, path)
	if err != nil {
		return s.recordFileError(ctx, b, c.MediaID, fmt.Errorf("%w: fill info: %v", engineerr.ErrDestinationIO, err))
	}
	var hashPtr *string
	if landed.Hash != "" {
		hashPtr = &landed.Hash
	}

	// Step 4e: commit the new version.
	ivHex := ""
	var ivPtr *string
	if len(iv) > 0 {
		ivHex = fmt.Sprintf("%x", iv)
		ivPtr = &ivHex
	}
	obj := domainbackup.BackupObject{
		ID:         newObjectID(),
		Backup:     b.ID,
		Library:    b.Library,
		File:       c.MediaID,
		Path:       path,
		Hash:       hashPtr,
		SourceHash: sourcehash,
		Size:       objSize,
		Modified:   c.Modified,
		Added:      s.Clock.Now().UnixMilli(),
		IV:         ivPtr,
	}
	if err := s.Store.Upsert(ctx, obj); err != nil {
		return fmt.Errorf("upsert catalogue row: %w", err)
	}
	metrics.ObjectsUpserted.WithLabelValues(b.ID).Inc()
	metrics.BytesTransferred.WithLabelValues(b.ID).Add(float64(objSize))

	s.Bus.Publish(progressbus.Event{
		Kind: progressbus.KindStatus,
		Status: domainbackup.BackupProcessStatus{
			Backup: b.ID, Library: b.Library, Status: domainbackup.StatusInProgress,
			Total: total, Current: current, TotalSize: totalSize, CurrentSize: *currentSize,
		},
	})
	return nil
}

func (s *Scheduler) recordFileError(ctx context.Context, b *domainbackup.Backup, mediaID string, cause error) error {
	msg := cause.Error()
	errEvt := domainbackup.BackupFileProgress{
		ID: newObjectID(), Backup: b.ID, Library: b.Library, File: mediaID, Name: mediaID,
		Status: domainbackup.FileError, Error: &msg,
	}
	s.Bus.Publish(progressbus.Event{Kind: progressbus.KindFileProgress, File: errEvt})

	metrics.FileErrors.WithLabelValues(b.ID, errKind(cause)).Inc()

	if err := s.Store.InsertError(ctx, domainbackup.BackupError{
		Backup: b.ID, Library: b.Library, Media: mediaID, Time: s.Clock.Now(), Message: msg,
	}); err != nil {
		return fmt.Errorf("record error for %s after %q: %w", mediaID, msg, err)
	}
	return cause
}

func errKind(err error) string {
	switch {
	case errors.Is(err, engineerr.ErrDestinationIO):
		return "destination_io"
	case errors.Is(err, engineerr.ErrCorruptObject):
		return "corrupt_object"
	case errors.Is(err, engineerr.ErrCredentialRejected):
		return "credential_rejected"
	default:
		return "internal"
	}
}

func withStatus(p domainbackup.BackupFileProgress, status domainbackup.FileProgressStatus) domainbackup.BackupFileProgress {
	p.Status = status
	return p
}

func objectPath(b *domainbackup.Backup, logicalName string) string {
	return b.Path + "/" + logicalName
}
