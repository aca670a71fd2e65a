// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

package scheduler

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"

	domainbackup "github.com/tomtom215/vaultkeep/internal/backup"
	"github.com/tomtom215/vaultkeep/internal/codec"
	"github.com/tomtom215/vaultkeep/internal/destination"
	"github.com/tomtom215/vaultkeep/internal/engineerr"
)

// snapshotIndex performs step 5: upload the logical "db" snapshot for a
// library-backed backup, or both "db" and "config" for a server-wide
// one, then prune versions of each logical name older than the
// retention window, keeping the one just uploaded. It returns the
// backup's new running total size.
func (s *Scheduler) snapshotIndex(ctx context.Context, b *domainbackup.Backup, dest destination.Provider, sizeSoFar int64) (int64, error) {
	total := sizeSoFar
	cutoff := s.Clock.Now().Add(-retentionWindow).UnixMilli()

	if b.Library != nil {
		path, err := s.Index.DatabaseFilePath(ctx, *b.Library)
		if err != nil {
			return total, fmt.Errorf("resolve library database path: %w", err)
		}
		desc := &codec.LibraryDescriptor{Library: *b.Library, File: logicalDB}
		n, err := s.snapshotOne(ctx, b, dest, logicalDB, func() (io.ReadCloser, string, error) {
			f, err := os.Open(path)
			return f, "application/x-sqlite3", err
		}, cutoff, desc)
		if err != nil {
			return total, err
		}
		total += n
		return total, nil
	}

	if s.ConfigSnapshot == nil {
		return total, nil
	}

	nDB, err := s.snapshotOne(ctx, b, dest, logicalDB, func() (io.ReadCloser, string, error) {
		r, err := s.ConfigSnapshot(ctx)
		return r, "application/x-sqlite3", err
	}, cutoff, nil)
	if err != nil {
		return total, err
	}
	total += nDB

	nConfig, err := s.snapshotOne(ctx, b, dest, logicalConfig, func() (io.ReadCloser, string, error) {
		r, err := s.ConfigSnapshot(ctx)
		return r, "application/json", err
	}, cutoff, nil)
	if err != nil {
		return total, err
	}
	total += nConfig

	return total, nil
}

// snapshotOne uploads one logical-name snapshot and retires superseded
// versions of the same logical name, mirroring the candidate loop's
// write path but against a fixed logical name instead of a media id.
func (s *Scheduler) snapshotOne(ctx context.Context, b *domainbackup.Backup, dest destination.Provider, logicalName string, open func() (io.ReadCloser, string, error), cutoff int64, embed *codec.LibraryDescriptor) (int64, error) {
	r, mime, err := open()
	if err != nil {
		return 0, fmt.Errorf("open %s snapshot source: %w", logicalName, err)
	}
	defer r.Close()

	path := objectPath(b, logicalName)
	var expectedSize *int64
	if st, ok := r.(interface{ Stat() (os.FileInfo, error) }); ok {
		if fi, err := st.Stat(); err == nil {
			es := estimatedWriteSize(b.Encrypted(), fi.Size())
			expectedSize = &es
		}
	}
	w, err := dest.OpenWrite(ctx, path, expectedSize, &mime)
	if err != nil {
		return 0, fmt.Errorf("%w: open destination write for %s snapshot: %v", engineerr.ErrDestinationIO, logicalName, err)
	}

	var envSize int64
	if embed != nil {
		envSize, err = codec.WriteEnvelope(w, *embed)
		if err != nil {
			w.Close()
			return 0, fmt.Errorf("%w: write library descriptor envelope for %s snapshot: %v", engineerr.ErrDestinationIO, logicalName, err)
		}
	}

	var iv []byte
	var n int64
	if b.Encrypted() {
		iv = make([]byte, codec.IVSize)
		if _, err := rand.Read(iv); err != nil {
			w.Close()
			return 0, fmt.Errorf("generate iv for %s snapshot: %w", logicalName, err)
		}
		key := codec.DeriveKey(*b.Password)
		enc, err := codec.NewEncryptor(w, key, iv, mime, nil, nil)
		if err != nil {
			w.Close()
			return 0, fmt.Errorf("create encryptor for %s snapshot: %w", logicalName, err)
		}
		n, err = io.Copy(enc, r)
		if err == nil {
			err = enc.Finalize()
		}
		if werr := w.Close(); err == nil {
			err = werr
		}
		if err != nil {
			return 0, fmt.Errorf("%w: encrypt and write %s snapshot: %v", engineerr.ErrDestinationIO, logicalName, err)
		}
	} else {
		n, err = io.Copy(w, r)
		if werr := w.Close(); err == nil {
			err = werr
		}
		if err != nil {
			return 0, fmt.Errorf("%w: write %s snapshot: %v", engineerr.ErrDestinationIO, logicalName, err)
		}
	}

	ivHex := ""
	var ivPtr *string
	if len(iv) > 0 {
		ivHex = fmt.Sprintf("%x", iv)
		ivPtr = &ivHex
	}

	total := n + envSize

	// fill_info the landed object so the snapshot row carries the
	// destination-observed hash, same as a candidate-loop upload.
	landed, err := dest.FillInfo(ctx, path)
	if err != nil {
		return total, fmt.Errorf("%w: fill info for %s snapshot: %v", engineerr.ErrDestinationIO, logicalName, err)
	}
	var hashPtr *string
	if landed.Hash != "" {
		hashPtr = &landed.Hash
	}

	id := newObjectID()
	now := s.Clock.Now().UnixMilli()
	if err := s.Store.Upsert(ctx, domainbackup.BackupObject{
		ID: id, Backup: b.ID, Library: b.Library, File: logicalName, Path: path, Hash: hashPtr,
		SourceHash: fmt.Sprintf("%s-%d", logicalName, now), Size: total, Modified: now, Added: now, IV: ivPtr,
	}); err != nil {
		return total, fmt.Errorf("upsert %s snapshot row: %w", logicalName, err)
	}

	// Retention: drop versions of this logical name older than the
	// window, keeping the row just written.
	if _, err := s.Store.RemoveForMedia(ctx, b.ID, logicalName, cutoff, id); err != nil {
		return total, fmt.Errorf("prune old %s snapshots: %w", logicalName, err)
	}
	return total, nil
}
