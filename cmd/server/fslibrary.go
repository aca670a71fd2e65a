// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	domainbackup "github.com/tomtom215/vaultkeep/internal/backup"
)

// fsLibraryIndex is a minimal filesystem-backed LibraryIndex and
// SourceProvider so this binary runs standalone against a local
// directory tree. It treats library as a directory name under the
// process's working directory and each regular file beneath it as one
// media item, addressed by its slash-separated path relative to the
// working directory (so the same id can be handed straight to Open).
// It does not track deletions: TombstonesSince always returns nothing,
// since a plain directory walk has no record of what used to be there.
// A host application with a real media catalogue supplies its own
// LibraryIndex and SourceProvider instead of this one.
type fsLibraryIndex struct{}

func (fsLibraryIndex) MediaModifiedSince(_ context.Context, library string, cutoff int64, _ *string) ([]domainbackup.MediaCandidate, error) {
	root := filepath.Join(".", library)
	var out []domainbackup.MediaCandidate
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		modMillis := info.ModTime().UnixMilli()
		if modMillis <= cutoff {
			return nil
		}
		out = append(out, domainbackup.MediaCandidate{
			MediaID:  filepath.ToSlash(path),
			Modified: modMillis,
			Size:     info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (fsLibraryIndex) TombstonesSince(_ context.Context, _ string, _ int64) ([]domainbackup.Tombstone, error) {
	return nil, nil
}

func (fsLibraryIndex) SourceHash(_ context.Context, _, mediaID string) (string, error) {
	f, err := os.Open(filepath.FromSlash(mediaID))
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (fsLibraryIndex) DatabaseFilePath(_ context.Context, library string) (string, error) {
	return filepath.Join(".", library, ".index.db"), nil
}

func (fsLibraryIndex) Open(_ context.Context, mediaID string) (io.ReadCloser, string, *int64, error) {
	path := filepath.FromSlash(mediaID)
	f, err := os.Open(path)
	if err != nil {
		return nil, "", nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, "", nil, err
	}
	size := st.Size()
	return f, "application/octet-stream", &size, nil
}
