// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

/*
Package objstore is the content-addressed catalogue of backup objects.
Rows are keyed by a caller-generated id; multiple historical versions of
the same (backup, media) pair can coexist until the scheduler's retention
pass prunes superseded ones via RemoveForMedia. The catalogue never
decides on its own which version is "current" — that is a property of
whichever row the scheduler most recently upserted.
*/
package objstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/tomtom215/vaultkeep/internal/backup"
	"github.com/tomtom215/vaultkeep/internal/engineerr"
)

// Store is the catalogue's CRUD facade.
type Store struct {
	db *sql.DB
}

// NewStore wraps an already-migrated catalogue database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const objectColumns = `id, backup, library, media, path, hash, sourcehash, size, modified, added, iv, thumb_size, info_size, error`

func scanObject(row rowScanner) (domain.BackupObject, error) {
	var o domain.BackupObject
	err := row.Scan(&o.ID, &o.Backup, &o.Library, &o.File, &o.Path, &o.Hash, &o.SourceHash,
		&o.Size, &o.Modified, &o.Added, &o.IV, &o.ThumbSize, &o.InfoSize, &o.Error)
	if err != nil {
		return domain.BackupObject{}, err
	}
	return o, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Get fetches one object by its generated id.
func (s *Store) Get(ctx context.Context, id string) (domain.BackupObject, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+objectColumns+` FROM backup_objects WHERE id = ?`, id)
	o, err := scanObject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.BackupObject{}, fmt.Errorf("%w: object %s", engineerr.ErrNotFound, id)
	}
	if err != nil {
		return domain.BackupObject{}, fmt.Errorf("get object: %w", err)
	}
	return o, nil
}

// CatalogueInfo is the scheduler's per-backup aggregate used to compute
// the next incremental cutoff.
type CatalogueInfo struct {
	MaxSourceModified int64
	TotalSize         int64
}

// GetCatalogueInfo reports the maximum modified timestamp and the sum of
// the recorded object sizes catalogued for backup, across every version
// of every object.
func (s *Store) GetCatalogueInfo(ctx context.Context, backup string) (CatalogueInfo, error) {
	var info CatalogueInfo
	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(modified), 0), COALESCE(SUM(size), 0) FROM backup_objects WHERE backup = ?`, backup)
	if err := row.Scan(&info.MaxSourceModified, &info.TotalSize); err != nil {
		return CatalogueInfo{}, fmt.Errorf("get catalogue info: %w", err)
	}
	return info, nil
}

// ListByBackup returns every catalogued object (every version) for a
// backup, ordered by added descending.
func (s *Store) ListByBackup(ctx context.Context, backup string) ([]domain.BackupObject, error) {
	return s.query(ctx, `SELECT `+objectColumns+` FROM backup_objects WHERE backup = ? ORDER BY added DESC`, backup)
}

// ListByLibrary returns every catalogued object for a library, across
// every backup that targets it, ordered by added descending.
func (s *Store) ListByLibrary(ctx context.Context, library string) ([]domain.BackupObject, error) {
	return s.query(ctx, `SELECT `+objectColumns+` FROM backup_objects WHERE library = ? ORDER BY added DESC`, library)
}

// ListByBackupMedia returns every version catalogued for (backup, media),
// ordered by added descending — the most recent version first.
func (s *Store) ListByBackupMedia(ctx context.Context, backup, media string) ([]domain.BackupObject, error) {
	return s.query(ctx,
		`SELECT `+objectColumns+` FROM backup_objects WHERE backup = ? AND media = ? ORDER BY added DESC`,
		backup, media)
}

// ListByLibraryMedia returns every version catalogued for (library,
// media) across whichever backups wrote it, ordered by added descending.
func (s *Store) ListByLibraryMedia(ctx context.Context, library, media string) ([]domain.BackupObject, error) {
	return s.query(ctx,
		`SELECT `+objectColumns+` FROM backup_objects WHERE library = ? AND media = ? ORDER BY added DESC`,
		library, media)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]domain.BackupObject, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	defer rows.Close()

	var out []domain.BackupObject
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan object row: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate object rows: %w", err)
	}
	return out, nil
}

// ExistsWithSourceHash reports whether any catalogued version of
// (backup, media) already carries sourcehash — the dedupe check the
// scheduler's candidate loop runs before ever opening a source stream.
func (s *Store) ExistsWithSourceHash(ctx context.Context, backup, media, sourcehash string) (bool, error) {
	var n int
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM backup_objects WHERE backup = ? AND media = ? AND sourcehash = ?`,
		backup, media, sourcehash)
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("check existing sourcehash: %w", err)
	}
	return n > 0, nil
}

// Upsert writes o to the catalogue. Idempotent on o.ID: a repeated
// Upsert with the same id replaces that row in place (used to set
// error on an already-landed object); a new id always inserts a new
// version, leaving prior versions of the same (backup, media) in place
// for the retention pruner to reconcile.
func (s *Store) Upsert(ctx context.Context, o domain.BackupObject) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO backup_objects (`+objectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			backup = excluded.backup, library = excluded.library, media = excluded.media,
			path = excluded.path, hash = excluded.hash, sourcehash = excluded.sourcehash,
			size = excluded.size, modified = excluded.modified, added = excluded.added,
			iv = excluded.iv, thumb_size = excluded.thumb_size, info_size = excluded.info_size,
			error = excluded.error`,
		o.ID, o.Backup, o.Library, o.File, o.Path, o.Hash, o.SourceHash,
		o.Size, o.Modified, o.Added, o.IV, o.ThumbSize, o.InfoSize, o.Error)
	if err != nil {
		return fmt.Errorf("upsert object: %w", err)
	}
	return nil
}

// Remove deletes one object by its generated id.
func (s *Store) Remove(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM backup_objects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

// ListStaleVersions reports every catalogued version of (backup, media)
// older than olderThan, except the row identified by exceptID, WITHOUT
// removing anything. The scheduler's deletion reconciliation reads this
// list, removes each object's destination bytes, then calls
// RemoveForMedia to clear the rows — so a crash between the two can
// leave rows whose bytes are gone, but never bytes with no row.
func (s *Store) ListStaleVersions(ctx context.Context, backup, media string, olderThan int64, exceptID string) ([]domain.BackupObject, error) {
	return s.query(ctx,
		`SELECT `+objectColumns+` FROM backup_objects WHERE backup = ? AND media = ? AND modified < ? AND id != ?`,
		backup, media, olderThan, exceptID)
}

// RemoveForMedia deletes every catalogued version of (backup, media)
// older than olderThan, except the row identified by exceptID. This is
// the single pruning primitive used both by retention (exceptID is the
// version just uploaded) and by deletion reconciliation (exceptID is
// empty, so every version is removed).
func (s *Store) RemoveForMedia(ctx context.Context, backup, media string, olderThan int64, exceptID string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM backup_objects WHERE backup = ? AND media = ? AND modified < ? AND id != ?`,
		backup, media, olderThan, exceptID)
	if err != nil {
		return 0, fmt.Errorf("remove objects for media: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count removed objects: %w", err)
	}
	return n, nil
}
