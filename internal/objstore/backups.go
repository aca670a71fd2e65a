// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

package objstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/tomtom215/vaultkeep/internal/backup"
	"github.com/tomtom215/vaultkeep/internal/engineerr"
)

const backupColumns = `id, name, source, plugin, credentials, library, path, schedule, filter, last, password, size`

func scanBackup(row rowScanner) (domain.Backup, error) {
	var b domain.Backup
	err := row.Scan(&b.ID, &b.Name, &b.Source, &b.Plugin, &b.Credentials, &b.Library,
		&b.Path, &b.Schedule, &b.Filter, &b.Last, &b.Password, &b.Size)
	if err != nil {
		return domain.Backup{}, err
	}
	return b, nil
}

// ListBackups returns every configured Backup, implementing the
// Controller's BackupRepository.List.
func (s *Store) ListBackups(ctx context.Context) ([]domain.Backup, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+backupColumns+` FROM backups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	var out []domain.Backup
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup row: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backup rows: %w", err)
	}
	return out, nil
}

// GetBackup fetches one Backup by id.
func (s *Store) GetBackup(ctx context.Context, id string) (domain.Backup, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+backupColumns+` FROM backups WHERE id = ?`, id)
	b, err := scanBackup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Backup{}, fmt.Errorf("%w: backup %s", engineerr.ErrNotFound, id)
	}
	if err != nil {
		return domain.Backup{}, fmt.Errorf("get backup: %w", err)
	}
	return b, nil
}

// InsertBackup writes a newly-created Backup definition.
func (s *Store) InsertBackup(ctx context.Context, b domain.Backup) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO backups (`+backupColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, b.Source, b.Plugin, b.Credentials, b.Library,
		b.Path, b.Schedule, b.Filter, b.Last, b.Password, b.Size)
	if err != nil {
		return fmt.Errorf("insert backup: %w", err)
	}
	return nil
}

// UpdateBackup overwrites an existing Backup row in full. Used both by
// the Controller (definition edits) and the Scheduler (size/last commit
// after a run).
func (s *Store) UpdateBackup(ctx context.Context, b domain.Backup) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE backups SET name=?, source=?, plugin=?, credentials=?, library=?, path=?, schedule=?, filter=?, last=?, password=?, size=? WHERE id=?`,
		b.Name, b.Source, b.Plugin, b.Credentials, b.Library, b.Path, b.Schedule, b.Filter, b.Last, b.Password, b.Size, b.ID)
	if err != nil {
		return fmt.Errorf("update backup: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("count updated backup rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: backup %s", engineerr.ErrNotFound, b.ID)
	}
	return nil
}

// DeleteBackup removes a Backup definition. BackupObjects belonging to
// it are left untouched; orphan collection is a separate operation.
func (s *Store) DeleteBackup(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM backups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete backup: %w", err)
	}
	return nil
}

// BackupRepo adapts Store's Xxx Backup-suffixed methods to the short
// List/Get/Insert/Update/Delete names the Controller's BackupRepository
// interface expects.
type BackupRepo struct {
	*Store
}

func (r BackupRepo) List(ctx context.Context) ([]domain.Backup, error)       { return r.ListBackups(ctx) }
func (r BackupRepo) Get(ctx context.Context, id string) (domain.Backup, error) { return r.GetBackup(ctx, id) }
func (r BackupRepo) Insert(ctx context.Context, b domain.Backup) error       { return r.InsertBackup(ctx, b) }
func (r BackupRepo) Update(ctx context.Context, b domain.Backup) error       { return r.UpdateBackup(ctx, b) }
func (r BackupRepo) Delete(ctx context.Context, id string) error            { return r.DeleteBackup(ctx, id) }
