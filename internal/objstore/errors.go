// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

package objstore

import (
	"context"
	"fmt"

	domain "github.com/tomtom215/vaultkeep/internal/backup"
)

// InsertError records a per-file failure. Recording an error never
// touches backup_objects: a failed candidate simply never gets a row,
// and the run continues to the next candidate.
func (s *Store) InsertError(ctx context.Context, e domain.BackupError) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO backup_errors (backup, library, media, time, message) VALUES (?, ?, ?, ?, ?)`,
		e.Backup, e.Library, e.Media, e.Time, e.Message)
	if err != nil {
		return fmt.Errorf("insert backup error: %w", err)
	}
	return nil
}

// ListErrors returns every recorded error for a backup, most recent first.
func (s *Store) ListErrors(ctx context.Context, backup string) ([]domain.BackupError, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT backup, library, media, time, message FROM backup_errors WHERE backup = ? ORDER BY time DESC`, backup)
	if err != nil {
		return nil, fmt.Errorf("list backup errors: %w", err)
	}
	defer rows.Close()

	var out []domain.BackupError
	for rows.Next() {
		var e domain.BackupError
		if err := rows.Scan(&e.Backup, &e.Library, &e.Media, &e.Time, &e.Message); err != nil {
			return nil, fmt.Errorf("scan backup error row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backup error rows: %w", err)
	}
	return out, nil
}
