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
)

// ScheduleState is the persisted cursor a suture-supervised backup service
// reloads on restart, so a process crash between two scheduled fires does
// not lose track of when the backup last ran or is next due.
type ScheduleState struct {
	LastScheduled *int64 // unix millis, nil if never run
	NextScheduled *int64 // unix millis, nil if not yet computed
}

// GetScheduleState reads the persisted cursor for backup, returning the
// zero value (both fields nil) if none has been recorded yet.
func (s *Store) GetScheduleState(ctx context.Context, backup string) (ScheduleState, error) {
	var st ScheduleState
	row := s.db.QueryRowContext(ctx,
		`SELECT last_scheduled, next_scheduled FROM schedule_state WHERE backup = ?`, backup)
	err := row.Scan(&st.LastScheduled, &st.NextScheduled)
	if errors.Is(err, sql.ErrNoRows) {
		return ScheduleState{}, nil
	}
	if err != nil {
		return ScheduleState{}, fmt.Errorf("get schedule state: %w", err)
	}
	return st, nil
}

// SetScheduleState upserts the persisted cursor for backup. A nil field
// leaves the existing stored value for that column untouched, so callers
// can update last_scheduled and next_scheduled independently without a
// read-modify-write race.
func (s *Store) SetScheduleState(ctx context.Context, backup string, st ScheduleState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schedule_state (backup, last_scheduled, next_scheduled) VALUES (?, ?, ?)
		 ON CONFLICT (backup) DO UPDATE SET
			last_scheduled = COALESCE(excluded.last_scheduled, schedule_state.last_scheduled),
			next_scheduled = COALESCE(excluded.next_scheduled, schedule_state.next_scheduled)`,
		backup, st.LastScheduled, st.NextScheduled)
	if err != nil {
		return fmt.Errorf("set schedule state: %w", err)
	}
	return nil
}
