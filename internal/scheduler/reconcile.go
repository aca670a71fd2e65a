// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

package scheduler

import (
	"context"
	"fmt"
	"math"

	domainbackup "github.com/tomtom215/vaultkeep/internal/backup"
	"github.com/tomtom215/vaultkeep/internal/destination"
	"github.com/tomtom215/vaultkeep/internal/logging"
	"github.com/tomtom215/vaultkeep/internal/progressbus"
)

// reconcileDeletions runs step 3 of the per-run algorithm, before the
// candidate loop sees any media: every media id the Library Index
// reports as tombstoned since the backup's last run has its catalogued
// object versions removed from the destination and then from the
// catalogue, in that order, so a crash between the two steps can leave
// a catalogue row whose bytes are gone, but never destination bytes
// that no catalogue row accounts for.
func (s *Scheduler) reconcileDeletions(ctx context.Context, b *domainbackup.Backup, dest destination.Provider) error {
	log := logging.Ctx(ctx).With().Str("backup", b.ID).Logger()

	library := *b.Library
	var since int64
	if b.Last != nil {
		since = *b.Last
	}

	tombstones, err := s.Index.TombstonesSince(ctx, library, since)
	if err != nil {
		return fmt.Errorf("list tombstones: %w", err)
	}

	var firstErr error
	for _, t := range tombstones {
		versions, err := s.Store.ListStaleVersions(ctx, b.ID, t.MediaID, math.MaxInt64, "")
		if err != nil {
			log.Warn().Err(err).Str("media", t.MediaID).Msg("list versions for tombstoned media failed")
			firstErr = firstErrOf(firstErr, err)
			continue
		}
		if len(versions) == 0 {
			continue
		}

		for _, v := range versions {
			if err := dest.Remove(ctx, v.Path); err != nil {
				log.Warn().Err(err).Str("media", t.MediaID).Str("path", v.Path).Msg("remove destination object for tombstoned media failed")
				firstErr = firstErrOf(firstErr, err)
				continue
			}
		}

		if _, err := s.Store.RemoveForMedia(ctx, b.ID, t.MediaID, math.MaxInt64, ""); err != nil {
			log.Warn().Err(err).Str("media", t.MediaID).Msg("remove catalogue rows for tombstoned media failed")
			firstErr = firstErrOf(firstErr, err)
			continue
		}

		s.Bus.Publish(progressbus.Event{
			Kind: progressbus.KindFileProgress,
			File: domainbackup.BackupFileProgress{
				ID: newObjectID(), Backup: b.ID, Library: b.Library, File: t.MediaID, Name: t.MediaID,
				Status: domainbackup.FileDone,
			},
		})
	}
	return firstErr
}

func firstErrOf(existing, candidate error) error {
	if existing != nil {
		return existing
	}
	return candidate
}
