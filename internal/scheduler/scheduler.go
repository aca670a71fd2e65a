// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

/*
Package scheduler implements the per-backup run loop: diff a library
against the object store, upload new or changed media, reconcile
deletions, snapshot the index database, and enforce retention — the
six-step algorithm described in the package's Run method.
*/
package scheduler

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	domainbackup "github.com/tomtom215/vaultkeep/internal/backup"
	"github.com/tomtom215/vaultkeep/internal/codec"
	"github.com/tomtom215/vaultkeep/internal/destination"
	"github.com/tomtom215/vaultkeep/internal/logging"
	"github.com/tomtom215/vaultkeep/internal/metrics"
	"github.com/tomtom215/vaultkeep/internal/objstore"
	"github.com/tomtom215/vaultkeep/internal/progressbus"
)

// retentionWindow is how long a database/config snapshot is kept before
// older versions are pruned.
const retentionWindow = 7 * 24 * time.Hour

const (
	logicalDB     = domainbackup.LogicalDB
	logicalConfig = domainbackup.LogicalConfig
)

// DestinationResolver resolves the Destination Provider a backup writes
// to, wrapped in a circuit breaker keyed by the backup's configured
// destination tag.
type DestinationResolver func(ctx context.Context, b *domainbackup.Backup) (destination.Provider, error)

// Scheduler runs backups. One Scheduler instance serves every configured
// backup; concurrency across distinct backups is the caller's
// responsibility (see the suture-supervised per-backup service in
// service.go), while concurrent runs of the SAME backup are suppressed
// here.
type Scheduler struct {
	Store         *objstore.Store
	Bus           *progressbus.Bus
	Index         domainbackup.LibraryIndex
	Sources       domainbackup.SourceProvider
	Destinations  DestinationResolver
	Clock         domainbackup.RunClock
	BackupUpdater func(ctx context.Context, b *domainbackup.Backup) error

	// ConfigSnapshot supplies the serialized server configuration for
	// server-wide backups (Library == nil). Library-backed backups never
	// call this; they snapshot the library's own database file instead.
	ConfigSnapshot func(ctx context.Context) (io.ReadCloser, error)

	mu         sync.Mutex
	processing map[string]bool
}

// New constructs a Scheduler. Clock defaults to the system clock if nil.
func New(store *objstore.Store, bus *progressbus.Bus, index domainbackup.LibraryIndex, sources domainbackup.SourceProvider, destinations DestinationResolver, updater func(ctx context.Context, b *domainbackup.Backup) error) *Scheduler {
	return &Scheduler{
		Store:         store,
		Bus:           bus,
		Index:         index,
		Sources:       sources,
		Destinations:  destinations,
		Clock:         domainbackup.SystemClock,
		BackupUpdater: updater,
		processing:    make(map[string]bool),
	}
}

// IsProcessing reports whether a run for backupID is currently in flight.
func (s *Scheduler) IsProcessing(backupID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing[backupID]
}

func (s *Scheduler) tryAcquire(backupID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processing[backupID] {
		return false
	}
	s.processing[backupID] = true
	return true
}

func (s *Scheduler) release(backupID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.processing, backupID)
}

// Run executes one scheduled run of b. If a run of the same backup is
// already in progress, the new trigger is dropped and Run returns nil
// immediately — concurrency suppression, not an error.
func (s *Scheduler) Run(ctx context.Context, b *domainbackup.Backup) error {
	log := logging.Ctx(ctx).With().Str("backup", b.ID).Logger()

	if !s.tryAcquire(b.ID) {
		log.Info().Msg("run already in progress, dropping trigger")
		return nil
	}
	defer s.release(b.ID)

	start := s.Clock.Now()
	status := "done"
	defer func() {
		metrics.RunDuration.WithLabelValues(b.ID, status).Observe(time.Since(start).Seconds())
	}()

	dest, err := s.Destinations(ctx, b)
	if err != nil {
		status = "error"
		return fmt.Errorf("resolve destination for backup %s: %w", b.ID, err)
	}

	// Step 1: load cursor.
	info, err := s.Store.GetCatalogueInfo(ctx, b.ID)
	if err != nil {
		status = "error"
		return fmt.Errorf("load catalogue cursor: %w", err)
	}

	var candidates []domainbackup.MediaCandidate
	var totalSize int64

	if b.Library != nil {
		// Step 2: library-backed candidate query.
		candidates, err = s.Index.MediaModifiedSince(ctx, *b.Library, info.MaxSourceModified, b.Filter)
		if err != nil {
			status = "error"
			return fmt.Errorf("query candidates: %w", err)
		}
		sortCandidates(candidates)
		for _, c := range candidates {
			totalSize += c.Size
		}
		s.Bus.Publish(progressbus.Event{
			Kind:   progressbus.KindStatus,
			Status: domainbackup.NewBackupProcessStatusInProgress(b, len(candidates), totalSize),
		})

		// Step 3: deletion reconciliation, before the candidate loop.
		if err := s.reconcileDeletions(ctx, b, dest); err != nil {
			log.Warn().Err(err).Msg("deletion reconciliation encountered an error, continuing run")
		}
	}

	// Step 4: candidate loop.
	var current int
	var currentSize int64
	for _, c := range candidates {
		current++
		if err := s.backupOne(ctx, b, dest, c, current, len(candidates), totalSize, &currentSize); err != nil {
			log.Warn().Err(err).Str("media", c.MediaID).Msg("candidate failed, continuing run")
		}
	}

	// Step 5: database/config snapshot with 7-day retention. Unlike a
	// per-file error, this is a per-run error: it aborts the run without
	// advancing the cursor and without a Done status.
	newSize, err := s.snapshotIndex(ctx, b, dest, currentSize)
	if err != nil {
		status = "error"
		s.Bus.Publish(progressbus.Event{
			Kind:   progressbus.KindStatus,
			Status: domainbackup.NewBackupProcessStatusError(b),
		})
		return fmt.Errorf("snapshot index: %w", err)
	}

	// Step 6: commit.
	now := s.Clock.Now().UnixMilli()
	b.Size = newSize
	b.Last = &now
	if s.BackupUpdater != nil {
		if err := s.BackupUpdater(ctx, b); err != nil {
			status = "error"
			s.Bus.Publish(progressbus.Event{
				Kind:   progressbus.KindStatus,
				Status: domainbackup.NewBackupProcessStatusError(b),
			})
			return fmt.Errorf("commit backup state: %w", err)
		}
	}

	s.Bus.Publish(progressbus.Event{
		Kind:   progressbus.KindStatus,
		Status: domainbackup.NewBackupProcessStatusDone(b),
	})
	return nil
}

// sortCandidates enforces the scheduler's required processing order:
// ascending modified, then ascending media id for ties, so the
// incremental cursor advances monotonically even if a run is interrupted
// partway through.
func sortCandidates(candidates []domainbackup.MediaCandidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Modified != candidates[j].Modified {
			return candidates[i].Modified < candidates[j].Modified
		}
		return candidates[i].MediaID < candidates[j].MediaID
	})
}

func newObjectID() string {
	return uuid.New().String()
}

// estimatedWriteSize hints the ciphertext length an OpenWrite call should
// expect for a plaintext payload of sourceSize bytes, accounting for
// encryption overhead when the backup encrypts.
func estimatedWriteSize(encrypted bool, sourceSize int64) int64 {
	if encrypted {
		return codec.EstimatedSize(sourceSize, nil, nil)
	}
	return sourceSize
}
