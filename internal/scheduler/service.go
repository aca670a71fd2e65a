// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	domainbackup "github.com/tomtom215/vaultkeep/internal/backup"
	"github.com/tomtom215/vaultkeep/internal/logging"
	"github.com/tomtom215/vaultkeep/internal/objstore"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Service supervises one backup's periodic runs under a suture tree.
// Schedule accepts both standard cron expressions and robfig's "@every"
// monotonic-period directives, per Backup.Schedule's documented format.
// A Backup with a nil Schedule is trigger-only and is never added to a
// tree; callers invoke Scheduler.Run directly for it.
type Service struct {
	sched        *Scheduler
	backup       *domainbackup.Backup
	cronSchedule cron.Schedule
	name         string
}

// NewService builds a suture.Service for b. b.Schedule must be non-nil
// and parse as a valid cron or "@every" expression.
func NewService(sched *Scheduler, b *domainbackup.Backup) (*Service, error) {
	if b.Schedule == nil {
		return nil, fmt.Errorf("backup %s has no schedule, nothing to supervise", b.ID)
	}
	cs, err := cronParser.Parse(*b.Schedule)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q for backup %s: %w", *b.Schedule, b.ID, err)
	}
	return &Service{sched: sched, backup: b, cronSchedule: cs, name: "backup-" + b.ID}, nil
}

// Serve implements suture.Service: it sleeps until the next scheduled
// fire time, runs the backup, and repeats until ctx is cancelled.
func (s *Service) Serve(ctx context.Context) error {
	log := logging.Ctx(ctx).With().Str("backup", s.backup.ID).Logger()

	for {
		next := s.cronSchedule.Next(s.sched.Clock.Now())
		nextMillis := next.UnixMilli()
		if err := s.sched.Store.SetScheduleState(ctx, s.backup.ID, objstore.ScheduleState{NextScheduled: &nextMillis}); err != nil {
			log.Warn().Err(err).Msg("failed to persist next scheduled time")
		}

		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		runErr := s.sched.Run(ctx, s.backup)
		if runErr != nil {
			log.Error().Err(runErr).Msg("scheduled backup run failed")
		}

		ranAt := s.sched.Clock.Now().UnixMilli()
		if err := s.sched.Store.SetScheduleState(ctx, s.backup.ID, objstore.ScheduleState{LastScheduled: &ranAt}); err != nil {
			log.Warn().Err(err).Msg("failed to persist last scheduled time")
		}
	}
}

// String implements fmt.Stringer, used by suture's event hook in log
// messages.
func (s *Service) String() string {
	return s.name
}
