// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// SupervisorConfig tunes the restart policy shared by every backup's
// Service.
type SupervisorConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

// DefaultSupervisorConfig matches suture's own built-in defaults.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Supervisor hosts one Service per configured backup under a single flat
// suture tree. Restart-on-panic only: a scheduled run returning an
// ordinary error is logged and the Service loops to its next cadence
// without counting against the supervisor's failure budget, since the
// Service's own Serve loop never returns except on panic or context
// cancellation.
type Supervisor struct {
	root *suture.Supervisor
}

// NewSupervisor builds a Supervisor. logger feeds sutureslog's event hook,
// matching the production service-supervision idiom used elsewhere in this
// codebase.
func NewSupervisor(logger *slog.Logger, cfg SupervisorConfig) *Supervisor {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5.0
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = 30.0
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = 15 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	handler := &sutureslog.Handler{Logger: logger}
	spec := suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}
	return &Supervisor{root: suture.New("vaultkeep-scheduler", spec)}
}

// Add registers svc with the supervisor. Call before Serve/ServeBackground,
// or at any point afterward — suture supports adding services to a running
// tree.
func (s *Supervisor) Add(svc *Service) suture.ServiceToken {
	return s.root.Add(svc)
}

// Serve runs every added Service until ctx is cancelled.
func (s *Supervisor) Serve(ctx context.Context) error {
	return s.root.Serve(ctx)
}

// ServeBackground runs the tree in a background goroutine, returning a
// channel that receives the terminal error once the tree stops.
func (s *Supervisor) ServeBackground(ctx context.Context) <-chan error {
	return s.root.ServeBackground(ctx)
}
