// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

// Package main is the reference composition root for the vaultkeep backup
// engine: it wires configuration, the DuckDB catalogue, the destination
// registry, the progress bus, and one suture-supervised scheduler service
// per configured backup, then exposes the result through the Controller.
//
// This binary has no HTTP listener. The engine is an embeddable library;
// a host application that wants a network-facing backup API links
// internal/controller directly and puts its own transport in front of
// it. What runs here is the part every host needs regardless of
// transport: config load, schema migration, the scheduler supervisor
// tree, and graceful shutdown.
//
// # Host-supplied collaborators
//
// Three interfaces have no production implementation in this engine,
// because they depend entirely on the application embedding it:
// backup.LibraryIndex (what media exists and when it changed),
// backup.SourceProvider (how to read a media item's plaintext), and
// backup.CredentialResolver (how a Backup.Credentials handle resolves
// to usable secrets). main wires fsLibraryIndex, a minimal filesystem
// walker, only so this binary runs standalone against a local
// directory tree; a real host replaces it with its own media index.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	domainbackup "github.com/tomtom215/vaultkeep/internal/backup"
	"github.com/tomtom215/vaultkeep/internal/config"
	"github.com/tomtom215/vaultkeep/internal/controller"
	"github.com/tomtom215/vaultkeep/internal/destination"
	"github.com/tomtom215/vaultkeep/internal/logging"
	"github.com/tomtom215/vaultkeep/internal/objstore"
	"github.com/tomtom215/vaultkeep/internal/progressbus"
	"github.com/tomtom215/vaultkeep/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.LogLevel,
		Format:    "json",
		Timestamp: true,
		Output:    os.Stderr,
	})
	logging.Info().Msg("starting vaultkeep backup engine")

	db, err := objstore.Open(cfg.ObjectStore.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open catalogue database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing catalogue database")
		}
	}()
	store := objstore.NewStore(db)
	logging.Info().Str("path", cfg.ObjectStore.Path).Msg("catalogue database ready")

	destResolver := buildDestinationResolver(cfg)

	bus := progressbus.NewBus(cfg.ProgressBus.SubscriberCapacity)

	index := &fsLibraryIndex{}
	sources := &fsLibraryIndex{}

	updater := func(ctx context.Context, b *domainbackup.Backup) error {
		return store.UpdateBackup(ctx, *b)
	}

	sched := scheduler.New(store, bus, index, sources, destResolver, updater)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	super := scheduler.NewSupervisor(slog.New(logging.NewSlogHandler()), scheduler.DefaultSupervisorConfig())

	backups, err := store.ListBackups(ctx)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to list configured backups")
	}
	for i := range backups {
		b := backups[i]
		if b.Schedule == nil {
			continue
		}
		svc, err := scheduler.NewService(sched, &b)
		if err != nil {
			logging.Error().Err(err).Str("backup", b.ID).Msg("failed to build scheduled service, skipping")
			continue
		}
		super.Add(svc)
		logging.Info().Str("backup", b.ID).Str("schedule", *b.Schedule).Msg("backup service added to supervisor")
	}

	// ctrl is the engine's public surface; a host application wires it to
	// its own transport (HTTP, gRPC, a CLI) instead of the log line below.
	ctrl := controller.New(objstore.BackupRepo{Store: store}, store, sched, destResolver)
	if all, err := ctrl.List(ctx); err != nil {
		logging.Error().Err(err).Msg("failed to list backups from controller")
	} else {
		logging.Info().Int("count", len(all)).Msg("controller ready")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("starting scheduler supervisor")
	errCh := super.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor stopped with error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	logging.Info().Msg("vaultkeep backup engine stopped")
}

// buildDestinationResolver opens one destination.Provider per configured
// DestinationConfig, wraps each in a circuit breaker, and returns a
// resolver that looks a Backup up by its Source tag. A Backup whose
// Source has no matching DestinationConfig fails at resolve time rather
// than at config load; the provider map itself is built once, here, at
// startup.
func buildDestinationResolver(cfg *config.Config) scheduler.DestinationResolver {
	providers := make(map[string]destination.Provider, len(cfg.Destinations))
	for _, dc := range cfg.Destinations {
		p, err := destination.Open(dc.Tag, dc.Params)
		if err != nil {
			logging.Fatal().Err(err).Str("tag", dc.Tag).Msg("failed to open destination provider")
		}
		providers[dc.Tag] = destination.WithCircuitBreaker(dc.Tag, p)
		logging.Info().Str("tag", dc.Tag).Msg("destination provider opened")
	}
	return func(_ context.Context, b *domainbackup.Backup) (destination.Provider, error) {
		p, ok := providers[b.Source]
		if !ok {
			return nil, errors.New("vaultkeep: no destination configured for tag " + b.Source)
		}
		return p, nil
	}
}
