// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

/*
Package controller is the thin façade external callers use to manage
Backup definitions and read stored objects back out. It owns CRUD over
Backup, triggers the Scheduler on demand, and resolves the latest
BackupObject for a (backup, media) pair into a transparently-decrypted
read — but it never writes a new object itself; only the Scheduler does.
Objects are looked up by backup id; Read takes no library id.
*/
package controller

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	domainbackup "github.com/tomtom215/vaultkeep/internal/backup"
	"github.com/tomtom215/vaultkeep/internal/codec"
	"github.com/tomtom215/vaultkeep/internal/destination"
	"github.com/tomtom215/vaultkeep/internal/engineerr"
	"github.com/tomtom215/vaultkeep/internal/objstore"
	"github.com/tomtom215/vaultkeep/internal/scheduler"
	"github.com/tomtom215/vaultkeep/internal/validation"
)

// BackupRepository is the persistence boundary for Backup definitions.
// Implemented over the catalogue database by objstore.BackupRepo; kept
// as an interface rather than a *objstore.Store dependency because the
// Controller is the only writer of Backup rows while the Scheduler only
// reads and patches size/last.
type BackupRepository interface {
	List(ctx context.Context) ([]domainbackup.Backup, error)
	Get(ctx context.Context, id string) (domainbackup.Backup, error)
	Insert(ctx context.Context, b domainbackup.Backup) error
	Update(ctx context.Context, b domainbackup.Backup) error
	Delete(ctx context.Context, id string) error
}

// Controller is the CRUD + read-path facade (C6).
type Controller struct {
	repo      BackupRepository
	objects   *objstore.Store
	scheduler *scheduler.Scheduler
	dest      scheduler.DestinationResolver
}

// New constructs a Controller.
func New(repo BackupRepository, objects *objstore.Store, sched *scheduler.Scheduler, dest scheduler.DestinationResolver) *Controller {
	return &Controller{
		repo:      repo,
		objects:   objects,
		scheduler: sched,
		dest:      dest,
	}
}

// List returns every configured Backup.
func (c *Controller) List(ctx context.Context) ([]domainbackup.Backup, error) {
	return c.repo.List(ctx)
}

// Get returns one Backup by id.
func (c *Controller) Get(ctx context.Context, id string) (domainbackup.Backup, error) {
	return c.repo.Get(ctx, id)
}

// Create validates in and persists a new Backup definition.
func (c *Controller) Create(ctx context.Context, in domainbackup.BackupCreate) (domainbackup.Backup, error) {
	if verr := validation.ValidateStruct(in); verr != nil {
		return domainbackup.Backup{}, fmt.Errorf("%w: %v", engineerr.ErrInternal, verr)
	}

	b := domainbackup.Backup{
		ID:          uuid.New().String(),
		Name:        in.Name,
		Source:      in.Source,
		Plugin:      in.Plugin,
		Credentials: in.Credentials,
		Library:     in.Library,
		Path:        in.Path,
		Schedule:    in.Schedule,
		Filter:      in.Filter,
		Password:    in.Password,
	}
	if err := c.repo.Insert(ctx, b); err != nil {
		return domainbackup.Backup{}, fmt.Errorf("insert backup: %w", err)
	}
	return b, nil
}

// Update applies a partial BackupUpdate to an existing Backup.
func (c *Controller) Update(ctx context.Context, id string, in domainbackup.BackupUpdate) (domainbackup.Backup, error) {
	b, err := c.repo.Get(ctx, id)
	if err != nil {
		return domainbackup.Backup{}, err
	}

	if in.Name != nil {
		b.Name = *in.Name
	}
	if in.Plugin != nil {
		b.Plugin = in.Plugin
	}
	if in.Credentials != nil {
		b.Credentials = in.Credentials
	}
	if in.Path != nil {
		b.Path = *in.Path
	}
	if in.Schedule != nil {
		b.Schedule = in.Schedule
	}
	if in.Filter != nil {
		b.Filter = in.Filter
	}
	if in.Password != nil {
		b.Password = in.Password
	}

	if err := c.repo.Update(ctx, b); err != nil {
		return domainbackup.Backup{}, fmt.Errorf("update backup: %w", err)
	}
	return b, nil
}

// Remove deletes a Backup definition. Stored BackupObjects are left in
// place; orphan collection is a separate, explicit operation, never a
// cascade of this call.
func (c *Controller) Remove(ctx context.Context, id string) error {
	if err := c.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete backup: %w", err)
	}
	return nil
}

// Trigger requests an on-demand run of a Backup. If a run is already in
// progress for this backup, the trigger is dropped and Trigger returns
// nil — the same concurrency-suppression semantics as a scheduled fire.
func (c *Controller) Trigger(ctx context.Context, id string) error {
	b, err := c.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	return c.scheduler.Run(ctx, &b)
}

// Read resolves the latest BackupObject for (backup, media) — or a
// specific historical version when objectID is non-empty — and returns
// a transparently-decrypted stream. Only the stream is returned: the
// original media's size, mime type and name are not passed back.
func (c *Controller) Read(ctx context.Context, backupID, mediaID, objectID string) (io.ReadCloser, error) {
	b, err := c.repo.Get(ctx, backupID)
	if err != nil {
		return nil, err
	}

	var obj domainbackup.BackupObject
	if objectID != "" {
		obj, err = c.objects.Get(ctx, objectID)
		if err != nil {
			return nil, err
		}
	} else {
		versions, err := c.objects.ListByBackupMedia(ctx, backupID, mediaID)
		if err != nil {
			return nil, err
		}
		if len(versions) == 0 {
			return nil, fmt.Errorf("%w: no stored object for backup %s media %s", engineerr.ErrNotFound, backupID, mediaID)
		}
		obj = versions[0] // ListByBackupMedia orders added DESC; [0] is latest.
	}

	dest, err := c.dest(ctx, &b)
	if err != nil {
		return nil, fmt.Errorf("resolve destination: %w", err)
	}

	read, err := dest.OpenRead(ctx, obj.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open destination read: %v", engineerr.ErrDestinationIO, err)
	}
	if read.Kind != destination.SourceKindStream {
		return nil, fmt.Errorf("%w: destination requires a deferred fetch, caller must issue %s %s", engineerr.ErrDestinationIO, read.Request.Method, read.Request.URL)
	}

	// Library-backed "db" snapshots carry a library-descriptor envelope
	// ahead of the codec frame; every other object goes straight to the
	// codec. The envelope itself is uninteresting to a caller that only
	// wants the snapshot bytes back, so it is stripped and discarded here.
	if obj.Library != nil && obj.File == domainbackup.LogicalDB {
		if _, err := codec.ReadEnvelope(read.Stream); err != nil {
			read.Stream.Close()
			return nil, fmt.Errorf("%w: strip library descriptor envelope: %v", engineerr.ErrCorruptObject, err)
		}
	}

	if !b.Encrypted() {
		return read.Stream, nil
	}

	key := codec.DeriveKey(*b.Password)
	dec, err := codec.NewDecryptor(read.Stream, key)
	if err != nil {
		read.Stream.Close()
		return nil, fmt.Errorf("%w: %v", engineerr.ErrCorruptObject, err)
	}
	return &decryptReadCloser{Decryptor: dec, underlying: read.Stream}, nil
}

// decryptReadCloser adapts codec.Decryptor (a bare io.Reader) to
// io.ReadCloser by closing the underlying destination stream it reads
// from.
type decryptReadCloser struct {
	*codec.Decryptor
	underlying io.ReadCloser
}

func (d *decryptReadCloser) Close() error {
	return d.underlying.Close()
}
