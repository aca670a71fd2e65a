// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

package controller

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"sync"
	"testing"

	domainbackup "github.com/tomtom215/vaultkeep/internal/backup"
	"github.com/tomtom215/vaultkeep/internal/codec"
	"github.com/tomtom215/vaultkeep/internal/destination"
	"github.com/tomtom215/vaultkeep/internal/engineerr"
	"github.com/tomtom215/vaultkeep/internal/objstore"
	"github.com/tomtom215/vaultkeep/internal/progressbus"
	"github.com/tomtom215/vaultkeep/internal/scheduler"
)

// memRepo is an in-memory BackupRepository for controller tests.
type memRepo struct {
	mu      sync.Mutex
	backups map[string]domainbackup.Backup
}

func newMemRepo() *memRepo { return &memRepo{backups: make(map[string]domainbackup.Backup)} }

func (r *memRepo) List(context.Context) ([]domainbackup.Backup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domainbackup.Backup
	for _, b := range r.backups {
		out = append(out, b)
	}
	return out, nil
}

func (r *memRepo) Get(_ context.Context, id string) (domainbackup.Backup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.backups[id]
	if !ok {
		return domainbackup.Backup{}, engineerr.ErrNotFound
	}
	return b, nil
}

func (r *memRepo) Insert(_ context.Context, b domainbackup.Backup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backups[b.ID] = b
	return nil
}

func (r *memRepo) Update(_ context.Context, b domainbackup.Backup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backups[b.ID] = b
	return nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.backups, id)
	return nil
}

// memDestination is a minimal destination.Provider backed by a map.
type memDestination struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemDestination() *memDestination { return &memDestination{objects: make(map[string][]byte)} }

type memWriteCloser struct {
	buf  *bytes.Buffer
	path string
	dst  *memDestination
}

func (w *memWriteCloser) Write(p []byte) (int, error) { return w.buf.Write(p) }
func (w *memWriteCloser) Close() error {
	w.dst.mu.Lock()
	defer w.dst.mu.Unlock()
	w.dst.objects[w.path] = w.buf.Bytes()
	return nil
}

func (d *memDestination) OpenWrite(_ context.Context, path string, _ *int64, _ *string) (io.WriteCloser, error) {
	return &memWriteCloser{buf: &bytes.Buffer{}, path: path, dst: d}, nil
}

func (d *memDestination) OpenRead(_ context.Context, path string) (destination.SourceRead, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.objects[path]
	if !ok {
		return destination.SourceRead{}, errors.New("not found")
	}
	return destination.SourceRead{Kind: destination.SourceKindStream, Stream: io.NopCloser(bytes.NewReader(b))}, nil
}

func (d *memDestination) Remove(_ context.Context, path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.objects, path)
	return nil
}

func (d *memDestination) FillInfo(_ context.Context, path string) (destination.Info, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.objects[path]
	if !ok {
		return destination.Info{Exists: false}, nil
	}
	sum := md5.Sum(b)
	return destination.Info{Size: int64(len(b)), Exists: true, Hash: hex.EncodeToString(sum[:])}, nil
}

func newTestController(t *testing.T) (*Controller, *memRepo, *objstore.Store, *memDestination) {
	t.Helper()
	db, err := objstore.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store := objstore.NewStore(db)
	repo := newMemRepo()
	dest := newMemDestination()

	bus := progressbus.NewBus(progressbus.DefaultCapacity)
	sched := scheduler.New(store, bus, nil, nil,
		func(context.Context, *domainbackup.Backup) (destination.Provider, error) { return dest, nil },
		func(context.Context, *domainbackup.Backup) error { return nil })

	c := New(repo, store, sched, func(context.Context, *domainbackup.Backup) (destination.Provider, error) { return dest, nil })
	return c, repo, store, dest
}

func TestCreateValidatesRequiredFields(t *testing.T) {
	c, _, _, _ := newTestController(t)
	_, err := c.Create(context.Background(), domainbackup.BackupCreate{})
	if err == nil {
		t.Fatal("expected validation error for empty BackupCreate")
	}
}

func TestCreateGetListRemove(t *testing.T) {
	c, _, _, _ := newTestController(t)
	ctx := context.Background()

	b, err := c.Create(ctx, domainbackup.BackupCreate{Name: "photos", Source: "path", Path: "backups/photos"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := c.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "photos" {
		t.Errorf("Name = %q, want photos", got.Name)
	}

	all, err := c.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 backup, got %d", len(all))
	}

	if err := c.Remove(ctx, b.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := c.Get(ctx, b.ID); !errors.Is(err, engineerr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after Remove, got %v", err)
	}
}

func TestUpdateAppliesPartialFields(t *testing.T) {
	c, _, _, _ := newTestController(t)
	ctx := context.Background()

	b, err := c.Create(ctx, domainbackup.BackupCreate{Name: "photos", Source: "path", Path: "backups/photos"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	newPath := "backups/photos-v2"
	got, err := c.Update(ctx, b.ID, domainbackup.BackupUpdate{Path: &newPath})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Path != newPath {
		t.Errorf("Path = %q, want %q", got.Path, newPath)
	}
	if got.Name != "photos" {
		t.Errorf("unset field Name changed unexpectedly to %q", got.Name)
	}
}

func TestReadReturnsPlaintextForUnencryptedBackup(t *testing.T) {
	c, _, store, dest := newTestController(t)
	ctx := context.Background()

	b, err := c.Create(ctx, domainbackup.BackupCreate{Name: "photos", Source: "path", Path: "backups/photos"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	dest.objects["backups/photos/m1"] = []byte("plaintext-content")
	if err := store.Upsert(ctx, domainbackup.BackupObject{
		ID: "obj1", Backup: b.ID, File: "m1", Path: "backups/photos/m1", SourceHash: "h1", Added: 1,
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	r, err := c.Read(ctx, b.ID, "m1", "")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	defer r.Close()

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "plaintext-content" {
		t.Errorf("got %q", got)
	}
}

func TestReadTransparentlyDecryptsForEncryptedBackup(t *testing.T) {
	c, _, store, dest := newTestController(t)
	ctx := context.Background()

	password := "correct horse battery staple"
	b, err := c.Create(ctx, domainbackup.BackupCreate{Name: "photos", Source: "path", Path: "backups/photos", Password: &password})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	key := codec.DeriveKey(password)
	iv := bytes.Repeat([]byte{0x09}, codec.IVSize)
	var ciphertext bytes.Buffer
	enc, err := codec.NewEncryptor(&ciphertext, key, iv, "text/plain", nil, nil)
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	if _, err := enc.Write([]byte("secret bytes")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := enc.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	dest.objects["backups/photos/m1"] = ciphertext.Bytes()
	if err := store.Upsert(ctx, domainbackup.BackupObject{
		ID: "obj1", Backup: b.ID, File: "m1", Path: "backups/photos/m1", SourceHash: "h1", Added: 1,
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	r, err := c.Read(ctx, b.ID, "m1", "")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	defer r.Close()

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "secret bytes" {
		t.Errorf("got %q, want decrypted plaintext", got)
	}
}

func TestTriggerRunsServerWideBackup(t *testing.T) {
	c, _, _, _ := newTestController(t)
	ctx := context.Background()

	b, err := c.Create(ctx, domainbackup.BackupCreate{Name: "photos", Source: "path", Path: "backups/photos"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := c.Trigger(ctx, b.ID); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
}
