// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

package scheduler

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	domainbackup "github.com/tomtom215/vaultkeep/internal/backup"
	"github.com/tomtom215/vaultkeep/internal/destination"
	"github.com/tomtom215/vaultkeep/internal/objstore"
	"github.com/tomtom215/vaultkeep/internal/progressbus"
)

// fakeIndex is an in-memory LibraryIndex for scheduler tests.
type fakeIndex struct {
	mu         sync.Mutex
	candidates map[string][]domainbackup.MediaCandidate
	tombstones map[string][]domainbackup.Tombstone
	hashes     map[string]string
	dbPath     string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		candidates: make(map[string][]domainbackup.MediaCandidate),
		tombstones: make(map[string][]domainbackup.Tombstone),
		hashes:     make(map[string]string),
	}
}

func (f *fakeIndex) MediaModifiedSince(_ context.Context, library string, cutoff int64, _ *string) ([]domainbackup.MediaCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domainbackup.MediaCandidate
	for _, c := range f.candidates[library] {
		if c.Modified > cutoff {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeIndex) TombstonesSince(_ context.Context, library string, since int64) ([]domainbackup.Tombstone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domainbackup.Tombstone
	for _, t := range f.tombstones[library] {
		if t.At > since {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeIndex) SourceHash(_ context.Context, _, mediaID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hashes[mediaID], nil
}

func (f *fakeIndex) DatabaseFilePath(_ context.Context, _ string) (string, error) {
	return f.dbPath, nil
}

// fakeSource serves fixed plaintext per media id.
type fakeSource struct {
	mu      sync.Mutex
	content map[string][]byte
}

func newFakeSource() *fakeSource { return &fakeSource{content: make(map[string][]byte)} }

func (s *fakeSource) Open(_ context.Context, mediaID string) (io.ReadCloser, string, *int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.content[mediaID]
	n := int64(len(b))
	return io.NopCloser(bytes.NewReader(b)), "application/octet-stream", &n, nil
}

// fakeDestination is an in-memory destination.Provider.
type fakeDestination struct {
	mu      sync.Mutex
	objects map[string][]byte
	writes  int
}

func newFakeDestination() *fakeDestination { return &fakeDestination{objects: make(map[string][]byte)} }

type fakeWriteCloser struct {
	buf  *bytes.Buffer
	path string
	dst  *fakeDestination
}

func (w *fakeWriteCloser) Write(p []byte) (int, error) { return w.buf.Write(p) }
func (w *fakeWriteCloser) Close() error {
	w.dst.mu.Lock()
	defer w.dst.mu.Unlock()
	w.dst.objects[w.path] = w.buf.Bytes()
	w.dst.writes++
	return nil
}

func (d *fakeDestination) OpenWrite(_ context.Context, path string, _ *int64, _ *string) (io.WriteCloser, error) {
	return &fakeWriteCloser{buf: &bytes.Buffer{}, path: path, dst: d}, nil
}

func (d *fakeDestination) OpenRead(_ context.Context, path string) (destination.SourceRead, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b := d.objects[path]
	return destination.SourceRead{Kind: destination.SourceKindStream, Stream: io.NopCloser(bytes.NewReader(b))}, nil
}

func (d *fakeDestination) Remove(_ context.Context, path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.objects, path)
	return nil
}

func (d *fakeDestination) FillInfo(_ context.Context, path string) (destination.Info, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.objects[path]
	if !ok {
		return destination.Info{Exists: false}, nil
	}
	sum := md5.Sum(b)
	return destination.Info{Size: int64(len(b)), Exists: true, Hash: hex.EncodeToString(sum[:])}, nil
}

func (d *fakeDestination) writeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newTestScheduler(t *testing.T, index *fakeIndex, sources *fakeSource, dest *fakeDestination) (*Scheduler, *objstore.Store) {
	t.Helper()
	db, err := objstore.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store := objstore.NewStore(db)
	bus := progressbus.NewBus(progressbus.DefaultCapacity)

	// Step 5 of Run opens the library's database file at index.dbPath
	// whenever a backup is library-backed; give it a real file so the
	// snapshot step doesn't abort library-backed test runs.
	dbPath := filepath.Join(t.TempDir(), "library.db")
	if err := os.WriteFile(dbPath, []byte("fake-sqlite-contents"), 0o600); err != nil {
		t.Fatalf("write fake library db: %v", err)
	}
	index.dbPath = dbPath

	s := New(store, bus, index, sources, func(context.Context, *domainbackup.Backup) (destination.Provider, error) {
		return dest, nil
	}, func(context.Context, *domainbackup.Backup) error { return nil })
	s.Clock = fixedClock{now: time.UnixMilli(10_000)}
	return s, store
}

func TestRunUploadsNewCandidatesAndAdvancesCursor(t *testing.T) {
	index := newFakeIndex()
	library := "lib1"
	index.candidates[library] = []domainbackup.MediaCandidate{
		{MediaID: "m1", Modified: 100, Size: 3},
		{MediaID: "m2", Modified: 200, Size: 3},
	}
	index.hashes["m1"] = "hash-m1"
	index.hashes["m2"] = "hash-m2"

	sources := newFakeSource()
	sources.content["m1"] = []byte("abc")
	sources.content["m2"] = []byte("xyz")

	dest := newFakeDestination()
	s, store := newTestScheduler(t, index, sources, dest)

	b := &domainbackup.Backup{ID: "b1", Path: "backups/b1", Library: &library}
	ctx := context.Background()

	if err := s.Run(ctx, b); err != nil {
		t.Fatalf("Run: %v", err)
	}

	objs, err := store.ListByBackup(ctx, "b1")
	if err != nil {
		t.Fatalf("ListByBackup: %v", err)
	}
	if len(objs) != 2 {
		t.Fatalf("expected 2 catalogued objects, got %d", len(objs))
	}
	if dest.writeCount() != 2 {
		t.Errorf("expected 2 destination writes, got %d", dest.writeCount())
	}

	info, err := store.GetCatalogueInfo(ctx, "b1")
	if err != nil {
		t.Fatalf("GetCatalogueInfo: %v", err)
	}
	if info.MaxSourceModified != 200 {
		t.Errorf("MaxSourceModified = %d, want 200", info.MaxSourceModified)
	}
}

func TestRunSkipsUnchangedSourceHash(t *testing.T) {
	index := newFakeIndex()
	library := "lib1"
	index.candidates[library] = []domainbackup.MediaCandidate{{MediaID: "m1", Modified: 100, Size: 3}}
	index.hashes["m1"] = "stable-hash"

	sources := newFakeSource()
	sources.content["m1"] = []byte("abc")

	dest := newFakeDestination()
	s, store := newTestScheduler(t, index, sources, dest)

	b := &domainbackup.Backup{ID: "b1", Path: "backups/b1", Library: &library}
	ctx := context.Background()

	if err := s.Run(ctx, b); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if dest.writeCount() != 1 {
		t.Fatalf("expected 1 write after first run, got %d", dest.writeCount())
	}

	// A second run with the same candidate set and an unchanged cutoff
	// sees no new candidates (Modified <= cursor), so nothing uploads
	// and nothing new is catalogued.
	if err := s.Run(ctx, b); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if dest.writeCount() != 1 {
		t.Errorf("expected no additional writes on unchanged library, got %d total", dest.writeCount())
	}

	objs, err := store.ListByBackup(ctx, "b1")
	if err != nil {
		t.Fatalf("ListByBackup: %v", err)
	}
	if len(objs) != 1 {
		t.Errorf("expected exactly 1 catalogued object, got %d", len(objs))
	}
}

func TestRunSuppressesConcurrentInvocation(t *testing.T) {
	index := newFakeIndex()
	sources := newFakeSource()
	dest := newFakeDestination()
	s, _ := newTestScheduler(t, index, sources, dest)

	b := &domainbackup.Backup{ID: "b1", Path: "backups/b1"}

	s.mu.Lock()
	s.processing["b1"] = true
	s.mu.Unlock()

	if err := s.Run(context.Background(), b); err != nil {
		t.Fatalf("expected suppressed run to return nil, got %v", err)
	}
}

func TestRunReconcilesDeletions(t *testing.T) {
	index := newFakeIndex()
	library := "lib1"
	index.hashes["m1"] = "h1"
	sources := newFakeSource()
	sources.content["m1"] = []byte("abc")
	dest := newFakeDestination()
	s, store := newTestScheduler(t, index, sources, dest)

	b := &domainbackup.Backup{ID: "b1", Path: "backups/b1", Library: &library}
	ctx := context.Background()

	index.candidates[library] = []domainbackup.MediaCandidate{{MediaID: "m1", Modified: 100, Size: 3}}
	if err := s.Run(ctx, b); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	objs, _ := store.ListByBackupMedia(ctx, "b1", "m1")
	if len(objs) != 1 {
		t.Fatalf("expected 1 object for m1 before deletion, got %d", len(objs))
	}
	path := objs[0].Path
	if _, ok := dest.objects[path]; !ok {
		t.Fatalf("expected destination object at %s", path)
	}

	// Media is now gone from the library and tombstoned.
	index.candidates[library] = nil
	last := b.Last
	since := int64(0)
	if last != nil {
		since = *last
	}
	index.tombstones[library] = []domainbackup.Tombstone{{MediaID: "m1", At: since + 1}}

	if err := s.Run(ctx, b); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if _, ok := dest.objects[path]; ok {
		t.Error("expected destination object removed after tombstone reconciliation")
	}
	objs, _ = store.ListByBackupMedia(ctx, "b1", "m1")
	if len(objs) != 0 {
		t.Errorf("expected catalogue rows for m1 removed, got %d", len(objs))
	}
}

func TestRunAbortsOnSnapshotFailureWithoutAdvancingCursorOrPublishingDone(t *testing.T) {
	index := newFakeIndex()
	library := "lib1"
	index.candidates[library] = []domainbackup.MediaCandidate{{MediaID: "m1", Modified: 100, Size: 3}}
	index.hashes["m1"] = "hash-m1"

	sources := newFakeSource()
	sources.content["m1"] = []byte("abc")

	dest := newFakeDestination()
	s, _ := newTestScheduler(t, index, sources, dest)

	// Point the library database at a path that doesn't exist so the
	// step 5 snapshot fails; this must abort the run entirely, not just
	// log a warning.
	index.dbPath = filepath.Join(t.TempDir(), "missing.db")

	b := &domainbackup.Backup{ID: "b1", Path: "backups/b1", Library: &library}
	ctx := context.Background()

	sub := s.Bus.Subscribe()
	defer sub.Close()

	err := s.Run(ctx, b)
	if err == nil {
		t.Fatal("expected Run to return an error when the snapshot step fails")
	}

	if b.Last != nil {
		t.Errorf("expected Backup.Last left unset after an aborted run, got %v", *b.Last)
	}
	if b.Size != 0 {
		t.Errorf("expected Backup.Size left unset after an aborted run, got %d", b.Size)
	}

	recvCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	var sawError, sawDone bool
	for {
		evt, rerr := sub.Recv(recvCtx)
		if rerr != nil {
			break
		}
		if evt.Kind != progressbus.KindStatus {
			continue
		}
		switch evt.Status.Status {
		case domainbackup.StatusError:
			sawError = true
		case domainbackup.StatusDone:
			sawDone = true
		}
	}
	if !sawError {
		t.Error("expected an Error-kind status to be published")
	}
	if sawDone {
		t.Error("expected no Done status to be published for an aborted run")
	}
}

func TestRunOrdersCandidatesByModifiedThenMediaID(t *testing.T) {
	candidates := []domainbackup.MediaCandidate{
		{MediaID: "z", Modified: 100},
		{MediaID: "a", Modified: 100},
		{MediaID: "m", Modified: 50},
	}
	sortCandidates(candidates)
	want := []string{"m", "a", "z"}
	for i, id := range want {
		if candidates[i].MediaID != id {
			t.Errorf("position %d: got %s, want %s", i, candidates[i].MediaID, id)
		}
	}
}
