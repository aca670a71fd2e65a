// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

package progressbus

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/vaultkeep/internal/backup"
)

func fileEvent(backupID, file string, progress uint64, status backup.FileProgressStatus) Event {
	return Event{
		Kind: KindFileProgress,
		File: backup.BackupFileProgress{
			Backup:   backupID,
			File:     file,
			Progress: progress,
			Status:   status,
		},
	}
}

func TestPublishRecvRoundTrip(t *testing.T) {
	bus := NewBus(4)
	sub := bus.Subscribe()
	defer sub.Close()

	bus.Publish(fileEvent("b1", "f1", 0, backup.FileQueued))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := sub.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if got.File.Status != backup.FileQueued {
		t.Errorf("status = %v", got.File.Status)
	}
}

func TestDropOldestWhenFull(t *testing.T) {
	bus := NewBus(2)
	sub := bus.Subscribe()
	defer sub.Close()

	// Three distinct, non-coalescible events (different status) into a
	// capacity-2 queue: the oldest must be dropped.
	bus.Publish(fileEvent("b1", "f1", 0, backup.FileQueued))
	bus.Publish(fileEvent("b1", "f2", 0, backup.FileOpening))
	bus.Publish(fileEvent("b1", "f3", 0, backup.FileDone))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	first, err := sub.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if first.File.File != "f2" {
		t.Errorf("expected oldest event (f1) dropped, got first = %q", first.File.File)
	}

	second, err := sub.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if second.File.File != "f3" {
		t.Errorf("second = %q, want f3", second.File.File)
	}
}

func TestCoalescingMergesSmallProgressDeltas(t *testing.T) {
	bus := NewBus(8)
	sub := bus.Subscribe()
	defer sub.Close()

	bus.Publish(fileEvent("b1", "f1", 100, backup.FileTransferring))
	bus.Publish(fileEvent("b1", "f1", 200, backup.FileTransferring))
	bus.Publish(fileEvent("b1", "f1", 300, backup.FileTransferring))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := sub.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if got.File.Progress != 300 {
		t.Errorf("expected coalesced event to carry latest progress 300, got %d", got.File.Progress)
	}

	// No second event should be queued: all three coalesced into one.
	shortCtx, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	if _, err := sub.Recv(shortCtx); err == nil {
		t.Fatal("expected no further events, but Recv succeeded")
	}
}

func TestCoalescingForcesNewEntryPastOneMegabyte(t *testing.T) {
	bus := NewBus(8)
	sub := bus.Subscribe()
	defer sub.Close()

	bus.Publish(fileEvent("b1", "f1", 0, backup.FileTransferring))
	bus.Publish(fileEvent("b1", "f1", 2<<20, backup.FileTransferring)) // +2MB, past threshold

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	first, err := sub.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if first.File.Progress != 0 {
		t.Errorf("first event progress = %d, want 0", first.File.Progress)
	}
	second, err := sub.Recv(ctx)
	if err != nil {
		t.Fatalf("expected a second, separately-queued event past the 1MB threshold: %v", err)
	}
	if second.File.Progress != 2<<20 {
		t.Errorf("second event progress = %d", second.File.Progress)
	}
}

func TestStatusTransitionNeverCoalesced(t *testing.T) {
	bus := NewBus(8)
	sub := bus.Subscribe()
	defer sub.Close()

	bus.Publish(fileEvent("b1", "f1", 500, backup.FileTransferring))
	bus.Publish(fileEvent("b1", "f1", 500, backup.FileFinalizing))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	first, err := sub.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if first.File.Status != backup.FileTransferring {
		t.Errorf("first status = %v", first.File.Status)
	}
	second, err := sub.Recv(ctx)
	if err != nil {
		t.Fatalf("expected the finalizing transition to be a separate event: %v", err)
	}
	if second.File.Status != backup.FileFinalizing {
		t.Errorf("second status = %v", second.File.Status)
	}
}

func TestEstimateRemainingSeconds(t *testing.T) {
	start := time.Now()
	now := start.Add(10 * time.Second)

	got := EstimateRemainingSeconds(start, now, 0.5)
	if got == nil {
		t.Fatal("expected non-nil estimate")
	}
	if *got != 10 {
		t.Errorf("EstimateRemainingSeconds = %d, want 10", *got)
	}

	if EstimateRemainingSeconds(start, now, 0) != nil {
		t.Error("expected nil estimate at 0%")
	}
	if EstimateRemainingSeconds(start, now, 1.5) != nil {
		t.Error("expected nil estimate for out-of-range percent")
	}
}

func TestClosedSubscriptionStopsDelivery(t *testing.T) {
	bus := NewBus(4)
	sub := bus.Subscribe()
	sub.Close()

	bus.Publish(fileEvent("b1", "f1", 0, backup.FileQueued))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := sub.Recv(ctx); err == nil {
		t.Fatal("expected Recv on closed subscription to time out, not succeed")
	}
}
