// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

/*
Package progressbus implements the typed broadcast used to fan out backup
progress to any number of observers (a WebSocket endpoint, a CLI, a test).

Every subscriber owns a bounded, per-subscriber queue. A slow subscriber
never blocks a fast one and never blocks the publisher: once a
subscriber's queue is full, the oldest queued event is dropped to make
room for the new one. This is a deliberate choice of drop-oldest over
drop-the-client — unlike a connection hub juggling scarce sockets, a
progress observer that falls behind should see the most recent state
rather than be disconnected.

File-transfer progress events are additionally coalesced: while a file
stays in the "transferring" state, repeated progress ticks for the same
file replace the previously queued tick in place rather than growing the
queue, unless the transferred-bytes delta since the queued tick has
crossed 1MB. Any status transition (including into or out of
"transferring") is never coalesced away — it always enqueues as a new
event, so observers never miss a state change.
*/
package progressbus

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/vaultkeep/internal/backup"
)

// Kind discriminates the two event shapes carried over the bus.
type Kind int

const (
	// KindStatus carries a whole-backup BackupProcessStatus update.
	KindStatus Kind = iota
	// KindFileProgress carries a single file's BackupFileProgress update.
	KindFileProgress
)

// Event is the unit published on and received from the bus. Exactly one
// of Status or File is meaningful, selected by Kind.
type Event struct {
	Kind   Kind                       `json:"kind"`
	Status backup.BackupProcessStatus `json:"status"`
	File   backup.BackupFileProgress  `json:"file"`
}

// coalesceByteThreshold is the transferred-byte delta beyond which a
// coalesced "transferring" tick is forced to enqueue as a new entry
// instead of replacing the pending one.
const coalesceByteThreshold = 1 << 20 // 1MB

// DefaultCapacity is the default per-subscriber queue depth.
const DefaultCapacity = 64

// Bus is a typed, multi-subscriber progress broadcaster.
type Bus struct {
	mu       sync.RWMutex
	subs     map[uint64]*subscriber
	nextID   uint64
	capacity int
}

// NewBus constructs a Bus whose subscribers each hold up to capacity
// queued events before the oldest is dropped.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		subs:     make(map[uint64]*subscriber),
		capacity: capacity,
	}
}

// Subscription is a handle returned by Subscribe. Call Recv to pull the
// next event and Close to stop receiving and release the subscriber slot.
type Subscription struct {
	bus *Bus
	id  uint64
	sub *subscriber
}

// Subscribe registers a new subscriber and returns its handle.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	sub := newSubscriber(b.capacity)
	b.subs[id] = sub
	return &Subscription{bus: b, id: id, sub: sub}
}

// Close unsubscribes: no further events are delivered. It does not wake
// a blocked Recv, and later Recv calls still return events already
// queued, then block until their ctx is done.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.subs, s.id)
}

// Recv blocks until an event is available or ctx is done; closing the
// subscription does not end the wait.
func (s *Subscription) Recv(ctx context.Context) (Event, error) {
	return s.sub.recv(ctx)
}

// Publish delivers e to every current subscriber. Never blocks: each
// subscriber applies its own coalescing and drop-oldest policy
// independently. Subscribers are visited in ascending ID order so
// delivery order is deterministic across repeated runs of the same
// sequence of Publish/Subscribe calls.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	ids := make([]uint64, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	subs := make([]*subscriber, len(ids))
	for i, id := range ids {
		subs[i] = b.subs[id]
	}
	b.mu.RUnlock()

	key, coalescible := coalesceKey(e)
	for _, sub := range subs {
		sub.enqueue(e, key, coalescible)
	}
}

func coalesceKey(e Event) (string, bool) {
	if e.Kind != KindFileProgress {
		return "", false
	}
	if e.File.Status != backup.FileTransferring {
		return "", false
	}
	return e.File.Backup + "/" + e.File.File, true
}

// EstimateRemainingSeconds computes ETA = elapsed/percent*(1-percent),
// the estimator used throughout the engine's progress reporting. percent
// must be in (0, 1]; outside that range the remaining time is undefined
// and nil is returned.
func EstimateRemainingSeconds(started, now time.Time, percent float64) *uint64 {
	if percent <= 0 || percent > 1 {
		return nil
	}
	elapsed := now.Sub(started).Seconds()
	remaining := elapsed/percent*(1-percent)
	if remaining < 0 {
		remaining = 0
	}
	r := uint64(remaining)
	return &r
}
