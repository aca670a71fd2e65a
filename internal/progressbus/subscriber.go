// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

package progressbus

import (
	"context"
	"sync"
)

// subscriber holds one observer's bounded event queue. Mutated under mu
// by both Publish (producer side) and recv (consumer side).
type subscriber struct {
	mu       sync.Mutex
	queue    []Event
	capacity int
	lastIdx  map[string]int // coalesce key -> index currently held in queue
	notify   chan struct{}
}

func newSubscriber(capacity int) *subscriber {
	return &subscriber{
		capacity: capacity,
		lastIdx:  make(map[string]int),
		notify:   make(chan struct{}, 1),
	}
}

func (s *subscriber) enqueue(e Event, key string, coalescible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if coalescible {
		if idx, ok := s.lastIdx[key]; ok && idx < len(s.queue) {
			pending := s.queue[idx]
			delta := e.File.Progress - pending.File.Progress
			if delta < coalesceByteThreshold {
				s.queue[idx] = e
				s.wake()
				return
			}
		}
	}

	if len(s.queue) >= s.capacity {
		s.queue = s.queue[1:]
		s.shiftIndices()
	}
	s.queue = append(s.queue, e)
	if coalescible {
		s.lastIdx[key] = len(s.queue) - 1
	}
	s.wake()
}

// shiftIndices re-bases every tracked coalesce index after the front of
// the queue has been dropped.
func (s *subscriber) shiftIndices() {
	for k, idx := range s.lastIdx {
		if idx == 0 {
			delete(s.lastIdx, k)
			continue
		}
		s.lastIdx[k] = idx - 1
	}
}

func (s *subscriber) pop() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Event{}, false
	}
	e := s.queue[0]
	s.queue = s.queue[1:]
	s.shiftIndices()
	return e, true
}

func (s *subscriber) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscriber) recv(ctx context.Context) (Event, error) {
	for {
		if e, ok := s.pop(); ok {
			return e, nil
		}
		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-s.notify:
		}
	}
}
