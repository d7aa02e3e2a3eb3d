// Package dedupe tracks aggregator transaction ids already accepted for
// ingestion so a re-posted batch is not queued twice.
package dedupe

import (
	"context"
	"strings"
	"sync"
)

// Deduper records seen ids to give at-most-once enqueueing.
type Deduper interface {
	// SeenAndRecord reports whether id was already recorded and records it
	// if it was not. The check and the insert happen under one lock.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so it can be retried, e.g. after the queue
	// refused the job that carried it.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// Key scopes an aggregator transaction id to its owner. Aggregator ids
// are only unique per linked account. Extra parts, such as the amount and
// date, make a corrected row under the same id a different key.
func Key(userID, transactionID string, parts ...string) string {
	return strings.Join(append([]string{userID, transactionID}, parts...), "/")
}

// ringDeduper keeps ids in insertion order inside a fixed ring. When the
// ring is full the oldest id is overwritten. A capacity <= 0 disables the
// ring and the set grows without bound.
type ringDeduper struct {
	mu    sync.Mutex
	seen  map[string]int // id -> slot in ring, -1 when unbounded
	ring  []string
	next  int
	limit int
}

// NewInMemoryDeduper creates a deduper; see WithMaxSize.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &ringDeduper{limit: 50_000}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]int)
	if d.limit > 0 {
		d.ring = make([]string, d.limit)
	}
	return d
}

func (d *ringDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	if d.limit <= 0 {
		d.seen[id] = -1
		return false
	}

	slot := d.next
	if old := d.ring[slot]; old != "" {
		delete(d.seen, old)
	}
	d.ring[slot] = id
	d.seen[id] = slot
	d.next = (slot + 1) % d.limit
	return false
}

func (d *ringDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	slot, ok := d.seen[id]
	if !ok {
		return
	}
	delete(d.seen, id)
	if slot >= 0 {
		// Leave a hole; the slot is reused when the ring wraps.
		d.ring[slot] = ""
	}
}

func (d *ringDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
