package publish

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/airrelay/internal/sampling"
)

// Writer delivers one averaged reading to the database.
//
// WriteReading returns nil only once the database has acknowledged the
// write; any other outcome (connection error, auth error, server error,
// partial acceptance) is an error and the reading will be retried whole.
type Writer interface {
	WriteReading(ctx context.Context, reading sampling.Reading) error
}

// Entry wraps a queued reading with bookkeeping for observability.
type Entry struct {
	Reading    sampling.Reading
	EnqueuedAt time.Time
	Attempts   int

	// seq orders entries across the queue's lifetime so an entry evicted
	// while in flight is never confused with the current head.
	seq uint64
}

// FlushResult reports the outcome of one flush pass.
type FlushResult struct {
	// Delivered is the number of entries acknowledged and removed.
	Delivered int

	// Remaining is the number of entries still queued when the pass ended.
	Remaining int

	// Coalesced is true when another flush was already in progress; that
	// flush covers this request and nothing was attempted here.
	Coalesced bool

	// Err is the delivery error that stopped the pass, nil if it drained.
	Err error
}

// Drained reports whether the queue was empty when the pass ended.
func (r FlushResult) Drained() bool {
	return r.Remaining == 0 && !r.Coalesced
}

// Queue is a bounded, ordered, in-memory retry queue of averaged readings.
//
// Entries are delivered strictly in enqueue order, which matches measurement
// order, so database insertion order equals measurement order even when
// delivery lags real time. When the queue is full the oldest entry is
// evicted — bounded memory is a hard invariant during prolonged outages —
// and the eviction is surfaced through the OnDrop callback and the drop
// counter. That eviction is the only data-loss path in the relay.
//
// Thread Safety: all methods are safe for concurrent use. Only one flush
// pass runs at a time; overlapping Flush calls return immediately with
// Coalesced set, relying on the in-flight pass, which keeps delivering
// until the queue is empty or a write fails.
type Queue struct {
	writer Writer

	mu       sync.Mutex
	entries  []Entry
	limit    int
	nextSeq  uint64
	dropped  uint64
	flushing bool

	// onDrop is invoked (outside the lock) for every evicted entry.
	onDrop func(Entry)
}

// NewQueue creates a Queue bounded at limit entries, delivering via writer.
func NewQueue(limit int, writer Writer) *Queue {
	if limit < 1 {
		panic("publish: queue limit must be at least 1")
	}
	return &Queue{
		writer:  writer,
		entries: make([]Entry, 0),
		limit:   limit,
	}
}

// SetOnDrop sets a callback invoked for each entry evicted at capacity.
//
// The callback runs on the enqueueing goroutine, outside the queue lock.
func (q *Queue) SetOnDrop(fn func(Entry)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onDrop = fn
}

// Enqueue appends a reading to the tail of the queue. It never fails.
//
// A new reading always lands after every previously queued entry, so FIFO
// order is preserved. If the queue is at its limit, the oldest entry is
// evicted first and reported via OnDrop.
//
// Returns true if an entry was evicted to make room.
func (q *Queue) Enqueue(reading sampling.Reading, now time.Time) bool {
	q.mu.Lock()

	var evicted Entry
	var didEvict bool
	if len(q.entries) >= q.limit {
		evicted = q.entries[0]
		q.entries = q.entries[1:]
		q.dropped++
		didEvict = true
	}

	q.nextSeq++
	q.entries = append(q.entries, Entry{
		Reading:    reading,
		EnqueuedAt: now,
		seq:        q.nextSeq,
	})

	onDrop := q.onDrop
	q.mu.Unlock()

	if didEvict && onDrop != nil {
		onDrop(evicted)
	}
	return didEvict
}

// Len returns the number of entries currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Dropped returns the total number of entries evicted at capacity.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Flush attempts delivery of every queued entry in order.
//
// The pass stops at the first delivery failure, preserving the failed entry
// and everything behind it; nothing is reordered or skipped. An entry is
// removed only after the writer acknowledges it, so a crash mid-flush can
// duplicate but never lose (at-least-once delivery).
//
// Entries enqueued while a pass is running are picked up by the same pass,
// which is why an overlapping Flush call can safely coalesce into a no-op.
func (q *Queue) Flush(ctx context.Context) FlushResult {
	q.mu.Lock()
	if q.flushing {
		remaining := len(q.entries)
		q.mu.Unlock()
		return FlushResult{Remaining: remaining, Coalesced: true}
	}
	q.flushing = true
	q.mu.Unlock()

	var delivered int
	for {
		q.mu.Lock()
		if len(q.entries) == 0 {
			q.flushing = false
			q.mu.Unlock()
			return FlushResult{Delivered: delivered}
		}
		q.entries[0].Attempts++
		head := q.entries[0]
		q.mu.Unlock()

		if err := q.writer.WriteReading(ctx, head.Reading); err != nil {
			q.mu.Lock()
			q.flushing = false
			remaining := len(q.entries)
			q.mu.Unlock()
			return FlushResult{Delivered: delivered, Remaining: remaining, Err: err}
		}

		q.mu.Lock()
		// The head may have been evicted at capacity while the write was in
		// flight; remove it only if it is still the same entry.
		if len(q.entries) > 0 && q.entries[0].seq == head.seq {
			q.entries = q.entries[1:]
		}
		q.mu.Unlock()
		delivered++
	}
}
