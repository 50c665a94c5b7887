package publish

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/airrelay/internal/sampling"
)

var errWriteRefused = errors.New("write refused")

// fakeWriter records delivered readings and fails on command.
type fakeWriter struct {
	mu        sync.Mutex
	delivered []sampling.Reading
	failNext  int    // number of upcoming writes to fail
	onWrite   func() // optional hook, runs before each write attempt
}

func (w *fakeWriter) WriteReading(_ context.Context, r sampling.Reading) error {
	w.mu.Lock()
	hook := w.onWrite
	w.mu.Unlock()
	if hook != nil {
		hook()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failNext > 0 {
		w.failNext--
		return errWriteRefused
	}
	w.delivered = append(w.delivered, r)
	return nil
}

func (w *fakeWriter) deliveredCO2() []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]float64, len(w.delivered))
	for i, r := range w.delivered {
		out[i] = r.Metrics["co2"]
	}
	return out
}

func reading(co2 float64) sampling.Reading {
	return sampling.Reading{
		Metrics:   map[string]float64{"co2": co2},
		Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Location:  "office",
	}
}

func TestQueue_FlushDeliversInOrder(t *testing.T) {
	w := &fakeWriter{}
	q := NewQueue(100, w)
	now := time.Now()

	for _, co2 := range []float64{400, 410, 420} {
		q.Enqueue(reading(co2), now)
	}

	res := q.Flush(context.Background())
	if res.Err != nil {
		t.Fatalf("Flush() err = %v", res.Err)
	}
	if res.Delivered != 3 {
		t.Errorf("Delivered = %d, want 3", res.Delivered)
	}
	if !res.Drained() {
		t.Error("Drained() = false, want true")
	}

	got := w.deliveredCO2()
	want := []float64{400, 410, 420}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delivery order = %v, want %v", got, want)
		}
	}
}

func TestQueue_FlushStopsAtFirstFailure(t *testing.T) {
	w := &fakeWriter{failNext: 1}
	q := NewQueue(100, w)
	now := time.Now()

	q.Enqueue(reading(400), now)
	q.Enqueue(reading(410), now)

	res := q.Flush(context.Background())
	if res.Err == nil {
		t.Fatal("Flush() err = nil, want failure")
	}
	if res.Delivered != 0 {
		t.Errorf("Delivered = %d, want 0", res.Delivered)
	}
	if res.Remaining != 2 {
		t.Errorf("Remaining = %d, want 2 (failed entry preserved)", res.Remaining)
	}
	if len(w.deliveredCO2()) != 0 {
		t.Errorf("delivered = %v, want none", w.deliveredCO2())
	}
}

func TestQueue_FailThenSucceedNoDuplicates(t *testing.T) {
	// A write fails once then succeeds: the reading stays queued across the
	// failed attempt and is delivered exactly once on the next flush.
	w := &fakeWriter{failNext: 1}
	q := NewQueue(100, w)
	now := time.Now()

	q.Enqueue(reading(420), now)

	first := q.Flush(context.Background())
	if first.Err == nil {
		t.Fatal("first Flush() err = nil, want failure")
	}
	if q.Len() != 1 {
		t.Fatalf("Len() after failed flush = %d, want 1", q.Len())
	}

	second := q.Flush(context.Background())
	if second.Err != nil {
		t.Fatalf("second Flush() err = %v", second.Err)
	}
	if second.Delivered != 1 {
		t.Errorf("second Flush() Delivered = %d, want 1", second.Delivered)
	}
	if q.Len() != 0 {
		t.Errorf("Len() after successful flush = %d, want 0", q.Len())
	}

	got := w.deliveredCO2()
	if len(got) != 1 || got[0] != 420 {
		t.Errorf("delivered = %v, want exactly [420]", got)
	}
}

func TestQueue_InterleavedEnqueueAndFailure(t *testing.T) {
	// Enqueues interleaved with failures must still deliver in original
	// enqueue order with no duplicates.
	w := &fakeWriter{}
	q := NewQueue(100, w)
	now := time.Now()

	q.Enqueue(reading(400), now)
	w.failNext = 1
	q.Flush(context.Background()) // fails, 400 preserved

	q.Enqueue(reading(410), now)
	w.failNext = 1
	q.Flush(context.Background()) // fails again

	q.Enqueue(reading(420), now)
	res := q.Flush(context.Background())
	if res.Err != nil {
		t.Fatalf("final Flush() err = %v", res.Err)
	}

	got := w.deliveredCO2()
	want := []float64{400, 410, 420}
	if len(got) != len(want) {
		t.Fatalf("delivered = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delivery order = %v, want %v", got, want)
		}
	}
}

func TestQueue_BoundedDrop(t *testing.T) {
	w := &fakeWriter{}
	q := NewQueue(3, w)
	now := time.Now()

	var droppedCO2 []float64
	q.SetOnDrop(func(e Entry) {
		droppedCO2 = append(droppedCO2, e.Reading.Metrics["co2"])
	})

	for _, co2 := range []float64{400, 410, 420} {
		if evicted := q.Enqueue(reading(co2), now); evicted {
			t.Errorf("Enqueue(%v) evicted below the bound", co2)
		}
	}
	if !q.Enqueue(reading(430), now) {
		t.Error("Enqueue() at capacity did not evict")
	}
	q.Enqueue(reading(440), now)

	if q.Len() != 3 {
		t.Errorf("Len() = %d, want 3 (never exceeds the bound)", q.Len())
	}
	if q.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", q.Dropped())
	}
	if len(droppedCO2) != 2 || droppedCO2[0] != 400 || droppedCO2[1] != 410 {
		t.Errorf("dropped = %v, want oldest first [400 410]", droppedCO2)
	}

	// What survives is the newest three, still in order.
	q.Flush(context.Background())
	got := w.deliveredCO2()
	want := []float64{420, 430, 440}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delivered = %v, want %v", got, want)
		}
	}
}

func TestQueue_ConcurrentFlushCoalesces(t *testing.T) {
	w := &fakeWriter{}
	q := NewQueue(100, w)
	now := time.Now()
	q.Enqueue(reading(400), now)

	inWrite := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	w.onWrite = func() {
		once.Do(func() {
			close(inWrite)
			<-release
		})
	}

	done := make(chan FlushResult, 1)
	go func() {
		done <- q.Flush(context.Background())
	}()

	<-inWrite // first flush is mid-write

	second := q.Flush(context.Background())
	if !second.Coalesced {
		t.Error("overlapping Flush() Coalesced = false, want true")
	}

	close(release)
	first := <-done
	if first.Err != nil {
		t.Fatalf("in-flight Flush() err = %v", first.Err)
	}

	got := w.deliveredCO2()
	if len(got) != 1 {
		t.Errorf("delivered = %v, want exactly one entry (no double-send)", got)
	}
}

func TestQueue_FlushPicksUpEntriesAddedMidPass(t *testing.T) {
	w := &fakeWriter{}
	q := NewQueue(100, w)
	now := time.Now()
	q.Enqueue(reading(400), now)

	var once sync.Once
	w.onWrite = func() {
		// While the first entry is in flight, another seals.
		once.Do(func() { q.Enqueue(reading(410), now) })
	}

	res := q.Flush(context.Background())
	if res.Err != nil {
		t.Fatalf("Flush() err = %v", res.Err)
	}
	if res.Delivered != 2 {
		t.Errorf("Delivered = %d, want 2 (mid-pass enqueue drained too)", res.Delivered)
	}
}

func TestQueue_FlushEmpty(t *testing.T) {
	q := NewQueue(10, &fakeWriter{})
	res := q.Flush(context.Background())
	if res.Err != nil || res.Delivered != 0 || !res.Drained() {
		t.Errorf("Flush() on empty queue = %+v, want clean no-op", res)
	}
}
