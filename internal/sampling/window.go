package sampling

import (
	"math"
	"sort"
)

// Window accumulates raw samples until it holds a fixed number of them.
//
// Only successful fetches are added, so a window always represents exactly
// its capacity in real samples no matter how many fetch attempts failed along
// the way; failures stretch the window in time, never shrink its averaging
// base.
//
// Window is not safe for concurrent use. It is owned by the sampling loop.
type Window struct {
	capacity int
	samples  []Sample
}

// NewWindow creates a Window that seals after capacity samples.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		panic("sampling: window capacity must be at least 1")
	}
	return &Window{
		capacity: capacity,
		samples:  make([]Sample, 0, capacity),
	}
}

// Add appends a sample to the window.
//
// Samples must arrive in fetch-time order. Adding to a full window panics;
// callers seal the window the moment Full reports true.
func (w *Window) Add(s Sample) {
	if len(w.samples) >= w.capacity {
		panic("sampling: add to full window")
	}
	w.samples = append(w.samples, s)
}

// Full reports whether the window has reached its capacity.
func (w *Window) Full() bool {
	return len(w.samples) >= w.capacity
}

// Len returns the number of samples currently collected.
func (w *Window) Len() int {
	return len(w.samples)
}

// Capacity returns the number of samples the window seals at.
func (w *Window) Capacity() int {
	return w.capacity
}

// Seal averages the collected samples into a Reading and empties the window.
//
// Per metric, the mean is taken over the samples that carry that metric; a
// metric missing from some samples is averaged over the ones that have it
// rather than failing the window (mean-of-present). The reading's timestamp
// is the midpoint between the first and last sample's fetch time. Values are
// rounded to 2 decimal places.
//
// Returns the zero Reading and false if the window is empty. The window is
// ready to accumulate the next batch immediately after Seal returns.
func (w *Window) Seal(location string) (Reading, bool) {
	if len(w.samples) == 0 {
		return Reading{}, false
	}

	// Union of metric names across the window, sorted so the sums are
	// accumulated in a stable order.
	names := make(map[string]struct{})
	for _, s := range w.samples {
		for name := range s.Metrics {
			names[name] = struct{}{}
		}
	}
	ordered := make([]string, 0, len(names))
	for name := range names {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	metrics := make(map[string]float64, len(ordered))
	for _, name := range ordered {
		var sum float64
		var count int
		for _, s := range w.samples {
			if v, ok := s.Metrics[name]; ok {
				sum += v
				count++
			}
		}
		metrics[name] = math.Round(sum/float64(count)*100) / 100
	}

	first := w.samples[0].FetchedAt
	last := w.samples[len(w.samples)-1].FetchedAt
	midpoint := first.Add(last.Sub(first) / 2)

	w.samples = w.samples[:0]

	return Reading{
		Metrics:   metrics,
		Timestamp: midpoint,
		Location:  location,
	}, true
}
