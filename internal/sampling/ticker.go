package sampling

import "time"

// Ticker computes drift-corrected deadlines for a fixed-cadence schedule.
//
// Each deadline is derived from the previous ideal deadline plus the period,
// never from "now plus the period", so latency spent inside one cycle (a slow
// fetch, a slow write) does not push every subsequent cycle later. One-off
// delays are absorbed; only genuine overruns shift the schedule, and then by
// whole periods so the grid stays aligned.
//
// Ticker carries no goroutine and never sleeps. The caller asks for the next
// deadline and does the waiting itself; time is always passed in, which keeps
// the arithmetic directly testable.
type Ticker struct {
	period time.Duration
	guard  time.Duration
	ideal  time.Time // ideal start of the next tick
}

// NewTicker creates a Ticker whose first deadline is start.
//
// Parameters:
//   - period: The ideal gap between tick starts. Must be positive.
//   - guard: The minimum gap between two consecutive ticks when the schedule
//     has slipped. Must be non-negative and less than period; zero disables
//     the guard.
//   - start: The ideal time of the first tick.
func NewTicker(period, guard time.Duration, start time.Time) *Ticker {
	if period <= 0 {
		panic("sampling: ticker period must be positive")
	}
	if guard < 0 || guard >= period {
		panic("sampling: ticker guard must be non-negative and less than period")
	}
	return &Ticker{
		period: period,
		guard:  guard,
		ideal:  start,
	}
}

// Next returns the deadline for the upcoming tick and advances the schedule.
//
// If the ideal deadline is still in the future, it is returned unchanged and
// the following deadline becomes ideal+period.
//
// If the ideal deadline has already passed (a previous cycle overran the
// period), Next returns now — the tick fires immediately — and the schedule
// is realigned by skipping whole periods until the next ideal deadline lies
// beyond now plus the guard interval. Two ticks are therefore never scheduled
// closer together than the guard.
func (t *Ticker) Next(now time.Time) time.Time {
	deadline := t.ideal
	t.ideal = t.ideal.Add(t.period)

	if deadline.After(now) {
		return deadline
	}

	// Overrun: fire immediately and realign to the ideal grid.
	for !t.ideal.After(now.Add(t.guard)) {
		t.ideal = t.ideal.Add(t.period)
	}
	return now
}

// Period returns the configured tick period.
func (t *Ticker) Period() time.Duration {
	return t.period
}
