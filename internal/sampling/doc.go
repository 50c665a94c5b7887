// Package sampling holds the pure timing and aggregation logic of the relay:
// the drift-corrected Ticker that keeps the sampling cadence aligned to an
// ideal grid, and the Window that folds a fixed number of raw samples into
// one averaged reading.
//
// Nothing in this package sleeps, fetches, or writes; time is always passed
// in by the caller. The relay package owns the loop that drives both.
package sampling
