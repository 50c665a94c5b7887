// Package publish owns the failure-tolerant delivery path between sealed
// readings and the database.
//
// Every averaged reading is enqueued and the queue flushed in the same step,
// so on a healthy network nothing stays queued beyond the one pass. When the
// database is unreachable, readings accumulate — in measurement order, under
// a hard memory bound — and drain on the next successful flush. Eviction at
// the bound is the relay's single, explicitly counted data-loss path.
package publish
