// Package mqtt is the relay's optional mirror publisher.
//
// When enabled, every sealed reading is published retained to
// <prefix>/<location>/reading alongside the database write, and the relay
// announces its own liveness on <prefix>/system/status (with a Last Will
// for crash detection).
//
// The mirror is fire-and-forget: the retry queue's delivery guarantees
// apply to the database path only, and a mirror publish failure is logged
// and forgotten.
package mqtt
