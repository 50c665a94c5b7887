// Package relay wires the sampling window, retry queue and brightness
// scheduler into the running service.
//
// A Relay drives two loops: a drift-corrected sampling loop that fetches
// one raw sample per tick, seals full windows into averaged readings and
// delivers them through the retry queue, and a brightness loop that
// evaluates the daily schedule and pushes device configuration when the
// desired levels change. Shutdown seals any partial window and attempts
// one final flush before the process exits.
package relay
