// Package brightness replaces the cloud-side brightness schedule the
// AirGradient device lost: a local, two-state regime per cycle (LED bar and
// display), each defined by a daily day window and a pair of levels.
//
// The scheduler runs on its own cadence, decoupled from sampling, and only
// writes to the device when the desired level actually changes.
package brightness
