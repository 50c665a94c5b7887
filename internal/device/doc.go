// Package device is the HTTP client for the AirGradient unit's local API.
//
// Two endpoints matter to the relay:
//
//   - GET /measures/current — the live measurement payload, converted through
//     a field mapping into the relay's metric names
//   - PUT /config — accepts the brightness configuration (LED bar, display)
//
// Both calls carry bounded timeouts and report failures through the
// package's sentinel errors; neither failure mode is ever fatal to the
// relay.
package device
