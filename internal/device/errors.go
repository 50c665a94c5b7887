package device

import "errors"

// Sentinel errors for device operations.
//
// All fetch-side failures wrap ErrFetchFailed so the sampling loop can treat
// timeout, connection refusal, bad status, and malformed payload uniformly
// as a skipped tick.
var (
	// ErrFetchFailed indicates the measurement fetch did not produce a sample.
	ErrFetchFailed = errors.New("device: fetch failed")

	// ErrMalformedPayload indicates the device returned a body that does not
	// parse as a measurement payload. Wraps ErrFetchFailed.
	ErrMalformedPayload = errors.New("device: malformed payload")

	// ErrPushFailed indicates a brightness configuration push was not accepted.
	ErrPushFailed = errors.New("device: config push failed")
)
