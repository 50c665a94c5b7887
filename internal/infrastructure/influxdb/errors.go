package influxdb

import "errors"

// Sentinel errors for InfluxDB operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, influxdb.ErrWriteFailed) {
//	    // Reading stays queued for the next flush
//	}
var (
	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrWriteFailed indicates a write was not acknowledged. Connection,
	// auth, and server errors all collapse into this: the retry policy does
	// not distinguish them.
	ErrWriteFailed = errors.New("influxdb: write failed")
)
