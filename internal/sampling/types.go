package sampling

import "time"

// Sample is one raw reading fetched from the device.
//
// Samples are immutable once created and owned by the window they were
// collected into; they are discarded when the window seals.
type Sample struct {
	// Metrics maps metric name to value, e.g. "co2" -> 412.
	// A metric the device did not report is simply absent.
	Metrics map[string]float64

	// FetchedAt is when the sample was fetched from the device.
	FetchedAt time.Time
}

// Reading is one averaged reading produced by a sealed window.
//
// Readings are immutable; they are owned by the retry queue until the
// database acknowledges delivery.
type Reading struct {
	// Metrics maps metric name to the window's mean for that metric,
	// rounded to 2 decimal places.
	Metrics map[string]float64

	// Timestamp is the midpoint between the first and last sample's
	// fetch time. It represents the whole window.
	Timestamp time.Time

	// Location identifies where the device sits, e.g. "office".
	Location string
}
