package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the relay's data path. Exposed on the
// operational endpoint's /metrics route.
var (
	samplesCollected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airrelay_samples_collected_total",
		Help: "Raw samples successfully fetched from the device",
	})

	fetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airrelay_fetch_errors_total",
		Help: "Device fetches that failed and skipped their tick",
	})

	windowsSealed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airrelay_windows_sealed_total",
		Help: "Sampling windows sealed into averaged readings",
	})

	readingsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airrelay_readings_delivered_total",
		Help: "Averaged readings acknowledged by the database",
	})

	deliveryErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airrelay_delivery_errors_total",
		Help: "Flush passes stopped by a database write failure",
	})

	queueDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airrelay_queue_dropped_total",
		Help: "Unsent readings evicted because the retry queue hit its bound",
	})

	queueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "airrelay_queue_length",
		Help: "Readings currently waiting in the retry queue",
	})

	brightnessPushes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airrelay_brightness_pushes_total",
		Help: "Brightness configuration pushes accepted by the device",
	})

	brightnessPushErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airrelay_brightness_push_errors_total",
		Help: "Brightness configuration pushes the device did not accept",
	})

	mirrorErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airrelay_mirror_errors_total",
		Help: "Sealed readings that failed to mirror to MQTT",
	})
)
