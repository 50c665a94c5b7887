// Package logging provides structured logging for the relay.
//
// It wraps Go's standard log/slog package to give every log line the same
// shape: JSON (or text for development), level-filtered, with service and
// version fields attached by default.
//
// Configuration comes from the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("window sealed", "samples", 5, "co2", 420.0)
//
// Never log the InfluxDB token or MQTT credentials.
package logging
