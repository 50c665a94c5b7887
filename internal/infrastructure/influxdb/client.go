package influxdb

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/airrelay/internal/infrastructure/config"
)

// Default timeouts for InfluxDB operations.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second
	defaultWriteTimeout   = 10 * time.Second
)

// measurement is the InfluxDB measurement every reading is written under.
const measurement = "airquality"

// Client wraps the InfluxDB v2 client for the relay.
//
// Writes use the blocking API: WriteReading returns only once the server has
// acknowledged the point (or refused it). The retry queue depends on that
// per-write outcome — the non-blocking batched API would hide failures
// behind a callback and break the queue's delivery guarantee.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	client       influxdb2.Client
	writeAPI     api.WriteAPIBlocking
	writeTimeout time.Duration
}

// Connect creates a client and verifies connectivity with a ping.
//
// Parameters:
//   - ctx: Context for the connectivity check
//   - cfg: InfluxDB configuration from config.yaml
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: If the server cannot be reached or is unhealthy
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	writeTimeout := time.Duration(cfg.WriteTimeout) * time.Second
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	// Verify connectivity
	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	return &Client{
		client:       client,
		writeAPI:     client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		writeTimeout: writeTimeout,
	}, nil
}

// WriteReading writes one averaged reading as a point under the airquality
// measurement, tagged by location, timestamped at the reading's window
// midpoint.
//
// The call blocks until the server acknowledges the write or the write
// timeout elapses. Connection errors, auth errors, and server errors are all
// collapsed into ErrWriteFailed; the caller retries them identically.
//
// Parameters:
//   - ctx: Context for cancellation; the write timeout is applied on top
//   - location: The location tag value
//   - metrics: Field name to averaged value
//   - timestamp: The reading's representative time
//
// Returns:
//   - error: nil once acknowledged, otherwise wrapping ErrWriteFailed
func (c *Client) WriteReading(ctx context.Context, location string, metrics map[string]float64, timestamp time.Time) error {
	fields := make(map[string]interface{}, len(metrics))
	for name, value := range metrics {
		fields[name] = value
	}

	point := influxdb2.NewPoint(
		measurement,
		map[string]string{"location": location},
		fields,
		timestamp,
	)

	writeCtx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	if err := c.writeAPI.WritePoint(writeCtx, point); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// HealthCheck verifies the InfluxDB connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}
	return nil
}

// Close shuts down the underlying client.
//
// There is nothing to flush: every accepted WriteReading was already
// acknowledged by the server.
func (c *Client) Close() error {
	if c.client != nil {
		c.client.Close()
	}
	return nil
}
