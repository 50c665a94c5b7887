package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nerrad567/airrelay/internal/infrastructure/config"
	"github.com/nerrad567/airrelay/internal/sampling"
)

// Default timeouts for device operations, matching the original relay.
const (
	defaultFetchTimeout = 5 * time.Second
	defaultPushTimeout  = 5 * time.Second
)

// fieldMapping renames the AirGradient payload fields to the metric names
// reported downstream. Fields absent from a payload are simply absent from
// the sample; fields not listed here are ignored.
var fieldMapping = map[string]string{
	"pm02Compensated": "pm_025_comp",
	"pm003Count":      "pm_003_ct",
	"pm01":            "pm_010",
	"pm10":            "pm_100",
	"rco2":            "co2",
	"atmp":            "temperature_c",
	"rhum":            "humidity_pct",
	"tvocIndex":       "tvoc_index",
	"tvocRaw":         "tvoc_raw",
	"noxIndex":        "nox_index",
}

// brightnessPayload is the device's local configuration API shape for the
// two brightness settings.
type brightnessPayload struct {
	LEDBarBrightness  int `json:"ledBarBrightness"`
	DisplayBrightness int `json:"displayBrightness"`
}

// Client talks to an AirGradient device over its local HTTP API.
//
// The device speaks plain HTTP on the local network: GET /measures/current
// for the live measurement payload and PUT /config for configuration
// updates. Every call is bounded by a timeout so a hung device can never
// stall the relay's loops.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	fetchTimeout time.Duration
	pushTimeout  time.Duration
}

// NewClient creates a Client for the configured device.
//
// Parameters:
//   - cfg: Device configuration from config.yaml (host and timeouts)
//
// Returns:
//   - *Client: Ready to use; no connection is established up front
func NewClient(cfg config.DeviceConfig) *Client {
	fetchTimeout := time.Duration(cfg.FetchTimeout) * time.Second
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	pushTimeout := time.Duration(cfg.PushTimeout) * time.Second
	if pushTimeout <= 0 {
		pushTimeout = defaultPushTimeout
	}

	return &Client{
		baseURL:      "http://" + cfg.Host,
		httpClient:   &http.Client{},
		fetchTimeout: fetchTimeout,
		pushTimeout:  pushTimeout,
	}
}

// Current fetches one measurement from the device.
//
// The raw payload is converted through the field mapping; metrics the device
// did not report are absent from the returned sample. Any failure — timeout,
// connection error, non-2xx status, malformed body — wraps ErrFetchFailed
// and means the tick is skipped with nothing produced.
//
// Parameters:
//   - ctx: Context for cancellation; the fetch timeout is applied on top
//
// Returns:
//   - sampling.Sample: The converted sample with FetchedAt set to now
//   - error: nil on success, otherwise wrapping ErrFetchFailed
func (c *Client) Current(ctx context.Context) (sampling.Sample, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, c.baseURL+"/measures/current", nil)
	if err != nil {
		return sampling.Sample{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return sampling.Sample{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain body to allow connection reuse
		_, _ = io.Copy(io.Discard, resp.Body)
		return sampling.Sample{}, fmt.Errorf("%w: HTTP %d", ErrFetchFailed, resp.StatusCode)
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return sampling.Sample{}, fmt.Errorf("%w: %w: %w", ErrFetchFailed, ErrMalformedPayload, err)
	}

	metrics := make(map[string]float64)
	for origKey, newKey := range fieldMapping {
		v, ok := raw[origKey]
		if !ok {
			continue
		}
		// encoding/json decodes every JSON number into float64.
		if value, isNumber := v.(float64); isNumber {
			metrics[newKey] = value
		}
	}

	return sampling.Sample{
		Metrics:   metrics,
		FetchedAt: time.Now(),
	}, nil
}

// PushBrightness sets the device's LED bar and display brightness.
//
// Parameters:
//   - ctx: Context for cancellation; the push timeout is applied on top
//   - led: LED bar brightness percentage (0-100)
//   - display: Display brightness percentage (0-100)
//
// Returns:
//   - error: nil once the device accepted the configuration, otherwise
//     wrapping ErrPushFailed
func (c *Client) PushBrightness(ctx context.Context, led, display int) error {
	body, err := json.Marshal(brightnessPayload{
		LEDBarBrightness:  led,
		DisplayBrightness: display,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPushFailed, err)
	}

	pushCtx, cancel := context.WithTimeout(ctx, c.pushTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(pushCtx, http.MethodPut, c.baseURL+"/config", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPushFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPushFailed, err)
	}
	defer resp.Body.Close()
	// Drain body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: HTTP %d", ErrPushFailed, resp.StatusCode)
	}

	return nil
}

// HealthCheck verifies the device answers its measurement endpoint.
//
// Used at startup for operator feedback; a failure here is logged, not
// fatal, since the relay tolerates an absent device indefinitely.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.Current(ctx)
	return err
}
