// airrelay - AirGradient telemetry relay
//
// airrelay polls an AirGradient sensor over its local HTTP API, averages
// fixed-size windows of samples, and forwards the averaged readings to
// InfluxDB through a bounded retry queue that rides out database outages.
// It also drives the sensor's LED bar and display brightness on a daily
// schedule, and exposes an operational endpoint for health, status and
// Prometheus metrics.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/airrelay/internal/api"
	"github.com/nerrad567/airrelay/internal/brightness"
	"github.com/nerrad567/airrelay/internal/device"
	"github.com/nerrad567/airrelay/internal/infrastructure/config"
	"github.com/nerrad567/airrelay/internal/infrastructure/influxdb"
	"github.com/nerrad567/airrelay/internal/infrastructure/logging"
	"github.com/nerrad567/airrelay/internal/infrastructure/mqtt"
	"github.com/nerrad567/airrelay/internal/relay"
	"github.com/nerrad567/airrelay/internal/sampling"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// startupHealthTimeout bounds the upstream reachability checks run once at
// startup. Failures are logged, not fatal: the relay's whole point is to
// keep sampling through outages.
const startupHealthTimeout = 10 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting airrelay",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	samples, period, err := config.ParseSampling(cfg.Relay.Sampling)
	if err != nil {
		return fmt.Errorf("parsing sampling plan: %w", err)
	}

	// Device client (sensor fetches and brightness pushes)
	deviceClient := device.NewClient(cfg.Device)
	log.Info("device client initialised",
		"host", cfg.Device.Host,
		"fetch_timeout", cfg.GetFetchTimeout(),
	)

	// Connect to InfluxDB
	influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
	if err != nil {
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	defer func() {
		log.Info("closing InfluxDB connection")
		if closeErr := influxClient.Close(); closeErr != nil {
			log.Error("error closing InfluxDB", "error", closeErr)
		}
	}()
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)

	// Brightness scheduler (optional)
	var scheduler *brightness.Scheduler
	if cfg.Relay.Brightness.LED != "" || cfg.Relay.Brightness.Display != "" {
		schedule, scheduleErr := brightness.ParseSchedule(cfg.Relay.Brightness.LED, cfg.Relay.Brightness.Display)
		if scheduleErr != nil {
			return fmt.Errorf("parsing brightness schedule: %w", scheduleErr)
		}
		scheduler = brightness.NewScheduler(schedule, deviceClient)
		log.Info("brightness schedule enabled",
			"led", cfg.Relay.Brightness.LED,
			"display", cfg.Relay.Brightness.Display,
		)
	} else {
		log.Info("brightness schedule disabled")
	}

	// Connect to MQTT broker for the reading mirror (optional)
	var mirror relay.Mirror
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		mirror = &mqttMirror{
			client: mqttClient,
			topic:  mqtt.ReadingTopic(cfg.MQTT.TopicPrefix, cfg.Relay.Location),
		}
	} else {
		log.Info("MQTT mirror disabled")
	}

	// Assemble the relay
	r := relay.New(
		relay.Config{
			Location:           cfg.Relay.Location,
			Samples:            samples,
			Period:             period,
			TickGuard:          time.Duration(cfg.Relay.TickGuard) * time.Second,
			QueueLimit:         cfg.Relay.QueueLimit,
			ReflushInterval:    time.Duration(cfg.Relay.ReflushInterval) * time.Second,
			BrightnessInterval: time.Duration(cfg.Relay.Brightness.Interval) * time.Second,
		},
		deviceClient,
		&influxWriter{client: influxClient},
		scheduler,
		mirror,
		log,
	)

	// Operational endpoint (optional)
	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config: cfg.API,
			Logger: log,
			Status: r,
			Checkers: map[string]api.HealthChecker{
				"device":   deviceClient,
				"influxdb": influxClient,
			},
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating operational server: %w", apiErr)
		}
		if startErr := apiServer.Start(); startErr != nil {
			return fmt.Errorf("starting operational server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing operational server", "error", closeErr)
			}
		}()
	} else {
		log.Info("operational endpoint disabled")
	}

	// Probe upstreams once so misconfiguration surfaces immediately in the
	// logs, but keep running either way.
	healthCheck(ctx, deviceClient, influxClient, log)

	log.Info("initialisation complete, relay running",
		"location", cfg.Relay.Location,
		"samples_per_window", samples,
		"period", period,
	)

	// Run until the shutdown signal; Run seals any partial window and
	// attempts a final flush before returning.
	if err := r.Run(ctx); err != nil {
		return fmt.Errorf("running relay: %w", err)
	}

	log.Info("airrelay stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses AIRRELAY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("AIRRELAY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck probes the device and InfluxDB once at startup. Failures are
// reported but never fatal.
func healthCheck(ctx context.Context, deviceClient *device.Client, influxClient *influxdb.Client, log *logging.Logger) {
	checkCtx, cancel := context.WithTimeout(ctx, startupHealthTimeout)
	defer cancel()

	if err := deviceClient.HealthCheck(checkCtx); err != nil {
		log.Warn("device unreachable at startup", "error", err)
	} else {
		log.Info("device health check passed")
	}
	if err := influxClient.HealthCheck(checkCtx); err != nil {
		log.Warn("InfluxDB unreachable at startup", "error", err)
	} else {
		log.Info("InfluxDB health check passed")
	}
}

// influxWriter adapts the InfluxDB client to the retry queue's Writer
// interface by unpacking averaged readings into tagged points.
type influxWriter struct {
	client *influxdb.Client
}

func (w *influxWriter) WriteReading(ctx context.Context, reading sampling.Reading) error {
	return w.client.WriteReading(ctx, reading.Location, reading.Metrics, reading.Timestamp)
}

// mqttMirror republishes each sealed reading as retained JSON so late
// subscribers see the most recent averaged values immediately.
type mqttMirror struct {
	client *mqtt.Client
	topic  string
}

func (m *mqttMirror) MirrorReading(reading sampling.Reading) error {
	payload, err := json.Marshal(map[string]any{
		"location":  reading.Location,
		"timestamp": reading.Timestamp.UTC().Format(time.RFC3339),
		"metrics":   reading.Metrics,
	})
	if err != nil {
		return fmt.Errorf("encoding reading: %w", err)
	}
	return m.client.PublishRetained(m.topic, payload)
}
