package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the relay.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Relay    RelayConfig    `yaml:"relay"`
	Device   DeviceConfig   `yaml:"device"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// RelayConfig contains the sampling and queueing settings.
type RelayConfig struct {
	// Location tags every reported reading (e.g. "office", "bedroom").
	Location string `yaml:"location"`

	// Sampling is the textual sampling plan "n*period_sec", e.g. "5*60"
	// meaning average 5 samples taken 60 seconds apart.
	Sampling string `yaml:"sampling"`

	// TickGuard is the minimum gap between two sampling ticks in seconds,
	// applied when the schedule has slipped. Default: 1.
	TickGuard int `yaml:"tick_guard"`

	// QueueLimit bounds the in-memory retry queue. Beyond it, the oldest
	// unsent reading is dropped. Default: 20000.
	QueueLimit int `yaml:"queue_limit"`

	// ReflushInterval is how often (in seconds) a non-empty retry queue is
	// re-attempted when no new window has sealed. Default: 300.
	ReflushInterval int `yaml:"reflush_interval"`

	// Brightness configures the daily brightness schedule.
	Brightness BrightnessConfig `yaml:"brightness"`
}

// BrightnessConfig contains the daily brightness schedule settings.
//
// Cycle strings take the form "LL/HHMM-HHMM/LL": night level, day window,
// day level. A window with equal start and end disables that cycle.
type BrightnessConfig struct {
	LED      string `yaml:"led"`      // e.g. "20/0800-2000/100"
	Display  string `yaml:"display"`  // e.g. "0/0700-2200/100"
	Interval int    `yaml:"interval"` // seconds between schedule evaluations, default 60
}

// DeviceConfig contains AirGradient device connection settings.
type DeviceConfig struct {
	// Host is the device hostname or IP (not a URL).
	Host string `yaml:"host"`

	// FetchTimeout bounds a single measurement fetch in seconds. Default: 5.
	FetchTimeout int `yaml:"fetch_timeout"`

	// PushTimeout bounds a single config push in seconds. Default: 5.
	PushTimeout int `yaml:"push_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	URL          string `yaml:"url"`
	Token        string `yaml:"token"`
	Org          string `yaml:"org"`
	Bucket       string `yaml:"bucket"`
	WriteTimeout int    `yaml:"write_timeout"` // seconds, default 10
}

// MQTTConfig contains optional MQTT mirror settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains the operational HTTP endpoint settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: AIRRELAY_SECTION_KEY
// For example: AIRRELAY_INFLUXDB_TOKEN, AIRRELAY_DEVICE_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Relay: RelayConfig{
			Sampling:        "5*60",
			TickGuard:       1,
			QueueLimit:      20000,
			ReflushInterval: 300,
			Brightness: BrightnessConfig{
				Interval: 60,
			},
		},
		Device: DeviceConfig{
			FetchTimeout: 5,
			PushTimeout:  5,
		},
		InfluxDB: InfluxDBConfig{
			WriteTimeout: 10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "airrelay",
			},
			QoS:         1,
			TopicPrefix: "airrelay",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    9180,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: AIRRELAY_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("AIRRELAY_DEVICE_HOST"); v != "" {
		cfg.Device.Host = v
	}

	// Relay
	if v := os.Getenv("AIRRELAY_LOCATION"); v != "" {
		cfg.Relay.Location = v
	}

	// InfluxDB - the token must never live in a config file on shared hosts
	if v := os.Getenv("AIRRELAY_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	// INFLUX_TOKEN is accepted for compatibility with the original relay script.
	if cfg.InfluxDB.Token == "" {
		cfg.InfluxDB.Token = os.Getenv("INFLUX_TOKEN")
	}

	// MQTT
	if v := os.Getenv("AIRRELAY_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("AIRRELAY_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Relay.Location == "" {
		errs = append(errs, "relay.location is required")
	}
	if _, period, err := ParseSampling(c.Relay.Sampling); err != nil {
		errs = append(errs, fmt.Sprintf("relay.sampling: %v", err))
	} else if c.Relay.TickGuard < 0 || time.Duration(c.Relay.TickGuard)*time.Second >= period {
		errs = append(errs, "relay.tick_guard must be non-negative and less than the sampling period")
	}
	if c.Relay.QueueLimit < 1 {
		errs = append(errs, "relay.queue_limit must be at least 1")
	}
	if c.Relay.Brightness.LED != "" || c.Relay.Brightness.Display != "" {
		if c.Relay.Brightness.LED == "" || c.Relay.Brightness.Display == "" {
			errs = append(errs, "relay.brightness: led and display must both be set, or both empty to disable the schedule")
		}
		if c.Relay.Brightness.Interval < 1 {
			errs = append(errs, "relay.brightness.interval must be at least 1 second")
		}
	}

	if c.Device.Host == "" {
		errs = append(errs, "device.host is required")
	}

	if c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required")
	}
	if c.InfluxDB.Org == "" {
		errs = append(errs, "influxdb.org is required")
	}
	if c.InfluxDB.Bucket == "" {
		errs = append(errs, "influxdb.bucket is required")
	}
	if c.InfluxDB.Token == "" {
		errs = append(errs, "influxdb.token is required (set AIRRELAY_INFLUXDB_TOKEN environment variable)")
	}

	if c.MQTT.Enabled && (c.MQTT.QoS < 0 || c.MQTT.QoS > 2) {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ParseSampling parses the textual sampling plan "n*period_sec".
//
// For example "5*60" means: average 5 samples taken 60 seconds apart.
//
// Returns:
//   - int: Number of samples per averaging window
//   - time.Duration: Sampling period
//   - error: If the string is not of the form "n*period_sec" with positive integers
func ParseSampling(s string) (int, time.Duration, error) {
	count, periodStr, ok := strings.Cut(s, "*")
	if !ok {
		return 0, 0, fmt.Errorf("expected \"n*period_sec\", got %q", s)
	}

	n, err := strconv.Atoi(count)
	if err != nil || n < 1 {
		return 0, 0, fmt.Errorf("sample count must be a positive integer, got %q", count)
	}

	periodSec, err := strconv.Atoi(periodStr)
	if err != nil || periodSec < 1 {
		return 0, 0, fmt.Errorf("period must be a positive integer of seconds, got %q", periodStr)
	}

	return n, time.Duration(periodSec) * time.Second, nil
}

// GetFetchTimeout returns the device fetch timeout as a Duration.
func (c *Config) GetFetchTimeout() time.Duration {
	return time.Duration(c.Device.FetchTimeout) * time.Second
}

// GetPushTimeout returns the device config push timeout as a Duration.
func (c *Config) GetPushTimeout() time.Duration {
	return time.Duration(c.Device.PushTimeout) * time.Second
}

// GetWriteTimeout returns the InfluxDB write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.InfluxDB.WriteTimeout) * time.Second
}
