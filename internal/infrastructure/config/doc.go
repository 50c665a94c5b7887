// Package config loads and validates the relay's configuration.
//
// Configuration is read from a YAML file, merged over hardcoded defaults,
// and finally overridden by AIRRELAY_* environment variables. The InfluxDB
// token should always arrive via the environment (AIRRELAY_INFLUXDB_TOKEN,
// or INFLUX_TOKEN for compatibility with the original relay script).
//
// Two settings use compact textual forms inherited from the relay's CLI
// heritage:
//
//   - relay.sampling: "n*period_sec", e.g. "5*60" (five samples, one per minute)
//   - relay.brightness.led / .display: "LL/HHMM-HHMM/LL", e.g. "20/0800-2000/100"
//     (night level 20, day window 08:00-20:00, day level 100)
//
// The brightness cycle strings are parsed by the brightness package; config
// carries them as opaque strings so this package stays dependency-free.
package config
