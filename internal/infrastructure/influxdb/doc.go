// Package influxdb writes averaged readings to InfluxDB v2.
//
// Unlike a typical telemetry pipeline, writes here are blocking and
// unbatched: the retry queue upstream needs to know, per reading, whether
// the server acknowledged the point before it lets go of it. Batching and
// buffering already happen upstream in the queue.
package influxdb
