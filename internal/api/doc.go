// Package api provides the operational HTTP endpoint for the relay.
//
// It exposes three routes: /health probes the relay's upstream dependencies,
// /status returns a JSON snapshot of the data path, and /metrics serves
// Prometheus metrics. The endpoint carries no sensor traffic and is safe to
// expose to a local monitoring network.
package api
