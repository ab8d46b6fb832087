// Package metric provides Prometheus metrics for the workspace runtime.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: Prometheus registry and HTTP handler
//   - collector.go: Custom collectors for the workspace runtime metrics
//
// Metrics include:
//
//   - Request latency histograms
//   - Table/kv mutation and read counters
//   - Storage size gauges
//   - Sync extension peer/update gauges and counters
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
