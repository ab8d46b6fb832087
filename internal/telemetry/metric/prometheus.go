// Package metric provides Prometheus metrics for the workspace runtime.
//
// It exposes metrics in Prometheus format for monitoring table/kv mutation
// rates, request rates, latencies, and storage system health.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all application metrics.
type Registry struct {
	reg *prometheus.Registry

	// Mutation metrics, labeled by store kind ("kv", "table") and operation.
	MutationsTotal *prometheus.CounterVec
	ReadsTotal     *prometheus.CounterVec

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Storage metrics
	WALSize      prometheus.Gauge
	SnapshotSize prometheus.Gauge
	MemoryUsage  prometheus.Gauge

	// Sync extension metrics
	PeersActive     prometheus.Gauge
	SyncUpdatesSent prometheus.Counter
}

// NewRegistry creates a new metrics registry and registers all collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		MutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "epicenter_mutations_total",
			Help: "Total number of table/kv mutations applied, by kind and operation.",
		}, []string{"kind", "op"}),
		ReadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "epicenter_reads_total",
			Help: "Total number of table/kv reads served, by kind.",
		}, []string{"kind"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "epicenter_requests_total",
			Help: "Total number of requests handled, by protocol, method and status.",
		}, []string{"protocol", "method", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "epicenter_request_duration_seconds",
			Help:    "Request handling latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"protocol", "method"}),
		WALSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "epicenter_wal_size_bytes",
			Help: "Current size of the write-ahead log in bytes.",
		}),
		SnapshotSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "epicenter_snapshot_size_bytes",
			Help: "Size of the most recent snapshot in bytes.",
		}),
		MemoryUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "epicenter_memory_bytes",
			Help: "Heap memory allocated by the process in bytes.",
		}),
		PeersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "epicenter_sync_peers_active",
			Help: "Number of sync extension peers currently reachable.",
		}),
		SyncUpdatesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "epicenter_sync_updates_sent_total",
			Help: "Total number of CRDT update blobs sent to peers.",
		}),
	}

	reg.MustRegister(
		r.MutationsTotal,
		r.ReadsTotal,
		r.RequestsTotal,
		r.RequestDuration,
		r.WALSize,
		r.SnapshotSize,
		r.MemoryUsage,
		r.PeersActive,
		r.SyncUpdatesSent,
	)

	return r
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
