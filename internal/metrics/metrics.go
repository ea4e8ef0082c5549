package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service counters exported to Prometheus.
type Metrics struct {
	// Ingest
	ImagesRecorded atomic.Uint64
	BoxesRecorded  atomic.Uint64
	SessionsFull   atomic.Uint64

	// Review
	BatchesApplied     atomic.Uint64
	BatchesRejected    atomic.Uint64
	CorrectionsApplied atomic.Uint64
	CorrectionsSkipped atomic.Uint64
	ManualBoxesAdded   atomic.Uint64
	BoxesDeleted       atomic.Uint64

	// Store
	StoreErrors     atomic.Uint64
	SessionsExpired atomic.Uint64

	// Live viewers
	LiveViewers atomic.Int64

	registry *prometheus.Registry
}

// New creates a new Metrics instance with its own Prometheus registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.registerPrometheusMetrics()

	return m
}

func (m *Metrics) counter(name, help string, v *atomic.Uint64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{Name: name, Help: help},
		func() float64 { return float64(v.Load()) },
	))
}

// registerPrometheusMetrics registers all metrics with Prometheus
func (m *Metrics) registerPrometheusMetrics() {
	m.counter("groundtruth_images_recorded_total", "Detector runs appended to sessions", &m.ImagesRecorded)
	m.counter("groundtruth_boxes_recorded_total", "Detector boxes appended to sessions", &m.BoxesRecorded)
	m.counter("groundtruth_sessions_full_total", "Detector runs rejected because the session reached its image cap", &m.SessionsFull)

	m.counter("groundtruth_batches_applied_total", "Validation batches committed", &m.BatchesApplied)
	m.counter("groundtruth_batches_rejected_total", "Validation batches aborted by a hard error", &m.BatchesRejected)
	m.counter("groundtruth_corrections_applied_total", "Box corrections applied", &m.CorrectionsApplied)
	m.counter("groundtruth_corrections_skipped_total", "Box corrections skipped because the box was missing", &m.CorrectionsSkipped)
	m.counter("groundtruth_manual_boxes_added_total", "Manual boxes added by reviewers", &m.ManualBoxesAdded)
	m.counter("groundtruth_boxes_deleted_total", "Boxes deleted by reviewers", &m.BoxesDeleted)

	m.counter("groundtruth_store_errors_total", "Session store failures", &m.StoreErrors)
	m.counter("groundtruth_sessions_expired_total", "Sessions removed by retention", &m.SessionsExpired)

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "groundtruth_live_viewers",
			Help: "Connected live metrics viewers",
		},
		func() float64 { return float64(m.LiveViewers.Load()) },
	))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
