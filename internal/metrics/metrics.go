// Package metrics exposes Prometheus instruments for oracle traffic, retries,
// stale drops and graph growth. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kmerwalk"

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomeStale = "stale"
)

// Metrics holds all collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Retries         *prometheus.CounterVec
	StaleDrops      *prometheus.CounterVec
	Pages           prometheus.Counter
	Expansions      *prometheus.CounterVec
	Nodes           prometheus.Gauge
	Edges           prometheus.Gauge
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_requests_total",
			Help:      "Oracle requests by operation and outcome",
		}, []string{"op", "outcome"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_request_duration_seconds",
			Help:      "Oracle request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retries scheduled after transport errors",
		}, []string{"op"}),
		StaleDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_total",
			Help:      "Results dropped because a newer query superseded them",
		}, []string{"component"}),
		Pages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_pages_applied_total",
			Help:      "Batch pages written to the output buffer",
		}),
		Expansions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_expansions_total",
			Help:      "Node expansions by outcome",
		}, []string{"outcome"}),
		Nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_nodes",
			Help:      "Nodes in the current exploration graph",
		}),
		Edges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_edges",
			Help:      "Edges in the current exploration graph",
		}),
	}
	m.registry.MustRegister(
		m.Requests,
		m.RequestDuration,
		m.Retries,
		m.StaleDrops,
		m.Pages,
		m.Expansions,
		m.Nodes,
		m.Edges,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one oracle round trip.
func (m *Metrics) ObserveRequest(op string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.Requests.WithLabelValues(op, outcome).Inc()
	m.RequestDuration.WithLabelValues(op).Observe(d.Seconds())
}

// Retry counts one scheduled retry.
func (m *Metrics) Retry(op string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(op).Inc()
}

// Stale counts one dropped result.
func (m *Metrics) Stale(component string) {
	if m == nil {
		return
	}
	m.StaleDrops.WithLabelValues(component).Inc()
}

// Page counts one applied batch page.
func (m *Metrics) Page() {
	if m == nil {
		return
	}
	m.Pages.Inc()
}

// Expansion counts one expansion outcome (ok, error, stale, precondition).
func (m *Metrics) Expansion(outcome string) {
	if m == nil {
		return
	}
	m.Expansions.WithLabelValues(outcome).Inc()
}

// GraphSize sets the node and edge gauges.
func (m *Metrics) GraphSize(nodes, edges int) {
	if m == nil {
		return
	}
	m.Nodes.Set(float64(nodes))
	m.Edges.Set(float64(edges))
}
