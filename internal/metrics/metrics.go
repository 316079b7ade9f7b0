// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes Prometheus collectors for graph construction and
// fixed-point solving.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "reach"

// Direction labels fixed-point runs.
type Direction string

const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
)

// Metrics holds all reachability-engine collectors.
type Metrics struct {
	GraphBuilds   prometheus.Counter
	GraphStates   prometheus.Gauge
	GraphEdges    prometheus.Gauge
	BuildDuration prometheus.Histogram

	FixpointRuns       *prometheus.CounterVec
	FixpointIterations *prometheus.CounterVec
	FixpointDuration   *prometheus.HistogramVec

	SessionsCreated       prometheus.Counter
	BidirectionalRequests prometheus.Counter
	IntegrityViolations   prometheus.Counter
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		GraphBuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_builds_total",
			Help:      "Number of reachability graphs built",
		}),
		GraphStates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_states",
			Help:      "Number of states in the most recently built graph",
		}),
		GraphEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_edges",
			Help:      "Number of edges in the most recently built graph",
		}),
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graph_build_duration_seconds",
			Help:      "Time spent building reachability graphs",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		FixpointRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fixpoint_runs_total",
			Help:      "Number of fixed-point computations by direction",
		}, []string{"direction"}),
		FixpointIterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fixpoint_iterations_total",
			Help:      "Worklist iterations performed by fixed-point computations",
		}, []string{"direction"}),
		FixpointDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fixpoint_duration_seconds",
			Help:      "Time spent in fixed-point computations",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"direction"}),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Firewall sessions derived from forward passes",
		}),
		BidirectionalRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bidirectional_requests_total",
			Help:      "Bidirectional reachability analyses completed",
		}),
		IntegrityViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "integrity_violations_total",
			Help:      "Graph builds aborted by dangling configuration references",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.GraphBuilds,
		m.GraphStates,
		m.GraphEdges,
		m.BuildDuration,
		m.FixpointRuns,
		m.FixpointIterations,
		m.FixpointDuration,
		m.SessionsCreated,
		m.BidirectionalRequests,
		m.IntegrityViolations,
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

// Register registers every collector with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	return reg.Register(m)
}

// ObserveBuild records a completed graph build. Safe on a nil receiver.
func (m *Metrics) ObserveBuild(states, edges int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.GraphBuilds.Inc()
	m.GraphStates.Set(float64(states))
	m.GraphEdges.Set(float64(edges))
	m.BuildDuration.Observe(elapsed.Seconds())
}

// ObserveFixpoint records a completed fixed-point run. Safe on a nil receiver.
func (m *Metrics) ObserveFixpoint(dir Direction, iterations int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.FixpointRuns.WithLabelValues(string(dir)).Inc()
	m.FixpointIterations.WithLabelValues(string(dir)).Add(float64(iterations))
	m.FixpointDuration.WithLabelValues(string(dir)).Observe(elapsed.Seconds())
}

// AddSessions counts sessions created by a forward pass. Safe on a nil receiver.
func (m *Metrics) AddSessions(n int) {
	if m == nil {
		return
	}
	m.SessionsCreated.Add(float64(n))
}

// IncBidirectional counts a completed bidirectional analysis. Safe on a nil receiver.
func (m *Metrics) IncBidirectional() {
	if m == nil {
		return
	}
	m.BidirectionalRequests.Inc()
}

// IncIntegrity counts an aborted build. Safe on a nil receiver.
func (m *Metrics) IncIntegrity() {
	if m == nil {
		return
	}
	m.IntegrityViolations.Inc()
}
