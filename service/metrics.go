package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks operation counts and outcomes for the election engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	operations       *prometheus.CounterVec
	failures         *prometheus.CounterVec
	votesCast        prometheus.Counter
	votersRegistered prometheus.Counter
}

// NewMetrics creates and registers the engine's collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evoting_operations_total",
			Help: "Completed election operations by name.",
		}, []string{"operation"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evoting_operation_failures_total",
			Help: "Failed election operations by name.",
		}, []string{"operation"}),
		votesCast: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evoting_votes_cast_total",
			Help: "Ballots recorded across all elections.",
		}),
		votersRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evoting_voters_registered_total",
			Help: "Voter credentials issued across all elections.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.failures, m.votesCast, m.votersRegistered)
	}
	return m
}

func (m *Metrics) observe(operation string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.failures.WithLabelValues(operation).Inc()
		return
	}
	m.operations.WithLabelValues(operation).Inc()
}

func (m *Metrics) voteCast() {
	if m != nil {
		m.votesCast.Inc()
	}
}

func (m *Metrics) voterRegistered() {
	if m != nil {
		m.votersRegistered.Inc()
	}
}
