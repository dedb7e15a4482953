package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the engine's Prometheus collectors
type Metrics struct {
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	results     *prometheus.HistogramVec
	storeCalls  *prometheus.CounterVec
}

// NewMetrics registers the engine collectors with reg. A nil reg leaves
// them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		// Labels: shape, outcome (ok, unknown_query, missing_parameter, ...)
		invocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "invquery",
			Subsystem: "engine",
			Name:      "invocations_total",
			Help:      "Total query invocations by result shape and outcome",
		}, []string{"shape", "outcome"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "invquery",
			Subsystem: "engine",
			Name:      "invocation_duration_seconds",
			Help:      "Query invocation latency in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"shape"}),

		results: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "invquery",
			Subsystem: "engine",
			Name:      "result_entries",
			Help:      "Top-level entries per successful result",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"shape"}),

		// Labels: op (find_vertices, edges, vertex)
		storeCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "invquery",
			Subsystem: "engine",
			Name:      "store_calls_total",
			Help:      "Graph store calls issued while executing plans",
		}, []string{"op"}),
	}
}

func (m *Metrics) storeCall(op string) {
	if m == nil {
		return
	}
	m.storeCalls.WithLabelValues(op).Inc()
}

func (m *Metrics) observe(shape, outcome string, seconds float64, entries int) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(shape, outcome).Inc()
	m.duration.WithLabelValues(shape).Observe(seconds)
	if outcome == outcomeOK {
		m.results.WithLabelValues(shape).Observe(float64(entries))
	}
}
