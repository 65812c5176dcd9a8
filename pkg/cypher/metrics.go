package cypher

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultMetricsNamespace prefixes every metric name.
const DefaultMetricsNamespace = "nornicq"

// Query outcome labels.
const (
	statusOK    = "ok"
	statusError = "error"
)

// Query kind labels.
const (
	queryKindMatch     = "match"
	queryKindAlgorithm = "algorithm"
)

// Metrics holds the executor's Prometheus collectors.
//
// Labels:
//   - QueriesTotal: kind (match, algorithm), status (ok, error)
//   - QueryDuration: kind
//   - AlgorithmInvocations: algorithm, status
type Metrics struct {
	QueriesTotal         *prometheus.CounterVec
	QueryDuration        *prometheus.HistogramVec
	RowsReturned         prometheus.Histogram
	AlgorithmInvocations *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which suits tests and embedding.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = DefaultMetricsNamespace
	}
	m := &Metrics{
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cypher",
				Name:      "queries_total",
				Help:      "Total queries executed by kind and status",
			},
			[]string{"kind", "status"},
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "cypher",
				Name:      "query_duration_seconds",
				Help:      "Query execution time in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"kind"},
		),
		RowsReturned: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "cypher",
				Name:      "rows_returned",
				Help:      "Rows returned per successful query",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		AlgorithmInvocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cypher",
				Name:      "algorithm_invocations_total",
				Help:      "Inline algorithm invocations by name and status",
			},
			[]string{"algorithm", "status"},
		),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.QueriesTotal, m.QueryDuration, m.RowsReturned, m.AlgorithmInvocations} {
			if err := reg.Register(c); err != nil {
				return nil, fmt.Errorf("register metrics: %w", err)
			}
		}
	}
	return m, nil
}

func (m *Metrics) observeQuery(kind string, seconds float64, rows int, err error) {
	if m == nil {
		return
	}
	status := statusOK
	if err != nil {
		status = statusError
	}
	m.QueriesTotal.WithLabelValues(kind, status).Inc()
	m.QueryDuration.WithLabelValues(kind).Observe(seconds)
	if err == nil {
		m.RowsReturned.Observe(float64(rows))
	}
}

func (m *Metrics) observeAlgorithm(name string, err error) {
	if m == nil {
		return
	}
	status := statusOK
	if err != nil {
		status = statusError
	}
	m.AlgorithmInvocations.WithLabelValues(name, status).Inc()
}
