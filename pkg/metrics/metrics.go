// Package metrics defines the Prometheus instruments for the service:
// business-level counters and histograms for check processing, and gauges
// mirroring database/sql pool statistics.
package metrics

import (
	"context"
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/trace"
)

// BusinessMetrics holds the check-processing instruments.
type BusinessMetrics struct {
	ChecksTotal      *prometheus.CounterVec
	CheckDuration    *prometheus.HistogramVec
	MatchesFound     prometheus.Counter
	SourceFetches    *prometheus.CounterVec
	EmbeddingsTotal  *prometheus.CounterVec
	QueueWaitSeconds prometheus.Histogram
}

// NewBusinessMetrics registers and returns the business instruments under
// the given namespace.
func NewBusinessMetrics(namespace string) *BusinessMetrics {
	return &BusinessMetrics{
		ChecksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Total plagiarism checks processed, by outcome.",
		}, []string{"status"}),
		CheckDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "check_duration_seconds",
			Help:      "Wall-clock duration of plagiarism checks.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"status"}),
		MatchesFound: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_found_total",
			Help:      "Total sentence-level matches detected across all checks.",
		}),
		SourceFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetches_total",
			Help:      "External corpus fetches, by source and outcome.",
		}, []string{"source", "status"}),
		EmbeddingsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embeddings_total",
			Help:      "Embedding computations, by outcome.",
		}, []string{"status"}),
		QueueWaitSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_wait_seconds",
			Help:      "Time tasks spend queued before a worker picks them up.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
	}
}

// ObserveDurationWithExemplar records a duration on a status-labelled
// histogram, attaching the current trace ID as an exemplar when one is
// available so dashboards can jump from a latency bucket to a trace.
func (m *BusinessMetrics) ObserveDurationWithExemplar(ctx context.Context, hv *prometheus.HistogramVec, seconds float64, status string) {
	observer := hv.WithLabelValues(status)

	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.IsValid() {
		if eo, ok := observer.(prometheus.ExemplarObserver); ok {
			eo.ObserveWithExemplar(seconds, prometheus.Labels{
				"trace_id": sc.TraceID().String(),
			})
			return
		}
	}
	observer.Observe(seconds)
}

// DatabaseMetrics mirrors database/sql pool statistics into gauges.
type DatabaseMetrics struct {
	openConnections prometheus.Gauge
	inUse           prometheus.Gauge
	idle            prometheus.Gauge
	waitCount       prometheus.Gauge
	waitDuration    prometheus.Gauge
}

// NewDatabaseMetrics registers and returns the pool gauges under the given
// namespace.
func NewDatabaseMetrics(namespace string) *DatabaseMetrics {
	return &DatabaseMetrics{
		openConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_open_connections",
			Help:      "Open connections in the pool.",
		}),
		inUse: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_in_use",
			Help:      "Connections currently in use.",
		}),
		idle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Idle connections in the pool.",
		}),
		waitCount: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_wait_count",
			Help:      "Cumulative connections waited for.",
		}),
		waitDuration: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_wait_duration_seconds",
			Help:      "Cumulative time blocked waiting for a connection.",
		}),
	}
}

// UpdateDBStats refreshes the gauges from the pool's current statistics.
func (m *DatabaseMetrics) UpdateDBStats(db *sql.DB) {
	stats := db.Stats()
	m.openConnections.Set(float64(stats.OpenConnections))
	m.inUse.Set(float64(stats.InUse))
	m.idle.Set(float64(stats.Idle))
	m.waitCount.Set(float64(stats.WaitCount))
	m.waitDuration.Set(stats.WaitDuration.Seconds())
}
