package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sutakip"

// Metrics holds the Prometheus counters, histograms, and gauges for the refresh cycle.
type Metrics struct {
	RefreshRuns      *prometheus.CounterVec // labels: outcome={success,error}
	RefreshDuration  prometheus.Histogram
	SnapshotRecords  prometheus.Gauge
	SchedulerRunning prometheus.Gauge

	// Per-source metrics.
	SourceRecords  *prometheus.GaugeVec   // labels: source
	SourceFailures *prometheus.CounterVec // labels: source

	// Classifier metrics.
	ClassifierRequests *prometheus.CounterVec // labels: outcome={success,error,skipped,cache_hit}
	ClassifierDuration prometheus.Histogram

	// Output metrics.
	SnapshotWriteErrors prometheus.Counter
	PublishErrors       prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RefreshRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_runs_total",
			Help:      "Refresh cycles by outcome.",
		}, []string{"outcome"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete extract-aggregate-persist cycle.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
		SnapshotRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_records",
			Help:      "Number of records in the latest snapshot.",
		}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_running",
			Help:      "1 when the refresh scheduler is active, 0 when stopped.",
		}),
		SourceRecords: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_records",
			Help:      "Records produced by each source in the latest cycle.",
		}, []string{"source"}),
		SourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_failures_total",
			Help:      "Source extraction failures (transport, parse, panic).",
		}, []string{"source"}),
		ClassifierRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_requests_total",
			Help:      "Classification requests by outcome.",
		}, []string{"outcome"}),
		ClassifierDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classifier_duration_seconds",
			Help:      "Language model request duration in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
		}),
		SnapshotWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_write_errors_total",
			Help:      "Failed snapshot file writes.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed snapshot publishes to Kafka.",
		}),
	}

	prometheus.MustRegister(
		m.RefreshRuns,
		m.RefreshDuration,
		m.SnapshotRecords,
		m.SchedulerRunning,
		m.SourceRecords,
		m.SourceFailures,
		m.ClassifierRequests,
		m.ClassifierDuration,
		m.SnapshotWriteErrors,
		m.PublishErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RefreshRuns:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "refresh_runs_total"}, []string{"outcome"}),
		RefreshDuration:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "refresh_duration_seconds"}),
		SnapshotRecords:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "snapshot_records"}),
		SchedulerRunning:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "scheduler_running"}),
		SourceRecords:       prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: "source_records"}, []string{"source"}),
		SourceFailures:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "source_failures_total"}, []string{"source"}),
		ClassifierRequests:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "classifier_requests_total"}, []string{"outcome"}),
		ClassifierDuration:  prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "classifier_duration_seconds"}),
		SnapshotWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "snapshot_write_errors_total"}),
		PublishErrors:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "publish_errors_total"}),
	}
}
