package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all platform-level metrics for the retrieval core
type Metrics struct {
	// Query path metrics
	SearchesTotal     *prometheus.CounterVec
	SearchDuration    *prometheus.HistogramVec
	SearchResults     prometheus.Histogram
	HydrationGaps     prometheus.Counter
	EmbeddingRequests *prometheus.CounterVec

	// Ingestion metrics
	IngestRecords       *prometheus.CounterVec
	IngestBatchDuration prometheus.Histogram

	// Dependency metrics
	DependencyUp       *prometheus.GaugeVec
	ProbeDuration      *prometheus.HistogramVec
	DependencyErrors   *prometheus.CounterVec
	RetryAttemptsTotal *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "catalogmatch",
				Subsystem: "search",
				Name:      "requests_total",
				Help:      "Total number of search requests",
			},
			[]string{"modality", "status"},
		),

		SearchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "catalogmatch",
				Subsystem: "search",
				Name:      "stage_duration_seconds",
				Help:      "Time spent in each stage of the query pipeline",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"stage"},
		),

		SearchResults: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "catalogmatch",
				Subsystem: "search",
				Name:      "results_returned",
				Help:      "Number of results returned per search",
				Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
			},
		),

		HydrationGaps: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "catalogmatch",
				Subsystem: "search",
				Name:      "hydration_gaps_total",
				Help:      "Search hits dropped because no product record resolved for their id",
			},
		),

		EmbeddingRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "catalogmatch",
				Subsystem: "embedding",
				Name:      "requests_total",
				Help:      "Total number of embedding requests by modality and status",
			},
			[]string{"modality", "status"},
		),

		IngestRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "catalogmatch",
				Subsystem: "ingest",
				Name:      "records_total",
				Help:      "Ingested manifest records by outcome (accepted, rejected, failed)",
			},
			[]string{"outcome"},
		),

		IngestBatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "catalogmatch",
				Subsystem: "ingest",
				Name:      "batch_duration_seconds",
				Help:      "Time spent committing one ingest batch (store + index upsert)",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
		),

		DependencyUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "catalogmatch",
				Subsystem: "dependency",
				Name:      "up",
				Help:      "Dependency reachability (0=unreachable, 0.5=degraded, 1=healthy)",
			},
			[]string{"dependency"},
		),

		ProbeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "catalogmatch",
				Subsystem: "dependency",
				Name:      "probe_duration_seconds",
				Help:      "Health probe round-trip time per dependency",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0},
			},
			[]string{"dependency"},
		),

		DependencyErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "catalogmatch",
				Subsystem: "dependency",
				Name:      "errors_total",
				Help:      "Errors returned by external dependencies by class",
			},
			[]string{"dependency", "class"},
		),

		RetryAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "catalogmatch",
				Subsystem: "dependency",
				Name:      "retry_attempts_total",
				Help:      "Retry attempts against external dependencies",
			},
			[]string{"dependency"},
		),
	}
}

// collectors returns all core metrics for registration
func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.SearchesTotal,
		m.SearchDuration,
		m.SearchResults,
		m.HydrationGaps,
		m.EmbeddingRequests,
		m.IngestRecords,
		m.IngestBatchDuration,
		m.DependencyUp,
		m.ProbeDuration,
		m.DependencyErrors,
		m.RetryAttemptsTotal,
	}
}
