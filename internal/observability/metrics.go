// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	FilingsFetched    *prometheus.CounterVec
	FilingsParsed     prometheus.Counter
	FilingsDuplicate  prometheus.Counter
	FilingFetchErrors *prometheus.CounterVec

	// Detection metrics
	FilingsAnalyzed      prometheus.Counter
	SignalsDetected      *prometheus.CounterVec
	SignalConfidence     prometheus.Histogram
	TransactionsRecorded prometheus.Counter

	// Proof metrics
	ProofsGenerated  prometheus.Counter
	ProofErrors      prometheus.Counter
	ProofDuration    prometheus.Histogram
	AttestationsMade prometheus.Counter

	// API metrics
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
	WSClientsConnected prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulPoll prometheus.Gauge
	LastSignalDetected prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "insider_signal_lab"
	}

	return &Metrics{
		// Ingestion metrics
		FilingsFetched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "filings_fetched_total",
			Help:      "Total number of filings fetched by filing type",
		}, []string{"filing_type"}),
		FilingsParsed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "filings_parsed_total",
			Help:      "Total number of filings parsed successfully",
		}),
		FilingsDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "filings_duplicate_total",
			Help:      "Total number of filings skipped as already-seen content",
		}),
		FilingFetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "filing_fetch_errors_total",
			Help:      "Total number of filing fetch errors by type",
		}, []string{"error_type"}),

		// Detection metrics
		FilingsAnalyzed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "filings_analyzed_total",
			Help:      "Total number of filings run through the detector",
		}),
		SignalsDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "signals_detected_total",
			Help:      "Total number of signals detected by type",
		}, []string{"signal_type"}),
		SignalConfidence: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "signal_confidence",
			Help:      "Confidence score distribution of fired signals",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 0.99},
		}),
		TransactionsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "transactions_recorded_total",
			Help:      "Total number of insider transactions stored",
		}),

		// Proof metrics
		ProofsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proof",
			Name:      "proofs_generated_total",
			Help:      "Total number of proofs generated",
		}),
		ProofErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proof",
			Name:      "proof_errors_total",
			Help:      "Total number of proof generation failures",
		}),
		ProofDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "proof",
			Name:      "generation_duration_seconds",
			Help:      "Proof generation duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		AttestationsMade: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proof",
			Name:      "attestations_total",
			Help:      "Total number of signal attestations signed",
		}),

		// API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by path and status",
		}, []string{"path", "status"}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
		WSClientsConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "ws_clients_connected",
			Help:      "Current number of websocket signal-feed subscribers",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulPoll: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_poll_timestamp",
			Help:      "Unix timestamp of last successful polling cycle",
		}),
		LastSignalDetected: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_signal_detected_timestamp",
			Help:      "Unix timestamp of last detected signal",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordFilingFetched increments the fetched counter for a filing type.
func RecordFilingFetched(filingType string) {
	DefaultMetrics.FilingsFetched.WithLabelValues(filingType).Inc()
}

// RecordFetchError records a filing fetch error.
func RecordFetchError(errorType string) {
	DefaultMetrics.FilingFetchErrors.WithLabelValues(errorType).Inc()
}

// RecordSignalDetected records a fired signal and its confidence.
func RecordSignalDetected(signalType string, confidence float64) {
	DefaultMetrics.SignalsDetected.WithLabelValues(signalType).Inc()
	DefaultMetrics.SignalConfidence.Observe(confidence)
}

// RecordProof records a proof generation attempt.
func RecordProof(seconds float64, err error) {
	if err != nil {
		DefaultMetrics.ProofErrors.Inc()
		return
	}
	DefaultMetrics.ProofsGenerated.Inc()
	DefaultMetrics.ProofDuration.Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(path, status string, seconds float64) {
	DefaultMetrics.HTTPRequests.WithLabelValues(path, status).Inc()
	DefaultMetrics.HTTPDuration.WithLabelValues(path).Observe(seconds)
}
