package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the paper search service.
// Metrics are organized by subsystem: per-source searches, outbound source
// requests, aggregate searches, search sessions, and the PDF proxy. All
// counters and histograms are registered via promauto with the default
// Prometheus registry.
//
// Every Record method is safe to call on a nil *Metrics.
type Metrics struct {
	// SourceSearchesStarted counts adapter searches initiated, labeled by paper source.
	SourceSearchesStarted *prometheus.CounterVec

	// SourceSearchesCompleted counts adapter searches that returned without error, labeled by paper source.
	SourceSearchesCompleted *prometheus.CounterVec

	// SourceSearchesFailed counts adapter searches that failed and were contained, labeled by source and reason.
	SourceSearchesFailed *prometheus.CounterVec

	// SourceSearchDuration observes adapter search duration in seconds, labeled by paper source.
	SourceSearchDuration *prometheus.HistogramVec

	// PapersPerSearch observes the distribution of papers returned per adapter search, labeled by source.
	PapersPerSearch *prometheus.HistogramVec

	// PapersFiltered counts records dropped at the adapter boundary, labeled by source and reason.
	PapersFiltered *prometheus.CounterVec

	// SourceRequestsTotal counts HTTP requests to paper source APIs, labeled by source.
	SourceRequestsTotal *prometheus.CounterVec

	// SourceRequestsFailed counts failed HTTP requests to paper source APIs, labeled by source and error type.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRequestDuration observes HTTP request duration to paper source APIs in seconds.
	SourceRequestDuration *prometheus.HistogramVec

	// SourceRateLimited counts rate-limited responses from paper source APIs, labeled by source.
	SourceRateLimited *prometheus.CounterVec

	// SourceRetries counts retried HTTP requests to paper source APIs, labeled by source.
	SourceRetries *prometheus.CounterVec

	// AggregateSearches counts aggregate searches, labeled by outcome.
	AggregateSearches *prometheus.CounterVec

	// AggregateSearchDuration observes the end-to-end duration of aggregate searches in seconds.
	AggregateSearchDuration prometheus.Histogram

	// AggregatePapers observes the number of papers returned per aggregate search.
	AggregatePapers prometheus.Histogram

	// DuplicatesDropped counts records removed by de-duplication.
	DuplicatesDropped prometheus.Counter

	// SessionsActive tracks the number of open search sessions.
	SessionsActive prometheus.Gauge

	// SessionSearchesIssued counts searches issued by search sessions, labeled by trigger.
	SessionSearchesIssued *prometheus.CounterVec

	// SessionDebounceResets counts input events that restarted a pending debounce window.
	SessionDebounceResets prometheus.Counter

	// SessionStaleResults counts search completions discarded because a newer search was issued.
	SessionStaleResults prometheus.Counter

	// PDFProxyRequests counts PDF proxy requests, labeled by outcome.
	PDFProxyRequests *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Source searches
		SourceSearchesStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_searches_started_total",
			Help:      "Total number of adapter searches started by source",
		}, []string{"source"}),
		SourceSearchesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_searches_completed_total",
			Help:      "Total number of adapter searches completed by source",
		}, []string{"source"}),
		SourceSearchesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_searches_failed_total",
			Help:      "Total number of adapter searches that failed by source and reason",
		}, []string{"source", "reason"}),
		SourceSearchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_search_duration_seconds",
			Help:      "Duration of adapter searches in seconds by source",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"source"}),
		PapersPerSearch: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "papers_per_search",
			Help:      "Number of papers returned per adapter search by source",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 200},
		}, []string{"source"}),
		PapersFiltered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_filtered_total",
			Help:      "Total number of records dropped at the adapter boundary by source and reason",
		}, []string{"source", "reason"}),

		// Source requests
		SourceRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of requests to paper sources",
		}, []string{"source"}),
		SourceRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Total number of failed requests to paper sources",
		}, []string{"source", "error_type"}),
		SourceRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Duration of requests to paper sources in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source"}),
		SourceRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total number of rate limit responses from paper sources",
		}, []string{"source"}),
		SourceRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_retries_total",
			Help:      "Total number of retried requests to paper sources",
		}, []string{"source"}),

		// Aggregate searches
		AggregateSearches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregate_searches_total",
			Help:      "Total number of aggregate searches by outcome",
		}, []string{"outcome"}),
		AggregateSearchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregate_search_duration_seconds",
			Help:      "Duration of aggregate searches in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		AggregatePapers: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregate_papers",
			Help:      "Number of papers returned per aggregate search",
			Buckets:   []float64{0, 1, 5, 10, 20, 30, 50, 100, 200},
		}),
		DuplicatesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_duplicate_total",
			Help:      "Total number of duplicate papers removed by DOI or title de-duplication",
		}),

		// Sessions
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "search_sessions_active",
			Help:      "Number of open search sessions",
		}),
		SessionSearchesIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_searches_issued_total",
			Help:      "Total number of searches issued by search sessions by trigger",
		}, []string{"trigger"}),
		SessionDebounceResets: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_debounce_resets_total",
			Help:      "Total number of input events that restarted a pending debounce window",
		}),
		SessionStaleResults: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_stale_results_total",
			Help:      "Total number of superseded search results discarded",
		}),

		// PDF proxy
		PDFProxyRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pdf_proxy_requests_total",
			Help:      "Total number of PDF proxy requests by outcome",
		}, []string{"outcome"}),
	}
}

// RecordSourceSearchStarted records that an adapter search has started.
func (m *Metrics) RecordSourceSearchStarted(source string) {
	if m == nil {
		return
	}
	m.SourceSearchesStarted.WithLabelValues(source).Inc()
}

// RecordSourceSearchCompleted records that an adapter search has completed.
func (m *Metrics) RecordSourceSearchCompleted(source string, paperCount int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.SourceSearchesCompleted.WithLabelValues(source).Inc()
	m.SourceSearchDuration.WithLabelValues(source).Observe(durationSeconds)
	m.PapersPerSearch.WithLabelValues(source).Observe(float64(paperCount))
}

// RecordSourceSearchFailed records that an adapter search has failed.
// reason is one of "error", "timeout", or "panic".
func (m *Metrics) RecordSourceSearchFailed(source, reason string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.SourceSearchesFailed.WithLabelValues(source, reason).Inc()
	m.SourceSearchDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordPapersFiltered records records dropped at the adapter boundary.
func (m *Metrics) RecordPapersFiltered(source, reason string, count int) {
	if m == nil || count == 0 {
		return
	}
	m.PapersFiltered.WithLabelValues(source, reason).Add(float64(count))
}

// RecordSourceRequest records a request to a paper source.
func (m *Metrics) RecordSourceRequest(source string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.SourceRequestsTotal.WithLabelValues(source).Inc()
	m.SourceRequestDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordSourceRequestFailed records a failed request to a paper source.
func (m *Metrics) RecordSourceRequestFailed(source, errorType string) {
	if m == nil {
		return
	}
	m.SourceRequestsFailed.WithLabelValues(source, errorType).Inc()
}

// RecordSourceRateLimited records a rate limit response from a source.
func (m *Metrics) RecordSourceRateLimited(source string) {
	if m == nil {
		return
	}
	m.SourceRateLimited.WithLabelValues(source).Inc()
}

// RecordSourceRetry records a retried request to a source.
func (m *Metrics) RecordSourceRetry(source string) {
	if m == nil {
		return
	}
	m.SourceRetries.WithLabelValues(source).Inc()
}

// RecordAggregateSearch records the outcome of an aggregate search.
func (m *Metrics) RecordAggregateSearch(outcome string, paperCount int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.AggregateSearches.WithLabelValues(outcome).Inc()
	m.AggregateSearchDuration.Observe(durationSeconds)
	m.AggregatePapers.Observe(float64(paperCount))
}

// RecordDuplicatesDropped counts records removed by de-duplication.
func (m *Metrics) RecordDuplicatesDropped(count int) {
	if m == nil || count == 0 {
		return
	}
	m.DuplicatesDropped.Add(float64(count))
}

// RecordSessionOpened records a newly opened search session.
func (m *Metrics) RecordSessionOpened() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
}

// RecordSessionClosed records a closed search session.
func (m *Metrics) RecordSessionClosed() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
}

// RecordSessionSearch records a search issued by a session.
// trigger is "debounce" or "submit".
func (m *Metrics) RecordSessionSearch(trigger string) {
	if m == nil {
		return
	}
	m.SessionSearchesIssued.WithLabelValues(trigger).Inc()
}

// RecordDebounceReset records an input event that restarted the debounce window.
func (m *Metrics) RecordDebounceReset() {
	if m == nil {
		return
	}
	m.SessionDebounceResets.Inc()
}

// RecordStaleResult records a superseded search completion.
func (m *Metrics) RecordStaleResult() {
	if m == nil {
		return
	}
	m.SessionStaleResults.Inc()
}

// RecordPDFProxyRequest records a PDF proxy request outcome.
func (m *Metrics) RecordPDFProxyRequest(outcome string) {
	if m == nil {
		return
	}
	m.PDFProxyRequests.WithLabelValues(outcome).Inc()
}
