package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Note: prometheus/promauto registers metrics globally, so we need to use
// unique namespaces per test to avoid registration conflicts.

func TestNewMetrics(t *testing.T) {
	m := NewMetrics("test_research_new")

	assert.NotNil(t, m.SourceSearchesStarted)
	assert.NotNil(t, m.SourceSearchesCompleted)
	assert.NotNil(t, m.SourceSearchesFailed)
	assert.NotNil(t, m.SourceSearchDuration)
	assert.NotNil(t, m.PapersPerSearch)
	assert.NotNil(t, m.PapersFiltered)
	assert.NotNil(t, m.SourceRequestsTotal)
	assert.NotNil(t, m.SourceRateLimited)
	assert.NotNil(t, m.AggregateSearches)
	assert.NotNil(t, m.SessionsActive)
	assert.NotNil(t, m.SessionStaleResults)
	assert.NotNil(t, m.PDFProxyRequests)
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordSourceSearchStarted("arxiv")
		m.RecordSourceSearchCompleted("arxiv", 3, 0.1)
		m.RecordSourceSearchFailed("arxiv", "timeout", 0.1)
		m.RecordPapersFiltered("arxiv", "year", 2)
		m.RecordSourceRequest("arxiv", 0.1)
		m.RecordSourceRequestFailed("arxiv", "network")
		m.RecordSourceRateLimited("arxiv")
		m.RecordSourceRetry("arxiv")
		m.RecordAggregateSearch("success", 10, 1)
		m.RecordDuplicatesDropped(1)
		m.RecordSessionOpened()
		m.RecordSessionClosed()
		m.RecordSessionSearch("debounce")
		m.RecordDebounceReset()
		m.RecordStaleResult()
		m.RecordPDFProxyRequest("ok")
	})
}

func TestRecordSourceSearchCompleted(t *testing.T) {
	m := NewMetrics("test_source_search_completed")

	m.RecordSourceSearchStarted("pubmed")
	m.RecordSourceSearchCompleted("pubmed", 10, 0.5)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceSearchesStarted.WithLabelValues("pubmed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceSearchesCompleted.WithLabelValues("pubmed")))

	count, err := getHistogramVecSampleCount(m.PapersPerSearch, "pubmed")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestRecordSourceSearchFailed(t *testing.T) {
	m := NewMetrics("test_source_search_failed")

	m.RecordSourceSearchFailed("crossref", "timeout", 10)
	m.RecordSourceSearchFailed("crossref", "error", 0.2)
	m.RecordSourceSearchFailed("crossref", "error", 0.3)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceSearchesFailed.WithLabelValues("crossref", "timeout")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.SourceSearchesFailed.WithLabelValues("crossref", "error")))

	count, err := getHistogramVecSampleCount(m.SourceSearchDuration, "crossref")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestRecordPapersFiltered(t *testing.T) {
	m := NewMetrics("test_papers_filtered")

	m.RecordPapersFiltered("arxiv", "year_range", 4)
	m.RecordPapersFiltered("arxiv", "year_range", 0)

	assert.Equal(t, float64(4), testutil.ToFloat64(m.PapersFiltered.WithLabelValues("arxiv", "year_range")))
}

func TestRecordSourceRequests(t *testing.T) {
	m := NewMetrics("test_source_requests")

	m.RecordSourceRequest("core", 0.2)
	m.RecordSourceRequestFailed("core", "status_503")
	m.RecordSourceRateLimited("core")
	m.RecordSourceRetry("core")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceRequestsTotal.WithLabelValues("core")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceRequestsFailed.WithLabelValues("core", "status_503")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceRateLimited.WithLabelValues("core")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceRetries.WithLabelValues("core")))
}

func TestRecordAggregateSearch(t *testing.T) {
	m := NewMetrics("test_aggregate_search")

	m.RecordAggregateSearch("success", 30, 1.2)
	m.RecordDuplicatesDropped(3)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.AggregateSearches.WithLabelValues("success")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.DuplicatesDropped))

	count, err := getHistogramSampleCount(m.AggregatePapers)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestRecordSessionMetrics(t *testing.T) {
	m := NewMetrics("test_session_metrics")

	m.RecordSessionOpened()
	m.RecordSessionOpened()
	m.RecordSessionClosed()
	m.RecordSessionSearch("debounce")
	m.RecordDebounceReset()
	m.RecordStaleResult()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionsActive))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionSearchesIssued.WithLabelValues("debounce")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionDebounceResets))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionStaleResults))
}

func TestRecordPDFProxyRequest(t *testing.T) {
	m := NewMetrics("test_pdf_proxy")

	m.RecordPDFProxyRequest("rejected")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PDFProxyRequests.WithLabelValues("rejected")))
}

func getHistogramSampleCount(h prometheus.Histogram) (uint64, error) {
	ch := make(chan prometheus.Metric, 1)
	h.Collect(ch)
	close(ch)

	var m prometheus.Metric
	for m = range ch {
		break
	}

	var metric = &dto.Metric{}
	if err := m.Write(metric); err != nil {
		return 0, err
	}

	return metric.Histogram.GetSampleCount(), nil
}

func getHistogramVecSampleCount(h *prometheus.HistogramVec, labels ...string) (uint64, error) {
	observer, err := h.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0, err
	}
	hist, ok := observer.(prometheus.Histogram)
	if !ok {
		return 0, nil
	}
	return getHistogramSampleCount(hist)
}
