package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/helixir/research-workspace/internal/aggregator"
	"github.com/helixir/research-workspace/internal/domain"
	"github.com/helixir/research-workspace/internal/papersources"
	"github.com/helixir/research-workspace/internal/pdf"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

// mockSearcher implements PaperSearcher for HTTP handler tests.
type mockSearcher struct {
	mu               sync.Mutex
	searchAllFn      func(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.Paper, error)
	searchDetailedFn func(ctx context.Context, query string, opts domain.SearchOptions) (*aggregator.SearchResult, error)
	searchAllQueries []string
	searchAllOptions []domain.SearchOptions
}

func (m *mockSearcher) SearchAllSources(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.Paper, error) {
	m.mu.Lock()
	m.searchAllQueries = append(m.searchAllQueries, query)
	m.searchAllOptions = append(m.searchAllOptions, opts)
	fn := m.searchAllFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, query, opts)
	}
	return []domain.Paper{{Title: query, Year: "2021", Source: domain.SourceArXiv}}, nil
}

func (m *mockSearcher) SearchDetailed(ctx context.Context, query string, opts domain.SearchOptions) (*aggregator.SearchResult, error) {
	if m.searchDetailedFn != nil {
		return m.searchDetailedFn(ctx, query, opts)
	}
	return &aggregator.SearchResult{Papers: []domain.Paper{}, Sources: []aggregator.SourceReport{}}, nil
}

func (m *mockSearcher) queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.searchAllQueries))
	copy(out, m.searchAllQueries)
	return out
}

// mockSource implements papersources.PaperSource.
type mockSource struct {
	source  domain.Source
	enabled bool
	papers  []domain.Paper
	err     error
}

func (m *mockSource) Search(_ context.Context, _ string, _ domain.SearchOptions) ([]domain.Paper, error) {
	return m.papers, m.err
}
func (m *mockSource) Source() domain.Source { return m.source }
func (m *mockSource) Name() string          { return string(m.source) }
func (m *mockSource) IsEnabled() bool       { return m.enabled }

// mockPDFOpener implements PDFOpener.
type mockPDFOpener struct {
	openFn   func(ctx context.Context, rawURL string) (*pdf.Document, error)
	verifyFn func(ctx context.Context, rawURL string) error
}

func (m *mockPDFOpener) Verify(ctx context.Context, rawURL string) error {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, rawURL)
	}
	return pdf.ErrFetchFailed
}

func (m *mockPDFOpener) Open(ctx context.Context, rawURL string) (*pdf.Document, error) {
	if m.openFn != nil {
		return m.openFn(ctx, rawURL)
	}
	return nil, pdf.ErrFetchFailed
}

// newTestRegistry registers the free sources, all enabled.
func newTestRegistry() *papersources.Registry {
	reg := papersources.NewRegistry()
	for _, src := range domain.FreeSources {
		reg.Register(&mockSource{source: src, enabled: true})
	}
	return reg
}

// newTestServer builds a server whose sessions search immediately.
func newTestServer(t testing.TB, searcher PaperSearcher, catalog SourceCatalog, pdfs PDFOpener) *Server {
	t.Helper()
	if searcher == nil {
		searcher = &mockSearcher{}
	}
	if catalog == nil {
		catalog = newTestRegistry()
	}
	if pdfs == nil {
		pdfs = &mockPDFOpener{}
	}
	srv := NewServer(Config{Sessions: SessionConfig{Debounce: -1}}, searcher, catalog, pdfs, zerolog.Nop(), nil)
	t.Cleanup(srv.Sessions().CloseAll)
	return srv
}

func doRequest(t testing.TB, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t testing.TB, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decodeBody(t, rr, &body)
	return body["error"]
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)

	rr := doRequest(t, srv, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
}

func TestReadyz(t *testing.T) {
	t.Run("ready with enabled sources", func(t *testing.T) {
		srv := newTestServer(t, nil, nil, nil)
		rr := doRequest(t, srv, http.MethodGet, "/readyz", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("not ready without enabled sources", func(t *testing.T) {
		reg := papersources.NewRegistry()
		reg.Register(&mockSource{source: domain.SourceArXiv, enabled: false})
		srv := newTestServer(t, nil, reg, nil)

		rr := doRequest(t, srv, http.MethodGet, "/readyz", "")
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rr.Code)
		}
	})
}

// ---------------------------------------------------------------------------
// Sources
// ---------------------------------------------------------------------------

func TestListSources(t *testing.T) {
	reg := papersources.NewRegistry()
	reg.Register(&mockSource{source: domain.SourcePubMed, enabled: true})
	reg.Register(&mockSource{source: domain.SourceSemanticScholar, enabled: false})
	srv := newTestServer(t, nil, reg, nil)

	rr := doRequest(t, srv, http.MethodGet, "/api/v1/sources", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp listSourcesResponse
	decodeBody(t, rr, &resp)

	if len(resp.Sources) != len(domain.AllSources) {
		t.Fatalf("expected %d sources, got %d", len(domain.AllSources), len(resp.Sources))
	}
	for i, src := range domain.AllSources {
		if resp.Sources[i].Name != string(src) {
			t.Errorf("position %d: expected %s, got %s", i, src, resp.Sources[i].Name)
		}
	}

	byName := make(map[string]sourceResponse)
	for _, s := range resp.Sources {
		byName[s.Name] = s
	}
	if s := byName["PubMed"]; !s.Registered || !s.Enabled || !s.Free || s.RequiresAPIKey {
		t.Errorf("unexpected PubMed entry: %+v", s)
	}
	if s := byName["Semantic Scholar"]; !s.Registered || s.Enabled || s.Free || s.Slug != "semantic_scholar" {
		t.Errorf("unexpected Semantic Scholar entry: %+v", s)
	}
	if s := byName["IEEE"]; s.Registered || !s.RequiresAPIKey {
		t.Errorf("unexpected IEEE entry: %+v", s)
	}
}

// ---------------------------------------------------------------------------
// Search
// ---------------------------------------------------------------------------

func TestSearchPapers_PassesOptions(t *testing.T) {
	var gotQuery string
	var gotOpts domain.SearchOptions
	searcher := &mockSearcher{
		searchDetailedFn: func(_ context.Context, query string, opts domain.SearchOptions) (*aggregator.SearchResult, error) {
			gotQuery = query
			gotOpts = opts
			return &aggregator.SearchResult{
				Papers: []domain.Paper{{Title: "Genome editing", Source: domain.SourceArXiv}},
				Sources: []aggregator.SourceReport{
					{Source: domain.SourceArXiv, Count: 1},
					{Source: domain.SourceCrossRef, Count: 0, Failed: true, Reason: papersources.FailureTimeout},
				},
				Total: 1,
			}, nil
		},
	}
	srv := newTestServer(t, searcher, nil, nil)

	rr := doRequest(t, srv, http.MethodGet,
		"/api/v1/papers/search?q=+CRISPR+&from_year=2020&to_year=2021&sources=arxiv,%20CrossRef&limit=10&page=2&sort=CITATIONS_DESC", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if gotQuery != "CRISPR" {
		t.Errorf("expected trimmed query CRISPR, got %q", gotQuery)
	}
	want := domain.SearchOptions{
		FromYear: 2020,
		ToYear:   2021,
		Sources:  []domain.Source{domain.SourceArXiv, domain.SourceCrossRef},
		Limit:    10,
		Page:     2,
		Sort:     domain.SortCitationsDesc,
	}
	if gotOpts.FromYear != want.FromYear || gotOpts.ToYear != want.ToYear ||
		gotOpts.Limit != want.Limit || gotOpts.Page != want.Page || gotOpts.Sort != want.Sort {
		t.Errorf("unexpected options: %+v", gotOpts)
	}
	if len(gotOpts.Sources) != 2 || gotOpts.Sources[0] != want.Sources[0] || gotOpts.Sources[1] != want.Sources[1] {
		t.Errorf("unexpected sources: %v", gotOpts.Sources)
	}

	var resp searchResponse
	decodeBody(t, rr, &resp)
	if resp.Count != 1 || len(resp.Papers) != 1 {
		t.Errorf("expected one paper, got count=%d papers=%d", resp.Count, len(resp.Papers))
	}
	if resp.Sources["arXiv"] != 1 {
		t.Errorf("expected arXiv count 1, got %v", resp.Sources)
	}
	if c, ok := resp.Sources["CrossRef"]; !ok || c != 0 {
		t.Errorf("expected CrossRef count 0, got %v", resp.Sources)
	}
	if len(resp.Failures) != 1 || resp.Failures[0].Reason != "timeout" {
		t.Errorf("expected one timeout failure, got %+v", resp.Failures)
	}
}

func TestSearchPapers_WithAggregator(t *testing.T) {
	reg := papersources.NewRegistry()
	reg.Register(&mockSource{source: domain.SourcePubMed, enabled: true, papers: []domain.Paper{
		{Title: "PubMed 2019", Year: "2019", Source: domain.SourcePubMed},
	}})
	reg.Register(&mockSource{source: domain.SourceArXiv, enabled: true, papers: []domain.Paper{
		{Title: "arXiv 2023", Year: "2023", Source: domain.SourceArXiv},
	}})
	reg.Register(&mockSource{source: domain.SourceCrossRef, enabled: true, err: errors.New("HTTP 503")})
	agg := aggregator.New(reg, aggregator.Config{}, zerolog.Nop(), nil)
	srv := newTestServer(t, agg, reg, nil)

	rr := doRequest(t, srv, http.MethodGet, "/api/v1/papers/search?q=CRISPR", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp searchResponse
	decodeBody(t, rr, &resp)
	if resp.Count != 2 {
		t.Fatalf("expected 2 papers, got %d", resp.Count)
	}
	if resp.Papers[0].Title != "arXiv 2023" {
		t.Errorf("expected newest first, got %s", resp.Papers[0].Title)
	}
	if resp.Sources["CrossRef"] != 0 || len(resp.Failures) != 1 {
		t.Errorf("expected contained CrossRef failure, got sources=%v failures=%+v", resp.Sources, resp.Failures)
	}

	t.Run("empty query returns empty list", func(t *testing.T) {
		rr := doRequest(t, srv, http.MethodGet, "/api/v1/papers/search?q=%20%20", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		var resp searchResponse
		decodeBody(t, rr, &resp)
		if resp.Papers == nil || len(resp.Papers) != 0 {
			t.Errorf("expected empty non-null papers, got %v", resp.Papers)
		}
	})
}

func TestSearchPapers_InvalidParams(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"non-integer year", "from_year=abc", "from_year must be an integer"},
		{"non-integer limit", "limit=ten", "limit must be an integer"},
		{"limit above max", "limit=500", "limit"},
		{"negative page", "page=-1", "page"},
		{"unknown sort", "sort=relevance", "sort"},
		{"unknown source", "sources=Scopus", "unknown source"},
		{"inverted year range", "from_year=2022&to_year=2020", "fromYear"},
		{"year out of range", "from_year=99", "from_year"},
		{"query too long", "q=" + strings.Repeat("a", 1001), "q"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			searcher := &mockSearcher{
				searchDetailedFn: func(context.Context, string, domain.SearchOptions) (*aggregator.SearchResult, error) {
					called = true
					return &aggregator.SearchResult{}, nil
				},
			}
			srv := newTestServer(t, searcher, nil, nil)

			rr := doRequest(t, srv, http.MethodGet, "/api/v1/papers/search?"+tt.query+"&q=x", "")
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
			if msg := errorMessage(t, rr); !strings.Contains(msg, tt.want) {
				t.Errorf("expected error containing %q, got %q", tt.want, msg)
			}
			if called {
				t.Error("searcher must not be called for invalid input")
			}
		})
	}
}

func TestSearchPapers_SearcherError(t *testing.T) {
	searcher := &mockSearcher{
		searchDetailedFn: func(context.Context, string, domain.SearchOptions) (*aggregator.SearchResult, error) {
			return nil, errors.New("pq: connection refused at 10.0.0.3")
		},
	}
	srv := newTestServer(t, searcher, nil, nil)

	rr := doRequest(t, srv, http.MethodGet, "/api/v1/papers/search?q=CRISPR", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "10.0.0.3") {
		t.Errorf("internal details leaked: %s", rr.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Error mapping
// ---------------------------------------------------------------------------

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"not found", domain.NewNotFoundError("search session", "x"), http.StatusNotFound},
		{"validation", domain.NewValidationError("page", "must be at least 1"), http.StatusBadRequest},
		{"bare invalid input", domain.ErrInvalidInput, http.StatusBadRequest},
		{"search in progress", domain.ErrSearchInProgress, http.StatusConflict},
		{"session closed", domain.ErrSessionClosed, http.StatusGone},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests},
		{"unavailable", domain.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{"context canceled", context.Canceled, http.StatusConflict},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeDomainError(rr, tt.err)
			if rr.Code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, rr.Code)
			}
		})
	}

	t.Run("nil error writes nothing", func(t *testing.T) {
		rr := httptest.NewRecorder()
		writeDomainError(rr, nil)
		if rr.Body.Len() != 0 {
			t.Errorf("expected empty body, got %q", rr.Body.String())
		}
	})
}
