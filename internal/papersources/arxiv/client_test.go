package arxiv

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-workspace/internal/domain"
	"github.com/helixir/research-workspace/internal/papersources"
)

const atomFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom" xmlns:opensearch="http://a9.com/-/spec/opensearch/1.1/">
  <opensearch:totalResults>2</opensearch:totalResults>
  <entry>
    <id>http://arxiv.org/abs/2301.12345v1</id>
    <published>2023-01-15T18:30:00Z</published>
    <title>CRISPR screens
      at scale</title>
    <summary>  We present a method
      for pooled screening.  </summary>
    <author><name>Jane Doe</name></author>
    <author><name>John Smith</name></author>
    <arxiv:doi>10.48550/arXiv.2301.12345</arxiv:doi>
    <link href="http://arxiv.org/abs/2301.12345v1" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/2301.12345v1" rel="related" type="application/pdf"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/1901.00001v2</id>
    <published>2019-01-01T00:00:00Z</published>
    <title>Older preprint</title>
    <summary>Abstract.</summary>
    <author><name>Alice</name></author>
  </entry>
</feed>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		RateLimit:  1000,
		BurstSize:  100,
		MaxRetries: -1,
	})
	return NewWithHTTPClient(Config{BaseURL: server.URL, Enabled: true}, httpClient)
}

func TestNew(t *testing.T) {
	client := New(Config{Enabled: true})

	assert.Equal(t, DefaultBaseURL, client.config.BaseURL)
	assert.Equal(t, DefaultTimeout, client.config.Timeout)
	assert.Equal(t, DefaultRateLimit, client.config.RateLimit)
	assert.Equal(t, domain.SourceArXiv, client.Source())
	assert.Equal(t, "arXiv", client.Name())
	assert.True(t, client.IsEnabled())
	assert.False(t, New(Config{}).IsEnabled())
}

func TestClient_Search(t *testing.T) {
	t.Run("parses Atom entries", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/query", r.URL.Path)
			w.Header().Set("Content-Type", "application/atom+xml")
			w.Write([]byte(atomFeed))
		})

		papers, err := client.Search(context.Background(), "CRISPR", domain.SearchOptions{})
		require.NoError(t, err)
		require.Len(t, papers, 2)

		p := papers[0]
		assert.Equal(t, "CRISPR screens at scale", p.Title)
		assert.Equal(t, "We present a method for pooled screening.", p.Abstract)
		assert.Equal(t, []string{"Jane Doe", "John Smith"}, p.Authors)
		assert.Equal(t, "arXiv", p.Journal)
		assert.Equal(t, "2023", p.Year)
		assert.Equal(t, "2023-01-15", p.PublicationDate)
		assert.Equal(t, "10.48550/arXiv.2301.12345", p.DOI)
		assert.Equal(t, "https://arxiv.org/abs/2301.12345v1", p.URL)
		assert.Equal(t, "https://arxiv.org/pdf/2301.12345v1", p.PDFURL)
		assert.Nil(t, p.Citations)
		assert.Equal(t, domain.SourceArXiv, p.Source)

		assert.Equal(t, "2019", papers[1].Year)
		assert.Empty(t, papers[1].PDFURL)
	})

	t.Run("builds query and pagination parameters", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "all:gene AND all:editing", q.Get("search_query"))
			assert.Equal(t, "20", q.Get("start"))
			assert.Equal(t, "10", q.Get("max_results"))
			assert.Equal(t, "submittedDate", q.Get("sortBy"))
			assert.Equal(t, "descending", q.Get("sortOrder"))
			w.Write([]byte(`<feed xmlns="http://www.w3.org/2005/Atom"></feed>`))
		})

		papers, err := client.Search(context.Background(), " gene   editing ", domain.SearchOptions{Page: 3})
		require.NoError(t, err)
		assert.Empty(t, papers)
	})

	t.Run("returns ExternalAPIError on non-200", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		})

		_, err := client.Search(context.Background(), "q", domain.SearchOptions{})
		var apiErr *domain.ExternalAPIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	})

	t.Run("returns error on malformed XML", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<feed><entry>`))
		})

		_, err := client.Search(context.Background(), "q", domain.SearchOptions{})
		assert.Error(t, err)
	})
}

func TestBuildSearchQuery(t *testing.T) {
	assert.Equal(t, "all:CRISPR", buildSearchQuery("CRISPR"))
	assert.Equal(t, "all:a AND all:b AND all:c", buildSearchQuery("a b\tc"))
	assert.Equal(t, "", buildSearchQuery("   "))
}
