package ieee

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-workspace/internal/domain"
	"github.com/helixir/research-workspace/internal/papersources"
)

const articlesResponse = `{
  "total_records": 2,
  "articles": [
    {
      "title": "Deep Learning for Radar",
      "authors": {"authors": [{"full_name": "A. Engineer"}, {"full_name": "B. Scientist"}]},
      "abstract": "Radar signals.",
      "publication_title": "IEEE Transactions on Signal Processing",
      "publication_year": 2021,
      "publication_date": "March 2021",
      "doi": "10.1109/TSP.2021.1",
      "html_url": "https://ieeexplore.ieee.org/document/1",
      "pdf_url": "https://ieeexplore.ieee.org/stamp/stamp.jsp?arnumber=1",
      "citing_paper_count": 12
    },
    {
      "title": "Conference paper",
      "publication_title": "Proc. ICASSP",
      "publication_year": "2019",
      "doi": "10.1109/ICASSP.2019.2"
    }
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		RateLimit:  1000,
		BurstSize:  100,
		MaxRetries: -1,
	})
	return NewWithHTTPClient(Config{BaseURL: server.URL, APIKey: "ieee-key", Enabled: true}, httpClient)
}

func TestClient_Identity(t *testing.T) {
	assert.Equal(t, domain.SourceIEEE, New(Config{}).Source())
	assert.Equal(t, "IEEE", New(Config{}).Name())
	assert.False(t, New(Config{Enabled: true}).IsEnabled())
	assert.True(t, New(Config{Enabled: true, APIKey: "k"}).IsEnabled())
}

func TestClient_Search(t *testing.T) {
	t.Run("maps articles", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/search/articles", r.URL.Path)
			w.Write([]byte(articlesResponse))
		})

		papers, err := client.Search(context.Background(), "radar", domain.SearchOptions{})
		require.NoError(t, err)
		require.Len(t, papers, 2)

		p := papers[0]
		assert.Equal(t, "Deep Learning for Radar", p.Title)
		assert.Equal(t, []string{"A. Engineer", "B. Scientist"}, p.Authors)
		assert.Equal(t, "IEEE Transactions on Signal Processing", p.Journal)
		assert.Equal(t, "2021", p.Year)
		assert.Equal(t, "March 2021", p.PublicationDate)
		assert.Equal(t, "https://ieeexplore.ieee.org/document/1", p.URL)
		assert.Equal(t, "https://ieeexplore.ieee.org/stamp/stamp.jsp?arnumber=1", p.PDFURL)
		require.NotNil(t, p.Citations)
		assert.Equal(t, 12, *p.Citations)
		assert.Equal(t, domain.SourceIEEE, p.Source)

		q := papers[1]
		assert.Equal(t, "2019", q.Year, "string years are accepted")
		assert.Equal(t, "https://doi.org/10.1109/ICASSP.2019.2", q.URL)
		assert.Empty(t, q.Authors)
		assert.Nil(t, q.Citations)
	})

	t.Run("builds parameters", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "radar", q.Get("querytext"))
			assert.Equal(t, "10", q.Get("max_records"))
			assert.Equal(t, "21", q.Get("start_record"))
			assert.Equal(t, "2018", q.Get("start_year"))
			assert.Equal(t, "2020", q.Get("end_year"))
			assert.Equal(t, "ieee-key", q.Get("apikey"))
			w.Write([]byte(`{"total_records": 0}`))
		})

		opts := domain.SearchOptions{Page: 3, FromYear: 2018, ToYear: 2020}
		papers, err := client.Search(context.Background(), "radar", opts)
		require.NoError(t, err)
		assert.Empty(t, papers)
	})

	t.Run("forbidden key", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte("Developer Inactive"))
		})

		_, err := client.Search(context.Background(), "q", domain.SearchOptions{})
		var apiErr *domain.ExternalAPIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	})
}

func TestYear_UnmarshalJSON(t *testing.T) {
	var v struct {
		Y Year `json:"y"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"y": 2020}`), &v))
	assert.Equal(t, Year("2020"), v.Y)

	require.NoError(t, json.Unmarshal([]byte(`{"y": "2019"}`), &v))
	assert.Equal(t, Year("2019"), v.Y)

	require.NoError(t, json.Unmarshal([]byte(`{"y": null}`), &v))
	assert.Equal(t, Year(""), v.Y)

	assert.Error(t, json.Unmarshal([]byte(`{"y": true}`), &v))
}

func TestClient_NetworkErrorDoesNotLogAPIKey(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		RateLimit:  1000,
		BurstSize:  100,
		MaxRetries: -1,
	})
	client := NewWithHTTPClient(Config{BaseURL: baseURL, APIKey: "SECRET-KEY-123", Enabled: true}, httpClient)

	var logs bytes.Buffer
	result := papersources.NewGuard(client, papersources.GuardConfig{}, zerolog.New(&logs), nil).
		Search(context.Background(), "radar", domain.SearchOptions{})

	require.Error(t, result.Err)
	assert.Equal(t, papersources.FailureError, result.Reason)
	assert.NotContains(t, result.Err.Error(), "SECRET-KEY-123")
	assert.Contains(t, logs.String(), "paper source search failed")
	assert.NotContains(t, logs.String(), "SECRET-KEY-123")
	assert.Contains(t, logs.String(), "apikey=REDACTED")
}
