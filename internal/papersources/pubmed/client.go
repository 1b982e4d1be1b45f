// Package pubmed implements a paper source backed by the NCBI E-utilities API.
package pubmed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/research-workspace/internal/domain"
	"github.com/helixir/research-workspace/internal/observability"
	"github.com/helixir/research-workspace/internal/papersources"
)

const (
	// DefaultBaseURL is the base URL for NCBI E-utilities API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the rate limit without an API key (3 requests/second).
	// With an API key, the limit increases to 10 requests/second.
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	// ArticleURLPrefix is the public PubMed page for a PMID.
	ArticleURLPrefix = "https://pubmed.ncbi.nlm.nih.gov/"

	// sourceName is the human-readable name for this source.
	sourceName = "PubMed"

	// openEndedMinYear and openEndedMaxYear complete a one-sided year range;
	// esearch ignores mindate without maxdate.
	openEndedMinYear = 1800
	openEndedMaxYear = 3000
)

// Config holds the configuration for the PubMed client.
type Config struct {
	// BaseURL is the base URL for the E-utilities API.
	BaseURL string

	// APIKey is the NCBI API key for higher rate limits. Optional.
	APIKey string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries is passed to the HTTP client; see papersources.HTTPClientConfig.
	MaxRetries int

	// RetryDelay is passed to the HTTP client.
	RetryDelay time.Duration

	// Enabled indicates whether this source is enabled.
	Enabled bool

	// Metrics records outbound request metrics. Optional.
	Metrics *observability.Metrics
}

// applyDefaults applies default values to the config.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
		if c.APIKey != "" {
			c.RateLimit = 10
		}
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
}

// Client implements the papersources.PaperSource interface for PubMed.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Compile-time check that Client implements PaperSource.
var _ papersources.PaperSource = (*Client)(nil)

// New creates a new PubMed client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:     domain.SourcePubMed.Slug(),
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  cfg.BurstSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Metrics:    cfg.Metrics,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new PubMed client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries PubMed for papers matching query.
// It performs a two-step search:
//  1. esearch.fcgi retrieves the PMIDs of one result page
//  2. esummary.fcgi retrieves the document summaries for those PMIDs
func (c *Client) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.Paper, error) {
	ids, err := c.esearch(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("esearch failed: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Paper{}, nil
	}

	docs, err := c.esummary(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("esummary failed: %w", err)
	}

	papers := make([]domain.Paper, 0, len(docs))
	for i := range docs {
		if paper, ok := docToPaper(&docs[i]); ok {
			papers = append(papers, paper)
		}
	}
	return papers, nil
}

// Source returns the source tag.
func (c *Client) Source() domain.Source {
	return domain.SourcePubMed
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// esearch returns the PMIDs for one page of results.
func (c *Client) esearch(ctx context.Context, query string, opts domain.SearchOptions) ([]string, error) {
	searchURL, err := c.buildSearchURL(query, opts)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	var resp ESearchResponse
	err = c.httpClient.Get(ctx, searchURL, "application/json", func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&resp)
	})
	if err != nil {
		return nil, err
	}
	return resp.ESearchResult.IDList, nil
}

// esummary fetches document summaries in the order of ids.
func (c *Client) esummary(ctx context.Context, ids []string) ([]DocSum, error) {
	summaryURL, err := c.buildSummaryURL(ids)
	if err != nil {
		return nil, fmt.Errorf("building summary URL: %w", err)
	}

	var resp ESummaryResponse
	err = c.httpClient.Get(ctx, summaryURL, "application/json", func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&resp)
	})
	if err != nil {
		return nil, err
	}

	order := ids
	if raw, ok := resp.Result["uids"]; ok {
		var uids []string
		if err := json.Unmarshal(raw, &uids); err == nil && len(uids) > 0 {
			order = uids
		}
	}

	docs := make([]DocSum, 0, len(order))
	for _, uid := range order {
		raw, ok := resp.Result[uid]
		if !ok {
			continue
		}
		var doc DocSum
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decoding summary %s: %w", uid, err)
		}
		if doc.UID == "" {
			doc.UID = uid
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// buildSearchURL constructs the esearch URL.
func (c *Client) buildSearchURL(query string, opts domain.SearchOptions) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/esearch.fcgi"

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", query)
	params.Set("retmode", "json")
	params.Set("retmax", strconv.Itoa(opts.PerSourceLimit()))
	params.Set("retstart", strconv.Itoa(opts.Offset()))

	if opts.HasYearFilter() {
		minYear, maxYear := openEndedMinYear, openEndedMaxYear
		if opts.FromYear > 0 {
			minYear = opts.FromYear
		}
		if opts.ToYear > 0 {
			maxYear = opts.ToYear
		}
		params.Set("datetype", "pdat")
		params.Set("mindate", strconv.Itoa(minYear))
		params.Set("maxdate", strconv.Itoa(maxYear))
	}

	if c.config.APIKey != "" {
		params.Set("api_key", c.config.APIKey)
	}

	baseURL.RawQuery = params.Encode()
	return baseURL.String(), nil
}

// buildSummaryURL constructs the esummary URL.
func (c *Client) buildSummaryURL(ids []string) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/esummary.fcgi"

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(ids, ","))
	params.Set("retmode", "json")
	if c.config.APIKey != "" {
		params.Set("api_key", c.config.APIKey)
	}

	baseURL.RawQuery = params.Encode()
	return baseURL.String(), nil
}

// docToPaper converts a DocSum to a domain Paper.
// Summaries without a title or without authors are skipped.
func docToPaper(doc *DocSum) (domain.Paper, bool) {
	if doc.Error != "" || strings.TrimSpace(doc.Title) == "" || len(doc.Authors) == 0 {
		return domain.Paper{}, false
	}

	authors := make([]string, 0, len(doc.Authors))
	for _, a := range doc.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, name)
		}
	}

	journal := strings.TrimSpace(doc.FullJournalName)
	if journal == "" {
		journal = strings.TrimSpace(doc.Source)
	}

	var doi string
	for _, id := range doc.ArticleIDs {
		if id.IDType == "doi" {
			doi = strings.TrimSpace(id.Value)
			break
		}
	}

	return domain.Paper{
		Title:           papersources.CollapseWhitespace(doc.Title),
		Authors:         authors,
		Journal:         journal,
		Year:            firstToken(doc.PubDate),
		PublicationDate: normalizeSortDate(doc.SortPubDate),
		DOI:             doi,
		URL:             ArticleURLPrefix + doc.UID + "/",
		Source:          domain.SourcePubMed,
	}, true
}

// firstToken returns the first space-separated token of s.
func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// normalizeSortDate converts "2023/03/15 00:00" to "2023-03-15".
func normalizeSortDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range []string{"2006/01/02 15:04", "2006/01/02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}
