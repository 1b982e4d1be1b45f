// Package core implements a paper source backed by the CORE v3 API.
// CORE requires an API key, sent as a bearer token.
package core

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
	// DefaultBaseURL is the CORE API base URL.
	DefaultBaseURL = "https://api.core.ac.uk/v3"

	// DefaultRateLimit keeps well under the free tier's per-minute quota.
	DefaultRateLimit = 1.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 2

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	// WorkURLPrefix is the public landing page for a CORE work id.
	WorkURLPrefix = "https://core.ac.uk/works/"

	sourceName = "CORE"
)

// Config holds configuration for the CORE client.
type Config struct {
	// BaseURL is the CORE API base URL.
	BaseURL string

	// APIKey is the CORE API key. Required.
	APIKey string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries is passed to the HTTP client.
	MaxRetries int

	// Enabled indicates whether this source is enabled for searches.
	Enabled bool

	// Metrics records outbound request metrics. Optional.
	Metrics *observability.Metrics
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
}

// Client implements the papersources.PaperSource interface for CORE.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var _ papersources.PaperSource = (*Client)(nil)

// New creates a new CORE client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:       domain.SourceCORE.Slug(),
		Timeout:      cfg.Timeout,
		RateLimit:    cfg.RateLimit,
		BurstSize:    cfg.BurstSize,
		MaxRetries:   cfg.MaxRetries,
		APIKey:       cfg.APIKey,
		APIKeyHeader: "Authorization",
		APIKeyPrefix: "Bearer ",
		Metrics:      cfg.Metrics,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new CORE client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries CORE works matching query.
func (c *Client) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.Paper, error) {
	searchURL, err := c.buildSearchURL(query, opts)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	var resp SearchResponse
	err = c.httpClient.Get(ctx, searchURL, "application/json", func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&resp)
	})
	if err != nil {
		return nil, err
	}

	papers := make([]domain.Paper, 0, len(resp.Results))
	for i := range resp.Results {
		papers = append(papers, workToPaper(&resp.Results[i]))
	}
	return papers, nil
}

// Source returns the source tag.
func (c *Client) Source() domain.Source {
	return domain.SourceCORE
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled reports whether the source is enabled and has a key.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled && c.config.APIKey != ""
}

func (c *Client) buildSearchURL(query string, opts domain.SearchOptions) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/search/works"

	// The year range is expressed in CORE's query language.
	q := query
	if opts.FromYear > 0 {
		q += fmt.Sprintf(" AND yearPublished>=%d", opts.FromYear)
	}
	if opts.ToYear > 0 {
		q += fmt.Sprintf(" AND yearPublished<=%d", opts.ToYear)
	}

	params := url.Values{}
	params.Set("q", q)
	params.Set("limit", strconv.Itoa(opts.PerSourceLimit()))
	params.Set("offset", strconv.Itoa(opts.Offset()))

	baseURL.RawQuery = params.Encode()
	return baseURL.String(), nil
}

func workToPaper(w *Work) domain.Paper {
	authors := make([]string, 0, len(w.Authors))
	for _, a := range w.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, name)
		}
	}

	journal := strings.TrimSpace(w.Publisher)
	if journal == "" && len(w.Journals) > 0 {
		journal = strings.TrimSpace(w.Journals[0].Title)
	}

	var year string
	if w.YearPublished != nil && *w.YearPublished > 0 {
		year = strconv.Itoa(*w.YearPublished)
	}
	date, _, _ := strings.Cut(strings.TrimSpace(w.PublishedDate), "T")

	link := strings.TrimSpace(w.DownloadURL)
	var pdfURL string
	if papersources.IsPDFLink(link) {
		pdfURL = link
	}
	if link == "" && w.ID != 0 {
		link = WorkURLPrefix + strconv.FormatInt(w.ID, 10)
	}

	return domain.Paper{
		Title:           papersources.CollapseWhitespace(w.Title),
		Authors:         authors,
		Abstract:        strings.TrimSpace(w.Abstract),
		Journal:         journal,
		Year:            year,
		PublicationDate: date,
		DOI:             strings.TrimSpace(w.DOI),
		URL:             link,
		PDFURL:          pdfURL,
		Citations:       w.CitationCount,
		Source:          domain.SourceCORE,
	}
}
