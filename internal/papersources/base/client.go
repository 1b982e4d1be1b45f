// Package base implements a paper source backed by the Bielefeld Academic
// Search Engine (BASE) HTTP search interface.
package base

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
	// DefaultBaseURL is the BASE search interface endpoint.
	DefaultBaseURL = "https://api.base-search.net/cgi-bin/BaseHttpSearchInterface.fcgi"

	// DefaultRateLimit is the default rate limit (1 request per second).
	DefaultRateLimit = 1.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 1

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	sourceName = "BASE"
)

// Config holds configuration for the BASE client.
type Config struct {
	// BaseURL is the full search interface endpoint URL.
	BaseURL string

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

// Client implements the papersources.PaperSource interface for BASE.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var _ papersources.PaperSource = (*Client)(nil)

// New creates a new BASE client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:     domain.SourceBASE.Slug(),
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  cfg.BurstSize,
		MaxRetries: cfg.MaxRetries,
		Metrics:    cfg.Metrics,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new BASE client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries BASE for records matching query. BASE has no year
// parameter; the year range is applied by the caller.
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

	papers := make([]domain.Paper, 0, len(resp.Response.Docs))
	for i := range resp.Response.Docs {
		papers = append(papers, docToPaper(&resp.Response.Docs[i]))
	}
	return papers, nil
}

// Source returns the source tag.
func (c *Client) Source() domain.Source {
	return domain.SourceBASE
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

func (c *Client) buildSearchURL(query string, opts domain.SearchOptions) (string, error) {
	endpoint, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	params := url.Values{}
	params.Set("func", "PerformSearch")
	params.Set("query", query)
	params.Set("format", "json")
	params.Set("hits", strconv.Itoa(opts.PerSourceLimit()))
	params.Set("offset", strconv.Itoa(opts.Offset()))

	endpoint.RawQuery = params.Encode()
	return endpoint.String(), nil
}

func docToPaper(d *Doc) domain.Paper {
	authors := make([]string, 0, len(d.Authors))
	for _, a := range d.Authors {
		if name := strings.TrimSpace(a); name != "" {
			authors = append(authors, name)
		}
	}

	link := strings.TrimSpace(d.Link.First())
	var pdfURL string
	if papersources.IsPDFLink(link) {
		pdfURL = link
	}

	return domain.Paper{
		Title:           papersources.CollapseWhitespace(d.Title.First()),
		Authors:         authors,
		Abstract:        strings.TrimSpace(d.Description.First()),
		Journal:         strings.TrimSpace(d.Publisher.First()),
		Year:            strings.TrimSpace(d.Year.First()),
		PublicationDate: strings.TrimSpace(d.Date.First()),
		DOI:             extractDOI(d),
		URL:             link,
		PDFURL:          pdfURL,
		Source:          domain.SourceBASE,
	}
}

// extractDOI prefers the dedicated DOI field, then a "doi:" identifier,
// then an identifier that is itself a bare or resolver-form DOI.
func extractDOI(d *Doc) string {
	if doi := strings.TrimSpace(d.DOI.First()); doi != "" {
		return doi
	}
	for _, id := range d.Identifiers {
		id = strings.TrimSpace(id)
		lower := strings.ToLower(id)
		switch {
		case strings.HasPrefix(lower, "doi:"):
			return strings.TrimSpace(id[len("doi:"):])
		case strings.HasPrefix(id, "10."):
			return id
		}
		for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/"} {
			if strings.HasPrefix(lower, prefix) {
				return id[len(prefix):]
			}
		}
	}
	return ""
}
