// Package arxiv implements a paper source backed by the arXiv Atom API.
package arxiv

import (
	"context"
	"encoding/xml"
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
	// DefaultBaseURL is the default arXiv API base URL.
	DefaultBaseURL = "https://export.arxiv.org/api"

	// DefaultRateLimit is the default rate limit (3 requests per second).
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	// JournalName is reported as the journal of every arXiv record.
	JournalName = "arXiv"

	// sourceName is the human-readable name for this source.
	sourceName = "arXiv"
)

// Config holds configuration for the arXiv client.
type Config struct {
	// BaseURL is the arXiv API base URL.
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

// applyDefaults sets default values for unset configuration fields.
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

// Client implements the papersources.PaperSource interface for arXiv.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Ensure Client implements PaperSource interface.
var _ papersources.PaperSource = (*Client)(nil)

// New creates a new arXiv client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:     domain.SourceArXiv.Slug(),
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

// NewWithHTTPClient creates a new arXiv client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries arXiv for papers matching query. The API has no year
// filter; the year range is applied by the caller.
func (c *Client) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.Paper, error) {
	searchURL, err := c.buildSearchURL(query, opts)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	var feed Feed
	err = c.httpClient.Get(ctx, searchURL, "application/atom+xml", func(r io.Reader) error {
		return xml.NewDecoder(r).Decode(&feed)
	})
	if err != nil {
		return nil, err
	}

	papers := make([]domain.Paper, 0, len(feed.Entries))
	for i := range feed.Entries {
		if paper, ok := entryToPaper(&feed.Entries[i]); ok {
			papers = append(papers, paper)
		}
	}
	return papers, nil
}

// Source returns the source tag.
func (c *Client) Source() domain.Source {
	return domain.SourceArXiv
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the arXiv search API URL.
func (c *Client) buildSearchURL(query string, opts domain.SearchOptions) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/query"

	params := url.Values{}
	params.Set("search_query", buildSearchQuery(query))
	params.Set("start", strconv.Itoa(opts.Offset()))
	params.Set("max_results", strconv.Itoa(opts.PerSourceLimit()))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	baseURL.RawQuery = params.Encode()
	return baseURL.String(), nil
}

// buildSearchQuery requires every whitespace-separated term to match any field.
// "gene editing" becomes "all:gene AND all:editing".
func buildSearchQuery(query string) string {
	terms := strings.Fields(query)
	for i, t := range terms {
		terms[i] = "all:" + t
	}
	return strings.Join(terms, " AND ")
}

// entryToPaper converts an arXiv Atom entry to a domain Paper.
func entryToPaper(entry *Entry) (domain.Paper, bool) {
	title := papersources.CollapseWhitespace(entry.Title)
	if title == "" && strings.TrimSpace(entry.ID) == "" {
		return domain.Paper{}, false
	}

	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, name)
		}
	}

	published := strings.TrimSpace(entry.Published)
	year, _, _ := strings.Cut(published, "-")
	date, _, _ := strings.Cut(published, "T")

	var pdfURL string
	for _, link := range entry.Links {
		if link.Title == "pdf" {
			pdfURL = papersources.HTTPS(link.Href)
			break
		}
	}

	return domain.Paper{
		Title:           title,
		Authors:         authors,
		Abstract:        papersources.CollapseWhitespace(entry.Summary),
		Journal:         JournalName,
		Year:            year,
		PublicationDate: date,
		DOI:             strings.TrimSpace(entry.DOI),
		URL:             papersources.HTTPS(strings.TrimSpace(entry.ID)),
		PDFURL:          pdfURL,
		Source:          domain.SourceArXiv,
	}, true
}
