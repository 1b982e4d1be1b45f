// Package biorxiv implements paper sources for the bioRxiv and medRxiv
// preprint servers. Both are searched through the Europe PMC preprint index,
// which supports free-text queries that the servers' own APIs lack.
package biorxiv

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
	// DefaultBaseURL is the Europe PMC REST API base URL.
	DefaultBaseURL = "https://www.ebi.ac.uk/europepmc/webservices/rest"

	// DefaultRateLimit is the default rate limit (5 requests per second).
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	// DOIURLPrefix resolves a DOI to the preprint landing page.
	DOIURLPrefix = "https://doi.org/"
)

// Config holds configuration for a preprint server client.
type Config struct {
	// BaseURL is the Europe PMC REST API base URL.
	BaseURL string

	// Source selects the preprint server: domain.SourceBioRxiv (default)
	// or domain.SourceMedRxiv.
	Source domain.Source

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
	if c.Source != domain.SourceMedRxiv {
		c.Source = domain.SourceBioRxiv
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

// Client implements the papersources.PaperSource interface for one preprint server.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Ensure Client implements PaperSource interface.
var _ papersources.PaperSource = (*Client)(nil)

// New creates a new preprint server client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:     cfg.Source.Slug(),
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

// NewWithHTTPClient creates a new client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries Europe PMC for preprints of the configured server.
func (c *Client) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.Paper, error) {
	searchURL, err := c.buildSearchURL(query, opts)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	var searchResp SearchResponse
	err = c.httpClient.Get(ctx, searchURL, "application/json", func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&searchResp)
	})
	if err != nil {
		return nil, err
	}

	papers := make([]domain.Paper, 0, len(searchResp.ResultList.Result))
	for i := range searchResp.ResultList.Result {
		if paper, ok := c.articleToPaper(&searchResp.ResultList.Result[i]); ok {
			papers = append(papers, paper)
		}
	}
	return papers, nil
}

// Source returns the configured server's source tag.
func (c *Client) Source() domain.Source {
	return c.config.Source
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return string(c.config.Source)
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the Europe PMC search URL.
func (c *Client) buildSearchURL(query string, opts domain.SearchOptions) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/search"

	queryParts := []string{
		query,
		"(SRC:PPR)",
		fmt.Sprintf(`(PUBLISHER:"%s")`, c.config.Source),
	}
	if opts.HasYearFilter() {
		queryParts = append(queryParts, buildDateFilter(opts.FromYear, opts.ToYear))
	}

	params := url.Values{}
	params.Set("query", strings.Join(queryParts, " AND "))
	params.Set("format", "json")
	params.Set("resultType", "core")
	params.Set("pageSize", strconv.Itoa(opts.PerSourceLimit()))
	params.Set("page", strconv.Itoa(opts.EffectivePage()))

	baseURL.RawQuery = params.Encode()
	return baseURL.String(), nil
}

// buildDateFilter constructs the Europe PMC first-publication date filter.
// A zero bound is left open.
func buildDateFilter(fromYear, toYear int) string {
	from, to := "*", "*"
	if fromYear > 0 {
		from = fmt.Sprintf("%04d-01-01", fromYear)
	}
	if toYear > 0 {
		to = fmt.Sprintf("%04d-12-31", toYear)
	}
	return fmt.Sprintf("(FIRST_PDATE:[%s TO %s])", from, to)
}

// articleToPaper converts a Europe PMC article to a domain Paper.
func (c *Client) articleToPaper(article *Article) (domain.Paper, bool) {
	title := papersources.CollapseWhitespace(article.Title)
	doi := strings.TrimSpace(article.DOI)
	if title == "" && doi == "" {
		return domain.Paper{}, false
	}

	year := strings.TrimSpace(article.PubYear)
	date := strings.TrimSpace(article.FirstPublicationDate)
	if year == "" && len(date) >= 4 {
		year = date[:4]
	}

	var link, pdfURL string
	if doi != "" {
		link = DOIURLPrefix + doi
		pdfURL = "https://www." + strings.ToLower(string(c.config.Source)) + ".org/content/" + doi + ".full.pdf"
	}

	return domain.Paper{
		Title:           title,
		Authors:         parseAuthorString(article.AuthorString),
		Abstract:        papersources.CollapseWhitespace(article.AbstractText),
		Journal:         string(c.config.Source),
		Year:            year,
		PublicationDate: date,
		DOI:             doi,
		URL:             link,
		PDFURL:          pdfURL,
		Citations:       article.CitedByCount,
		Source:          c.config.Source,
	}, true
}

// parseAuthorString splits Europe PMC's "Author A, Author B." list.
func parseAuthorString(authorString string) []string {
	authorString = strings.TrimSpace(authorString)
	authorString = strings.TrimSuffix(authorString, ".")
	if authorString == "" {
		return []string{}
	}

	parts := strings.Split(authorString, ", ")
	authors := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := strings.TrimSpace(part); name != "" {
			authors = append(authors, name)
		}
	}
	return authors
}
