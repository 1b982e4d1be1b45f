// Package ieee implements a paper source backed by the IEEE Xplore API.
// The API requires a key, sent as the apikey query parameter.
package ieee

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
	// DefaultBaseURL is the IEEE Xplore API base URL.
	DefaultBaseURL = "https://ieeexploreapi.ieee.org/api/v1"

	// DefaultRateLimit matches the documented ten calls per second.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	sourceName = "IEEE"
)

// Config holds configuration for the IEEE Xplore client.
type Config struct {
	// BaseURL is the API base URL.
	BaseURL string

	// APIKey is the IEEE Xplore API key. Required.
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

// Client implements the papersources.PaperSource interface for IEEE Xplore.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var _ papersources.PaperSource = (*Client)(nil)

// New creates a new IEEE Xplore client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:     domain.SourceIEEE.Slug(),
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

// NewWithHTTPClient creates a new IEEE Xplore client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries IEEE Xplore articles matching query.
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

	papers := make([]domain.Paper, 0, len(resp.Articles))
	for i := range resp.Articles {
		papers = append(papers, articleToPaper(&resp.Articles[i]))
	}
	return papers, nil
}

// Source returns the source tag.
func (c *Client) Source() domain.Source {
	return domain.SourceIEEE
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

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/search/articles"

	params := url.Values{}
	params.Set("querytext", query)
	params.Set("max_records", strconv.Itoa(opts.PerSourceLimit()))
	// start_record is 1-based.
	params.Set("start_record", strconv.Itoa(opts.Offset()+1))
	if opts.FromYear > 0 {
		params.Set("start_year", strconv.Itoa(opts.FromYear))
	}
	if opts.ToYear > 0 {
		params.Set("end_year", strconv.Itoa(opts.ToYear))
	}
	params.Set("format", "json")
	params.Set("apikey", c.config.APIKey)

	baseURL.RawQuery = params.Encode()
	return baseURL.String(), nil
}

func articleToPaper(a *Article) domain.Paper {
	authors := make([]string, 0, len(a.Authors.Authors))
	for _, au := range a.Authors.Authors {
		if name := strings.TrimSpace(au.FullName); name != "" {
			authors = append(authors, name)
		}
	}

	link := strings.TrimSpace(a.HTMLURL)
	if link == "" && a.DOI != "" {
		link = "https://doi.org/" + strings.TrimSpace(a.DOI)
	}

	return domain.Paper{
		Title:           papersources.CollapseWhitespace(a.Title),
		Authors:         authors,
		Abstract:        strings.TrimSpace(a.Abstract),
		Journal:         strings.TrimSpace(a.PublicationTitle),
		Year:            string(a.PublicationYear),
		PublicationDate: strings.TrimSpace(a.PublicationDate),
		DOI:             strings.TrimSpace(a.DOI),
		URL:             link,
		PDFURL:          strings.TrimSpace(a.PDFURL),
		Citations:       a.CitingPaperCount,
		Source:          domain.SourceIEEE,
	}
}
