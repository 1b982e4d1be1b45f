// Package crossref implements a paper source backed by the CrossRef REST API.
package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/research-workspace/internal/domain"
	"github.com/helixir/research-workspace/internal/observability"
	"github.com/helixir/research-workspace/internal/papersources"
)

const (
	// DefaultBaseURL is the CrossRef REST API base URL.
	DefaultBaseURL = "https://api.crossref.org"

	// DefaultRateLimit is the default rate limit for the polite pool.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	// MaxAuthors caps the author list of a single record.
	MaxAuthors = 10

	// sourceName is the human-readable name for this source.
	sourceName = "CrossRef"
)

// selectFields limits the payload to what the mapping reads.
var selectFields = strings.Join([]string{
	"DOI", "title", "author", "abstract", "container-title",
	"published-print", "published-online", "issued",
	"URL", "is-referenced-by-count", "link",
}, ",")

// jatsTagRegex strips the JATS markup CrossRef embeds in abstracts.
var jatsTagRegex = regexp.MustCompile(`<[^>]+>`)

// Config holds configuration for the CrossRef client.
type Config struct {
	// BaseURL is the CrossRef API base URL.
	BaseURL string

	// Mailto identifies the caller for CrossRef's polite pool. Optional.
	Mailto string

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

// Client implements the papersources.PaperSource interface for CrossRef.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Ensure Client implements PaperSource interface.
var _ papersources.PaperSource = (*Client)(nil)

// New creates a new CrossRef client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	userAgent := papersources.DefaultUserAgent
	if cfg.Mailto != "" {
		userAgent += " (mailto:" + cfg.Mailto + ")"
	}

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:     domain.SourceCrossRef.Slug(),
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  cfg.BurstSize,
		MaxRetries: cfg.MaxRetries,
		UserAgent:  userAgent,
		Metrics:    cfg.Metrics,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new CrossRef client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries CrossRef works matching query.
func (c *Client) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.Paper, error) {
	searchURL, err := c.buildSearchURL(query, opts)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	var resp WorksResponse
	err = c.httpClient.Get(ctx, searchURL, "application/json", func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&resp)
	})
	if err != nil {
		return nil, err
	}

	papers := make([]domain.Paper, 0, len(resp.Message.Items))
	for i := range resp.Message.Items {
		papers = append(papers, workToPaper(&resp.Message.Items[i]))
	}
	return papers, nil
}

// Source returns the source tag.
func (c *Client) Source() domain.Source {
	return domain.SourceCrossRef
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the works search URL.
func (c *Client) buildSearchURL(query string, opts domain.SearchOptions) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/works"

	params := url.Values{}
	params.Set("query", query)
	params.Set("rows", strconv.Itoa(opts.PerSourceLimit()))
	params.Set("offset", strconv.Itoa(opts.Offset()))
	params.Set("select", selectFields)

	var filters []string
	if opts.FromYear > 0 {
		filters = append(filters, fmt.Sprintf("from-pub-date:%04d-01-01", opts.FromYear))
	}
	if opts.ToYear > 0 {
		filters = append(filters, fmt.Sprintf("until-pub-date:%04d-12-31", opts.ToYear))
	}
	if len(filters) > 0 {
		params.Set("filter", strings.Join(filters, ","))
	}

	if c.config.Mailto != "" {
		params.Set("mailto", c.config.Mailto)
	}

	baseURL.RawQuery = params.Encode()
	return baseURL.String(), nil
}

// workToPaper converts a CrossRef work to a domain Paper.
func workToPaper(w *Work) domain.Paper {
	var title string
	if len(w.Title) > 0 {
		title = papersources.CollapseWhitespace(w.Title[0])
	}

	authors := make([]string, 0, min(len(w.Authors), MaxAuthors))
	for _, a := range w.Authors {
		if len(authors) == MaxAuthors {
			break
		}
		if name := authorName(a); name != "" {
			authors = append(authors, name)
		}
	}

	var journal string
	if len(w.ContainerTitle) > 0 {
		journal = strings.TrimSpace(w.ContainerTitle[0])
	}

	var pdfURL string
	for _, l := range w.Links {
		if strings.EqualFold(l.ContentType, "application/pdf") {
			pdfURL = l.URL
			break
		}
	}

	year, date := publication(w)

	return domain.Paper{
		Title:           title,
		Authors:         authors,
		Abstract:        papersources.CollapseWhitespace(jatsTagRegex.ReplaceAllString(w.Abstract, " ")),
		Journal:         journal,
		Year:            year,
		PublicationDate: date,
		DOI:             strings.TrimSpace(w.DOI),
		URL:             strings.TrimSpace(w.URL),
		PDFURL:          pdfURL,
		Citations:       w.IsReferencedByCount,
		Source:          domain.SourceCrossRef,
	}
}

func authorName(a Author) string {
	if a.Given == "" && a.Family == "" {
		return strings.TrimSpace(a.Name)
	}
	return strings.TrimSpace(a.Given + " " + a.Family)
}

// publication picks the first available of published-print, published-online
// and issued, and renders it as a year and an ISO date of matching precision.
func publication(w *Work) (year, date string) {
	for _, d := range []*DateParts{w.PublishedPrint, w.PublishedOnline, w.Issued} {
		if d == nil || len(d.DateParts) == 0 {
			continue
		}
		parts := d.DateParts[0]
		if len(parts) == 0 || parts[0] == nil {
			continue
		}

		year = strconv.Itoa(*parts[0])
		date = year
		if len(parts) > 1 && parts[1] != nil {
			date += fmt.Sprintf("-%02d", *parts[1])
			if len(parts) > 2 && parts[2] != nil {
				date += fmt.Sprintf("-%02d", *parts[2])
			}
		}
		return year, date
	}
	return "", ""
}
