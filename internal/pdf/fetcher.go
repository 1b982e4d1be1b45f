// Package pdf fetches PDFs linked from paper records for the viewer proxy.
//
// Links come from third-party metadata, so every fetch is treated as
// untrusted: only http(s) URLs are followed, connections to private,
// loopback and link-local addresses are refused at dial time, responses must
// look like a PDF, and bodies are capped.
package pdf

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/helixir/research-workspace/internal/papersources"
)

// Sentinel errors for PDF fetches.
var (
	// ErrNotPDF is returned when the response is neither labelled nor shaped as a PDF.
	ErrNotPDF = errors.New("pdf: response is not a PDF")
	// ErrTooLarge is returned when the body exceeds the configured maximum.
	ErrTooLarge = errors.New("pdf: file exceeds maximum size")
	// ErrFetchFailed is returned for network errors and non-2xx responses.
	ErrFetchFailed = errors.New("pdf: fetch failed")
	// ErrBlockedURL is returned for unsupported schemes and private network targets.
	ErrBlockedURL = errors.New("pdf: url not allowed")
)

const (
	// DefaultTimeout bounds one fetch, including reading the body.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxSize caps the body size.
	DefaultMaxSize int64 = 50 << 20
	// maxRedirects bounds the redirect chain.
	maxRedirects = 10
)

// pdfMagic is the signature every PDF file starts with.
var pdfMagic = []byte("%PDF-")

// Config holds fetcher configuration.
type Config struct {
	// Timeout bounds one fetch. Zero means DefaultTimeout.
	Timeout time.Duration
	// MaxSize is the largest body served, in bytes. Zero means DefaultMaxSize.
	MaxSize int64
	// UserAgent is sent on every request. Empty means papersources.DefaultUserAgent.
	UserAgent string
	// AllowPrivateHosts disables the private address check. Tests only.
	AllowPrivateHosts bool
}

// Document is an open, verified PDF response. Callers must Close it.
type Document struct {
	// Body yields at most MaxSize bytes; reading past it fails with ErrTooLarge.
	Body io.ReadCloser
	// ContentLength is the declared length, or -1 when unknown.
	ContentLength int64
	// FinalURL is the URL after redirects.
	FinalURL string
}

// Close releases the underlying response.
func (d *Document) Close() error {
	return d.Body.Close()
}

// Fetcher opens remote PDFs.
type Fetcher struct {
	client    *http.Client
	maxSize   int64
	userAgent string
	allowAll  bool
}

// NewFetcher creates a Fetcher with the given configuration.
func NewFetcher(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = papersources.DefaultUserAgent
	}

	f := &Fetcher{
		maxSize:   cfg.MaxSize,
		userAgent: cfg.UserAgent,
		allowAll:  cfg.AllowPrivateHosts,
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	if !cfg.AllowPrivateHosts {
		// Checking the connected address rather than a prior DNS lookup also
		// covers rebinding between lookup and dial.
		dialer.Control = func(_, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrBlockedURL, err)
			}
			if ip := net.ParseIP(host); ip == nil || isPrivateIP(ip) {
				return fmt.Errorf("%w: %s is a private address", ErrBlockedURL, host)
			}
			return nil
		}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.Proxy = nil

	f.client = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("%w: too many redirects", ErrFetchFailed)
			}
			return checkScheme(req.URL)
		},
	}

	return f
}

// Open fetches rawURL and returns the body once the response is known to be
// a PDF: a 2xx status, a Content-Type of application/pdf (or a generic binary
// type), a body starting with the PDF signature, and a declared length within
// MaxSize.
func (f *Fetcher) Open(ctx context.Context, rawURL string) (*Document, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("%w: invalid url %q", ErrBlockedURL, rawURL)
	}
	if err := checkScheme(parsed); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/pdf, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrBlockedURL) {
			return nil, fmt.Errorf("%w: %s", ErrBlockedURL, parsed.Hostname())
		}
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	doc, err := f.verify(resp)
	if err != nil {
		_ = resp.Body.Close()
		return nil, err
	}
	return doc, nil
}

// Verify reports whether rawURL currently serves a PDF. Only the first bytes
// of the body are read.
func (f *Fetcher) Verify(ctx context.Context, rawURL string) error {
	doc, err := f.Open(ctx, rawURL)
	if err != nil {
		return err
	}
	return doc.Close()
}

func (f *Fetcher) verify(resp *http.Response) (*Document, error) {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrFetchFailed, resp.StatusCode)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !acceptableContentType(contentType) {
		return nil, fmt.Errorf("%w: Content-Type is %q", ErrNotPDF, contentType)
	}

	if resp.ContentLength > f.maxSize {
		return nil, fmt.Errorf("%w: declared %d bytes, limit %d", ErrTooLarge, resp.ContentLength, f.maxSize)
	}

	br := bufio.NewReader(resp.Body)
	head, err := br.Peek(len(pdfMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: read body: %w", ErrFetchFailed, err)
	}
	if !bytes.Equal(head, pdfMagic) {
		return nil, fmt.Errorf("%w: missing PDF signature", ErrNotPDF)
	}

	return &Document{
		Body: &limitedBody{
			reader:    br,
			closer:    resp.Body,
			remaining: f.maxSize,
		},
		ContentLength: resp.ContentLength,
		FinalURL:      resp.Request.URL.String(),
	}, nil
}

// acceptableContentType allows application/pdf and the generic binary types
// some publishers serve PDFs under; the signature check decides the latter.
func acceptableContentType(contentType string) bool {
	switch {
	case strings.Contains(contentType, "application/pdf"),
		strings.Contains(contentType, "application/x-pdf"),
		strings.Contains(contentType, "application/octet-stream"),
		contentType == "":
		return true
	}
	return false
}

func checkScheme(u *url.URL) error {
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return nil
	default:
		return fmt.Errorf("%w: scheme %q is not allowed", ErrBlockedURL, u.Scheme)
	}
}

// isPrivateIP reports whether ip is loopback, private (RFC 1918 / RFC 4193),
// link-local, unspecified or multicast.
func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified()
}

// limitedBody fails with ErrTooLarge once more than remaining bytes are read.
type limitedBody struct {
	reader    io.Reader
	closer    io.Closer
	remaining int64
}

func (l *limitedBody) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, ErrTooLarge
	}
	// Read one byte past the limit to distinguish "exactly max" from "over".
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.reader.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n + int(l.remaining), ErrTooLarge
	}
	return n, err
}

func (l *limitedBody) Close() error {
	return l.closer.Close()
}
