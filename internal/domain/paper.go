package domain

import (
	"strings"
	"time"
)

// UntitledPaper is the placeholder title for records whose provider supplied none.
const UntitledPaper = "Untitled"

// Paper is the normalized record every source adapter produces.
// Adapters build it once; nothing downstream modifies its fields.
type Paper struct {
	Title    string   `json:"title" yaml:"title"`
	Authors  []string `json:"authors" yaml:"authors"`
	Abstract string   `json:"abstract" yaml:"abstract,omitempty"`
	Journal  string   `json:"journal" yaml:"journal,omitempty"`

	// Year is kept as text because providers disagree on its encoding and some
	// records have no usable year at all.
	Year string `json:"year" yaml:"year,omitempty"`

	// PublicationDate is an ISO-like date string used as the sort tie-break.
	PublicationDate string `json:"publicationDate,omitempty" yaml:"publicationDate,omitempty"`

	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// PDFURL is only set when the adapter could confirm the link is a PDF.
	PDFURL string `json:"pdfUrl,omitempty" yaml:"pdfUrl,omitempty"`

	// Citations is nil when the provider does not report a count.
	Citations *int `json:"citations,omitempty" yaml:"citations,omitempty"`

	Source Source `json:"source" yaml:"source"`
}

// ParsedYear returns the leading integer of Year, or 0 when there is none.
func (p *Paper) ParsedYear() int {
	return ParseYear(p.Year)
}

// CitationCount returns the citation count, treating an absent count as 0.
func (p *Paper) CitationCount() int {
	if p.Citations == nil {
		return 0
	}
	return *p.Citations
}

// PublicationTime returns the parsed PublicationDate as Unix milliseconds,
// or 0 when the date is absent or unparsable.
func (p *Paper) PublicationTime() int64 {
	return ParseTimestamp(p.PublicationDate)
}

// NormalizedDOI returns the lower-cased DOI without resolver or scheme prefixes.
func (p *Paper) NormalizedDOI() string {
	doi := strings.ToLower(strings.TrimSpace(p.DOI))
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi:"} {
		doi = strings.TrimPrefix(doi, prefix)
	}
	return doi
}

// IntPtr returns a pointer to n. Adapters use it to populate Citations.
func IntPtr(n int) *int {
	return &n
}

// ParseYear reads the leading decimal integer of s, skipping leading
// whitespace. "2021", "2021 Mar 4" and "2021-03" all yield 2021. Text without a
// leading integer yields 0.
func ParseYear(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	negative := false
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	n := 0
	digits := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
		digits++
		if digits > 9 {
			break
		}
	}
	if digits == 0 {
		return 0
	}
	if negative {
		return -n
	}
	return n
}

// timestampLayouts are the date shapes providers are known to return.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02 15:04",
	"2006/01/02",
	"2006-01",
	"2006 Jan 2",
	"2006 Jan",
	"2006",
}

// ParseTimestamp parses an ISO-like date string and returns Unix milliseconds.
// Absent or unparsable input yields 0.
func ParseTimestamp(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}
