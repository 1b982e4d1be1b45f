// Package domain provides the shared record types and search parameters for the
// research workspace paper search service.
package domain

import (
	"fmt"
	"strings"
)

// Source identifies the external provider that produced a paper record.
// The set is closed; records never carry a value outside it.
type Source string

const (
	SourcePubMed          Source = "PubMed"
	SourceArXiv           Source = "arXiv"
	SourceBioRxiv         Source = "bioRxiv"
	SourceMedRxiv         Source = "medRxiv"
	SourceCrossRef        Source = "CrossRef"
	SourceSemanticScholar Source = "Semantic Scholar"
	SourceCORE            Source = "CORE"
	SourceIEEE            Source = "IEEE"
	SourceBASE            Source = "BASE"
)

// AllSources lists every provider in registration order.
var AllSources = []Source{
	SourcePubMed,
	SourceArXiv,
	SourceBioRxiv,
	SourceMedRxiv,
	SourceCrossRef,
	SourceSemanticScholar,
	SourceCORE,
	SourceIEEE,
	SourceBASE,
}

// FreeSources is the default provider set used when a search names no sources.
// None of these providers needs an API key.
var FreeSources = []Source{
	SourcePubMed,
	SourceArXiv,
	SourceBioRxiv,
	SourceMedRxiv,
	SourceCrossRef,
}

// IsValid reports whether s is one of the known providers.
func (s Source) IsValid() bool {
	for _, known := range AllSources {
		if s == known {
			return true
		}
	}
	return false
}

// IsFree reports whether s belongs to the default free provider set.
func (s Source) IsFree() bool {
	for _, free := range FreeSources {
		if s == free {
			return true
		}
	}
	return false
}

// RequiresAPIKey reports whether the provider refuses requests without a key.
func (s Source) RequiresAPIKey() bool {
	return s == SourceCORE || s == SourceIEEE
}

// Slug returns a lower-case, label-safe form of the source name used for
// metrics labels and configuration keys.
func (s Source) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(s)), " ", "_")
}

// ParseSource resolves a user-supplied source name. Matching ignores case and
// accepts the slug form ("semantic_scholar") as well as the display name.
func ParseSource(name string) (Source, error) {
	trimmed := strings.TrimSpace(name)
	for _, s := range AllSources {
		if strings.EqualFold(trimmed, string(s)) || strings.EqualFold(trimmed, s.Slug()) {
			return s, nil
		}
	}
	return "", NewValidationError("sources", fmt.Sprintf("unknown source %q", name))
}

// ParseSources resolves a list of source names, failing on the first unknown name.
// Duplicates are removed while preserving first-seen order.
func ParseSources(names []string) ([]Source, error) {
	out := make([]Source, 0, len(names))
	seen := make(map[Source]bool, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		s, err := ParseSource(name)
		if err != nil {
			return nil, err
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out, nil
}
