package domain

import (
	"fmt"
	"strings"
)

// SortOption selects the global ordering applied to merged results.
type SortOption string

const (
	SortDateDesc      SortOption = "date_desc"
	SortDateAsc       SortOption = "date_asc"
	SortCitationsDesc SortOption = "citations_desc"
)

// DefaultSortOption is applied when a search does not name an ordering.
const DefaultSortOption = SortDateDesc

const (
	// DefaultLimit caps the merged result list when SearchOptions.Limit is unset.
	DefaultLimit = 30

	// DefaultPerSourceLimit is the page size requested from each provider when
	// SearchOptions.Limit is unset.
	DefaultPerSourceLimit = 10

	// MaxLimit bounds both the merged list and provider page sizes.
	MaxLimit = 200
)

// IsValid reports whether o is one of the known orderings.
func (o SortOption) IsValid() bool {
	switch o {
	case SortDateDesc, SortDateAsc, SortCitationsDesc:
		return true
	}
	return false
}

// ParseSortOption resolves a user-supplied ordering; empty input selects the default.
func ParseSortOption(s string) (SortOption, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return DefaultSortOption, nil
	}
	o := SortOption(s)
	if !o.IsValid() {
		return "", NewValidationError("sort", fmt.Sprintf("unknown sort option %q", s))
	}
	return o, nil
}

// SearchOptions holds the per-query parameters shared by the aggregator and
// every source adapter. Zero values mean "not set".
type SearchOptions struct {
	// FromYear and ToYear are inclusive bounds on the publication year.
	FromYear int
	ToYear   int

	// Sources restricts the search to the named providers. Empty selects the
	// free provider set.
	Sources []Source

	// Limit caps the merged result list. Zero means DefaultLimit.
	Limit int

	// Page is the 1-based page index providers use to compute their offset.
	Page int

	Sort SortOption
}

// EffectiveLimit returns the merged-list cap.
func (o SearchOptions) EffectiveLimit() int {
	if o.Limit <= 0 {
		return DefaultLimit
	}
	return o.Limit
}

// PerSourceLimit returns the page size each provider is asked for.
func (o SearchOptions) PerSourceLimit() int {
	if o.Limit <= 0 {
		return DefaultPerSourceLimit
	}
	return o.Limit
}

// EffectivePage returns the 1-based page index.
func (o SearchOptions) EffectivePage() int {
	if o.Page < 1 {
		return 1
	}
	return o.Page
}

// Offset returns the zero-based record offset for offset-paginated providers.
func (o SearchOptions) Offset() int {
	return (o.EffectivePage() - 1) * o.PerSourceLimit()
}

// EffectiveSort returns the ordering, defaulting to date_desc.
func (o SearchOptions) EffectiveSort() SortOption {
	if o.Sort == "" {
		return DefaultSortOption
	}
	return o.Sort
}

// HasYearFilter reports whether either year bound is set.
func (o SearchOptions) HasYearFilter() bool {
	return o.FromYear > 0 || o.ToYear > 0
}

// YearInRange reports whether year satisfies the configured bounds. An
// unparsable year arrives here as 0 and fails any positive lower bound.
func (o SearchOptions) YearInRange(year int) bool {
	if o.FromYear > 0 && year < o.FromYear {
		return false
	}
	if o.ToYear > 0 && year > o.ToYear {
		return false
	}
	return true
}

// Validate checks the options for contradictions.
func (o SearchOptions) Validate() error {
	if o.FromYear < 0 {
		return NewValidationError("fromYear", "must not be negative")
	}
	if o.ToYear < 0 {
		return NewValidationError("toYear", "must not be negative")
	}
	if o.FromYear > 0 && o.ToYear > 0 && o.FromYear > o.ToYear {
		return NewValidationError("fromYear", fmt.Sprintf("%d is after toYear %d", o.FromYear, o.ToYear))
	}
	if o.Limit < 0 || o.Limit > MaxLimit {
		return NewValidationError("limit", fmt.Sprintf("must be between 0 and %d", MaxLimit))
	}
	if o.Page < 0 {
		return NewValidationError("page", "must not be negative")
	}
	if o.Sort != "" && !o.Sort.IsValid() {
		return NewValidationError("sort", fmt.Sprintf("unknown sort option %q", o.Sort))
	}
	for _, s := range o.Sources {
		if !s.IsValid() {
			return NewValidationError("sources", fmt.Sprintf("unknown source %q", s))
		}
	}
	return nil
}
