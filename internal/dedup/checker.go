package dedup

import (
	"strings"
	"unicode"

	"github.com/helixir/research-workspace/internal/domain"
)

// DefaultAuthorThreshold is the author overlap above which two records with
// the same normalized title are treated as one paper.
const DefaultAuthorThreshold = 0.5

// CheckerConfig holds the configuration for the duplicate checker.
type CheckerConfig struct {
	// AuthorThreshold is the minimum AuthorOverlap for a title match to count.
	// Zero means DefaultAuthorThreshold.
	AuthorThreshold float64

	// DOIOnly disables the title and author fallback.
	DOIOnly bool
}

// CheckResult describes why a record was judged a duplicate.
type CheckResult struct {
	IsDuplicate bool

	// DuplicateOf is the index, in admission order, of the kept record.
	DuplicateOf int

	// Reason is "doi" or "title_authors"; empty when not a duplicate.
	Reason string
}

type seenPaper struct {
	index   int
	doi     string
	authors []string
}

// Checker remembers the records it has admitted and reports whether a new
// record is the same paper as one of them. It is not safe for concurrent use;
// one Checker serves one merged result list.
type Checker struct {
	cfg     CheckerConfig
	byDOI   map[string]int
	byTitle map[string][]seenPaper
	count   int
}

// NewChecker creates an empty Checker.
func NewChecker(cfg CheckerConfig) *Checker {
	if cfg.AuthorThreshold <= 0 {
		cfg.AuthorThreshold = DefaultAuthorThreshold
	}
	return &Checker{
		cfg:     cfg,
		byDOI:   make(map[string]int),
		byTitle: make(map[string][]seenPaper),
	}
}

// Check reports whether paper duplicates an admitted record. A record that is
// not a duplicate is admitted.
//
// Records sharing a normalized DOI are duplicates. Otherwise, unless DOIOnly
// is set, records whose normalized titles are equal and whose author lists
// overlap by at least AuthorThreshold are duplicates. Two records carrying
// different DOIs are never merged on title.
func (c *Checker) Check(paper *domain.Paper) CheckResult {
	doi := paper.NormalizedDOI()
	if doi != "" {
		if idx, ok := c.byDOI[doi]; ok {
			return CheckResult{IsDuplicate: true, DuplicateOf: idx, Reason: "doi"}
		}
	}

	title := NormalizeTitle(paper.Title)
	if !c.cfg.DOIOnly && title != "" {
		for _, seen := range c.byTitle[title] {
			if doi != "" && seen.doi != "" {
				continue
			}
			if AuthorOverlap(seen.authors, paper.Authors) >= c.cfg.AuthorThreshold {
				return CheckResult{IsDuplicate: true, DuplicateOf: seen.index, Reason: "title_authors"}
			}
		}
	}

	idx := c.count
	c.count++
	if doi != "" {
		c.byDOI[doi] = idx
	}
	if title != "" {
		c.byTitle[title] = append(c.byTitle[title], seenPaper{index: idx, doi: doi, authors: paper.Authors})
	}
	return CheckResult{}
}

// Filter returns papers with duplicates removed, keeping the first occurrence,
// and the number of records dropped.
func Filter(papers []domain.Paper, cfg CheckerConfig) ([]domain.Paper, int) {
	checker := NewChecker(cfg)
	kept := make([]domain.Paper, 0, len(papers))
	for i := range papers {
		if checker.Check(&papers[i]).IsDuplicate {
			continue
		}
		kept = append(kept, papers[i])
	}
	return kept, len(papers) - len(kept)
}

// NormalizeTitle lower-cases a title and reduces it to letters and digits
// separated by single spaces. The placeholder title never matches anything.
func NormalizeTitle(title string) string {
	if strings.TrimSpace(title) == domain.UntitledPaper {
		return ""
	}
	fields := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}
