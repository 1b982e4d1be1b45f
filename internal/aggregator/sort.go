package aggregator

import (
	"cmp"
	"slices"

	"github.com/helixir/research-workspace/internal/domain"
)

// sortKey caches the parsed sort fields of one record.
type sortKey struct {
	year      int
	timestamp int64
	citations int
}

type keyedPaper struct {
	paper domain.Paper
	key   sortKey
}

// SortPapers orders papers in place by option. The sort is stable: records
// whose keys are all equal keep their input order.
//
// date_desc and date_asc compare the parsed year first and break ties on the
// parsed publication date, both in the same direction. citations_desc uses
// the citation count alone. Missing or unparsable values count as 0.
// Unknown options fall back to date_desc.
func SortPapers(papers []domain.Paper, option domain.SortOption) {
	if len(papers) < 2 {
		return
	}

	keyed := make([]keyedPaper, len(papers))
	for i := range papers {
		p := &papers[i]
		keyed[i] = keyedPaper{
			paper: *p,
			key: sortKey{
				year:      p.ParsedYear(),
				timestamp: p.PublicationTime(),
				citations: p.CitationCount(),
			},
		}
	}

	var compare func(a, b sortKey) int
	switch option {
	case domain.SortCitationsDesc:
		compare = func(a, b sortKey) int { return cmp.Compare(b.citations, a.citations) }
	case domain.SortDateAsc:
		compare = compareDate
	default:
		compare = func(a, b sortKey) int { return compareDate(b, a) }
	}

	slices.SortStableFunc(keyed, func(a, b keyedPaper) int {
		return compare(a.key, b.key)
	})

	for i := range keyed {
		papers[i] = keyed[i].paper
	}
}

// compareDate orders ascending by (year, timestamp).
func compareDate(a, b sortKey) int {
	if c := cmp.Compare(a.year, b.year); c != 0 {
		return c
	}
	return cmp.Compare(a.timestamp, b.timestamp)
}
