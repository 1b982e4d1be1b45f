// Package dedup detects the same paper arriving from more than one provider.
package dedup

import (
	"strings"
	"unicode"
)

// AuthorOverlap scores how closely two author name lists agree, from 0.0 (no
// shared author, or either list empty) to 1.0 (identical lists).
//
// Each name in the shorter list is greedily paired with its most similar
// unpaired name in the longer list; the summed pair similarity is divided by
// the size of the union. The score is symmetric.
func AuthorOverlap(a, b []string) float64 {
	normA := normalizeNames(a)
	normB := normalizeNames(b)
	if len(normA) == 0 || len(normB) == 0 {
		return 0.0
	}
	if len(normA) > len(normB) {
		normA, normB = normB, normA
	}

	used := make([]bool, len(normB))
	var total float64
	var paired int

	for _, nameA := range normA {
		best, bestIdx := 0.0, -1
		for j, nameB := range normB {
			if used[j] {
				continue
			}
			if score := nameSimilarity(nameA, nameB); score > best {
				best, bestIdx = score, j
			}
		}
		if bestIdx >= 0 {
			used[bestIdx] = true
			total += best
			paired++
		}
	}

	union := len(normA) + len(normB) - paired
	if union == 0 {
		return 0.0
	}
	return total / float64(union)
}

// NormalizeName lower-cases a personal name, reorders "Last, First" to
// "First Last", and drops everything but letters and single spaces.
// Providers disagree on all three ("Smith J", "SMITH, John", "J. Smith").
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}

	if last, first, ok := strings.Cut(name, ","); ok {
		last, first = strings.TrimSpace(last), strings.TrimSpace(first)
		name = last
		if first != "" {
			name = first + " " + last
		}
	}

	var sb strings.Builder
	sb.Grow(len(name))
	pendingSpace := false
	for _, r := range name {
		switch {
		case unicode.IsLetter(r):
			if pendingSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			pendingSpace = false
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			pendingSpace = true
		}
	}
	return sb.String()
}

// nameSimilarity compares two normalized names by surname first.
//
//	same surname, same given names        1.0
//	same surname, initial matches         0.9
//	same surname, a given name is missing 0.7
//	same surname, different given names   0.3
//	different surname                     0.0
//
// PubMed lists authors as "Smith J"; a trailing single-letter token is read as
// the initials and the preceding token as the surname.
func nameSimilarity(a, b string) float64 {
	surA, givenA := splitName(a)
	surB, givenB := splitName(b)
	if surA == "" || surB == "" || surA != surB {
		return 0.0
	}
	if givenA == "" || givenB == "" {
		return 0.7
	}
	if givenA == givenB {
		return 1.0
	}
	if isInitialMatch(givenA, givenB) {
		return 0.9
	}
	return 0.3
}

// splitName returns the surname and the first given-name token.
func splitName(name string) (surname, given string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}

	last := parts[len(parts)-1]
	if len(last) <= 2 && len(parts[len(parts)-2]) > 2 {
		// "smith j" / "smith jk"
		return parts[len(parts)-2], last
	}
	return last, parts[0]
}

// isInitialMatch reports whether one token abbreviates the other.
func isInitialMatch(a, b string) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	return len(a) <= 2 && len(b) > 0 && a[0] == b[0]
}

func normalizeNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if norm := NormalizeName(n); norm != "" {
			out = append(out, norm)
		}
	}
	return out
}
