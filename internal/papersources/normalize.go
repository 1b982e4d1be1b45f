package papersources

import (
	"net/url"
	"strings"
)

// IsPDFLink reports whether link points directly at a PDF document, judged by
// the ".pdf" suffix of its path. Query strings and fragments are ignored, so
// "https://host/paper.pdf?download=1" qualifies while a landing page such as
// "https://host/record/123.html" does not.
func IsPDFLink(link string) bool {
	link = strings.TrimSpace(link)
	if link == "" {
		return false
	}

	u, err := url.Parse(link)
	if err != nil || u.Path == "" {
		return strings.HasSuffix(strings.ToLower(link), ".pdf")
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}

// HTTPS rewrites an http:// link to https://. Other links are returned unchanged.
func HTTPS(link string) string {
	if strings.HasPrefix(link, "http://") {
		return "https://" + strings.TrimPrefix(link, "http://")
	}
	return link
}

// CollapseWhitespace trims s and collapses internal runs of whitespace,
// including newlines, into single spaces.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
