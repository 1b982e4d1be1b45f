package pubmed

import "encoding/json"

// ESearchResponse represents the JSON response from esearch.fcgi.
type ESearchResponse struct {
	ESearchResult ESearchResult `json:"esearchresult"`
}

// ESearchResult holds the matching PMIDs for one page of results.
type ESearchResult struct {
	Count    string   `json:"count"`
	RetMax   string   `json:"retmax"`
	RetStart string   `json:"retstart"`
	IDList   []string `json:"idlist"`

	// ErrorList is present when NCBI could not interpret part of the term.
	ErrorList *ErrorList `json:"errorlist,omitempty"`
}

// ErrorList describes query terms NCBI could not resolve.
type ErrorList struct {
	PhrasesNotFound []string `json:"phrasesnotfound"`
	FieldsNotFound  []string `json:"fieldsnotfound"`
}

// ESummaryResponse represents the JSON response from esummary.fcgi.
// Result maps each PMID to its DocSum and also carries a "uids" array
// listing the PMIDs in request order.
type ESummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

// DocSum is the document summary esummary returns for one PMID.
type DocSum struct {
	UID             string      `json:"uid"`
	PubDate         string      `json:"pubdate"`     // "2023 Mar 15"
	EPubDate        string      `json:"epubdate"`
	SortPubDate     string      `json:"sortpubdate"` // "2023/03/15 00:00"
	Source          string      `json:"source"`      // journal abbreviation
	FullJournalName string      `json:"fulljournalname"`
	Title           string      `json:"title"`
	Authors         []DocAuthor `json:"authors"`
	ArticleIDs      []ArticleID `json:"articleids"`
	Error           string      `json:"error"`
}

// DocAuthor is one author entry in a DocSum.
type DocAuthor struct {
	Name     string `json:"name"`
	AuthType string `json:"authtype"`
}

// ArticleID is one identifier attached to a DocSum.
type ArticleID struct {
	IDType string `json:"idtype"` // "pubmed", "doi", "pmc", ...
	Value  string `json:"value"`
}
