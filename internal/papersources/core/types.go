package core

// SearchResponse is the body of a /search/works response.
type SearchResponse struct {
	TotalHits int    `json:"totalHits"`
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
	Results   []Work `json:"results"`
}

// Work is one aggregated research output.
type Work struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Authors       []Author  `json:"authors"`
	Abstract      string    `json:"abstract"`
	Publisher     string    `json:"publisher"`
	Journals      []Journal `json:"journals"`
	YearPublished *int      `json:"yearPublished"`
	PublishedDate string    `json:"publishedDate"` // "2020-05-01T00:00:00"
	DOI           string    `json:"doi"`
	DownloadURL   string    `json:"downloadUrl"`
	CitationCount *int      `json:"citationCount"`
}

// Author is a work contributor.
type Author struct {
	Name string `json:"name"`
}

// Journal is a venue the work appeared in.
type Journal struct {
	Title string `json:"title"`
}
