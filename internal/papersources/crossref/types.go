package crossref

// WorksResponse is the envelope returned by the /works endpoint.
type WorksResponse struct {
	Message WorksMessage `json:"message"`
}

// WorksMessage holds one page of works.
type WorksMessage struct {
	Items []Work `json:"items"`
}

// Work is a single CrossRef metadata record, restricted to the selected fields.
type Work struct {
	DOI                 string     `json:"DOI"`
	Title               []string   `json:"title"`
	Authors             []Author   `json:"author"`
	Abstract            string     `json:"abstract"`
	ContainerTitle      []string   `json:"container-title"`
	PublishedPrint      *DateParts `json:"published-print"`
	PublishedOnline     *DateParts `json:"published-online"`
	Issued              *DateParts `json:"issued"`
	URL                 string     `json:"URL"`
	IsReferencedByCount *int       `json:"is-referenced-by-count"`
	Links               []Link     `json:"link"`
}

// Author is a contributor; organisations carry Name instead of Given/Family.
type Author struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	Name   string `json:"name"`
}

// DateParts is CrossRef's partial date: [[year, month, day]] with month and
// day optional. Entries can be null for unknown dates.
type DateParts struct {
	DateParts [][]*int `json:"date-parts"`
}

// Link is a full-text link advertised by the publisher.
type Link struct {
	URL         string `json:"URL"`
	ContentType string `json:"content-type"`
}
