package ieee

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// SearchResponse is the body of a /search/articles response.
type SearchResponse struct {
	TotalRecords int       `json:"total_records"`
	Articles     []Article `json:"articles"`
}

// Article is one IEEE Xplore record.
type Article struct {
	Title            string     `json:"title"`
	Authors          AuthorList `json:"authors"`
	Abstract         string     `json:"abstract"`
	PublicationTitle string     `json:"publication_title"`
	PublicationYear  Year       `json:"publication_year"`
	PublicationDate  string     `json:"publication_date"`
	DOI              string     `json:"doi"`
	HTMLURL          string     `json:"html_url"`
	PDFURL           string     `json:"pdf_url"`
	CitingPaperCount *int       `json:"citing_paper_count"`
}

// AuthorList wraps the nested authors array.
type AuthorList struct {
	Authors []Author `json:"authors"`
}

// Author is an article contributor.
type Author struct {
	FullName string `json:"full_name"`
}

// Year accepts publication_year as either a JSON number or a string.
type Year string

// UnmarshalJSON implements json.Unmarshaler.
func (y *Year) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*y = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*y = Year(s)
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return err
	}
	*y = Year(strconv.Itoa(n))
	return nil
}
