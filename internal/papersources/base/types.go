package base

import (
	"bytes"
	"encoding/json"
)

// SearchResponse is the JSON body of a PerformSearch call.
type SearchResponse struct {
	Response Response `json:"response"`
}

// Response holds one page of Dublin Core records.
type Response struct {
	NumFound int   `json:"numFound"`
	Start    int   `json:"start"`
	Docs     []Doc `json:"docs"`
}

// Doc is a Dublin Core record. BASE renders most fields as arrays but
// single-valued ones occasionally arrive as plain strings.
type Doc struct {
	Title       StringList `json:"dctitle"`
	Authors     StringList `json:"dcauthor"`
	Description StringList `json:"dcdescription"`
	Publisher   StringList `json:"dcpublisher"`
	Year        StringList `json:"dcyear"`
	Date        StringList `json:"dcdate"`
	Identifiers StringList `json:"dcidentifier"`
	DOI         StringList `json:"dcdoi"`
	Link        StringList `json:"dclink"`
}

// StringList decodes either a JSON string or an array of strings.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*l = nil
		return nil
	case len(data) > 0 && data[0] == '[':
		var values []string
		if err := json.Unmarshal(data, &values); err != nil {
			return err
		}
		*l = values
		return nil
	case len(data) > 0 && data[0] == '"':
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*l = StringList{value}
		return nil
	default:
		var value json.Number
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*l = StringList{value.String()}
		return nil
	}
}

// First returns the first value, or "".
func (l StringList) First() string {
	if len(l) == 0 {
		return ""
	}
	return l[0]
}
