package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/helixir/research-workspace/internal/aggregator"
	"github.com/helixir/research-workspace/internal/domain"
)

type outputFormat string

const (
	formatTable outputFormat = "table"
	formatJSON  outputFormat = "json"
	formatYAML  outputFormat = "yaml"
)

// maxTitleWidth truncates titles in table output.
const maxTitleWidth = 80

func parseFormat(s string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case formatTable, formatJSON, formatYAML:
		return f, nil
	case "yml":
		return formatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
	}
}

// sourceSummary is one source's line in structured output.
type sourceSummary struct {
	Source     string `json:"source" yaml:"source"`
	Count      int    `json:"count" yaml:"count"`
	Filtered   int    `json:"filtered,omitempty" yaml:"filtered,omitempty"`
	Failed     bool   `json:"failed,omitempty" yaml:"failed,omitempty"`
	Reason     string `json:"reason,omitempty" yaml:"reason,omitempty"`
	DurationMS int64  `json:"durationMs" yaml:"durationMs"`
}

// searchOutput is the document written in json and yaml formats.
type searchOutput struct {
	Query      string          `json:"query" yaml:"query"`
	Count      int             `json:"count" yaml:"count"`
	Total      int             `json:"total" yaml:"total"`
	Duplicates int             `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
	Sources    []sourceSummary `json:"sources" yaml:"sources"`
	Papers     []domain.Paper  `json:"papers" yaml:"papers"`
}

func newSearchOutput(query string, result *aggregator.SearchResult) searchOutput {
	out := searchOutput{
		Query:      query,
		Count:      len(result.Papers),
		Total:      result.Total,
		Duplicates: result.Duplicates,
		Sources:    make([]sourceSummary, 0, len(result.Sources)),
		Papers:     result.Papers,
	}
	for _, s := range result.Sources {
		out.Sources = append(out.Sources, sourceSummary{
			Source:     string(s.Source),
			Count:      s.Count,
			Filtered:   s.Filtered,
			Failed:     s.Failed,
			Reason:     s.Reason,
			DurationMS: s.Duration.Milliseconds(),
		})
	}
	if out.Papers == nil {
		out.Papers = []domain.Paper{}
	}
	return out
}

func writeResults(w io.Writer, format outputFormat, query string, result *aggregator.SearchResult) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(newSearchOutput(query, result))
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(newSearchOutput(query, result)); err != nil {
			return err
		}
		return enc.Close()
	default:
		return writeTable(w, result)
	}
}

func writeTable(w io.Writer, result *aggregator.SearchResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tYEAR\tSOURCE\tCITED\tTITLE\tDOI")
	for i, p := range result.Papers {
		cited := "-"
		if p.Citations != nil {
			cited = strconv.Itoa(*p.Citations)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			i+1, orDash(p.Year), p.Source, cited, truncate(p.Title, maxTitleWidth), orDash(p.DOI))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d of %d results", len(result.Papers), result.Total)
	if result.Duplicates > 0 {
		fmt.Fprintf(w, " (%d duplicates dropped)", result.Duplicates)
	}
	fmt.Fprintln(w)

	parts := make([]string, 0, len(result.Sources))
	for _, s := range result.Sources {
		if s.Failed {
			parts = append(parts, fmt.Sprintf("%s: failed (%s)", s.Source, s.Reason))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %d", s.Source, s.Count))
	}
	if len(parts) > 0 {
		fmt.Fprintln(w, strings.Join(parts, ", "))
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
