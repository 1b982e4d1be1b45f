package httpserver

import (
	"time"

	"github.com/helixir/research-workspace/internal/aggregator"
	"github.com/helixir/research-workspace/internal/controller"
	"github.com/helixir/research-workspace/internal/domain"
)

// Response types for JSON serialization. Paper records are served in their
// domain form.

type searchResponse struct {
	Papers     []domain.Paper          `json:"papers"`
	Count      int                     `json:"count"`
	Total      int                     `json:"total"`
	Sources    map[string]int          `json:"sources"`
	Duplicates int                     `json:"duplicates,omitempty"`
	Failures   []sourceFailureResponse `json:"failures,omitempty"`
}

type sourceFailureResponse struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

type sourceResponse struct {
	Name           string `json:"name"`
	Slug           string `json:"slug"`
	Free           bool   `json:"free"`
	RequiresAPIKey bool   `json:"requires_api_key"`
	Registered     bool   `json:"registered"`
	Enabled        bool   `json:"enabled"`
}

type listSourcesResponse struct {
	Sources []sourceResponse `json:"sources"`
}

type sessionResponse struct {
	controller.Snapshot
	Count     int       `json:"count"`
	ExpiresAt time.Time `json:"expires_at"`
}

type deleteSessionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Converter functions

func searchResultToResponse(r *aggregator.SearchResult) searchResponse {
	resp := searchResponse{
		Papers:     r.Papers,
		Count:      len(r.Papers),
		Total:      r.Total,
		Sources:    r.Counts(),
		Duplicates: r.Duplicates,
	}
	for _, report := range r.Sources {
		if report.Failed {
			resp.Failures = append(resp.Failures, sourceFailureResponse{
				Source: string(report.Source),
				Reason: report.Reason,
			})
		}
	}
	return resp
}

func snapshotToResponse(snap controller.Snapshot, expiresAt time.Time) sessionResponse {
	return sessionResponse{
		Snapshot:  snap,
		Count:     len(snap.Papers),
		ExpiresAt: expiresAt,
	}
}
