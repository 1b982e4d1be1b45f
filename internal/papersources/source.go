// Package papersources provides the adapter contract and shared plumbing for
// external paper providers.
//
// Each provider (PubMed, arXiv, CrossRef, etc.) implements PaperSource in its
// own sub-package. Adapters translate a free-text query plus SearchOptions into
// one provider request and map the response into domain.Paper records. Adapters
// may return errors; the Guard wraps every adapter so that callers of a search
// fan-out only ever see a (possibly empty) list.
//
// Example usage:
//
//	registry := papersources.NewRegistry()
//	registry.Register(arxiv.New(arxiv.Config{Enabled: true}))
//	guard := papersources.NewGuard(registry.Get(domain.SourceArXiv), papersources.GuardConfig{}, logger, nil)
//	result := guard.Search(ctx, "CRISPR", domain.SearchOptions{})
package papersources

import (
	"context"

	"github.com/helixir/research-workspace/internal/domain"
)

// PaperSource defines the interface that all paper source clients must implement.
type PaperSource interface {
	// Search queries the provider for papers matching query.
	// The page size is opts.PerSourceLimit() and the offset opts.Offset().
	// Adapters whose provider supports a native year filter pass
	// opts.FromYear and opts.ToYear through; others leave filtering to the Guard.
	//
	// Implementations should:
	//   - Respect context cancellation
	//   - Set Source on every returned record to their own tag
	//   - Return domain.ExternalAPIError for non-success provider responses
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.Paper, error)

	// Source returns the tag stamped on every record this adapter produces.
	Source() domain.Source

	// Name returns a human-readable name for this paper source.
	// Used for logging, metrics, and display purposes.
	Name() string

	// IsEnabled returns whether this paper source is currently enabled
	// and available for searches.
	IsEnabled() bool
}
