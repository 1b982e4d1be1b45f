// Package aggregator fans a search out to the selected paper sources, merges
// their results and applies the global sort and limit.
//
// The aggregator holds no per-search state; concurrent calls are independent.
package aggregator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/research-workspace/internal/dedup"
	"github.com/helixir/research-workspace/internal/domain"
	"github.com/helixir/research-workspace/internal/observability"
	"github.com/helixir/research-workspace/internal/papersources"
)

// Aggregate search outcomes reported in metrics.
const (
	outcomeSuccess   = "success"
	outcomeEmpty     = "empty_query"
	outcomeInvalid   = "invalid"
	outcomeCancelled = "cancelled"
)

// SourceResolver selects the adapters a search fans out to.
// *papersources.Registry implements it.
type SourceResolver interface {
	Resolve(requested []domain.Source) []papersources.PaperSource
}

// Config holds aggregator settings.
type Config struct {
	// DefaultLimit caps the merged list when SearchOptions.Limit is unset.
	// Zero means domain.DefaultLimit.
	DefaultLimit int

	// SourceTimeout bounds each adapter search. Zero means
	// papersources.DefaultSourceTimeout.
	SourceTimeout time.Duration

	// Dedupe drops later records that duplicate an earlier one by DOI, or by
	// title and authors when DOIs are absent.
	Dedupe bool
}

// SourceReport summarizes one adapter's contribution to a search.
type SourceReport struct {
	Source   domain.Source `json:"source"`
	Count    int           `json:"count"`
	Filtered int           `json:"filtered,omitempty"`
	Failed   bool          `json:"failed,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	Duration time.Duration `json:"-"`
}

// SearchResult is the outcome of SearchDetailed.
type SearchResult struct {
	// Papers is the merged, sorted and truncated list. Never nil.
	Papers []domain.Paper

	// Sources lists every queried adapter in registration order.
	Sources []SourceReport

	// Duplicates counts records removed by de-duplication.
	Duplicates int

	// Total is the merged count before truncation.
	Total int
}

// Counts returns the number of records each source returned before sorting
// and truncation, keyed by source name.
func (r *SearchResult) Counts() map[string]int {
	counts := make(map[string]int, len(r.Sources))
	for _, s := range r.Sources {
		counts[string(s.Source)] = s.Count
	}
	return counts
}

// Aggregator runs searches across paper sources.
type Aggregator struct {
	sources SourceResolver
	config  Config
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// New creates an Aggregator. metrics may be nil.
func New(sources SourceResolver, cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Aggregator {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = domain.DefaultLimit
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = papersources.DefaultSourceTimeout
	}
	return &Aggregator{
		sources: sources,
		config:  cfg,
		logger:  observability.WithComponent(logger, "aggregator"),
		metrics: metrics,
	}
}

// SearchAllSources returns the merged papers for query. Adapter failures
// never surface here; an error means the options were invalid or ctx ended.
func (a *Aggregator) SearchAllSources(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.Paper, error) {
	result, err := a.SearchDetailed(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	return result.Papers, nil
}

// SearchDetailed is SearchAllSources with per-source diagnostics.
//
// An empty or whitespace-only query returns an empty result without
// contacting any source. Otherwise every selected source is searched
// concurrently behind a papersources.Guard, the results are concatenated in
// registration order, optionally de-duplicated, sorted by opts.Sort and
// truncated to the effective limit.
func (a *Aggregator) SearchDetailed(ctx context.Context, query string, opts domain.SearchOptions) (*SearchResult, error) {
	start := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		a.metrics.RecordAggregateSearch(outcomeEmpty, 0, time.Since(start).Seconds())
		return &SearchResult{Papers: []domain.Paper{}, Sources: []SourceReport{}}, nil
	}

	if err := opts.Validate(); err != nil {
		a.metrics.RecordAggregateSearch(outcomeInvalid, 0, time.Since(start).Seconds())
		return nil, fmt.Errorf("invalid search options: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("search cancelled: %w", err)
	}

	selected := a.sources.Resolve(opts.Sources)
	logger := a.logger.With().Str("query", query).Logger()
	logger.Debug().Int("sources", len(selected)).Int("page", opts.EffectivePage()).Msg("starting search")

	results := make([]papersources.SourceResult, len(selected))

	// Guards never fail, so the group only provides the join.
	var g errgroup.Group
	for i, source := range selected {
		guard := papersources.NewGuard(source, papersources.GuardConfig{Timeout: a.config.SourceTimeout}, a.logger, a.metrics)
		g.Go(func() error {
			results[i] = guard.Search(ctx, query, opts)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		a.metrics.RecordAggregateSearch(outcomeCancelled, 0, time.Since(start).Seconds())
		return nil, fmt.Errorf("search cancelled: %w", err)
	}

	result := &SearchResult{Sources: make([]SourceReport, 0, len(results))}
	var merged []domain.Paper
	for _, r := range results {
		merged = append(merged, r.Papers...)
		result.Sources = append(result.Sources, SourceReport{
			Source:   r.Source,
			Count:    len(r.Papers),
			Filtered: r.Filtered,
			Failed:   r.Err != nil,
			Reason:   r.Reason,
			Duration: r.Duration,
		})
	}

	if a.config.Dedupe {
		merged, result.Duplicates = dedup.Filter(merged, dedup.CheckerConfig{})
		a.metrics.RecordDuplicatesDropped(result.Duplicates)
	}

	SortPapers(merged, opts.EffectiveSort())
	result.Total = len(merged)

	limit := a.config.DefaultLimit
	if opts.Limit > 0 {
		limit = opts.Limit
	}
	if len(merged) > limit {
		merged = merged[:limit]
	}
	if merged == nil {
		merged = []domain.Paper{}
	}
	result.Papers = merged

	duration := time.Since(start)
	a.metrics.RecordAggregateSearch(outcomeSuccess, len(merged), duration.Seconds())
	logger.Info().
		Int("sources", len(selected)).
		Int("total", result.Total).
		Int("returned", len(merged)).
		Int("duplicates", result.Duplicates).
		Int64("duration_ms", duration.Milliseconds()).
		Msg("search completed")

	return result, nil
}
