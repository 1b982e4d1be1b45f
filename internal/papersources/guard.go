package papersources

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/research-workspace/internal/domain"
	"github.com/helixir/research-workspace/internal/observability"
)

// DefaultSourceTimeout bounds a single adapter search.
const DefaultSourceTimeout = 10 * time.Second

// Failure reasons reported in logs and metrics.
const (
	FailureError    = "error"
	FailureTimeout  = "timeout"
	FailurePanic    = "panic"
	FailureCanceled = "canceled"
)

// Filter reasons reported in metrics.
const (
	filterYearRange      = "year_range"
	filterSourceMismatch = "source_mismatch"
)

// ErrSourcePanicked is wrapped by the error recorded when an adapter panics.
var ErrSourcePanicked = errors.New("paper source panicked")

// GuardConfig configures the adapter containment boundary.
type GuardConfig struct {
	// Timeout bounds each adapter search. Zero means DefaultSourceTimeout.
	Timeout time.Duration
}

// SourceResult is the contained outcome of one adapter search.
type SourceResult struct {
	// Source identifies which paper source produced the result.
	Source domain.Source

	// Papers is never nil. It is empty when the adapter failed.
	Papers []domain.Paper

	// Err records why the adapter failed. It is informational only: callers
	// of a fan-out treat a failed source as an empty one.
	Err error

	// Reason classifies Err as one of the Failure constants; empty on success.
	Reason string

	// Filtered counts records dropped at the boundary.
	Filtered int

	// Duration is the wall-clock time the adapter search took.
	Duration time.Duration
}

// Guard wraps a PaperSource so that its search never fails, never panics
// past the boundary, and never runs longer than the configured timeout.
// It also enforces the record invariants every adapter must satisfy: the
// source tag matches the adapter, the title is non-empty, and the year lies
// within the requested range.
type Guard struct {
	source  PaperSource
	config  GuardConfig
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewGuard wraps source. metrics may be nil.
func NewGuard(source PaperSource, cfg GuardConfig, logger zerolog.Logger, metrics *observability.Metrics) *Guard {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSourceTimeout
	}
	return &Guard{
		source:  source,
		config:  cfg,
		logger:  observability.WithComponent(logger, "papersource_guard"),
		metrics: metrics,
	}
}

// Source returns the wrapped adapter's tag.
func (g *Guard) Source() domain.Source {
	return g.source.Source()
}

// Search runs the wrapped adapter and contains every failure mode.
func (g *Guard) Search(ctx context.Context, query string, opts domain.SearchOptions) SourceResult {
	tag := g.source.Source()
	slug := tag.Slug()
	start := time.Now()

	g.metrics.RecordSourceSearchStarted(slug)

	logger := observability.WithSearchContext(g.logger, query, g.source.Name())

	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	papers, err := g.call(ctx, logger, query, opts)
	duration := time.Since(start)

	if err != nil {
		reason := classifyFailure(ctx, err)
		g.metrics.RecordSourceSearchFailed(slug, reason, duration.Seconds())
		logger.Warn().
			Err(err).
			Str("reason", reason).
			Int64("duration_ms", duration.Milliseconds()).
			Msg("paper source search failed")

		return SourceResult{
			Source:   tag,
			Papers:   []domain.Paper{},
			Err:      domain.NewSourceError(tag, err),
			Reason:   reason,
			Duration: duration,
		}
	}

	kept, filtered := g.enforce(logger, papers, opts)
	g.metrics.RecordSourceSearchCompleted(slug, len(kept), duration.Seconds())

	logger.Debug().
		Int("papers", len(kept)).
		Int("filtered", filtered).
		Int64("duration_ms", duration.Milliseconds()).
		Msg("paper source search completed")

	return SourceResult{
		Source:   tag,
		Papers:   kept,
		Filtered: filtered,
		Duration: duration,
	}
}

type searchOutcome struct {
	papers []domain.Paper
	err    error
}

// call runs the adapter on its own goroutine so that an adapter ignoring
// ctx still cannot hold the caller past the timeout.
func (g *Guard) call(ctx context.Context, logger zerolog.Logger, query string, opts domain.SearchOptions) ([]domain.Paper, error) {
	done := make(chan searchOutcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", debug.Stack()).
					Msg("recovered panic in paper source")
				done <- searchOutcome{err: fmt.Errorf("%w: %v", ErrSourcePanicked, r)}
			}
		}()
		papers, err := g.source.Search(ctx, query, opts)
		done <- searchOutcome{papers: papers, err: err}
	}()

	select {
	case out := <-done:
		return out.papers, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// enforce drops records that violate the adapter contract or fall outside
// the requested year range, and fills in missing titles.
func (g *Guard) enforce(logger zerolog.Logger, papers []domain.Paper, opts domain.SearchOptions) ([]domain.Paper, int) {
	tag := g.source.Source()
	slug := tag.Slug()
	kept := make([]domain.Paper, 0, len(papers))

	var mismatched, outOfRange int
	for _, p := range papers {
		if p.Source != tag {
			mismatched++
			continue
		}
		if opts.HasYearFilter() && !opts.YearInRange(p.ParsedYear()) {
			outOfRange++
			continue
		}
		if p.Title == "" {
			p.Title = domain.UntitledPaper
		}
		if p.Authors == nil {
			p.Authors = []string{}
		}
		kept = append(kept, p)
	}

	if mismatched > 0 {
		logger.Warn().Int("count", mismatched).Msg("dropped records with mismatched source tag")
	}
	g.metrics.RecordPapersFiltered(slug, filterSourceMismatch, mismatched)
	g.metrics.RecordPapersFiltered(slug, filterYearRange, outOfRange)

	return kept, mismatched + outOfRange
}

func classifyFailure(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, ErrSourcePanicked):
		return FailurePanic
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return FailureTimeout
	case errors.Is(err, context.Canceled):
		return FailureCanceled
	default:
		return FailureError
	}
}
