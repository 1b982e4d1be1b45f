// Package controller implements the interactive search session: it debounces
// query and filter edits, issues searches against an aggregator, and keeps
// the latest settled result.
//
// Every issued search is tagged with a sequence number. A completion whose
// number is not the latest issued is discarded, so a slow, superseded search
// can never overwrite the result of a newer one.
package controller

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/research-workspace/internal/domain"
	"github.com/helixir/research-workspace/internal/observability"
)

// ErrorMessage is the only failure text a session ever reports.
const ErrorMessage = "Search failed. Please try again."

// DefaultDebounce is the quiet period after the last edit before a search fires.
const DefaultDebounce = 400 * time.Millisecond

// Search triggers reported in metrics.
const (
	triggerDebounce = "debounce"
	triggerSubmit   = "submit"
)

// State is the session lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateDebouncing State = "debouncing"
	StateSearching  State = "searching"
	StateSettled    State = "settled"
)

// Searcher runs one aggregate search. *aggregator.Aggregator implements it.
type Searcher interface {
	SearchAllSources(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.Paper, error)
}

// Filters narrows a search.
type Filters struct {
	FromYear int             `json:"fromYear,omitempty"`
	ToYear   int             `json:"toYear,omitempty"`
	Sources  []domain.Source `json:"sources,omitempty"`
}

// Config holds session settings.
type Config struct {
	// ID identifies the session in logs. Empty generates a UUID.
	ID string

	// Debounce is the quiet period before an edit triggers a search.
	// Zero means DefaultDebounce; a negative value fires immediately.
	Debounce time.Duration

	// Limit is passed as SearchOptions.Limit. Zero leaves the aggregator default.
	Limit int

	// SearchTimeout bounds one aggregate search. Zero means no bound beyond
	// the per-source timeouts.
	SearchTimeout time.Duration

	// OnChange, if set, receives a snapshot after every state transition,
	// one call at a time and in transition order. It must not block.
	OnChange func(Snapshot)
}

// Snapshot is a copy of the session state.
type Snapshot struct {
	ID          string            `json:"id"`
	State       State             `json:"state"`
	Query       string            `json:"query"`
	Filters     Filters           `json:"filters"`
	Page        int               `json:"page"`
	Sort        domain.SortOption `json:"sort"`
	Papers      []domain.Paper    `json:"papers"`
	IsSearching bool              `json:"isSearching"`
	Error       string            `json:"error,omitempty"`
	Seq         uint64            `json:"seq"`
}

// Controller is one interactive search session. All methods are safe for
// concurrent use.
type Controller struct {
	searcher Searcher
	config   Config
	logger   zerolog.Logger
	metrics  *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	notifyMu sync.Mutex

	mu       sync.Mutex
	outbox   []Snapshot
	inflight int
	query    string
	filters  Filters
	page     int
	sort     domain.SortOption
	state    State
	papers   []domain.Paper
	errMsg   string
	latest   uint64
	timer    *time.Timer
	timerGen uint64
	closed   bool
}

// New creates an idle session. metrics may be nil.
func New(searcher Searcher, cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Controller {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = DefaultDebounce
	}

	ctx, cancel := context.WithCancel(context.Background())
	metrics.RecordSessionOpened()

	return &Controller{
		searcher: searcher,
		config:   cfg,
		logger:   observability.WithComponent(logger, "search_controller").With().Str("session_id", cfg.ID).Logger(),
		metrics:  metrics,
		ctx:      ctx,
		cancel:   cancel,
		page:     1,
		sort:     domain.DefaultSortOption,
		state:    StateIdle,
		papers:   []domain.Paper{},
	}
}

// ID returns the session identifier.
func (c *Controller) ID() string {
	return c.config.ID
}

// SetQuery replaces the query text and restarts the debounce window.
// The page is kept.
func (c *Controller) SetQuery(query string) error {
	return c.edit(func() { c.query = query })
}

// SetFilters replaces the filters, resets the page to 1 and restarts the
// debounce window.
func (c *Controller) SetFilters(filters Filters) error {
	probe := domain.SearchOptions{FromYear: filters.FromYear, ToYear: filters.ToYear, Sources: filters.Sources}
	if err := probe.Validate(); err != nil {
		return err
	}
	return c.edit(func() {
		c.filters = Filters{
			FromYear: filters.FromYear,
			ToYear:   filters.ToYear,
			Sources:  slices.Clone(filters.Sources),
		}
		c.page = 1
	})
}

// SetSort changes the ordering, resets the page to 1 and restarts the
// debounce window.
func (c *Controller) SetSort(option domain.SortOption) error {
	if option == "" {
		option = domain.DefaultSortOption
	}
	if !option.IsValid() {
		return domain.NewValidationError("sort", "unknown sort option "+string(option))
	}
	return c.edit(func() {
		c.sort = option
		c.page = 1
	})
}

// SetPage moves to a 1-based page and restarts the debounce window.
// Every page change re-queries all sources.
func (c *Controller) SetPage(page int) error {
	if page < 1 {
		return domain.NewValidationError("page", "must be at least 1")
	}
	return c.edit(func() { c.page = page })
}

// Submit searches immediately, cancelling any pending debounce. It returns
// domain.ErrSearchInProgress while a search is outstanding.
func (c *Controller) Submit() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrSessionClosed
	}
	if c.inflight > 0 {
		c.mu.Unlock()
		return domain.ErrSearchInProgress
	}
	c.stopTimerLocked()
	c.publishLocked(c.dispatchLocked(triggerSubmit))
	c.mu.Unlock()

	c.flush()
	return nil
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close stops the session: the pending debounce is dropped, in-flight
// searches are cancelled and their results discarded. Close waits for
// in-flight searches to return and is idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopTimerLocked()
	c.latest++
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	c.metrics.RecordSessionClosed()
	c.logger.Debug().Msg("search session closed")
}

// edit applies an input change under the lock and schedules a search.
func (c *Controller) edit(apply func()) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrSessionClosed
	}
	apply()
	c.publishLocked(c.scheduleLocked())
	c.mu.Unlock()

	c.flush()
	return nil
}

// scheduleLocked (re)starts the debounce timer. An empty query settles
// immediately without a search.
func (c *Controller) scheduleLocked() Snapshot {
	if c.stopTimerLocked() {
		c.metrics.RecordDebounceReset()
	}

	if strings.TrimSpace(c.query) == "" {
		return c.clearLocked()
	}

	if c.config.Debounce < 0 {
		return c.dispatchLocked(triggerDebounce)
	}

	c.timerGen++
	gen := c.timerGen
	c.timer = time.AfterFunc(c.config.Debounce, func() { c.fire(gen) })
	c.state = StateDebouncing
	return c.snapshotLocked()
}

// fire runs when a debounce window elapses.
func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.timerGen || c.timer == nil {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.publishLocked(c.dispatchLocked(triggerDebounce))
	c.mu.Unlock()

	c.flush()
}

// stopTimerLocked cancels a pending debounce and reports whether one was pending.
func (c *Controller) stopTimerLocked() bool {
	if c.timer == nil {
		return false
	}
	c.timer.Stop()
	c.timer = nil
	c.timerGen++
	return true
}

// clearLocked settles on an empty list and invalidates in-flight searches.
func (c *Controller) clearLocked() Snapshot {
	c.latest++
	c.papers = []domain.Paper{}
	c.errMsg = ""
	c.state = StateIdle
	return c.snapshotLocked()
}

// dispatchLocked issues a search for the current inputs.
func (c *Controller) dispatchLocked(trigger string) Snapshot {
	if strings.TrimSpace(c.query) == "" {
		return c.clearLocked()
	}

	c.latest++
	seq := c.latest
	query := c.query
	opts := domain.SearchOptions{
		FromYear: c.filters.FromYear,
		ToYear:   c.filters.ToYear,
		Sources:  slices.Clone(c.filters.Sources),
		Limit:    c.config.Limit,
		Page:     c.page,
		Sort:     c.sort,
	}
	c.state = StateSearching
	c.errMsg = ""

	c.metrics.RecordSessionSearch(trigger)
	logger := observability.WithSessionContext(c.logger, c.config.ID, seq)
	logger.Debug().
		Str("trigger", trigger).
		Str("query", query).
		Int("page", opts.Page).
		Msg("issuing search")

	c.inflight++
	c.wg.Add(1)
	go c.run(seq, query, opts)

	return c.snapshotLocked()
}

// run performs one search and applies its result if it is still the latest
// and no edit is waiting out its debounce window.
func (c *Controller) run(seq uint64, query string, opts domain.SearchOptions) {
	defer c.wg.Done()

	ctx := c.ctx
	if c.config.SearchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.SearchTimeout)
		defer cancel()
	}

	papers, err := c.searcher.SearchAllSources(ctx, query, opts)

	c.mu.Lock()
	c.inflight--
	logger := observability.WithSessionContext(c.logger, c.config.ID, seq)
	if c.closed || seq != c.latest || c.timer != nil {
		latest := c.latest
		if !c.closed && c.inflight == 0 {
			c.publishLocked(c.snapshotLocked())
		}
		c.mu.Unlock()
		c.flush()
		c.metrics.RecordStaleResult()
		logger.Debug().Uint64("latest", latest).Msg("discarding superseded search result")
		return
	}

	if err != nil {
		logger.Warn().Err(err).Str("query", query).Msg("search failed")
		c.papers = []domain.Paper{}
		c.errMsg = ErrorMessage
	} else {
		if papers == nil {
			papers = []domain.Paper{}
		}
		c.papers = papers
		c.errMsg = ""
	}
	c.state = StateSettled
	c.publishLocked(c.snapshotLocked())
	c.mu.Unlock()

	c.flush()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		ID:    c.config.ID,
		State: c.state,
		Query: c.query,
		Filters: Filters{
			FromYear: c.filters.FromYear,
			ToYear:   c.filters.ToYear,
			Sources:  slices.Clone(c.filters.Sources),
		},
		Page:        c.page,
		Sort:        c.sort,
		Papers:      slices.Clone(c.papers),
		IsSearching: c.inflight > 0,
		Error:       c.errMsg,
		Seq:         c.latest,
	}
}

// publishLocked queues snap for OnChange. Queue order is lock order.
func (c *Controller) publishLocked(snap Snapshot) {
	if c.config.OnChange != nil {
		c.outbox = append(c.outbox, snap)
	}
}

// flush delivers queued snapshots. Whichever caller holds notifyMu drains
// the queue for everyone, so deliveries never overlap or reorder.
func (c *Controller) flush() {
	if c.config.OnChange == nil {
		return
	}
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	for {
		c.mu.Lock()
		batch := c.outbox
		c.outbox = nil
		c.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, snap := range batch {
			c.config.OnChange(snap)
		}
	}
}
