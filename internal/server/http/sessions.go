package httpserver

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/research-workspace/internal/controller"
	"github.com/helixir/research-workspace/internal/domain"
	"github.com/helixir/research-workspace/internal/observability"
)

const (
	// DefaultSessionTTL is how long an untouched session lives.
	DefaultSessionTTL = 30 * time.Minute
	// subscriberBuffer is the per-stream snapshot backlog before events are dropped.
	subscriberBuffer = 16
)

// SessionConfig holds settings applied to every new session.
type SessionConfig struct {
	// TTL is the idle lifetime of a session. Zero means DefaultSessionTTL.
	TTL time.Duration
	// Debounce, Limit and SearchTimeout are passed to controller.Config.
	Debounce      time.Duration
	Limit         int
	SearchTimeout time.Duration
	// MaxSessions caps live sessions. Zero means unlimited.
	MaxSessions int
}

// session is one live controller plus the streams watching it.
type session struct {
	ctrl *controller.Controller

	mu          sync.Mutex
	lastUsed    time.Time
	subscribers map[chan controller.Snapshot]struct{}
	closed      bool
}

// broadcast fans a snapshot out to every subscriber without blocking.
// A subscriber whose buffer is full misses the snapshot.
func (s *session) broadcast(snap controller.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
}

// subscribe registers a snapshot stream. The channel is closed when the
// session ends; callers must call the returned func when they stop reading.
func (s *session) subscribe() (<-chan controller.Snapshot, func()) {
	ch := make(chan controller.Snapshot, subscriberBuffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
	}
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// close stops the controller and ends every stream.
func (s *session) close() {
	s.ctrl.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = nil
}

// SessionStore keeps interactive search sessions in memory, keyed by ID.
// Sessions idle longer than the TTL are closed by Run.
type SessionStore struct {
	searcher controller.Searcher
	config   SessionConfig
	logger   zerolog.Logger
	base     zerolog.Logger
	metrics  *observability.Metrics
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewSessionStore creates an empty store. metrics may be nil.
func NewSessionStore(searcher controller.Searcher, cfg SessionConfig, logger zerolog.Logger, metrics *observability.Metrics) *SessionStore {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultSessionTTL
	}
	return &SessionStore{
		searcher: searcher,
		config:   cfg,
		logger:   observability.WithComponent(logger, "session-store"),
		base:     logger,
		metrics:  metrics,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// create opens a new idle session.
func (st *SessionStore) create() (*session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.config.MaxSessions > 0 && len(st.sessions) >= st.config.MaxSessions {
		return nil, domain.ErrServiceUnavailable
	}

	sess := &session{
		lastUsed:    st.now(),
		subscribers: make(map[chan controller.Snapshot]struct{}),
	}
	sess.ctrl = controller.New(st.searcher, controller.Config{
		ID:            uuid.NewString(),
		Debounce:      st.config.Debounce,
		Limit:         st.config.Limit,
		SearchTimeout: st.config.SearchTimeout,
		OnChange:      sess.broadcast,
	}, st.base, st.metrics)

	st.sessions[sess.ctrl.ID()] = sess
	st.logger.Debug().Str("session_id", sess.ctrl.ID()).Int("active", len(st.sessions)).Msg("search session created")
	return sess, nil
}

// get returns a live session and refreshes its idle timer.
func (st *SessionStore) get(id string) (*session, error) {
	st.mu.Lock()
	sess, ok := st.sessions[id]
	st.mu.Unlock()
	if !ok {
		return nil, domain.NewNotFoundError("search session", id)
	}
	sess.touch(st.now())
	return sess, nil
}

// remove closes and removes a session.
func (st *SessionStore) remove(id string) error {
	st.mu.Lock()
	sess, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if !ok {
		return domain.NewNotFoundError("search session", id)
	}
	sess.close()
	return nil
}

// expiresAt returns when sess is reaped if left untouched.
func (st *SessionStore) expiresAt(sess *session) time.Time {
	return sess.idleSince().Add(st.config.TTL)
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Reap closes every session idle longer than the TTL and returns how many
// were closed.
func (st *SessionStore) Reap() int {
	cutoff := st.now().Add(-st.config.TTL)

	st.mu.Lock()
	var expired []*session
	for id, sess := range st.sessions {
		if sess.idleSince().Before(cutoff) {
			expired = append(expired, sess)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()

	for _, sess := range expired {
		sess.close()
	}
	if len(expired) > 0 {
		st.logger.Info().Int("reaped", len(expired)).Msg("closed idle search sessions")
	}
	return len(expired)
}

// Run reaps idle sessions until ctx is done.
func (st *SessionStore) Run(ctx context.Context) {
	interval := st.config.TTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.Reap()
		}
	}
}

// CloseAll closes and removes every session.
func (st *SessionStore) CloseAll() {
	st.mu.Lock()
	all := make([]*session, 0, len(st.sessions))
	for _, sess := range st.sessions {
		all = append(all, sess)
	}
	clear(st.sessions)
	st.mu.Unlock()

	for _, sess := range all {
		sess.close()
	}
}
