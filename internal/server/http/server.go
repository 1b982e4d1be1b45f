// Package httpserver provides the HTTP REST API for the research workspace:
// one-shot searches, interactive search sessions and the PDF viewer proxy.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/helixir/research-workspace/internal/aggregator"
	"github.com/helixir/research-workspace/internal/domain"
	"github.com/helixir/research-workspace/internal/observability"
	"github.com/helixir/research-workspace/internal/papersources"
	"github.com/helixir/research-workspace/internal/pdf"
)

// PaperSearcher runs aggregate searches. *aggregator.Aggregator implements it.
type PaperSearcher interface {
	SearchAllSources(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.Paper, error)
	SearchDetailed(ctx context.Context, query string, opts domain.SearchOptions) (*aggregator.SearchResult, error)
}

// SourceCatalog describes the registered paper sources.
// *papersources.Registry implements it.
type SourceCatalog interface {
	Get(source domain.Source) papersources.PaperSource
	EnabledSources() []papersources.PaperSource
}

// PDFOpener opens a verified remote PDF. *pdf.Fetcher implements it.
type PDFOpener interface {
	Open(ctx context.Context, rawURL string) (*pdf.Document, error)
	Verify(ctx context.Context, rawURL string) error
}

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	searcher   PaperSearcher
	catalog    SourceCatalog
	pdfs       PDFOpener
	sessions   *SessionStore
	logger     zerolog.Logger
	metrics    *observability.Metrics

	reaperCtx    context.Context
	reaperCancel context.CancelFunc
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Sessions configures the interactive search sessions.
	Sessions SessionConfig
}

// NewServer creates a new HTTP server with all dependencies. metrics may be nil.
func NewServer(
	cfg Config,
	searcher PaperSearcher,
	catalog SourceCatalog,
	pdfs PDFOpener,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Server {
	s := &Server{
		searcher: searcher,
		catalog:  catalog,
		pdfs:     pdfs,
		logger:   observability.WithComponent(logger, "http-server"),
		metrics:  metrics,
	}
	s.sessions = NewSessionStore(searcher, cfg.Sessions, logger, metrics)
	s.reaperCtx, s.reaperCancel = context.WithCancel(context.Background())

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sessions returns the session store.
func (s *Server) Sessions() *SessionStore {
	return s.sessions
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(accessLogMiddleware(s.logger))
	r.Use(jsonContentTypeMiddleware)

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/sources", s.listSources)
		r.Get("/papers/search", s.searchPapers)
		r.Get("/pdf", s.proxyPDF)
		r.Get("/pdf/check", s.checkPDF)

		r.Route("/search-sessions", func(r chi.Router) {
			r.Post("/", s.createSession)
			r.Get("/{sessionID}", s.getSession)
			r.Patch("/{sessionID}", s.updateSession)
			r.Delete("/{sessionID}", s.deleteSession)
			r.Post("/{sessionID}/submit", s.submitSession)
			r.Get("/{sessionID}/events", s.streamSession)
		})
	})

	return r
}

// Start starts the HTTP server and the idle session reaper.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}

	go s.sessions.Run(s.reaperCtx)

	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server and closes every session.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.reaperCancel()
	s.sessions.CloseAll()
	return err
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler reports ready once at least one paper source is enabled.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	enabled := len(s.catalog.EnabledSources())
	if enabled == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":          "not_ready",
			"enabled_sources": 0,
			"error":           "no paper sources enabled",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"enabled_sources": enabled,
		"active_sessions": s.sessions.Len(),
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
