// Package observability provides logging and metrics support for the research
// workspace paper search service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for sources, aggregate searches, and search sessions
//   - Context helpers for propagating request and session identifiers
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("query", q).Msg("search started")
//
// Add search context to logger:
//
//	logger = observability.WithSearchContext(logger, query, "arXiv")
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("research_workspace")
//
// Record metrics:
//
//	metrics.RecordSourceSearchStarted("arxiv")
//	metrics.RecordSourceSearchCompleted("arxiv", 10, 0.8)
//
// A nil *Metrics is valid and records nothing, so components accept metrics
// as an optional dependency.
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: HTTP request identifier
//   - correlation_id: caller-supplied correlation identifier
//   - session_id: interactive search session identifier
//   - seq: search sequence number within a session
//   - query: user's search query
//   - source: paper source (pubmed, arxiv, crossref, etc.)
//   - component: emitting component (aggregator, controller, http)
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
