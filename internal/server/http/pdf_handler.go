package httpserver

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/helixir/research-workspace/internal/observability"
	"github.com/helixir/research-workspace/internal/pdf"
)

// PDF proxy outcomes reported in metrics.
const (
	pdfOutcomeServed   = "served"
	pdfOutcomeInvalid  = "invalid"
	pdfOutcomeBlocked  = "blocked"
	pdfOutcomeNotPDF   = "not_pdf"
	pdfOutcomeTooLarge = "too_large"
	pdfOutcomeFailed   = "fetch_failed"
	pdfOutcomeAborted  = "aborted"
)

// proxyPDF handles GET /pdf?url=.
// It streams a remote PDF for the viewer once the fetcher has verified it.
func (s *Server) proxyPDF(w http.ResponseWriter, r *http.Request) {
	rawURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if rawURL == "" {
		s.metrics.RecordPDFProxyRequest(pdfOutcomeInvalid)
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	logger := observability.WithRequestContext(s.logger,
		observability.RequestIDFromContext(r.Context()),
		observability.CorrelationIDFromContext(r.Context()))

	doc, err := s.pdfs.Open(r.Context(), rawURL)
	if err != nil {
		status, message, outcome := pdfErrorResponse(err)
		s.metrics.RecordPDFProxyRequest(outcome)
		logger.Info().Err(err).Str("outcome", outcome).Msg("pdf proxy request refused")
		writeError(w, status, message)
		return
	}
	defer doc.Close()

	h := w.Header()
	h.Set("Content-Type", "application/pdf")
	h.Set("Content-Disposition", "inline")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Cache-Control", "private, max-age=3600")
	if doc.ContentLength > 0 {
		h.Set("Content-Length", strconv.FormatInt(doc.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)

	written, err := io.Copy(w, doc.Body)
	if err != nil {
		// Headers are sent; the client sees a truncated body.
		s.metrics.RecordPDFProxyRequest(pdfOutcomeAborted)
		logger.Warn().Err(err).Int64("bytes", written).Msg("pdf stream aborted")
		return
	}

	s.metrics.RecordPDFProxyRequest(pdfOutcomeServed)
	logger.Debug().Int64("bytes", written).Str("final_url", doc.FinalURL).Msg("pdf served")
}

// pdfCheckResponse reports whether a link currently serves a PDF.
type pdfCheckResponse struct {
	URL       string `json:"url"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// checkPDF handles GET /pdf/check?url=.
// The viewer calls it before offering a PDF tab. Refusals are data, not errors.
func (s *Server) checkPDF(w http.ResponseWriter, r *http.Request) {
	rawURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if rawURL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	resp := pdfCheckResponse{URL: rawURL, Available: true}
	if err := s.pdfs.Verify(r.Context(), rawURL); err != nil {
		_, message, outcome := pdfErrorResponse(err)
		resp.Available = false
		resp.Reason = message
		s.logger.Debug().Err(err).Str("outcome", outcome).Msg("pdf check failed")
	}
	writeJSON(w, http.StatusOK, resp)
}

// pdfErrorResponse maps fetcher errors to a status, a client-safe message
// and a metrics outcome.
func pdfErrorResponse(err error) (int, string, string) {
	switch {
	case errors.Is(err, pdf.ErrBlockedURL):
		return http.StatusBadRequest, "url not allowed", pdfOutcomeBlocked
	case errors.Is(err, pdf.ErrNotPDF):
		return http.StatusUnprocessableEntity, "url does not serve a PDF", pdfOutcomeNotPDF
	case errors.Is(err, pdf.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "PDF exceeds maximum size", pdfOutcomeTooLarge
	default:
		return http.StatusBadGateway, "failed to fetch PDF", pdfOutcomeFailed
	}
}
