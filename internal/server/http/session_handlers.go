package httpserver

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/helixir/research-workspace/internal/controller"
	"github.com/helixir/research-workspace/internal/domain"
)

// filtersRequest is the JSON form of controller.Filters.
type filtersRequest struct {
	FromYear int      `json:"fromYear" validate:"omitempty,min=1000,max=9999"`
	ToYear   int      `json:"toYear" validate:"omitempty,min=1000,max=9999"`
	Sources  []string `json:"sources" validate:"max=9,dive,required"`
}

// sessionInputRequest is the JSON body for creating or updating a session.
// Absent fields are left unchanged.
type sessionInputRequest struct {
	Query   *string         `json:"query" validate:"omitempty,max=1000"`
	Filters *filtersRequest `json:"filters"`
	Page    *int            `json:"page" validate:"omitempty,min=1"`
	Sort    *string         `json:"sort" validate:"omitempty,oneof=date_desc date_asc citations_desc"`
	// Submit searches immediately instead of waiting for the debounce window.
	Submit bool `json:"submit"`
}

func (req *sessionInputRequest) empty() bool {
	return req.Query == nil && req.Filters == nil && req.Page == nil && req.Sort == nil && !req.Submit
}

// apply feeds the request into the controller. Filters and sort reset the
// page, so an explicit page is applied after them; the query goes last.
func (req *sessionInputRequest) apply(ctrl *controller.Controller) error {
	if req.Filters != nil {
		sources, err := domain.ParseSources(req.Filters.Sources)
		if err != nil {
			return err
		}
		if err := ctrl.SetFilters(controller.Filters{
			FromYear: req.Filters.FromYear,
			ToYear:   req.Filters.ToYear,
			Sources:  sources,
		}); err != nil {
			return err
		}
	}
	if req.Sort != nil {
		if err := ctrl.SetSort(domain.SortOption(*req.Sort)); err != nil {
			return err
		}
	}
	if req.Page != nil {
		if err := ctrl.SetPage(*req.Page); err != nil {
			return err
		}
	}
	if req.Query != nil {
		if err := ctrl.SetQuery(*req.Query); err != nil {
			return err
		}
	}
	if req.Submit {
		return ctrl.Submit()
	}
	return nil
}

// createSession handles POST /search-sessions.
// The body is optional and carries the initial inputs.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req sessionInputRequest
	if !decodeJSONBody(w, r, &req, true) {
		return
	}

	sess, err := s.sessions.create()
	if err != nil {
		s.logger.Warn().Err(err).Msg("search session limit reached")
		writeDomainError(w, err)
		return
	}

	if err := req.apply(sess.ctrl); err != nil {
		_ = s.sessions.remove(sess.ctrl.ID())
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/search-sessions/"+sess.ctrl.ID())
	writeJSON(w, http.StatusCreated, snapshotToResponse(sess.ctrl.Snapshot(), s.sessions.expiresAt(sess)))
}

// getSession handles GET /search-sessions/{sessionID}.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snapshotToResponse(sess.ctrl.Snapshot(), s.sessions.expiresAt(sess)))
}

// updateSession handles PATCH /search-sessions/{sessionID}.
// Each edit restarts the debounce window; the returned snapshot is usually
// still debouncing.
func (s *Server) updateSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	var req sessionInputRequest
	if !decodeJSONBody(w, r, &req, false) {
		return
	}
	if req.empty() {
		writeError(w, http.StatusBadRequest, "at least one of query, filters, page, sort or submit is required")
		return
	}

	if err := req.apply(sess.ctrl); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotToResponse(sess.ctrl.Snapshot(), s.sessions.expiresAt(sess)))
}

// submitSession handles POST /search-sessions/{sessionID}/submit.
func (s *Server) submitSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	if err := sess.ctrl.Submit(); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, snapshotToResponse(sess.ctrl.Snapshot(), s.sessions.expiresAt(sess)))
}

// deleteSession handles DELETE /search-sessions/{sessionID}.
// Pending and in-flight searches are cancelled and open streams end.
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := s.sessions.remove(id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteSessionResponse{
		Success: true,
		Message: "search session closed",
	})
}

// lookupSession resolves the session named in the URL, writing a 404 on failure.
func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*session, bool) {
	sess, err := s.sessions.get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	return sess, true
}

// decodeJSONBody reads a size-limited JSON body into dst and validates it.
// It writes a 4xx response and returns false on failure.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if len(body) > maxRequestBodySize {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	if len(body) == 0 {
		if optional {
			return true
		}
		writeError(w, http.StatusBadRequest, "request body is required")
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON in request body")
		return false
	}
	if err := validateRequest(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}
