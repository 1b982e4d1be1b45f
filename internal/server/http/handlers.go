package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/helixir/research-workspace/internal/domain"
)

// maxRequestBodySize is the 1 MB limit for request bodies.
const maxRequestBodySize = 1 << 20

// validate checks request DTOs. Field names in messages use the json tag.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// searchRequest is the query string of GET /papers/search.
type searchRequest struct {
	Query    string   `json:"q" validate:"max=1000"`
	FromYear int      `json:"from_year" validate:"omitempty,min=1000,max=9999"`
	ToYear   int      `json:"to_year" validate:"omitempty,min=1000,max=9999"`
	Sources  []string `json:"sources" validate:"max=9,dive,required"`
	Limit    int      `json:"limit" validate:"omitempty,min=1,max=200"`
	Page     int      `json:"page" validate:"omitempty,min=1"`
	Sort     string   `json:"sort" validate:"omitempty,oneof=date_desc date_asc citations_desc"`
}

// toOptions converts a validated request into search options.
func (req searchRequest) toOptions() (domain.SearchOptions, error) {
	sources, err := domain.ParseSources(req.Sources)
	if err != nil {
		return domain.SearchOptions{}, err
	}
	opts := domain.SearchOptions{
		FromYear: req.FromYear,
		ToYear:   req.ToYear,
		Sources:  sources,
		Limit:    req.Limit,
		Page:     req.Page,
		Sort:     domain.SortOption(req.Sort),
	}
	if err := opts.Validate(); err != nil {
		return domain.SearchOptions{}, err
	}
	return opts, nil
}

// searchPapers handles GET /papers/search.
// It runs one aggregate search and returns the merged list with per-source counts.
func (s *Server) searchPapers(w http.ResponseWriter, r *http.Request) {
	req, ok := parseSearchRequest(w, r)
	if !ok {
		return
	}

	opts, err := req.toOptions()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := s.searcher.SearchDetailed(r.Context(), req.Query, opts)
	if err != nil {
		s.logger.Warn().Err(err).Str("query", req.Query).Msg("search failed")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResultToResponse(result))
}

// listSources handles GET /sources.
// Every known provider is listed in registration order, with its registration state.
func (s *Server) listSources(w http.ResponseWriter, r *http.Request) {
	out := make([]sourceResponse, 0, len(domain.AllSources))
	for _, src := range domain.AllSources {
		resp := sourceResponse{
			Name:           string(src),
			Slug:           src.Slug(),
			Free:           src.IsFree(),
			RequiresAPIKey: src.RequiresAPIKey(),
		}
		if adapter := s.catalog.Get(src); adapter != nil {
			resp.Registered = true
			resp.Enabled = adapter.IsEnabled()
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, listSourcesResponse{Sources: out})
}

// parseSearchRequest reads and validates the search query string, writing a
// 400 response on failure.
func parseSearchRequest(w http.ResponseWriter, r *http.Request) (searchRequest, bool) {
	q := r.URL.Query()
	req := searchRequest{
		Query: strings.TrimSpace(q.Get("q")),
		Sort:  strings.ToLower(strings.TrimSpace(q.Get("sort"))),
	}
	if raw := q.Get("sources"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				req.Sources = append(req.Sources, name)
			}
		}
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"from_year", &req.FromYear},
		{"to_year", &req.ToYear},
		{"limit", &req.Limit},
		{"page", &req.Page},
	}
	for _, p := range ints {
		raw := strings.TrimSpace(q.Get(p.name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be an integer", p.name))
			return searchRequest{}, false
		}
		*p.dst = n
	}

	if err := validateRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return searchRequest{}, false
	}
	return req, true
}

// validateRequest runs struct validation and flattens the first failure into
// a client-safe message.
func validateRequest(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return domain.NewValidationError(fe.Field(), describeFieldError(fe))
	}
	return domain.NewValidationError("request", "is invalid")
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		switch fe.Kind() {
		case reflect.String:
			return "must be at most " + fe.Param() + " characters"
		case reflect.Slice:
			return "must have at most " + fe.Param() + " elements"
		}
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}

// writeDomainError maps domain errors to HTTP status codes and writes a JSON
// error response. Internal error details are not leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrSearchInProgress):
		writeError(w, http.StatusConflict, "search already in progress")
	case errors.Is(err, domain.ErrSessionClosed):
		writeError(w, http.StatusGone, "session closed")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	case errors.Is(err, domain.ErrCancelled), errors.Is(err, context.Canceled):
		writeError(w, http.StatusConflict, "operation cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "search timed out")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
