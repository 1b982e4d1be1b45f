package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/research-workspace/internal/controller"
	"github.com/helixir/research-workspace/internal/domain"
)

func createTestSession(t testing.TB, srv *Server, body string) sessionResponse {
	t.Helper()
	rr := doRequest(t, srv, http.MethodPost, "/api/v1/search-sessions", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp sessionResponse
	decodeBody(t, rr, &resp)
	if resp.ID == "" {
		t.Fatal("expected a session id")
	}
	if loc := rr.Header().Get("Location"); loc != "/api/v1/search-sessions/"+resp.ID {
		t.Errorf("unexpected Location header %q", loc)
	}
	return resp
}

// waitForState polls the session until it reaches state.
func waitForState(t *testing.T, srv *Server, id string, state controller.State) sessionResponse {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		rr := doRequest(t, srv, http.MethodGet, "/api/v1/search-sessions/"+id, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		var resp sessionResponse
		decodeBody(t, rr, &resp)
		if resp.State == state {
			return resp
		}
		if time.Now().After(deadline) {
			t.Fatalf("session %s did not reach %s, last state %s", id, state, resp.State)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCreateSession_Empty(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)

	resp := createTestSession(t, srv, "")

	if resp.State != controller.StateIdle {
		t.Errorf("expected idle, got %s", resp.State)
	}
	if resp.Page != 1 || resp.Sort != domain.SortDateDesc {
		t.Errorf("unexpected defaults: page=%d sort=%s", resp.Page, resp.Sort)
	}
	if resp.Papers == nil {
		t.Error("papers must serialize as [] not null")
	}
	if resp.ExpiresAt.IsZero() {
		t.Error("expected expires_at")
	}
	if srv.Sessions().Len() != 1 {
		t.Errorf("expected 1 live session, got %d", srv.Sessions().Len())
	}
}

func TestCreateSession_WithInputs(t *testing.T) {
	searcher := &mockSearcher{}
	srv := newTestServer(t, searcher, nil, nil)

	resp := createTestSession(t, srv, `{"query":"CRISPR","filters":{"fromYear":2020,"toYear":2021,"sources":["arxiv"]},"sort":"citations_desc"}`)

	settled := waitForState(t, srv, resp.ID, controller.StateSettled)
	if len(settled.Papers) != 1 || settled.Papers[0].Title != "CRISPR" {
		t.Errorf("unexpected papers: %+v", settled.Papers)
	}
	if settled.Count != 1 {
		t.Errorf("expected count 1, got %d", settled.Count)
	}

	searcher.mu.Lock()
	opts := searcher.searchAllOptions[len(searcher.searchAllOptions)-1]
	searcher.mu.Unlock()
	if opts.FromYear != 2020 || opts.ToYear != 2021 || opts.Sort != domain.SortCitationsDesc {
		t.Errorf("unexpected options: %+v", opts)
	}
	if len(opts.Sources) != 1 || opts.Sources[0] != domain.SourceArXiv {
		t.Errorf("unexpected sources: %v", opts.Sources)
	}
}

func TestCreateSession_InvalidBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", `{"query":`, http.StatusBadRequest},
		{"page zero", `{"page":0}`, http.StatusBadRequest},
		{"unknown sort", `{"sort":"relevance"}`, http.StatusBadRequest},
		{"unknown source", `{"filters":{"sources":["Scopus"]}}`, http.StatusBadRequest},
		{"inverted years", `{"filters":{"fromYear":2022,"toYear":2020}}`, http.StatusBadRequest},
		{"oversized body", `{"query":"` + strings.Repeat("a", maxRequestBodySize) + `"}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, nil, nil, nil)

			rr := doRequest(t, srv, http.MethodPost, "/api/v1/search-sessions", tt.body)
			if rr.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, rr.Code, rr.Body.String())
			}
			if srv.Sessions().Len() != 0 {
				t.Errorf("rejected request must not leave a session behind, got %d", srv.Sessions().Len())
			}
		})
	}
}

func TestCreateSession_Limit(t *testing.T) {
	srv := NewServer(Config{Sessions: SessionConfig{MaxSessions: 1}}, &mockSearcher{}, newTestRegistry(), &mockPDFOpener{}, zerolog.Nop(), nil)
	t.Cleanup(srv.Sessions().CloseAll)

	createTestSession(t, srv, "")
	rr := doRequest(t, srv, http.MethodPost, "/api/v1/search-sessions", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)

	rr := doRequest(t, srv, http.MethodGet, "/api/v1/search-sessions/missing", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestUpdateSession(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)
	created := createTestSession(t, srv, "")
	path := "/api/v1/search-sessions/" + created.ID

	t.Run("query triggers a search", func(t *testing.T) {
		rr := doRequest(t, srv, http.MethodPatch, path, `{"query":"gene drive"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		settled := waitForState(t, srv, created.ID, controller.StateSettled)
		if settled.Query != "gene drive" || len(settled.Papers) != 1 {
			t.Errorf("unexpected snapshot: %+v", settled.Snapshot)
		}
	})

	t.Run("page then sort resets page", func(t *testing.T) {
		rr := doRequest(t, srv, http.MethodPatch, path, `{"page":3}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		rr = doRequest(t, srv, http.MethodPatch, path, `{"sort":"date_asc"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		settled := waitForState(t, srv, created.ID, controller.StateSettled)
		if settled.Page != 1 || settled.Sort != domain.SortDateAsc {
			t.Errorf("expected page 1 and date_asc, got page=%d sort=%s", settled.Page, settled.Sort)
		}
	})

	t.Run("explicit page survives filters in the same request", func(t *testing.T) {
		rr := doRequest(t, srv, http.MethodPatch, path, `{"filters":{"fromYear":2019},"page":2}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		settled := waitForState(t, srv, created.ID, controller.StateSettled)
		if settled.Page != 2 || settled.Filters.FromYear != 2019 {
			t.Errorf("expected page 2 with fromYear 2019, got page=%d filters=%+v", settled.Page, settled.Filters)
		}
	})

	t.Run("empty body rejected", func(t *testing.T) {
		rr := doRequest(t, srv, http.MethodPatch, path, "")
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
		rr = doRequest(t, srv, http.MethodPatch, path, `{}`)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for no-op update, got %d", rr.Code)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		rr := doRequest(t, srv, http.MethodPatch, "/api/v1/search-sessions/missing", `{"query":"x"}`)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rr.Code)
		}
	})
}

func TestUpdateSession_SearchFailureShowsGenericMessage(t *testing.T) {
	searcher := &mockSearcher{
		searchAllFn: func(context.Context, string, domain.SearchOptions) ([]domain.Paper, error) {
			return nil, errors.New("upstream exploded at 10.0.0.3")
		},
	}
	srv := newTestServer(t, searcher, nil, nil)
	created := createTestSession(t, srv, `{"query":"CRISPR"}`)

	settled := waitForState(t, srv, created.ID, controller.StateSettled)
	if settled.Error != controller.ErrorMessage {
		t.Errorf("expected generic error message, got %q", settled.Error)
	}
	if len(settled.Papers) != 0 {
		t.Errorf("expected no papers, got %d", len(settled.Papers))
	}
}

func TestSubmitSession(t *testing.T) {
	release := make(chan struct{})
	searcher := &mockSearcher{
		searchAllFn: func(_ context.Context, query string, _ domain.SearchOptions) ([]domain.Paper, error) {
			<-release
			return []domain.Paper{{Title: query}}, nil
		},
	}
	srv := NewServer(Config{Sessions: SessionConfig{Debounce: time.Hour}}, searcher, newTestRegistry(), &mockPDFOpener{}, zerolog.Nop(), nil)
	t.Cleanup(srv.Sessions().CloseAll)

	created := createTestSession(t, srv, `{"query":"CRISPR"}`)
	if created.State != controller.StateDebouncing {
		t.Fatalf("expected debouncing, got %s", created.State)
	}
	path := "/api/v1/search-sessions/" + created.ID + "/submit"

	rr := doRequest(t, srv, http.MethodPost, path, "")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp sessionResponse
	decodeBody(t, rr, &resp)
	if !resp.IsSearching {
		t.Error("expected isSearching after submit")
	}

	rr = doRequest(t, srv, http.MethodPost, path, "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 while searching, got %d", rr.Code)
	}

	close(release)
	waitForState(t, srv, created.ID, controller.StateSettled)
	if got := searcher.queries(); len(got) != 1 {
		t.Errorf("expected exactly one search, got %v", got)
	}
}

func TestDeleteSession(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)
	created := createTestSession(t, srv, "")
	path := "/api/v1/search-sessions/" + created.ID

	rr := doRequest(t, srv, http.MethodDelete, path, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp deleteSessionResponse
	decodeBody(t, rr, &resp)
	if !resp.Success {
		t.Error("expected success")
	}

	if rr := doRequest(t, srv, http.MethodGet, path, ""); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rr.Code)
	}
	if rr := doRequest(t, srv, http.MethodDelete, path, ""); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", rr.Code)
	}
}

func TestSessionStore_Reap(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewSessionStore(&mockSearcher{}, SessionConfig{TTL: time.Minute}, zerolog.Nop(), nil)
	store.now = func() time.Time { return now }
	t.Cleanup(store.CloseAll)

	stale, err := store.create()
	if err != nil {
		t.Fatal(err)
	}
	now = now.Add(45 * time.Second)
	fresh, err := store.create()
	if err != nil {
		t.Fatal(err)
	}

	now = now.Add(30 * time.Second)
	if n := store.Reap(); n != 1 {
		t.Fatalf("expected 1 reaped session, got %d", n)
	}
	if _, err := store.get(stale.ctrl.ID()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected stale session gone, got %v", err)
	}
	if err := stale.ctrl.SetQuery("x"); !errors.Is(err, domain.ErrSessionClosed) {
		t.Errorf("expected reaped controller closed, got %v", err)
	}

	// get refreshes the idle timer.
	if _, err := store.get(fresh.ctrl.ID()); err != nil {
		t.Fatal(err)
	}
	now = now.Add(50 * time.Second)
	if n := store.Reap(); n != 0 {
		t.Errorf("expected touched session kept, reaped %d", n)
	}
	if got := store.expiresAt(fresh); !got.Equal(now.Add(-50 * time.Second).Add(time.Minute)) {
		t.Errorf("unexpected expiry %v", got)
	}
}

func TestSessionStore_RunStopsWithContext(t *testing.T) {
	store := NewSessionStore(&mockSearcher{}, SessionConfig{}, zerolog.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
