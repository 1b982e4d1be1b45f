package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/helixir/research-workspace/internal/controller"
)

const (
	// sseHeartbeatInterval is how often a comment line keeps idle proxies open.
	sseHeartbeatInterval = 15 * time.Second
	// sseMaxDuration is the maximum time an SSE stream may remain open.
	sseMaxDuration = 4 * time.Hour
)

// SSE event types.
const (
	sseEventSnapshot = "snapshot"
	sseEventState    = "state"
	sseEventClosed   = "closed"
	sseEventTimeout  = "timeout"
)

// sseEvent represents an event sent via SSE.
type sseEvent struct {
	EventType string               `json:"event_type"`
	SessionID string               `json:"session_id"`
	Snapshot  *controller.Snapshot `json:"snapshot,omitempty"`
	Message   string               `json:"message,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// streamSession handles GET /search-sessions/{sessionID}/events (SSE).
// It sends the current snapshot, then one event per state transition until
// the session closes, the client leaves or sseMaxDuration elapses.
func (s *Server) streamSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	sessionID := sess.ctrl.ID()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// The server's write timeout would otherwise cut the stream.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	updates, unsubscribe := sess.subscribe()
	defer unsubscribe()

	initial := sess.ctrl.Snapshot()
	sendSSEEvent(w, flusher, sseEvent{
		EventType: sseEventSnapshot,
		SessionID: sessionID,
		Snapshot:  &initial,
		Timestamp: time.Now(),
	})

	deadline := time.NewTimer(sseMaxDuration)
	defer deadline.Stop()
	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-deadline.C:
			sendSSEEvent(w, flusher, sseEvent{
				EventType: sseEventTimeout,
				SessionID: sessionID,
				Message:   "stream max duration exceeded",
				Timestamp: time.Now(),
			})
			return

		case snap, open := <-updates:
			if !open {
				sendSSEEvent(w, flusher, sseEvent{
					EventType: sseEventClosed,
					SessionID: sessionID,
					Message:   "search session closed",
					Timestamp: time.Now(),
				})
				return
			}
			sess.touch(time.Now())
			sendSSEEvent(w, flusher, sseEvent{
				EventType: sseEventState,
				SessionID: sessionID,
				Snapshot:  &snap,
				Timestamp: time.Now(),
			})

		case <-heartbeat.C:
			sess.touch(time.Now())
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

// sendSSEEvent writes a single SSE event to the response writer.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event sseEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.EventType, data)
	flusher.Flush()
}
