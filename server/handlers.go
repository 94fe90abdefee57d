package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/onnwee/golive/live"
)

// staleCycles is how many intervals may pass without a completed cycle
// before /readyz reports the poll loop as stuck.
const staleCycles = 5

// StatusSource is the read side of the monitor.
type StatusSource interface {
	Broadcasters() []live.TrackedBroadcaster
	LastCycle() time.Time
	Interval() time.Duration
}

var _ StatusSource = (*live.Monitor)(nil)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	src StatusSource
	now func() time.Time
}

// NewHandlers creates a new Handlers instance reading from src.
func NewHandlers(src StatusSource) *Handlers {
	return &Handlers{src: src, now: time.Now}
}

// HandleHealthz responds to liveness probes. The process being able to serve
// is enough.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz reports ready once a poll cycle has completed and the loop has
// not stalled since.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	last := h.src.LastCycle()
	switch {
	case last.IsZero():
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":       "not_ready",
			"failed_check": "first_cycle",
			"error":        "no poll cycle completed yet",
		})
		return
	case h.now().Sub(last) > staleCycles*h.src.Interval():
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":       "not_ready",
			"failed_check": "poll_loop",
			"error":        "last poll cycle finished at " + last.UTC().Format(time.RFC3339),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type statusResponse struct {
	Interval     string                    `json:"interval"`
	LastCycle    *time.Time                `json:"last_cycle,omitempty"`
	Broadcasters []live.TrackedBroadcaster `json:"broadcasters"`
}

// HandleStatus returns the tracked broadcaster table in configured order.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := statusResponse{
		Interval:     h.src.Interval().String(),
		Broadcasters: h.src.Broadcasters(),
	}
	if resp.Broadcasters == nil {
		resp.Broadcasters = []live.TrackedBroadcaster{}
	}
	if last := h.src.LastCycle(); !last.IsZero() {
		resp.LastCycle = &last
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
