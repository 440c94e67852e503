package web

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/cjeanneret/qcstation/internal/debug"
	"github.com/cjeanneret/qcstation/internal/station"
)

// maxCommandBytes bounds a POST /command body.
const maxCommandBytes = 1 << 10

// Station is what the handlers need from the control side.
type Station interface {
	TryStart(cmd station.Command) (func(ctx context.Context) error, error)
	Snapshot() station.Snapshot
}

// CommandRequest is the body of POST /command.
type CommandRequest struct {
	Command string `json:"command"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Station     Station
	staticFS    fs.FS
	// base outlives requests: sequences started over HTTP stop with the
	// server, not with the request.
	base context.Context
}

// NewHandlers creates handlers with the given dependencies.
// If st is nil, POST /command returns 503 Service Unavailable.
func NewHandlers(base context.Context, broadcaster *StatusBroadcaster, st Station, staticFS fs.FS) *Handlers {
	if base == nil {
		base = context.Background()
	}
	return &Handlers{
		Broadcaster: broadcaster,
		Station:     st,
		staticFS:    staticFS,
		base:        base,
	}
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleState returns the station snapshot as JSON.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	if h.Station == nil {
		http.Error(w, "station not configured", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, h.Station.Snapshot())
}

// HandleCommand handles POST /command. Recognized commands claim the
// sequence slot synchronously and run in the background; 409 means another
// sequence is running.
func (h *Handlers) HandleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCommandBytes)
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	cmd := station.Interpret(req.Command)
	if cmd.Kind == station.Unknown {
		http.Error(w, "unknown command "+jsonQuote(cmd.Raw), http.StatusBadRequest)
		return
	}

	if h.Station == nil {
		http.Error(w, "station not configured", http.StatusServiceUnavailable)
		return
	}

	run, err := h.Station.TryStart(cmd)
	if errors.Is(err, station.ErrBusy) {
		http.Error(w, "a sequence is already running", http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	go func() {
		if err := run(h.base); err != nil {
			debug.Error(errors.Wrapf(err, "%s from web", cmd.Kind))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started", "command": cmd.Raw})
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		debug.Error(errors.Wrap(err, "encode response"))
	}
}

func jsonQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
