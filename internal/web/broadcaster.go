package web

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/qcstation/internal/station"
)

// Event kinds sent to SSE clients.
const (
	KindLog   = "log"   // debug log line
	KindHost  = "host"  // line sent to the host over the serial link
	KindState = "state" // station state transition
	KindError = "error" // failed sequence
)

// StatusEvent is one SSE message.
type StatusEvent struct {
	Time  string `json:"t"`
	Kind  string `json:"k"`
	Msg   string `json:"msg"`
	State string `json:"state,omitempty"`
}

// StatusBroadcaster distributes status messages to multiple SSE clients.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
}

func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel that receives broadcast messages and a cleanup function.
// The caller must call the returned cleanup when done (e.g. on client disconnect).
func (b *StatusBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Clients returns the number of subscribers.
func (b *StatusBroadcaster) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Publish sends an event to all subscribed clients as JSON.
// Slow clients may miss messages (non-blocking, buffered).
func (b *StatusBroadcaster) Publish(evt StatusEvent) {
	if evt.Time == "" {
		evt.Time = time.Now().Format(time.RFC3339)
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
			// channel full, skip
		}
	}
}

// Broadcast is a shorthand for a kind + message event.
func (b *StatusBroadcaster) Broadcast(kind, msg string) {
	b.Publish(StatusEvent{Kind: kind, Msg: msg})
}

// HostLine forwards a line sent to the host. Wire it with
// station.HostWriter.Subscribe.
func (b *StatusBroadcaster) HostLine(line string) {
	b.Broadcast(KindHost, line)
}

// StationEvent forwards a station transition. Wire it with
// station.Station.Subscribe.
func (b *StatusBroadcaster) StationEvent(e station.Event) {
	evt := StatusEvent{Kind: KindState, State: e.State.String(), Msg: e.Command.Raw}
	if e.Err != nil {
		evt.Kind = KindError
		evt.Msg = e.Command.Kind.String() + " failed: " + e.Err.Error()
	}
	b.Publish(evt)
}

// BroadcastWriter implements io.Writer; each Write broadcasts the content to SSE clients.
// Use it with debug.SetOutput to mirror log lines.
func BroadcastWriter(b *StatusBroadcaster) *broadcastWriter {
	return &broadcastWriter{b: b}
}

type broadcastWriter struct {
	b *StatusBroadcaster
}

func (w *broadcastWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		w.b.Broadcast(KindLog, msg)
	}
	return len(p), nil
}
