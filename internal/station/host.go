package station

import (
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Host messages that are not command acknowledgements.
const (
	MsgWaiting = "Waiting..."
	MsgBusy    = "Busy..."
)

// HostWriter serializes lines sent to the host. The control loop, the
// running sequence and the capture signal all write through it.
type HostWriter struct {
	mu        sync.Mutex
	w         io.Writer
	listeners []func(line string)
}

// NewHostWriter wraps the host side of the link.
func NewHostWriter(w io.Writer) *HostWriter {
	return &HostWriter{w: w}
}

// Subscribe registers fn to receive every line written. fn must not block.
func (h *HostWriter) Subscribe(fn func(line string)) {
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
}

// Write sends p as-is and notifies listeners of each complete line in it.
func (h *HostWriter) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, err := h.w.Write(p)
	if err != nil {
		return n, errors.Wrap(err, "write to host")
	}
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		for _, fn := range h.listeners {
			fn(line)
		}
	}
	return n, nil
}

// WriteLine sends one newline-terminated line.
func (h *HostWriter) WriteLine(line string) error {
	_, err := io.WriteString(h, line+"\n")
	return err
}
