package display

import (
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/cjeanneret/qcstation/internal/debug"
)

// Size of the character LCD on the station.
const (
	Lines   = 2
	Columns = 16
)

// Display is the status surface: clear, then print text at a position.
type Display interface {
	Clear() error
	Print(text string, line, column int) error
}

// Show clears d and prints text on the first line.
func Show(d Display, text string) error {
	if err := d.Clear(); err != nil {
		return errors.Wrap(err, "clear display")
	}
	if err := d.Print(text, 0, 0); err != nil {
		return errors.Wrapf(err, "print %q", text)
	}
	return nil
}

// Console logs display updates through the debug logger.
type Console struct{}

func (Console) Clear() error { return nil }

func (Console) Print(text string, line, column int) error {
	if line == 0 && column == 0 {
		debug.Display(text)
	} else {
		debug.Display(debug.Fmt("%s (line %d, col %d)", text, line, column))
	}
	return nil
}

// Memory is a 2x16 character buffer. It is safe for concurrent readers.
type Memory struct {
	mu    sync.RWMutex
	lines [Lines][]rune
}

// NewMemory returns a cleared buffer.
func NewMemory() *Memory {
	m := &Memory{}
	_ = m.Clear()
	return m
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.lines {
		m.lines[i] = []rune(strings.Repeat(" ", Columns))
	}
	return nil
}

// Print writes text starting at (line, column); characters past the last
// column are dropped.
func (m *Memory) Print(text string, line, column int) error {
	if line < 0 || line >= Lines || column < 0 || column >= Columns {
		return errors.Errorf("position (%d,%d) outside %dx%d display", line, column, Lines, Columns)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range []rune(text) {
		if column+i >= Columns {
			break
		}
		m.lines[line][column+i] = r
	}
	return nil
}

// Text returns each line with trailing blanks removed.
func (m *Memory) Text() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, Lines)
	for i, l := range m.lines {
		out[i] = strings.TrimRight(string(l), " ")
	}
	return out
}

// Tee forwards every call to all displays, stopping at the first error.
type Tee []Display

func (t Tee) Clear() error {
	for _, d := range t {
		if err := d.Clear(); err != nil {
			return err
		}
	}
	return nil
}

func (t Tee) Print(text string, line, column int) error {
	for _, d := range t {
		if err := d.Print(text, line, column); err != nil {
			return err
		}
	}
	return nil
}
