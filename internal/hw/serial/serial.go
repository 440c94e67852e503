// Package serial carries the line protocol between the host and the
// station over a serial port.
package serial

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	bugserial "go.bug.st/serial"

	"github.com/cjeanneret/qcstation/internal/debug"
)

// DefaultBaudRate is the rate the host side has always used.
const DefaultBaudRate = 9600

// Port is the subset of go.bug.st/serial.Port the link needs.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// Config selects and paces a serial port.
type Config struct {
	Name     string
	BaudRate int
	Poll     time.Duration // read timeout; one empty poll = one "Waiting..."
}

// Open opens the named port at cfg.BaudRate (8N1).
func Open(cfg Config) (*Link, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	p, err := bugserial.Open(cfg.Name, &bugserial.Mode{BaudRate: cfg.BaudRate})
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %s", cfg.Name)
	}
	debug.Info("Serial port %s open at %d baud", cfg.Name, cfg.BaudRate)
	l, err := NewLink(p, cfg.Poll)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return l, nil
}

// List returns the serial ports present on this machine.
func List() ([]string, error) {
	ports, err := bugserial.GetPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "list serial ports")
	}
	return ports, nil
}

// Link splits the incoming byte stream into lines. Bytes that arrive while
// the caller is busy stay in the port's buffer until the next ReadLine.
type Link struct {
	port    Port
	poll    time.Duration
	pending []byte
	buf     []byte
}

// NewLink wraps an open port. A zero poll defaults to one second.
func NewLink(p Port, poll time.Duration) (*Link, error) {
	if poll <= 0 {
		poll = time.Second
	}
	if err := p.SetReadTimeout(poll); err != nil {
		return nil, errors.Wrap(err, "set read timeout")
	}
	return &Link{port: p, poll: poll, buf: make([]byte, 256)}, nil
}

// ReadLine returns the next complete line without its terminator. It waits
// at most one poll interval for data; ok is false when the interval passes
// without a full line.
func (l *Link) ReadLine(ctx context.Context) (string, bool, error) {
	if line, ok := l.next(); ok {
		return line, true, nil
	}

	deadline := time.Now().Add(l.poll)
	for {
		if err := ctx.Err(); err != nil {
			return "", false, err
		}
		n, err := l.port.Read(l.buf)
		if n > 0 {
			l.pending = append(l.pending, l.buf[:n]...)
			debug.Trace("Serial: read %q", l.buf[:n])
			if line, ok := l.next(); ok {
				return line, true, nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", false, io.EOF
			}
			return "", false, errors.Wrap(err, "serial read")
		}
		// A zero-length read is the port's timeout.
		if n == 0 || !time.Now().Before(deadline) {
			return "", false, nil
		}
	}
}

// next pops one line from the pending buffer.
func (l *Link) next() (string, bool) {
	i := bytes.IndexByte(l.pending, '\n')
	if i < 0 {
		return "", false
	}
	line := string(bytes.TrimRight(l.pending[:i], "\r"))
	l.pending = l.pending[i+1:]
	return line, true
}

func (l *Link) Write(p []byte) (int, error) {
	n, err := l.port.Write(p)
	if err != nil {
		return n, errors.Wrap(err, "serial write")
	}
	return n, nil
}

// WriteLine sends line followed by a newline.
func (l *Link) WriteLine(line string) error {
	_, err := l.Write([]byte(line + "\n"))
	return err
}

func (l *Link) Close() error {
	return l.port.Close()
}
