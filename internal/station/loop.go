package station

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/cjeanneret/qcstation/internal/debug"
)

// LineSource yields host input one line at a time. ReadLine waits at most
// one poll interval; ok is false when nothing arrived in that interval.
// io.EOF means the host side is gone.
type LineSource interface {
	ReadLine(ctx context.Context) (line string, ok bool, err error)
}

// Run is the control loop. It reads a line, dispatches it and waits for the
// handler to return before reading again. An empty poll is reported to the
// host as "Waiting...". Run returns nil on EOF or when ctx is done.
func (s *Station) Run(ctx context.Context, src LineSource) error {
	debug.Info("Control loop started")
	defer debug.Info("Control loop stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, ok, err := src.ReadLine(ctx)
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "read command")
		case !ok:
			if err := s.deps.Host.WriteLine(MsgWaiting); err != nil {
				return err
			}
			continue
		}

		err = s.Dispatch(ctx, line)
		switch {
		case err == nil:
		case errors.Is(err, ErrBusy):
			if err := s.deps.Host.WriteLine(MsgBusy); err != nil {
				return err
			}
		case ctx.Err() != nil:
			return nil
		default:
			// Hardware failures are logged; the loop keeps serving.
			debug.Error(err)
		}
	}
}

// ReaderSource adapts an io.Reader (stdin, a pipe) to LineSource.
type ReaderSource struct {
	lines chan string
	errc  chan error
	poll  time.Duration
}

// NewReaderSource starts a goroutine scanning r line by line. It exits when
// r returns an error or EOF.
func NewReaderSource(r io.Reader, poll time.Duration) *ReaderSource {
	rs := &ReaderSource{
		lines: make(chan string),
		errc:  make(chan error, 1),
		poll:  poll,
	}
	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			rs.lines <- sc.Text()
		}
		if err := sc.Err(); err != nil {
			rs.errc <- err
			return
		}
		rs.errc <- io.EOF
	}()
	return rs
}

func (rs *ReaderSource) ReadLine(ctx context.Context) (string, bool, error) {
	t := time.NewTimer(rs.poll)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case line := <-rs.lines:
		return line, true, nil
	case err := <-rs.errc:
		return "", false, err
	case <-t.C:
		return "", false, nil
	}
}
