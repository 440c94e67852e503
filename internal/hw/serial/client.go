package serial

import (
	"context"
	"time"

	"github.com/cjeanneret/qcstation/internal/debug"
)

// SendOptions control a host-side exchange.
type SendOptions struct {
	// Settle is waited after opening the port; the board resets when the
	// host opens the line.
	Settle time.Duration
	// Listen is how long replies are collected after the command is sent.
	Listen time.Duration
}

// Send writes command as one line and passes every reply line received
// within opts.Listen to onLine.
func Send(ctx context.Context, l *Link, command string, opts SendOptions, onLine func(string)) error {
	if opts.Settle > 0 {
		t := time.NewTimer(opts.Settle)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	if err := l.WriteLine(command); err != nil {
		return err
	}
	debug.Info("Sent command: %s", command)

	ctx, cancel := context.WithTimeout(ctx, opts.Listen)
	defer cancel()
	for {
		line, ok, err := l.ReadLine(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if ok {
			onLine(line)
		}
	}
}
