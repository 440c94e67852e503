// Package sequence runs fixed-timing actuation sequences expressed as an
// ordered list of (action, dwell) steps.
package sequence

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/cjeanneret/qcstation/internal/debug"
)

// Clock provides the dwell primitive. Tests inject a fake that never sleeps.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock sleeps on the wall clock and returns early when ctx is done.
type RealClock struct{}

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Step is one action followed by a dwell. Either part may be empty.
type Step struct {
	Name  string
	Do    func() error
	Dwell time.Duration
}

// Hold is a step that only waits.
func Hold(name string, d time.Duration) Step {
	return Step{Name: name, Dwell: d}
}

// Action is a step with no dwell.
func Action(name string, do func() error) Step {
	return Step{Name: name, Do: do}
}

// Runner executes step lists against a Clock.
type Runner struct {
	clock Clock
}

// NewRunner returns a runner; a nil clock means RealClock.
func NewRunner(c Clock) *Runner {
	if c == nil {
		c = RealClock{}
	}
	return &Runner{clock: c}
}

// Clock returns the clock used for dwells.
func (r *Runner) Clock() Clock {
	return r.clock
}

// Run executes steps in order and stops at the first failing action or
// interrupted dwell.
func (r *Runner) Run(ctx context.Context, name string, steps ...Step) error {
	debug.Section(name)
	for i, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		debug.Step(i+1, s.Name)
		if s.Do != nil {
			if err := s.Do(); err != nil {
				return errors.Wrapf(err, "%s: %s", name, s.Name)
			}
		}
		if s.Dwell > 0 {
			debug.Verbose("  dwell %v", s.Dwell)
			if err := r.clock.Sleep(ctx, s.Dwell); err != nil {
				return err
			}
		}
	}
	return nil
}
