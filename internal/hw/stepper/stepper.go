package stepper

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/cjeanneret/qcstation/internal/debug"
	"github.com/cjeanneret/qcstation/internal/hw/gpio"
	"github.com/cjeanneret/qcstation/internal/logic/geometry"
	"github.com/cjeanneret/qcstation/internal/logic/sequence"
)

// DefaultStepsPerRev matches the 28BYJ-48 geared motor in full-step mode.
const DefaultStepsPerRev = 2048

const defaultStepDelay = 2000 * time.Microsecond

// Direction selects which way Step advances the phase index.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// Config holds the hardware configuration for a four-phase unipolar stepper.
type Config struct {
	Pins        [4]int        // winding pins A, B, C, D (BCM)
	StepsPerRev int           // elementary steps per output revolution
	StepDelay   time.Duration // dwell between two steps (bounds the step rate)
}

var (
	// forwardSequence energizes a single winding per phase (wave drive).
	forwardSequence = [4][4]bool{
		{true, false, false, false},
		{false, true, false, false},
		{false, false, true, false},
		{false, false, false, true},
	}

	// reverseSequence is forwardSequence traversed backwards.
	reverseSequence = [4][4]bool{
		{false, false, false, true},
		{false, false, true, false},
		{false, true, false, false},
		{true, false, false, false},
	}
)

// Sequencer drives the four windings through the phase table. It owns the
// phase index, which persists across calls; construct one per motor and
// share the pointer.
type Sequencer struct {
	gpio  gpio.Driver
	cfg   Config
	clock sequence.Clock
	steps *geometry.StepsCalculator
	phase atomic.Int32 // read concurrently by status readers
}

// NewSequencer creates a sequencer with all windings released and phase 0.
// cfg.StepDelay: if 0, defaults to 2ms. cfg.StepsPerRev: if 0, defaults to 2048.
func NewSequencer(g gpio.Driver, cfg Config, clock sequence.Clock) (*Sequencer, error) {
	if cfg.StepsPerRev == 0 {
		cfg.StepsPerRev = DefaultStepsPerRev
	}
	if cfg.StepDelay <= 0 {
		cfg.StepDelay = defaultStepDelay
	}
	if clock == nil {
		clock = sequence.RealClock{}
	}

	calc, err := geometry.NewStepsCalculator(cfg.StepsPerRev)
	if err != nil {
		return nil, err
	}

	for _, p := range cfg.Pins {
		if err := g.SetupPin(p, gpio.Output); err != nil {
			return nil, errors.Wrapf(err, "setup winding pin %d", p)
		}
	}

	s := &Sequencer{
		gpio:  g,
		cfg:   cfg,
		clock: clock,
		steps: calc,
	}
	if err := s.Release(); err != nil {
		return nil, err
	}
	return s, nil
}

// Phase returns the index (0-3) of the phase last applied.
func (s *Sequencer) Phase() int {
	return int(s.phase.Load())
}

// StepsPerRev returns the configured steps per revolution.
func (s *Sequencer) StepsPerRev() int {
	return s.cfg.StepsPerRev
}

// Step moves the phase index one position in dir (modulo 4) and energizes
// the single winding of that phase. The index always names the winding
// energized last, so a backward step lands on the neighbour the shaft came
// from. A fresh sequencer counts as resting on phase 0.
func (s *Sequencer) Step(dir Direction) error {
	n := int32(len(forwardSequence))
	phase := s.phase.Load()
	if dir == Backward {
		phase = (phase - 1 + n) % n
		s.phase.Store(phase)
		return s.apply(reverseSequence[n-1-phase])
	}
	phase = (phase + 1) % n
	s.phase.Store(phase)
	return s.apply(forwardSequence[phase])
}

// Rotate turns the output shaft by degrees (negative = backward), one
// step per StepDelay, and returns the number of elementary steps issued.
// 90° issues exactly StepsPerRev/4 steps.
func (s *Sequencer) Rotate(ctx context.Context, degrees int) (int, error) {
	steps := s.steps.Peek(degrees)
	dir := Forward
	count := steps
	if steps < 0 {
		dir = Backward
		count = -steps
	}

	debug.Move(degrees, count, dir.String())

	for i := 0; i < count; i++ {
		if err := s.Step(dir); err != nil {
			s.commit(dir, i)
			return i, err
		}
		if err := s.clock.Sleep(ctx, s.cfg.StepDelay); err != nil {
			s.commit(dir, i+1)
			return i + 1, err
		}
	}
	s.steps.Steps(degrees)
	return count, nil
}

// commit records a partial rotation so later requests stay aligned with
// the real shaft position.
func (s *Sequencer) commit(dir Direction, done int) {
	debug.Verbose("Stepper: rotation interrupted after %d steps (%s)", done, dir)
	if dir == Backward {
		done = -done
	}
	s.steps.Advance(done)
}

// Release de-energizes every winding. The phase index is kept.
func (s *Sequencer) Release() error {
	return s.apply([4]bool{})
}

func (s *Sequencer) apply(pattern [4]bool) error {
	for i, on := range pattern {
		if err := s.gpio.WritePin(s.cfg.Pins[i], gpio.Level(on)); err != nil {
			return errors.Wrapf(err, "write winding %d", i)
		}
	}
	return nil
}
