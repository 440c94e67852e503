// Package process runs one inspection cycle: light the part, turn it a
// quarter at a time and tell the host to capture at each position.
package process

import (
	"context"
	"fmt"
	"time"

	"github.com/cjeanneret/qcstation/internal/debug"
	"github.com/cjeanneret/qcstation/internal/hw/camera"
	"github.com/cjeanneret/qcstation/internal/hw/display"
	"github.com/cjeanneret/qcstation/internal/hw/ports"
	"github.com/cjeanneret/qcstation/internal/logic/geometry"
	"github.com/cjeanneret/qcstation/internal/logic/sequence"
	"github.com/cjeanneret/qcstation/internal/metrics"
)

// Positions is the number of quarter-turns (and captures) per cycle.
const Positions = 4

const (
	MsgProcessing = "Processing..."
	MsgDone       = "Process Done"
)

// Rotator turns the part. *stepper.Sequencer implements it.
type Rotator interface {
	Rotate(ctx context.Context, degrees int) (int, error)
	Release() error
}

// Timings of the inspection cycle.
type Timings struct {
	Settle  time.Duration // after the strip lights up
	Capture time.Duration // part held still before each capture signal
}

// Orchestrator drives the strip light, the turntable and the camera.
type Orchestrator struct {
	rotator Rotator
	camera  camera.Camera
	strip   ports.Digital
	display display.Display
	runner  *sequence.Runner
	timings Timings
	metrics *metrics.Metrics
}

// NewOrchestrator assembles an inspection cycle. m may be nil.
func NewOrchestrator(r Rotator, c camera.Camera, strip ports.Digital, d display.Display, runner *sequence.Runner, t Timings, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		rotator: r,
		camera:  c,
		strip:   strip,
		display: d,
		runner:  runner,
		timings: t,
		metrics: m,
	}
}

// session counts the quarter-turns completed during one Run.
type session struct {
	turns int
	steps int
}

// Run performs the full cycle. The part turns exactly 360° in total and
// one capture is signalled per quarter-turn. The strip is off and the coils
// released when Run returns, even on failure.
func (o *Orchestrator) Run(ctx context.Context) (err error) {
	s := &session{}
	defer func() {
		if err != nil {
			debug.Verbose("Process aborted after %d/%d quarter-turns", s.turns, Positions)
			if serr := o.strip.Set(false); serr != nil {
				debug.Error(serr)
			}
		}
		if rerr := o.rotator.Release(); rerr != nil {
			debug.Error(rerr)
		}
	}()

	steps := []sequence.Step{
		sequence.Action("display processing", o.show(MsgProcessing)),
		{Name: "strip on", Do: o.setStrip(true), Dwell: o.timings.Settle},
	}
	for i := 1; i <= Positions; i++ {
		steps = append(steps,
			sequence.Step{Name: fmt.Sprintf("quarter-turn %d", i), Do: o.quarterTurn(ctx, s), Dwell: o.timings.Capture},
			sequence.Action(fmt.Sprintf("capture %d", i), o.shoot(ctx, s)),
		)
	}
	steps = append(steps,
		sequence.Action("strip off", o.setStrip(false)),
		sequence.Action("display done", o.show(MsgDone)),
	)

	if err := o.runner.Run(ctx, "Process", steps...); err != nil {
		return err
	}
	debug.Info("Process complete: %d quarter-turns, %d steps", s.turns, s.steps)
	return nil
}

func (o *Orchestrator) show(text string) func() error {
	return func() error { return display.Show(o.display, text) }
}

func (o *Orchestrator) setStrip(on bool) func() error {
	return func() error { return o.strip.Set(on) }
}

func (o *Orchestrator) quarterTurn(ctx context.Context, s *session) func() error {
	return func() error {
		n, err := o.rotator.Rotate(ctx, geometry.QuarterTurn)
		s.steps += n
		o.metrics.AddSteps(n)
		if err != nil {
			return err
		}
		s.turns++
		return nil
	}
}

func (o *Orchestrator) shoot(ctx context.Context, s *session) func() error {
	return func() error {
		if err := o.camera.Shoot(ctx); err != nil {
			return err
		}
		debug.Capture(s.turns, Positions)
		o.metrics.Capture()
		return nil
	}
}
