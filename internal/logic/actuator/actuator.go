package actuator

import (
	"context"
	"time"

	"github.com/cjeanneret/qcstation/internal/debug"
	"github.com/cjeanneret/qcstation/internal/hw/display"
	"github.com/cjeanneret/qcstation/internal/hw/ports"
	"github.com/cjeanneret/qcstation/internal/logic/sequence"
)

// Display messages.
const (
	MsgDefect = "Defect Detected"
	MsgNormal = "Normal Detected"
	MsgAwait  = "Await Command"
	MsgAllOff = "All Devices Off"
)

// Timings are the fixed dwells of the three sequences.
type Timings struct {
	Alert        time.Duration // red LED + buzzer before the reject pulse
	RejectHold   time.Duration // actuator held at its extreme angle
	NormalHold   time.Duration // green LED dwell
	ResetConfirm time.Duration // before "All Devices Off" is shown
}

// Angles of the reject actuator.
type Angles struct {
	Home    int
	Extreme int
}

// Sequencer runs the defect, normal and reset sequences on the outputs.
// Sequences do not branch on external state; each runs to completion.
type Sequencer struct {
	out     *ports.Outputs
	display display.Display
	runner  *sequence.Runner
	timings Timings
	angles  Angles
}

// NewSequencer builds the sequences over out. Dwells go through r, so a
// fake clock makes them instant in tests.
func NewSequencer(out *ports.Outputs, d display.Display, r *sequence.Runner, t Timings, a Angles) *Sequencer {
	return &Sequencer{
		out:     out,
		display: d,
		runner:  r,
		timings: t,
		angles:  a,
	}
}

func (s *Sequencer) show(text string) func() error {
	return func() error { return display.Show(s.display, text) }
}

func set(p ports.Digital, on bool) func() error {
	return func() error { return p.Set(on) }
}

func (s *Sequencer) reject(angle int) func() error {
	return func() error { return s.out.Reject.SetAngle(angle) }
}

// Defect alerts, pulses the reject actuator and returns it home. The
// actuator is at home and LED/buzzer are off when Defect returns, whatever
// its angle on entry and even if a step fails or ctx is cancelled.
func (s *Sequencer) Defect(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			s.silence()
		}
	}()

	return s.runner.Run(ctx, "Defect",
		sequence.Action("display defect", s.show(MsgDefect)),
		sequence.Action("red LED on", set(s.out.RedLED, true)),
		sequence.Step{Name: "buzzer on", Do: set(s.out.Buzzer, true), Dwell: s.timings.Alert},
		sequence.Step{Name: "reject to extreme", Do: s.reject(s.angles.Extreme), Dwell: s.timings.RejectHold},
		sequence.Action("reject to home", s.reject(s.angles.Home)),
		sequence.Action("red LED off", set(s.out.RedLED, false)),
		sequence.Action("buzzer off", set(s.out.Buzzer, false)),
		sequence.Action("display await", s.show(MsgAwait)),
	)
}

// silence is the failure path of Defect: best effort, every output is tried.
func (s *Sequencer) silence() {
	if err := s.out.Reject.SetAngle(s.angles.Home); err != nil {
		debug.Error(err)
	}
	if err := s.out.RedLED.Set(false); err != nil {
		debug.Error(err)
	}
	if err := s.out.Buzzer.Set(false); err != nil {
		debug.Error(err)
	}
}

// Normal lights the green LED for the accept dwell.
func (s *Sequencer) Normal(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			if gerr := s.out.GreenLED.Set(false); gerr != nil {
				debug.Error(gerr)
			}
		}
	}()

	return s.runner.Run(ctx, "Normal",
		sequence.Action("display normal", s.show(MsgNormal)),
		sequence.Step{Name: "green LED on", Do: set(s.out.GreenLED, true), Dwell: s.timings.NormalHold},
		sequence.Action("green LED off", set(s.out.GreenLED, false)),
		sequence.Action("display await", s.show(MsgAwait)),
	)
}

// Reset forces LEDs and buzzer off and the actuator home regardless of
// their current state. Calling it repeatedly yields the same final state.
func (s *Sequencer) Reset(ctx context.Context) error {
	return s.runner.Run(ctx, "Reset",
		sequence.Action("red LED off", set(s.out.RedLED, false)),
		sequence.Action("green LED off", set(s.out.GreenLED, false)),
		sequence.Action("buzzer off", set(s.out.Buzzer, false)),
		sequence.Step{Name: "reject to home", Do: s.reject(s.angles.Home), Dwell: s.timings.ResetConfirm},
		sequence.Action("display all off", s.show(MsgAllOff)),
	)
}
