// Package station ties the command interpreter to the sequences and owns
// the single sequence slot: at most one sequence runs at any instant.
package station

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/cjeanneret/qcstation/internal/debug"
	"github.com/cjeanneret/qcstation/internal/hw/display"
	"github.com/cjeanneret/qcstation/internal/hw/ports"
	"github.com/cjeanneret/qcstation/internal/metrics"
)

// ErrBusy is returned when a command arrives while a sequence is running.
var ErrBusy = errors.New("station busy")

// MsgUnknown is displayed for unrecognized input.
const MsgUnknown = "Unknown Command"

// State of the station. Idle is both initial and terminal.
type State int

const (
	Idle State = iota
	Processing
	Alerting
	Accepting
)

func (s State) String() string {
	switch s {
	case Processing:
		return "processing"
	case Alerting:
		return "alerting"
	case Accepting:
		return "accepting"
	default:
		return "idle"
	}
}

// Actuator runs the defect, normal and reset sequences.
type Actuator interface {
	Defect(ctx context.Context) error
	Normal(ctx context.Context) error
	Reset(ctx context.Context) error
}

// Process runs one inspection cycle.
type Process interface {
	Run(ctx context.Context) error
}

// PhaseReader reports the stepper phase index.
type PhaseReader interface {
	Phase() int
}

// TextReader reports what the display currently shows.
type TextReader interface {
	Text() []string
}

// Deps are the collaborators of a Station. Phase, Screen and Metrics are
// optional.
type Deps struct {
	Actuator Actuator
	Process  Process
	Display  display.Display
	Outputs  *ports.Outputs
	Host     *HostWriter
	Phase    PhaseReader
	Screen   TextReader
	Metrics  *metrics.Metrics
}

// Event is published on every state transition.
type Event struct {
	State   State
	Command Command
	Err     error
}

// Station owns the single sequence slot and the state machine. Commands
// from the serial loop and the web surface both go through TryStart.
type Station struct {
	deps Deps

	mu        sync.Mutex
	state     State
	busy      bool
	last      Command
	listeners []func(Event)
}

// New returns an idle station. Deps.Metrics may be nil.
func New(d Deps) *Station {
	return &Station{deps: d}
}

// Subscribe registers fn for state transitions. fn must not block.
func (s *Station) Subscribe(fn func(Event)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// TryStart claims the sequence slot for cmd. On success the returned
// function must be called exactly once; it acknowledges the command to the
// host, runs the handler and frees the slot. While another sequence holds
// the slot every command, RESET included, fails with ErrBusy.
func (s *Station) TryStart(cmd Command) (func(ctx context.Context) error, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		s.deps.Metrics.Busy()
		debug.Verbose("Rejected %s: %s in progress", cmd.Kind, s.State())
		return nil, errors.Wrapf(ErrBusy, "%s rejected", cmd.Kind)
	}
	s.busy = true
	s.mu.Unlock()

	return func(ctx context.Context) error {
		return s.run(ctx, cmd)
	}, nil
}

// Dispatch interprets line and runs its handler to completion.
func (s *Station) Dispatch(ctx context.Context, line string) error {
	cmd := Interpret(line)
	run, err := s.TryStart(cmd)
	if err != nil {
		return err
	}
	return run(ctx)
}

func (s *Station) run(ctx context.Context, cmd Command) (err error) {
	debug.Command(cmd.Raw, cmd.Kind.String())
	s.deps.Metrics.Command(cmd.Kind.String())

	next, handler := s.handler(cmd)
	s.transition(next, cmd, nil, false)
	defer func() {
		s.transition(Idle, cmd, err, true)
	}()

	if err := s.deps.Host.WriteLine(cmd.Ack()); err != nil {
		return err
	}

	start := time.Now()
	if err := handler(ctx); err != nil {
		return err
	}
	if cmd.Kind != Unknown {
		s.deps.Metrics.Sequence(cmd.Kind.String(), time.Since(start))
	}
	return nil
}

func (s *Station) handler(cmd Command) (State, func(context.Context) error) {
	switch cmd.Kind {
	case Start:
		return Processing, s.deps.Process.Run
	case Defect:
		return Alerting, s.deps.Actuator.Defect
	case Normal:
		return Accepting, s.deps.Actuator.Normal
	case Reset:
		// Reset returns the station to Idle immediately; the slot stays
		// claimed until its confirmation dwell ends.
		return Idle, s.deps.Actuator.Reset
	default:
		return Idle, func(context.Context) error {
			return display.Show(s.deps.Display, MsgUnknown)
		}
	}
}

// transition sets the state and, when release is set, frees the slot in
// the same critical section.
func (s *Station) transition(to State, cmd Command, err error, release bool) {
	s.mu.Lock()
	s.state = to
	s.last = cmd
	if release {
		s.busy = false
	}
	listeners := append([]func(Event){}, s.listeners...)
	s.mu.Unlock()

	if err != nil {
		debug.Error(err)
	}
	debug.Live("State: %s", to)
	ev := Event{State: to, Command: cmd, Err: err}
	for _, fn := range listeners {
		fn(ev)
	}
}

// State returns the current state.
func (s *Station) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Busy reports whether a sequence holds the slot.
func (s *Station) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Snapshot is a read-only view of the station for status surfaces.
type Snapshot struct {
	State       string         `json:"state"`
	Busy        bool           `json:"busy"`
	LastCommand string         `json:"last_command,omitempty"`
	Phase       int            `json:"phase"`
	Outputs     ports.Snapshot `json:"outputs"`
	Display     []string       `json:"display,omitempty"`
}

// Snapshot reads state, outputs, phase and display without claiming the slot.
func (s *Station) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		State:       s.state.String(),
		Busy:        s.busy,
		LastCommand: s.last.Raw,
	}
	s.mu.Unlock()

	if s.deps.Outputs != nil {
		snap.Outputs = s.deps.Outputs.Snapshot()
	}
	if s.deps.Phase != nil {
		snap.Phase = s.deps.Phase.Phase()
	}
	if s.deps.Screen != nil {
		snap.Display = s.deps.Screen.Text()
	}
	return snap
}
