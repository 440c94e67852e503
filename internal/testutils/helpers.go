package testutils

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/qcstation/internal/hw/gpio"
)

// GPIOCall is one recorded driver operation.
type GPIOCall struct {
	Op    string // "setup", "write", "pwm-setup", "pwm"
	Pin   int
	Level gpio.Level
	Duty  uint32
	Cycle uint32
}

// RecordingDriver records GPIO calls for verification.
type RecordingDriver struct {
	mu    sync.Mutex
	calls []GPIOCall
	// FailWrites makes every WritePin/WritePWM return this error.
	FailWrites error
}

var _ gpio.Driver = (*RecordingDriver)(nil)

func (d *RecordingDriver) record(c GPIOCall) {
	d.mu.Lock()
	d.calls = append(d.calls, c)
	d.mu.Unlock()
}

func (d *RecordingDriver) SetupPin(pin int, mode gpio.PinMode) error {
	d.record(GPIOCall{Op: "setup", Pin: pin})
	return nil
}

func (d *RecordingDriver) WritePin(pin int, level gpio.Level) error {
	if d.FailWrites != nil {
		return d.FailWrites
	}
	d.record(GPIOCall{Op: "write", Pin: pin, Level: level})
	return nil
}

func (d *RecordingDriver) SetupPWM(pin int, clockHz int) error {
	d.record(GPIOCall{Op: "pwm-setup", Pin: pin})
	return nil
}

func (d *RecordingDriver) WritePWM(pin int, dutyLen, cycleLen uint32) error {
	if d.FailWrites != nil {
		return d.FailWrites
	}
	d.record(GPIOCall{Op: "pwm", Pin: pin, Duty: dutyLen, Cycle: cycleLen})
	return nil
}

func (d *RecordingDriver) Close() error { return nil }

// Reset forgets all recorded calls (typically after construction).
func (d *RecordingDriver) Reset() {
	d.mu.Lock()
	d.calls = nil
	d.mu.Unlock()
}

// Calls returns a copy of every recorded call.
func (d *RecordingDriver) Calls() []GPIOCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]GPIOCall(nil), d.calls...)
}

// Writes returns the recorded digital writes.
func (d *RecordingDriver) Writes() []GPIOCall {
	var result []GPIOCall
	for _, c := range d.Calls() {
		if c.Op == "write" {
			result = append(result, c)
		}
	}
	return result
}

// WritesForPin returns the recorded digital writes on pin.
func (d *RecordingDriver) WritesForPin(pin int) []GPIOCall {
	var result []GPIOCall
	for _, c := range d.Writes() {
		if c.Pin == pin {
			result = append(result, c)
		}
	}
	return result
}

// Levels returns the last written level of each pin.
func (d *RecordingDriver) Levels() map[int]gpio.Level {
	levels := make(map[int]gpio.Level)
	for _, c := range d.Writes() {
		levels[c.Pin] = c.Level
	}
	return levels
}

// FakeClock records dwells instead of sleeping.
type FakeClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
	// OnSleep, when set, runs before each recorded dwell.
	OnSleep func(d time.Duration)
}

func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.OnSleep != nil {
		c.OnSleep(d)
	}
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return ctx.Err()
}

// Sleeps returns every recorded dwell in order.
func (c *FakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// Elapsed returns the simulated time spent sleeping.
func (c *FakeClock) Elapsed() time.Duration {
	var total time.Duration
	for _, d := range c.Sleeps() {
		total += d
	}
	return total
}

// Count returns how many dwells of exactly d were recorded.
func (c *FakeClock) Count(d time.Duration) int {
	n := 0
	for _, s := range c.Sleeps() {
		if s == d {
			n++
		}
	}
	return n
}

// EventLog is an ordered, shared record of fake device activity.
type EventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *EventLog) Add(format string, args ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

// Events returns a copy of the log.
func (l *EventLog) Events() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// Reset empties the log.
func (l *EventLog) Reset() {
	l.mu.Lock()
	l.events = nil
	l.mu.Unlock()
}

// FakeDigital is an on/off output that logs "<name>=on|off".
type FakeDigital struct {
	Name string
	Log  *EventLog
	Fail error

	mu sync.Mutex
	on bool
}

func (f *FakeDigital) Set(on bool) error {
	if f.Fail != nil {
		return f.Fail
	}
	f.mu.Lock()
	f.on = on
	f.mu.Unlock()
	state := "off"
	if on {
		state = "on"
	}
	f.Log.Add("%s=%s", f.Name, state)
	return nil
}

func (f *FakeDigital) IsOn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.on
}

// FakeAngular is a positional output that logs "<name>=<degrees>".
type FakeAngular struct {
	Name string
	Log  *EventLog
	Fail error

	mu    sync.Mutex
	angle int
}

func (f *FakeAngular) SetAngle(degrees int) error {
	if f.Fail != nil {
		return f.Fail
	}
	f.mu.Lock()
	f.angle = degrees
	f.mu.Unlock()
	f.Log.Add("%s=%d", f.Name, degrees)
	return nil
}

func (f *FakeAngular) Angle() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.angle
}

// FakeDisplay logs "display=<text>" for every print.
type FakeDisplay struct {
	Log *EventLog
}

func (FakeDisplay) Clear() error { return nil }

func (d FakeDisplay) Print(text string, line, column int) error {
	d.Log.Add("display=%s", text)
	return nil
}

// LoggingClock returns a FakeClock that logs "sleep=<d>" for every dwell.
func LoggingClock(log *EventLog) *FakeClock {
	return &FakeClock{OnSleep: func(d time.Duration) { log.Add("sleep=%v", d) }}
}
