// Package ports exposes the station's device outputs as a small set of
// named digital and angular ports, independent of the pin-level driver.
package ports

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/cjeanneret/qcstation/internal/debug"
	"github.com/cjeanneret/qcstation/internal/hw/gpio"
)

// Digital is a binary output (LED, buzzer, light strip).
type Digital interface {
	Set(on bool) error
	IsOn() bool
}

// Angular is a positional output such as a hobby servo.
type Angular interface {
	SetAngle(degrees int) error
	Angle() int
}

// Pin is a Digital port backed by one GPIO output.
type Pin struct {
	mu   sync.RWMutex
	gpio gpio.Driver
	pin  int
	name string
	on   bool
}

// NewPin configures pin as an output driven LOW.
func NewPin(g gpio.Driver, pin int, name string) (*Pin, error) {
	if err := g.SetupPin(pin, gpio.Output); err != nil {
		return nil, errors.Wrapf(err, "setup %s (pin %d)", name, pin)
	}
	p := &Pin{gpio: g, pin: pin, name: name}
	if err := p.Set(false); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pin) Set(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.gpio.WritePin(p.pin, gpio.Level(on)); err != nil {
		return errors.Wrapf(err, "write %s", p.name)
	}
	p.on = on
	debug.Output(p.name, on)
	return nil
}

func (p *Pin) IsOn() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.on
}

// Name returns the port name used in logs.
func (p *Pin) Name() string {
	return p.name
}

// Outputs groups every device output owned by the control loop.
type Outputs struct {
	RedLED   Digital
	GreenLED Digital
	Buzzer   Digital
	LEDStrip Digital
	Reject   Angular
}

// Snapshot is a point-in-time copy of every output.
type Snapshot struct {
	RedLED      bool `json:"red_led"`
	GreenLED    bool `json:"green_led"`
	Buzzer      bool `json:"buzzer"`
	LEDStrip    bool `json:"led_strip"`
	RejectAngle int  `json:"reject_angle"`
}

// Snapshot reads the current state of every output.
func (o *Outputs) Snapshot() Snapshot {
	return Snapshot{
		RedLED:      o.RedLED.IsOn(),
		GreenLED:    o.GreenLED.IsOn(),
		Buzzer:      o.Buzzer.IsOn(),
		LEDStrip:    o.LEDStrip.IsOn(),
		RejectAngle: o.Reject.Angle(),
	}
}

// Memory is an in-process Digital port, used when a function has no pin.
type Memory struct {
	mu sync.RWMutex
	on bool
}

func (m *Memory) Set(on bool) error {
	m.mu.Lock()
	m.on = on
	m.mu.Unlock()
	return nil
}

func (m *Memory) IsOn() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.on
}
