package camera

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/cjeanneret/qcstation/internal/debug"
	"github.com/cjeanneret/qcstation/internal/hw/gpio"
	"github.com/cjeanneret/qcstation/internal/logic/sequence"
)

// CapturedMessage is the notification sent to the host once per quarter-turn.
const CapturedMessage = "Image Captured"

// Camera is the high-level interface used by the rest of the application.
// The station does not own an image sensor; "shooting" tells whoever
// captures images (the host, a trigger line) that the part is in position.
type Camera interface {
	// Shoot signals one capture.
	Shoot(ctx context.Context) error
}

// HostSignal notifies the host over the serial link.
type HostSignal struct {
	mu sync.Mutex
	w  io.Writer
}

// NewHostSignal writes one CapturedMessage line to w per Shoot.
func NewHostSignal(w io.Writer) *HostSignal {
	return &HostSignal{w: w}
}

func (h *HostSignal) Shoot(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := io.WriteString(h.w, CapturedMessage+"\n"); err != nil {
		return errors.Wrap(err, "notify host of capture")
	}
	return nil
}

// GPIOTrigger pulses a trigger line (e.g. an external camera's shutter
// input, active HIGH) and then forwards to the next Camera.
//
// Trigger sequence:
// 1. trigger pin to HIGH
// 2. hold for the pulse duration
// 3. trigger pin back to LOW
// 4. notify next (usually the host)
type GPIOTrigger struct {
	gpio  gpio.Driver
	pin   int
	pulse time.Duration
	clock sequence.Clock
	next  Camera
}

// NewGPIOTrigger configures pin as an output held LOW (inactive).
func NewGPIOTrigger(g gpio.Driver, pin int, pulse time.Duration, clock sequence.Clock, next Camera) (*GPIOTrigger, error) {
	if err := g.SetupPin(pin, gpio.Output); err != nil {
		return nil, errors.Wrapf(err, "setup trigger pin %d", pin)
	}
	if err := g.WritePin(pin, gpio.Low); err != nil {
		return nil, errors.Wrapf(err, "init trigger pin %d", pin)
	}
	if clock == nil {
		clock = sequence.RealClock{}
	}
	return &GPIOTrigger{gpio: g, pin: pin, pulse: pulse, clock: clock, next: next}, nil
}

func (c *GPIOTrigger) Shoot(ctx context.Context) error {
	debug.Verbose("Camera: pulsing trigger (pin %d -> HIGH for %v)", c.pin, c.pulse)
	if err := c.gpio.WritePin(c.pin, gpio.High); err != nil {
		return err
	}

	sleepErr := c.clock.Sleep(ctx, c.pulse)

	// Always release the line, even when interrupted.
	if err := c.gpio.WritePin(c.pin, gpio.Low); err != nil {
		return err
	}
	if sleepErr != nil {
		return sleepErr
	}

	if c.next == nil {
		return nil
	}
	return c.next.Shoot(ctx)
}
