package gpio

import (
	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"

	"github.com/cjeanneret/qcstation/internal/debug"
)

// RPiDriver is the real implementation for Raspberry Pi using go-rpio.
type RPiDriver struct {
	pins map[int]rpio.Pin
	pwm  bool // PWM clock started
}

// NewRPiRealDriver creates a real GPIO driver for Raspberry Pi.
// Requires running on a Raspberry Pi with access to /dev/gpiomem or as root.
func NewRPiRealDriver() (*RPiDriver, error) {
	debug.Info("Initializing real GPIO driver (go-rpio)")

	if err := rpio.Open(); err != nil {
		return nil, errors.Wrap(err, "failed to open GPIO (are you running on a Raspberry Pi?)")
	}

	debug.Verbose("GPIO memory mapped successfully")

	return &RPiDriver{
		pins: make(map[int]rpio.Pin),
	}, nil
}

func (r *RPiDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)

	p := rpio.Pin(pin)
	r.pins[pin] = p

	switch mode {
	case Input:
		p.Input()
	case Output:
		p.Output()
	case PWM:
		p.Pwm()
	default:
		return errors.Errorf("unknown pin mode: %d", mode)
	}

	return nil
}

func (r *RPiDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)

	p, ok := r.pins[pin]
	if !ok {
		// Pin not setup yet, setup as output
		if err := r.SetupPin(pin, Output); err != nil {
			return err
		}
		p = r.pins[pin]
	}

	if level == High {
		p.High()
	} else {
		p.Low()
	}

	return nil
}

// SetupPWM switches pin to its hardware PWM function. Only PWM-capable pins
// (BCM 12, 13, 18, 19 on most boards) produce a signal.
func (r *RPiDriver) SetupPWM(pin int, clockHz int) error {
	if clockHz <= 0 {
		return errors.Errorf("pwm clock must be > 0, got %d", clockHz)
	}
	if err := r.SetupPin(pin, PWM); err != nil {
		return err
	}
	r.pins[pin].Freq(clockHz)
	if !r.pwm {
		rpio.StartPwm()
		r.pwm = true
	}
	return nil
}

func (r *RPiDriver) WritePWM(pin int, dutyLen, cycleLen uint32) error {
	debug.GPIO("WritePWM", pin, debug.Fmt("%d/%d", dutyLen, cycleLen))

	p, ok := r.pins[pin]
	if !ok {
		return errors.Errorf("pin %d is not set up for PWM", pin)
	}
	p.DutyCycle(dutyLen, cycleLen)
	return nil
}

func (r *RPiDriver) Close() error {
	debug.Trace("GPIO Close (real driver)")

	if r.pwm {
		rpio.StopPwm()
	}

	// Reset all pins to input (safe state)
	for pin, p := range r.pins {
		debug.Verbose("Resetting pin %d to input", pin)
		p.Input()
	}

	return rpio.Close()
}
