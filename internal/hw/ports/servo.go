package ports

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/cjeanneret/qcstation/internal/debug"
	"github.com/cjeanneret/qcstation/internal/hw/gpio"
)

// ErrAngleOutOfRange is returned for angles outside 0-180°.
var ErrAngleOutOfRange = errors.New("servo angle out of range")

const (
	MinAngle = 0
	MaxAngle = 180

	// One PWM tick per microsecond, 20ms frame (50Hz).
	servoClockHz = 1_000_000
	servoFrameUs = 20_000
)

// ServoConfig holds the pulse range of the reject actuator servo.
type ServoConfig struct {
	Pin       int
	MinPulse  time.Duration // pulse width at 0°
	MaxPulse  time.Duration // pulse width at 180°
	HomeAngle int
}

// Servo is an Angular port driven by hardware PWM.
type Servo struct {
	mu    sync.RWMutex
	gpio  gpio.Driver
	cfg   ServoConfig
	name  string
	angle int
}

// NewServo sets up the PWM pin and moves the servo to its home angle.
// Zero pulse widths default to 500µs..2500µs.
func NewServo(g gpio.Driver, cfg ServoConfig, name string) (*Servo, error) {
	if cfg.MinPulse <= 0 {
		cfg.MinPulse = 500 * time.Microsecond
	}
	if cfg.MaxPulse <= 0 {
		cfg.MaxPulse = 2500 * time.Microsecond
	}
	if cfg.MaxPulse <= cfg.MinPulse {
		return nil, errors.Errorf("%s: max pulse %v must exceed min pulse %v", name, cfg.MaxPulse, cfg.MinPulse)
	}
	if err := g.SetupPWM(cfg.Pin, servoClockHz); err != nil {
		return nil, errors.Wrapf(err, "setup %s (pin %d)", name, cfg.Pin)
	}

	s := &Servo{gpio: g, cfg: cfg, name: name}
	if err := s.SetAngle(cfg.HomeAngle); err != nil {
		return nil, err
	}
	return s, nil
}

// SetAngle drives the servo to degrees (0-180).
func (s *Servo) SetAngle(degrees int) error {
	if degrees < MinAngle || degrees > MaxAngle {
		return errors.Wrapf(ErrAngleOutOfRange, "%s: %d°", s.name, degrees)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.gpio.WritePWM(s.cfg.Pin, s.pulseTicks(degrees), servoFrameUs); err != nil {
		return errors.Wrapf(err, "write %s", s.name)
	}
	s.angle = degrees
	debug.Output(s.name, debug.Fmt("%d°", degrees))
	return nil
}

func (s *Servo) Angle() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.angle
}

// pulseTicks maps an angle linearly onto the pulse range, in microseconds.
func (s *Servo) pulseTicks(degrees int) uint32 {
	span := s.cfg.MaxPulse - s.cfg.MinPulse
	pulse := s.cfg.MinPulse + span*time.Duration(degrees)/MaxAngle
	return uint32(pulse / time.Microsecond)
}
