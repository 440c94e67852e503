package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes bounds the size of a config file.
const MaxConfigFileBytes = 64 * 1024

// maxBCMPin is the highest GPIO usable on the 40-pin header.
const maxBCMPin = 27

// pwmPins are the BCM pins wired to the hardware PWM channels.
var pwmPins = map[int]bool{12: true, 13: true, 18: true, 19: true}

// StepperConfig holds the configuration for the four-phase turntable motor.
type StepperConfig struct {
	Pins        [4]int `yaml:"pins"`          // windings A, B, C, D (BCM)
	StepsPerRev int    `yaml:"steps_per_rev"` // 2048 for a 28BYJ-48 in full-step mode
	StepDelayUs int    `yaml:"step_delay_us"` // dwell between two steps
}

// OutputsConfig lists the binary outputs. A pin of 0 keeps the output in
// memory only (no wiring), which is handy on a bench.
type OutputsConfig struct {
	RedLEDPin   int `yaml:"red_led_pin"`
	GreenLEDPin int `yaml:"green_led_pin"`
	BuzzerPin   int `yaml:"buzzer_pin"`
	LEDStripPin int `yaml:"led_strip_pin"`
	CapturePin  int `yaml:"capture_pin"` // optional camera trigger, 0 = not used
}

// RejectConfig describes the reject actuator servo.
type RejectConfig struct {
	Pin          int `yaml:"pin"`           // hardware PWM pin (12, 13, 18 or 19)
	HomeAngle    int `yaml:"home_angle"`    // resting position
	ExtremeAngle int `yaml:"extreme_angle"` // reject position
	MinPulseUs   int `yaml:"min_pulse_us"`  // pulse at 0°
	MaxPulseUs   int `yaml:"max_pulse_us"`  // pulse at 180°
}

// TimingsConfig holds every fixed dwell, in milliseconds.
type TimingsConfig struct {
	AlertMs        int `yaml:"alert_ms"`
	RejectHoldMs   int `yaml:"reject_hold_ms"`
	NormalHoldMs   int `yaml:"normal_hold_ms"`
	ResetConfirmMs int `yaml:"reset_confirm_ms"`
	SettleMs       int `yaml:"settle_ms"`
	CaptureMs      int `yaml:"capture_ms"`
	CapturePulseMs int `yaml:"capture_pulse_ms"`
}

// SerialConfig selects the host link.
type SerialConfig struct {
	Port     string `yaml:"port"` // e.g. /dev/ttyACM0
	BaudRate int    `yaml:"baud_rate"`
	PollMs   int    `yaml:"poll_ms"` // read timeout; one "Waiting..." per empty poll
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Stepper  StepperConfig  `yaml:"stepper"`
	Outputs  OutputsConfig  `yaml:"outputs"`
	Reject   RejectConfig   `yaml:"reject"`
	Timings  TimingsConfig  `yaml:"timings"`
	Serial   SerialConfig   `yaml:"serial"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// ValidateConfigPath accepts only a .yaml file whose parent directory is
// named "configs", after cleaning.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return errors.Errorf("config path %q must not contain '..'", path)
		}
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return errors.Errorf("config path %q must end in .yaml", path)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return errors.Wrapf(err, "resolve config path %q", path)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return errors.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file over Default and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}
	if len(data) > MaxConfigFileBytes {
		return nil, errors.Errorf("config file exceeds %d bytes", MaxConfigFileBytes)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal yaml")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used for every key a file leaves out.
// Load decodes over it, so an explicit 0 in the file is kept.
func Default() Config {
	return Config{
		Stepper: StepperConfig{StepsPerRev: 2048, StepDelayUs: 2000},
		Reject: RejectConfig{
			HomeAngle:    0,
			ExtremeAngle: 180,
			MinPulseUs:   500,
			MaxPulseUs:   2500,
		},
		Timings: TimingsConfig{
			AlertMs:        1000,
			RejectHoldMs:   1000,
			NormalHoldMs:   2000,
			ResetConfirmMs: 500,
			SettleMs:       500,
			CaptureMs:      2000,
			CapturePulseMs: 100,
		},
		Serial: SerialConfig{BaudRate: 9600, PollMs: 1000},
	}
}

// Validate checks ranges and pin assignments.
func (c *Config) Validate() error {
	if c.Stepper.StepsPerRev <= 0 {
		return errors.Errorf("stepper.steps_per_rev must be > 0, got %d", c.Stepper.StepsPerRev)
	}
	if c.Stepper.StepDelayUs < 0 {
		return errors.Errorf("stepper.step_delay_us must be > 0, got %d", c.Stepper.StepDelayUs)
	}

	used := map[int]string{}
	claim := func(name string, pin int, required bool) error {
		if pin == 0 && !required {
			return nil
		}
		if pin < 1 || pin > maxBCMPin {
			return errors.Errorf("%s must be a BCM pin between 1 and %d, got %d", name, maxBCMPin, pin)
		}
		if other, ok := used[pin]; ok {
			return errors.Errorf("%s: pin %d already used by %s", name, pin, other)
		}
		used[pin] = name
		return nil
	}

	for i, p := range c.Stepper.Pins {
		if err := claim(fmt.Sprintf("stepper.pins[%d]", i), p, true); err != nil {
			return err
		}
	}
	outputs := []struct {
		name string
		pin  int
	}{
		{"outputs.red_led_pin", c.Outputs.RedLEDPin},
		{"outputs.green_led_pin", c.Outputs.GreenLEDPin},
		{"outputs.buzzer_pin", c.Outputs.BuzzerPin},
		{"outputs.led_strip_pin", c.Outputs.LEDStripPin},
		{"outputs.capture_pin", c.Outputs.CapturePin},
	}
	for _, o := range outputs {
		if err := claim(o.name, o.pin, false); err != nil {
			return err
		}
	}
	if err := claim("reject.pin", c.Reject.Pin, true); err != nil {
		return err
	}
	if !pwmPins[c.Reject.Pin] {
		return errors.Errorf("reject.pin %d has no hardware PWM (use 12, 13, 18 or 19)", c.Reject.Pin)
	}

	r := c.Reject
	if r.HomeAngle < 0 || r.HomeAngle > 180 {
		return errors.Errorf("reject.home_angle must be between 0 and 180, got %d", r.HomeAngle)
	}
	if r.ExtremeAngle < 0 || r.ExtremeAngle > 180 {
		return errors.Errorf("reject.extreme_angle must be between 0 and 180, got %d", r.ExtremeAngle)
	}
	if r.HomeAngle == r.ExtremeAngle {
		return errors.Errorf("reject.extreme_angle must differ from home_angle (%d)", r.HomeAngle)
	}
	if r.MinPulseUs <= 0 || r.MaxPulseUs <= r.MinPulseUs {
		return errors.Errorf("reject pulse range %d..%dus is invalid", r.MinPulseUs, r.MaxPulseUs)
	}

	t := c.Timings
	for name, ms := range map[string]int{
		"alert_ms":         t.AlertMs,
		"reject_hold_ms":   t.RejectHoldMs,
		"normal_hold_ms":   t.NormalHoldMs,
		"reset_confirm_ms": t.ResetConfirmMs,
		"settle_ms":        t.SettleMs,
		"capture_ms":       t.CaptureMs,
		"capture_pulse_ms": t.CapturePulseMs,
	} {
		if ms < 0 {
			return errors.Errorf("timings.%s must be >= 0, got %d", name, ms)
		}
	}

	if c.Serial.BaudRate <= 0 {
		return errors.Errorf("serial.baud_rate must be > 0, got %d", c.Serial.BaudRate)
	}
	if c.Serial.PollMs <= 0 {
		return errors.Errorf("serial.poll_ms must be > 0, got %d", c.Serial.PollMs)
	}
	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return errors.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	return nil
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// StepDelay returns the dwell between two stepper steps.
func (c *Config) StepDelay() time.Duration {
	return time.Duration(c.Stepper.StepDelayUs) * time.Microsecond
}

func (c *Config) AlertDuration() time.Duration        { return ms(c.Timings.AlertMs) }
func (c *Config) RejectHoldDuration() time.Duration   { return ms(c.Timings.RejectHoldMs) }
func (c *Config) NormalHoldDuration() time.Duration   { return ms(c.Timings.NormalHoldMs) }
func (c *Config) ResetConfirmDuration() time.Duration { return ms(c.Timings.ResetConfirmMs) }
func (c *Config) SettleDuration() time.Duration       { return ms(c.Timings.SettleMs) }
func (c *Config) CaptureDuration() time.Duration      { return ms(c.Timings.CaptureMs) }
func (c *Config) CapturePulse() time.Duration         { return ms(c.Timings.CapturePulseMs) }

// PollInterval returns the serial read timeout.
func (c *Config) PollInterval() time.Duration {
	return ms(c.Serial.PollMs)
}

// ServoPulseRange returns the pulse widths at 0° and 180°.
func (c *Config) ServoPulseRange() (time.Duration, time.Duration) {
	return time.Duration(c.Reject.MinPulseUs) * time.Microsecond,
		time.Duration(c.Reject.MaxPulseUs) * time.Microsecond
}
