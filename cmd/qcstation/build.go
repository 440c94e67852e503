package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cjeanneret/qcstation/internal/config"
	"github.com/cjeanneret/qcstation/internal/debug"
	"github.com/cjeanneret/qcstation/internal/hw/camera"
	"github.com/cjeanneret/qcstation/internal/hw/display"
	"github.com/cjeanneret/qcstation/internal/hw/gpio"
	"github.com/cjeanneret/qcstation/internal/hw/ports"
	"github.com/cjeanneret/qcstation/internal/hw/stepper"
	"github.com/cjeanneret/qcstation/internal/logic/actuator"
	"github.com/cjeanneret/qcstation/internal/logic/process"
	"github.com/cjeanneret/qcstation/internal/logic/sequence"
	"github.com/cjeanneret/qcstation/internal/metrics"
	"github.com/cjeanneret/qcstation/internal/station"
)

// assembly is the fully wired station and the parts shutdown needs.
type assembly struct {
	station  *station.Station
	actuator *actuator.Sequencer
	stepper  *stepper.Sequencer
	outputs  *ports.Outputs
	screen   *display.Memory
	display  display.Display
}

// build wires every component from cfg. A nil clock means wall-clock dwells.
func build(cfg *config.Config, drv gpio.Driver, host *station.HostWriter, reg prometheus.Registerer, clock sequence.Clock) (*assembly, error) {
	debug.Section("Hardware")

	debug.Step(1, "Outputs")
	outputs, err := newOutputs(cfg, drv)
	if err != nil {
		return nil, err
	}

	debug.Step(2, "Stepper")
	debug.PrintStruct("Stepper config", cfg.Stepper)
	stp, err := stepper.NewSequencer(drv, stepper.Config{
		Pins:        cfg.Stepper.Pins,
		StepsPerRev: cfg.Stepper.StepsPerRev,
		StepDelay:   cfg.StepDelay(),
	}, clock)
	if err != nil {
		return nil, errors.Wrap(err, "init stepper")
	}

	debug.Step(3, "Display and camera")
	screen := display.NewMemory()
	disp := display.Tee{screen, display.Console{}}

	var cam camera.Camera = camera.NewHostSignal(host)
	if cfg.Outputs.CapturePin != 0 {
		cam, err = camera.NewGPIOTrigger(drv, cfg.Outputs.CapturePin, cfg.CapturePulse(), clock, cam)
		if err != nil {
			return nil, err
		}
		debug.Value("Capture trigger pin", cfg.Outputs.CapturePin)
	}

	m := metrics.New(reg)
	runner := sequence.NewRunner(clock)

	act := actuator.NewSequencer(outputs, disp, runner, actuator.Timings{
		Alert:        cfg.AlertDuration(),
		RejectHold:   cfg.RejectHoldDuration(),
		NormalHold:   cfg.NormalHoldDuration(),
		ResetConfirm: cfg.ResetConfirmDuration(),
	}, actuator.Angles{Home: cfg.Reject.HomeAngle, Extreme: cfg.Reject.ExtremeAngle})

	orch := process.NewOrchestrator(stp, cam, outputs.LEDStrip, disp, runner, process.Timings{
		Settle:  cfg.SettleDuration(),
		Capture: cfg.CaptureDuration(),
	}, m)

	st := station.New(station.Deps{
		Actuator: act,
		Process:  orch,
		Display:  disp,
		Outputs:  outputs,
		Host:     host,
		Phase:    stp,
		Screen:   screen,
		Metrics:  m,
	})

	return &assembly{
		station:  st,
		actuator: act,
		stepper:  stp,
		outputs:  outputs,
		screen:   screen,
		display:  disp,
	}, nil
}

// newOutputs binds each output to its pin, or to memory when the pin is 0.
func newOutputs(cfg *config.Config, drv gpio.Driver) (*ports.Outputs, error) {
	digital := func(pin int, name string) (ports.Digital, error) {
		if pin == 0 {
			debug.Verbose("%s: not wired, kept in memory", name)
			return &ports.Memory{}, nil
		}
		return ports.NewPin(drv, pin, name)
	}

	var out ports.Outputs
	var err error
	if out.RedLED, err = digital(cfg.Outputs.RedLEDPin, "red_led"); err != nil {
		return nil, err
	}
	if out.GreenLED, err = digital(cfg.Outputs.GreenLEDPin, "green_led"); err != nil {
		return nil, err
	}
	if out.Buzzer, err = digital(cfg.Outputs.BuzzerPin, "buzzer"); err != nil {
		return nil, err
	}
	if out.LEDStrip, err = digital(cfg.Outputs.LEDStripPin, "led_strip"); err != nil {
		return nil, err
	}

	minPulse, maxPulse := cfg.ServoPulseRange()
	servo, err := ports.NewServo(drv, ports.ServoConfig{
		Pin:       cfg.Reject.Pin,
		MinPulse:  minPulse,
		MaxPulse:  maxPulse,
		HomeAngle: cfg.Reject.HomeAngle,
	}, "reject")
	if err != nil {
		return nil, errors.Wrap(err, "init reject actuator")
	}
	out.Reject = servo
	return &out, nil
}

// greet shows the idle message once the hardware is up.
func (a *assembly) greet() error {
	return display.Show(a.display, actuator.MsgAwait)
}

// shutdown drives every output to idle and releases the coils. It runs
// after the control loop has stopped, so nothing else holds the slot.
func (a *assembly) shutdown(ctx context.Context) {
	debug.Section("Shutdown")
	if err := a.actuator.Reset(ctx); err != nil {
		debug.Error(err)
	}
	if err := a.outputs.LEDStrip.Set(false); err != nil {
		debug.Error(err)
	}
	if err := a.stepper.Release(); err != nil {
		debug.Error(err)
	}
}
