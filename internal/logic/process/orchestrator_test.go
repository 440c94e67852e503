package process

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjeanneret/qcstation/internal/debug"
	"github.com/cjeanneret/qcstation/internal/hw/stepper"
	"github.com/cjeanneret/qcstation/internal/logic/sequence"
	"github.com/cjeanneret/qcstation/internal/metrics"
	"github.com/cjeanneret/qcstation/internal/testutils"
)

var testTimings = Timings{Settle: 500 * time.Millisecond, Capture: 2 * time.Second}

type fakeCamera struct {
	log  *testutils.EventLog
	fail error
	n    int
}

func (c *fakeCamera) Shoot(ctx context.Context) error {
	if c.fail != nil {
		return c.fail
	}
	c.n++
	c.log.Add("Image Captured")
	return nil
}

// loggingRotator wraps the real sequencer and logs each request.
type loggingRotator struct {
	*stepper.Sequencer
	log *testutils.EventLog
}

func (r loggingRotator) Rotate(ctx context.Context, degrees int) (int, error) {
	n, err := r.Sequencer.Rotate(ctx, degrees)
	r.log.Add("rotate=%d (%d steps)", degrees, n)
	return n, err
}

type rig struct {
	log     *testutils.EventLog
	clock   *testutils.FakeClock
	drv     *testutils.RecordingDriver
	stepper *stepper.Sequencer
	strip   *testutils.FakeDigital
	camera  *fakeCamera
	metrics *metrics.Metrics
	orch    *Orchestrator
}

func newRig(t *testing.T, stepsPerRev int) *rig {
	t.Helper()
	log := &testutils.EventLog{}
	drv := &testutils.RecordingDriver{}
	seq, err := stepper.NewSequencer(drv, stepper.Config{
		Pins:        [4]int{17, 18, 27, 22},
		StepsPerRev: stepsPerRev,
		StepDelay:   2 * time.Millisecond,
	}, &testutils.FakeClock{})
	require.NoError(t, err)

	r := &rig{
		log:     log,
		clock:   testutils.LoggingClock(log),
		drv:     drv,
		stepper: seq,
		strip:   &testutils.FakeDigital{Name: "strip", Log: log},
		camera:  &fakeCamera{log: log},
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	r.orch = NewOrchestrator(loggingRotator{seq, log}, r.camera, r.strip, testutils.FakeDisplay{Log: log},
		sequence.NewRunner(r.clock), testTimings, r.metrics)
	return r
}

func TestRun_Order(t *testing.T) {
	r := newRig(t, 2048)
	require.NoError(t, r.orch.Run(context.Background()))

	want := []string{
		"display=Processing...",
		"strip=on",
		"sleep=500ms",
	}
	for i := 0; i < Positions; i++ {
		want = append(want, "rotate=90 (512 steps)", "sleep=2s", "Image Captured")
	}
	want = append(want, "strip=off", "display=Process Done")
	assert.Equal(t, want, r.log.Events())
}

func TestRun_FullTurnReturnsToStartPhase(t *testing.T) {
	for _, spr := range []int{2048, 2050, 4096, 200} {
		r := newRig(t, spr)
		start := r.stepper.Phase()
		require.NoError(t, r.orch.Run(context.Background()))

		assert.Equal(t, float64(spr), testutil.ToFloat64(r.metrics.Steps), "spr=%d", spr)
		if spr%4 == 0 {
			assert.Equal(t, start, r.stepper.Phase(), "spr=%d", spr)
		}
	}
}

func TestRun_FourCaptures(t *testing.T) {
	r := newRig(t, 2048)
	require.NoError(t, r.orch.Run(context.Background()))
	assert.Equal(t, Positions, r.camera.n)
	assert.Equal(t, float64(Positions), testutil.ToFloat64(r.metrics.Captures))
}

func TestRun_CoilsReleasedAfterCycle(t *testing.T) {
	r := newRig(t, 2048)
	require.NoError(t, r.orch.Run(context.Background()))
	for pin, level := range r.drv.Levels() {
		assert.False(t, bool(level), "winding on pin %d left energized", pin)
	}
}

func TestRun_CameraFailureTurnsStripOff(t *testing.T) {
	r := newRig(t, 2048)
	r.camera.fail = errors.New("host gone")

	err := r.orch.Run(context.Background())
	assert.ErrorContains(t, err, "capture 1")
	assert.False(t, r.strip.IsOn())
}

func TestRun_FailureNamesStepWithLoggingOff(t *testing.T) {
	debug.Init(debug.LevelOff)
	r := newRig(t, 2048)
	r.drv.FailWrites = errors.New("stuck")

	err := r.orch.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Process: quarter-turn 1: ")
	assert.ErrorContains(t, err, "stuck")
	assert.False(t, r.strip.IsOn())
}

func TestRun_CancelledTurnsStripOff(t *testing.T) {
	r := newRig(t, 2048)
	ctx, cancel := context.WithCancel(context.Background())
	r.clock.OnSleep = func(d time.Duration) {
		if d == testTimings.Capture {
			cancel()
		}
	}

	err := r.orch.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, r.strip.IsOn())
	assert.Zero(t, r.camera.n)
}
