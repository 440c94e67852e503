package ports

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjeanneret/qcstation/internal/hw/gpio"
	"github.com/cjeanneret/qcstation/internal/testutils"
)

// ---------- Pin ----------

func TestNewPin_InitializedLow(t *testing.T) {
	drv := &testutils.RecordingDriver{}
	p, err := NewPin(drv, 5, "red_led")
	require.NoError(t, err)

	assert.False(t, p.IsOn())
	writes := drv.WritesForPin(5)
	require.Len(t, writes, 1)
	assert.Equal(t, gpio.Low, writes[0].Level)
}

func TestPin_SetTracksState(t *testing.T) {
	drv := &testutils.RecordingDriver{}
	p, err := NewPin(drv, 6, "green_led")
	require.NoError(t, err)
	drv.Reset()

	require.NoError(t, p.Set(true))
	assert.True(t, p.IsOn())
	require.NoError(t, p.Set(false))
	assert.False(t, p.IsOn())

	writes := drv.WritesForPin(6)
	require.Len(t, writes, 2)
	assert.Equal(t, gpio.High, writes[0].Level)
	assert.Equal(t, gpio.Low, writes[1].Level)
}

func TestPin_WriteErrorKeepsState(t *testing.T) {
	drv := &testutils.RecordingDriver{}
	p, err := NewPin(drv, 13, "buzzer")
	require.NoError(t, err)

	drv.FailWrites = errors.New("stuck")
	assert.ErrorContains(t, p.Set(true), "write buzzer")
	assert.False(t, p.IsOn())
}

// ---------- Servo ----------

func TestNewServo_MovesHome(t *testing.T) {
	drv := &testutils.RecordingDriver{}
	s, err := NewServo(drv, ServoConfig{Pin: 12}, "reject")
	require.NoError(t, err)

	assert.Equal(t, 0, s.Angle())
	calls := drv.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "pwm-setup", calls[0].Op)
	assert.Equal(t, "pwm", calls[1].Op)
	assert.Equal(t, uint32(500), calls[1].Duty)
	assert.Equal(t, uint32(servoFrameUs), calls[1].Cycle)
}

func TestServo_PulseWidths(t *testing.T) {
	cases := []struct {
		angle int
		want  uint32
	}{
		{0, 500},
		{90, 1500},
		{180, 2500},
	}
	for _, tc := range cases {
		drv := &testutils.RecordingDriver{}
		s, err := NewServo(drv, ServoConfig{Pin: 12}, "reject")
		require.NoError(t, err)
		drv.Reset()

		require.NoError(t, s.SetAngle(tc.angle))
		calls := drv.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, tc.want, calls[0].Duty, "angle %d", tc.angle)
		assert.Equal(t, tc.angle, s.Angle())
	}
}

func TestServo_OutOfRange(t *testing.T) {
	s, err := NewServo(&gpio.MockDriver{}, ServoConfig{Pin: 12, HomeAngle: 10}, "reject")
	require.NoError(t, err)

	for _, a := range []int{-1, 181, 360} {
		err := s.SetAngle(a)
		assert.ErrorIs(t, err, ErrAngleOutOfRange)
	}
	assert.Equal(t, 10, s.Angle())
}

func TestNewServo_InvalidPulseRange(t *testing.T) {
	_, err := NewServo(&gpio.MockDriver{}, ServoConfig{Pin: 12, MinPulse: 2000, MaxPulse: 1000}, "reject")
	assert.Error(t, err)
}

// ---------- Outputs ----------

func TestOutputs_Snapshot(t *testing.T) {
	servo, err := NewServo(&gpio.MockDriver{}, ServoConfig{Pin: 12}, "reject")
	require.NoError(t, err)
	o := &Outputs{
		RedLED:   &Memory{},
		GreenLED: &Memory{},
		Buzzer:   &Memory{},
		LEDStrip: &Memory{},
		Reject:   servo,
	}
	require.NoError(t, o.RedLED.Set(true))
	require.NoError(t, o.Reject.SetAngle(180))

	assert.Equal(t, Snapshot{RedLED: true, RejectAngle: 180}, o.Snapshot())
}
