package sequence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjeanneret/qcstation/internal/testutils"
)

func TestRun_ActionsAndDwellsInOrder(t *testing.T) {
	clock := &testutils.FakeClock{}
	r := NewRunner(clock)

	var order []string
	clock.OnSleep = func(d time.Duration) { order = append(order, "sleep "+d.String()) }

	err := r.Run(context.Background(), "test",
		Action("a", func() error { order = append(order, "a"); return nil }),
		Hold("wait", 2*time.Second),
		Step{Name: "b", Do: func() error { order = append(order, "b"); return nil }, Dwell: time.Second},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "sleep 2s", "b", "sleep 1s"}, order)
	assert.Equal(t, 3*time.Second, clock.Elapsed())
}

func TestRun_StopsAtFailingAction(t *testing.T) {
	clock := &testutils.FakeClock{}
	r := NewRunner(clock)
	boom := errors.New("boom")

	ran := false
	err := r.Run(context.Background(), "test",
		Action("fail", func() error { return boom }),
		Action("never", func() error { ran = true; return nil }),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "test: fail")
	assert.False(t, ran)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := NewRunner(&testutils.FakeClock{}).Run(ctx, "test",
		Action("never", func() error { ran = true; return nil }),
	)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}

func TestRealClock_InterruptedDwell(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := RealClock{}.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNewRunner_DefaultsToRealClock(t *testing.T) {
	r := NewRunner(nil)
	_, ok := r.Clock().(RealClock)
	assert.True(t, ok)
}
