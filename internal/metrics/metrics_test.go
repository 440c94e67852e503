package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Command("START")
		m.Sequence("Process", time.Second)
		m.AddSteps(512)
		m.Capture()
		m.Busy()
	})
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Command("START")
	m.Command("START")
	m.Command("UNKNOWN")
	m.AddSteps(2048)
	m.AddSteps(-1)
	m.Capture()
	m.Busy()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Commands.WithLabelValues("START")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues("UNKNOWN")))
	assert.Equal(t, 2048.0, testutil.ToFloat64(m.Steps))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Captures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejected))
}

func TestSequenceHistogramRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Sequence("Defect", 2*time.Second)

	n, err := testutil.GatherAndCount(reg, "qcstation_sequence_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
