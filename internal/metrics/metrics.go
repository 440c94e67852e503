// Package metrics holds the station's Prometheus collectors. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Commands  *prometheus.CounterVec
	Sequences *prometheus.HistogramVec
	Steps     prometheus.Counter
	Captures  prometheus.Counter
	Rejected  prometheus.Counter
}

// New creates the collectors and registers them on reg (skipped when reg
// is nil).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qcstation_commands_total",
				Help: "Commands received, by kind",
			},
			[]string{"kind"},
		),
		Sequences: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qcstation_sequence_duration_seconds",
				Help:    "Duration of completed sequences",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"sequence"},
		),
		Steps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qcstation_stepper_steps_total",
			Help: "Elementary stepper steps issued",
		}),
		Captures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qcstation_captures_total",
			Help: "Capture notifications sent to the host",
		}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qcstation_commands_rejected_total",
			Help: "Commands rejected because a sequence was running",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Commands, m.Sequences, m.Steps, m.Captures, m.Rejected)
	}
	return m
}

// Command counts one received command by kind.
func (m *Metrics) Command(kind string) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(kind).Inc()
}

// Sequence records how long a sequence ran.
func (m *Metrics) Sequence(name string, d time.Duration) {
	if m == nil {
		return
	}
	m.Sequences.WithLabelValues(name).Observe(d.Seconds())
}

// AddSteps adds elementary stepper steps; non-positive n is ignored.
func (m *Metrics) AddSteps(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Steps.Add(float64(n))
}

// Capture counts one capture signal.
func (m *Metrics) Capture() {
	if m == nil {
		return
	}
	m.Captures.Inc()
}

// Busy counts a command rejected because a sequence was running.
func (m *Metrics) Busy() {
	if m == nil {
		return
	}
	m.Rejected.Inc()
}
