package geometry

import (
	"github.com/pkg/errors"
)

// ErrInvalidStepsPerRev is returned for a non-positive steps-per-revolution.
var ErrInvalidStepsPerRev = errors.New("steps per revolution must be > 0")

// QuarterTurn is the unit of motion between two captures.
const QuarterTurn = 90

// StepsCalculator converts rotation requests (degrees) to elementary motor steps.
//
// It tracks the commanded angle so that rounding never accumulates: the
// steps issued for any sequence of requests always sum to the exact
// position of the summed angle. Four quarter-turns therefore always add up
// to one full revolution, even when stepsPerRev is not divisible by 4.
type StepsCalculator struct {
	stepsPerRev int
	// Shaft position in 1/360 step units: one degree adds stepsPerRev,
	// one step adds 360. Both stay exact.
	units int64
}

// NewStepsCalculator creates a step calculator for a motor model.
func NewStepsCalculator(stepsPerRev int) (*StepsCalculator, error) {
	if stepsPerRev <= 0 {
		return nil, ErrInvalidStepsPerRev
	}
	return &StepsCalculator{stepsPerRev: stepsPerRev}, nil
}

// StepsPerRev returns the configured steps per revolution.
func (s *StepsCalculator) StepsPerRev() int {
	return s.stepsPerRev
}

// StepsPerQuarterTurn returns the nominal step count for 90°.
func (s *StepsCalculator) StepsPerQuarterTurn() int {
	return s.stepsPerRev / 4
}

// Steps returns the signed number of steps for a rotation of degrees and
// commits the rotation. For multiples of 90 with stepsPerRev divisible by 4
// this is exactly (degrees/90) * (stepsPerRev/4).
func (s *StepsCalculator) Steps(degrees int) int {
	n := s.Peek(degrees)
	s.units += int64(degrees) * int64(s.stepsPerRev)
	return n
}

// Peek returns what Steps would return without committing the rotation.
func (s *StepsCalculator) Peek(degrees int) int {
	return int(position(s.units+int64(degrees)*int64(s.stepsPerRev)) - position(s.units))
}

// Advance records steps actually issued outside a whole request, such as
// the part of an interrupted rotation that did happen.
func (s *StepsCalculator) Advance(steps int) {
	s.units += int64(steps) * 360
}

// Position returns the absolute step index of the shaft since construction.
func (s *StepsCalculator) Position() int {
	return int(position(s.units))
}

// position is the absolute step index for units, rounded half away from zero.
func position(units int64) int64 {
	return roundDiv(units, 360)
}

func roundDiv(a, b int64) int64 {
	if a >= 0 {
		return (a + b/2) / b
	}
	return -((-a + b/2) / b)
}
