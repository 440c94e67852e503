package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepsCalculator_QuarterTurns(t *testing.T) {
	cases := []struct {
		name    string
		degrees int
		want    int
	}{
		{"90_degrees", 90, 512},
		{"180_degrees", 180, 1024},
		{"full_360", 360, 2048},
		{"negative_90", -90, -512},
		{"zero", 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sc, err := NewStepsCalculator(2048)
			require.NoError(t, err)
			assert.Equal(t, tc.want, sc.Steps(tc.degrees))
		})
	}
}

func TestStepsCalculator_FormulaForMultiplesOf90(t *testing.T) {
	for _, spr := range []int{200, 400, 2048, 4096} {
		sc, err := NewStepsCalculator(spr)
		require.NoError(t, err)
		for q := 1; q <= 8; q++ {
			assert.Equal(t, q*(spr/4), sc.Peek(q*QuarterTurn), "spr=%d q=%d", spr, q)
		}
	}
}

func TestStepsCalculator_FullTurnNotDivisibleByFour(t *testing.T) {
	// 2050/4 = 512.5: quarter-turns alternate but always sum to one revolution.
	for _, spr := range []int{2050, 2049, 513, 7} {
		sc, err := NewStepsCalculator(spr)
		require.NoError(t, err)

		total := 0
		for i := 0; i < 4; i++ {
			total += sc.Steps(QuarterTurn)
		}
		assert.Equal(t, spr, total, "spr=%d", spr)
	}
}

func TestStepsCalculator_ForwardThenBackReturnsHome(t *testing.T) {
	sc, err := NewStepsCalculator(2050)
	require.NoError(t, err)

	total := 0
	for _, d := range []int{90, 45, 1, -46, 270, -360} {
		total += sc.Steps(d)
	}
	assert.Equal(t, 0, total)
}

func TestStepsCalculator_PeekDoesNotCommit(t *testing.T) {
	sc, err := NewStepsCalculator(2048)
	require.NoError(t, err)

	assert.Equal(t, 512, sc.Peek(90))
	assert.Equal(t, 512, sc.Peek(90))
	assert.Equal(t, 512, sc.StepsPerQuarterTurn())
}

func TestStepsCalculator_AdvanceKeepsExactSteps(t *testing.T) {
	sc, err := NewStepsCalculator(2048)
	require.NoError(t, err)

	// 100 steps is 17.58°; the position must not be rounded to whole degrees.
	sc.Advance(100)
	assert.Equal(t, 100, sc.Position())
	assert.Equal(t, 512, sc.Steps(QuarterTurn))
	assert.Equal(t, 612, sc.Position())

	sc.Advance(-100)
	assert.Equal(t, 512, sc.Position())
}

func TestStepsCalculator_AdvanceThenQuarterTurnsNotDivisibleByFour(t *testing.T) {
	sc, err := NewStepsCalculator(2050)
	require.NoError(t, err)

	sc.Advance(3)
	total := 0
	for i := 0; i < 4; i++ {
		total += sc.Steps(QuarterTurn)
	}
	assert.Equal(t, 2050, total)
	assert.Equal(t, 2053, sc.Position())
}

func TestNewStepsCalculator_Invalid(t *testing.T) {
	for _, spr := range []int{0, -1} {
		_, err := NewStepsCalculator(spr)
		assert.ErrorIs(t, err, ErrInvalidStepsPerRev)
	}
}
