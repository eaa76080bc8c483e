package coupling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"

	"github.com/cardioflow/windkessel/lumped"
)

func testWindkesselState(order int) *lumped.WindkesselState {
	return &lumped.WindkesselState{
		Order: order,
		R:     1000, C: 1e-5, Z: 40,
		Pm1: 9800, Pm2: 9500, Pm3: 9100,
		Qm1: 1.2, Qm2: 0.9, Qm3: 0.4,
	}
}

func testPoleResidueState(t *testing.T, units lumped.ImpedanceUnits) *lumped.PoleResidueState {
	t.Helper()
	s, err := lumped.NewPoleResidueState(
		[]float64{-8, -90, -600},
		[]float64{2.5, 14, 110},
		3.0, 1060, units, nil)
	require.NoError(t, err)
	s.RestoreAccumulators([]float64{0.4, -0.1, 0.02}, nil)
	return s
}

// The linearization must reproduce the step exactly: for the same committed
// history, StepRCR(q) == Zeff·q + Source for any q.
func TestRCR_DecomposesTheStep(t *testing.T) {
	const dt = 1e-3

	for _, order := range []int{1, 2, 3} {
		for _, q := range []float64{-2, 0, 0.5, 5} {
			s := testWindkesselState(order)
			c := RCR(s, dt)

			p := lumped.StepRCR(s, q, dt)
			assert.InDelta(t, p, c.Zeff*q+c.Source, 1e-8,
				"order %d, q=%g", order, q)
		}
	}
}

func TestRCR_DoesNotMutateState(t *testing.T) {
	s := testWindkesselState(2)
	before := *s

	RCR(s, 1e-3)
	RCR(s, 1e-3)

	assert.Equal(t, before, *s, "linearization must be pure")
}

// Zeff must equal the numerical derivative dP/dQ of the forward step, per
// model. Each probe re-runs the step on a fresh state copy so the finite
// difference sees a non-mutated formula.
func TestRCR_SensitivityMatchesFiniteDifference(t *testing.T) {
	const dt = 1e-3

	for _, order := range []int{1, 2, 3} {
		ref := testWindkesselState(order)
		c := RCR(ref, dt)

		forward := func(q float64) float64 {
			s := *ref
			return lumped.StepRCR(&s, q, dt)
		}
		dPdQ := fd.Derivative(forward, 2.0, &fd.Settings{
			Formula: fd.Central,
		})

		assert.InEpsilon(t, dPdQ, c.Zeff, 1e-6, "order %d", order)
	}
}

func TestPoleResidue_SensitivityMatchesFiniteDifference(t *testing.T) {
	const dt = 1e-3

	for _, units := range []lumped.ImpedanceUnits{lumped.DynamicUnits, lumped.KinematicUnits} {
		ref := testPoleResidueState(t, units)
		c := PoleResidue(ref, dt)

		forward := func(q float64) float64 {
			s := *ref
			s.Zvars = append([]float64(nil), ref.Zvars...)
			s.Zprev = append([]float64(nil), ref.Zprev...)
			return lumped.StepPoleResidue(&s, q, dt)
		}
		dPdQ := fd.Derivative(forward, 1.5, &fd.Settings{
			Formula: fd.Central,
		})

		assert.InEpsilon(t, dPdQ, c.Zeff, 1e-6, "units %v", units)
	}
}

// The pole-residue decomposition is exact as well: evaluated before the
// step commits, Zeff·q + Source equals the pressure the step then produces.
func TestPoleResidue_DecomposesTheStep(t *testing.T) {
	const (
		dt = 2e-3
		q  = 3.7
	)

	for _, units := range []lumped.ImpedanceUnits{lumped.DynamicUnits, lumped.KinematicUnits} {
		s := testPoleResidueState(t, units)
		c := PoleResidue(s, dt)

		p := lumped.StepPoleResidue(s, q, dt)
		assert.InEpsilon(t, p, c.Zeff*q+c.Source, 1e-12, "units %v", units)
	}
}

func TestPoleResidue_DoesNotMutateState(t *testing.T) {
	s := testPoleResidueState(t, lumped.DynamicUnits)
	zvars := append([]float64(nil), s.Zvars...)
	zprev := append([]float64(nil), s.Zprev...)

	PoleResidue(s, 1e-3)
	PoleResidue(s, 1e-3)

	assert.Equal(t, zvars, s.Zvars)
	assert.Equal(t, zprev, s.Zprev)
}

// Repeated evaluation per outer iteration must be bit-stable.
func TestCoefficients_RepeatableAcrossIterations(t *testing.T) {
	s := testPoleResidueState(t, lumped.DynamicUnits)

	first := PoleResidue(s, 1e-3)
	for i := 0; i < 4; i++ {
		assert.Equal(t, first, PoleResidue(s, 1e-3), "iteration %d", i)
	}
}

func TestPerFace_NormalizesByArea(t *testing.T) {
	c := Coefficients{Zeff: 10, Source: 4}

	f := c.PerFace(2)
	assert.InEpsilon(t, 5.0, f.Zeff, 1e-12)
	assert.InEpsilon(t, 2.0, f.Source, 1e-12)

	// A degenerate zero-area patch must not divide by zero.
	g := c.PerFace(0)
	assert.False(t, g.Zeff != g.Zeff, "Zeff must not be NaN")
}
