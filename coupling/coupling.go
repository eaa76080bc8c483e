// Package coupling derives linearized matrix contributions from the lumped
// outlet models. When an outlet runs in implicit mode, the host's momentum
// assembly receives the boundary pressure not as a fixed lagged value but as
//
//	P = Zeff·Q + Source
//
// where Zeff = ∂P/∂Q at the current step and Source collects every term of
// the discrete model that does not depend on the still-unknown Q. Both are
// pure functions of committed history and model constants, so they may be
// evaluated on every outer iteration without touching solver state. The
// split mirrors the companion-model stamping used by circuit simulators: an
// effective resistance on the matrix diagonal plus a history current source.
package coupling

import (
	"math"

	"github.com/cardioflow/windkessel/lumped"
)

// Coefficients is one outlet's linearized contribution to the host matrix:
// Zeff scales the unknown flow on the diagonal, Source is the history term
// on the right-hand side. Units match the model's output units (kinematic
// when the model converts by density).
type Coefficients struct {
	Zeff   float64
	Source float64
}

// smallArea guards the per-face division for degenerate patches.
const smallArea = 1e-30

// PerFace distributes patch-level coefficients over a patch of the given
// total area, matching how the host spreads a scalar constraint across the
// face rows it assembles.
func (c Coefficients) PerFace(patchArea float64) Coefficients {
	a := patchArea + smallArea
	return Coefficients{Zeff: c.Zeff / a, Source: c.Source / a}
}

// RCR linearizes the Windkessel BDF step at the current Δt. Writing the
// step's linear solve a·P = b with b = A·Q + h, the sensitivity is
// Zeff = A/a and the history term Source = h/a, where A carries the BDF
// leading coefficient α (1, 3/2 or 11/6) through the Z·α/Δt term. By
// construction StepRCR(q) == Zeff·q + Source for the same committed history.
func RCR(s *lumped.WindkesselState, dt float64) Coefficients {
	var (
		alpha float64 // BDF leading coefficient
		qHist float64 // Lagged-flow part of b
		pHist float64 // Lagged-pressure part of b
	)

	switch s.Order {
	case 2:
		alpha = 1.5
		qHist = (s.Z / dt) * (-2*s.Qm1 + 0.5*s.Qm2)
		pHist = (2*s.Pm1 - 0.5*s.Pm2) / dt
	case 3:
		alpha = 11.0 / 6.0
		qHist = (s.Z / dt) * (-3*s.Qm1 + 1.5*s.Qm2 - (1.0/3.0)*s.Qm3)
		pHist = (3*s.Pm1 - 1.5*s.Pm2 + (1.0/3.0)*s.Pm3) / dt
	default:
		alpha = 1
		qHist = -(s.Z / dt) * s.Qm1
		pHist = s.Pm1 / dt
	}

	denom := alpha/dt + 1/(s.R*s.C)
	zeff := ((1/s.C)*(1+s.Z/s.R) + alpha*s.Z/dt) / denom
	source := (qHist + pHist) / denom

	return Coefficients{Zeff: zeff, Source: source}
}

// PoleResidue linearizes the recursive-convolution step at the current Δt:
//
//	Zeff   = d + Σᵢ rᵢ·[exp(pᵢ·Δt)−1]/pᵢ
//	Source = Σᵢ exp(pᵢ·Δt)·zᵢ(previous accepted step)
//
// using the same closing-factor evaluation as the step itself so the two
// stay consistent near the small-|pole·Δt| branch. Dynamic-units parameters
// are converted to the solver's kinematic units by dividing by density.
func PoleResidue(s *lumped.PoleResidueState, dt float64) Coefficients {
	zeff := s.DirectTerm
	source := 0.0

	for i := range s.Poles {
		zeff += s.Residues[i] * lumped.ConvolutionWeight(s.Poles[i], dt)
		source += math.Exp(s.Poles[i]*dt) * s.Zprev[i]
	}

	if s.Units == lumped.DynamicUnits {
		zeff /= s.Rho
		source /= s.Rho
	}
	return Coefficients{Zeff: zeff, Source: source}
}
