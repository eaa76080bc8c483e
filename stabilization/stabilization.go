// Package stabilization builds the directional damping tensor applied on a
// companion velocity boundary wherever local flow re-enters the domain.
// Reversed (convectively unstable) inflow at an outlet is damped through a
// symmetric projection tensor; forward flow passes through untouched. The
// computation is a pure function of the current face normal and flux sign,
// with no history and no gating.
package stabilization

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// FluxDeadband is the half-width of the zero-flux deadband. Fluxes inside
// the band count as forward flow, so floating noise near zero cannot toggle
// the tensor between outer iterations.
const FluxDeadband = 1e-10

// Params configures the stabilizer for one boundary patch. BetaN damps the
// normal component of reversed flow, BetaT the tangential (vortical)
// component. For a Dirichlet-pressure outlet BetaN should stay 0 so the
// normal component remains free to satisfy the pressure model.
type Params struct {
	BetaT         float64 // Tangential damping, 0 to 1
	BetaN         float64 // Normal damping, 0 to 1
	DampingFactor float64 // Global multiplier applied to both betas
	Enabled       bool
}

// Defaults returns the stabilizer configuration used when a dictionary omits
// the stabilization keys: full tangential damping, free normal component.
func Defaults() Params {
	return Params{BetaT: 1, BetaN: 0, DampingFactor: 1, Enabled: true}
}

func clamp01(x float64) float64 {
	return math.Min(1, math.Max(0, x))
}

// effectiveBetas applies the global multiplier and clamps both coefficients
// to [0,1], which bounds the tensor's eigenvalues to [0,1].
func (p Params) effectiveBetas() (bn, bt float64) {
	return clamp01(p.BetaN * p.DampingFactor), clamp01(p.BetaT * p.DampingFactor)
}

// FaceTensor returns the symmetric damping weight for one face,
//
//	F = H(−φ) · (βN·(n⊗n) + βT·(I − n⊗n))
//
// where n is the outward unit face normal and φ the face flux. H is a step
// function with the FluxDeadband around zero: outflow (and near-zero flux)
// yields the zero tensor. The normal is normalized internally, so callers
// may pass area-weighted normals.
func (p Params) FaceTensor(normal [3]float64, flux float64) *mat.SymDense {
	f := mat.NewSymDense(3, nil)
	if !p.Enabled || flux >= -FluxDeadband {
		return f
	}

	nmag := math.Sqrt(normal[0]*normal[0] + normal[1]*normal[1] + normal[2]*normal[2])
	if nmag == 0 {
		return f
	}

	bn, bt := p.effectiveBetas()

	for i := 0; i < 3; i++ {
		ni := normal[i] / nmag
		for j := i; j < 3; j++ {
			nj := normal[j] / nmag
			v := bn * ni * nj // Normal projection n⊗n
			if i == j {
				v += bt * (1 - ni*nj) // Tangential projection I − n⊗n
			} else {
				v += bt * (0 - ni*nj)
			}
			f.SetSym(i, j, v)
		}
	}
	return f
}
