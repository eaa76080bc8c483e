// Package lumped implements reduced-order models of downstream vasculature
// used as outlet boundary conditions for a flow solver. Two models are
// provided: the three-element Windkessel (RCR) circuit integrated with
// backward differentiation formulas, and an N-pole rational impedance
// integrated by exact recursive convolution. Both advance from a single
// scalar flow rate Q per timestep and produce a single scalar pressure.
package lumped

import (
	"fmt"
)

// WindkesselState holds the parameters and time history of one three-element
// Windkessel outlet. The model is
//
//	P = Z·Q + Pc,  dPc/dt = Q/C − Pc/(R·C)
//
// All fields are owned exclusively by one outlet instance. History slots are
// lagged samples: Pm1 is pressure at t−Δt, Pm2 at t−2Δt, Pm3 at t−3Δt;
// Qm1..Qm3 are flow at t−Δt, t−2Δt, t−3Δt. Which slots participate depends
// on Order: order 1 reads Pm1/Qm1 only, order 3 reads all of them.
type WindkesselState struct {
	Order int // BDF order, 1 to 3

	R float64 // Distal resistance
	C float64 // Compliance
	Z float64 // Characteristic (proximal) impedance

	Pm1, Pm2, Pm3 float64 // Lagged pressures
	Qm1, Qm2, Qm3 float64 // Lagged flow rates
}

// NewWindkesselState validates parameters and builds a state record.
// Absent history defaults cascade the same way restart files do: Pm2 takes
// Pm1, Qm2 takes Qm1, Qm3 takes Qm2. Callers that have explicit restart
// values set the fields directly after construction or use the config
// package.
func NewWindkesselState(order int, r, c, z float64) (*WindkesselState, error) {
	if order < 1 || order > 3 {
		return nil, fmt.Errorf("windkessel: order must be 1, 2 or 3, got %d", order)
	}
	if r <= 0 {
		return nil, fmt.Errorf("windkessel: resistance R must be positive, got %g", r)
	}
	if c <= 0 {
		return nil, fmt.Errorf("windkessel: compliance C must be positive, got %g", c)
	}
	if z < 0 {
		return nil, fmt.Errorf("windkessel: characteristic impedance Z must be non-negative, got %g", z)
	}
	return &WindkesselState{Order: order, R: r, C: c, Z: z}, nil
}

// HistoryDepth reports how many lagged flow samples the configured order
// consumes: order 1 uses Qm1 only, order 3 uses all three.
func (s *WindkesselState) HistoryDepth() int {
	switch s.Order {
	case 2:
		return 2
	case 3:
		return 3
	default:
		return 1
	}
}

// StepRCR advances the Windkessel ODE by one timestep from the flow rate q
// and returns the new outlet pressure. The ODE is folded into a single
// linear equation a·P = b per step, with a and b assembled from the BDF
// stencil of the configured order. R,C > 0 guarantees a > 0, so the solve
// cannot fail for a validated state.
//
// The state histories shift on return (Qm3←Qm2←Qm1←q, Pm3←Pm2←Pm1←P); callers
// must gate this so it runs at most once per accepted timestep.
func StepRCR(s *WindkesselState, q, dt float64) float64 {
	var (
		qSrc   float64 // Flow-driven part of b
		pGrad  float64 // Pressure-history part of b (negated)
		pDenom float64 // Coefficient a
	)

	rc := s.R * s.C

	switch s.Order {
	case 2:
		qSrc = (q/s.C)*(1+s.Z/s.R) + (s.Z/dt)*(1.5*q-2*s.Qm1+0.5*s.Qm2)
		pGrad = (-2*s.Pm1 + 0.5*s.Pm2) / dt
		pDenom = 1.5/dt + 1/rc

	case 3:
		qSrc = (q/s.C)*(1+s.Z/s.R) + (s.Z/dt)*((11.0/6.0)*q-3*s.Qm1+1.5*s.Qm2-(1.0/3.0)*s.Qm3)
		pGrad = (-3*s.Pm1 + 1.5*s.Pm2 - (1.0/3.0)*s.Pm3) / dt
		pDenom = (11.0 / 6.0 / dt) + 1/rc

	default:
		// Order 1. States constructed through NewWindkesselState cannot
		// carry any other out-of-range order, but a state mutated directly
		// still selects a defined stencil.
		qSrc = (q/s.C)*(1+s.Z/s.R) + (s.Z/dt)*(q-s.Qm1)
		pGrad = -s.Pm1 / dt
		pDenom = 1/dt + 1/rc
	}

	p := (qSrc - pGrad) / pDenom

	s.Qm3 = s.Qm2
	s.Qm2 = s.Qm1
	s.Qm1 = q

	s.Pm3 = s.Pm2
	s.Pm2 = s.Pm1
	s.Pm1 = p

	return p
}
