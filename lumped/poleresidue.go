package lumped

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// ImpedanceUnits selects the unit system the pole-residue parameters are
// declared in.
type ImpedanceUnits uint8

const (
	// DynamicUnits means parameters carry physical pressure units (Pa-based);
	// outputs are divided by density to reach the solver's kinematic units.
	DynamicUnits ImpedanceUnits = iota
	// KinematicUnits means parameters are already density-scaled; outputs
	// pass through unchanged.
	KinematicUnits
)

// String returns the configuration-file spelling of the units mode.
func (u ImpedanceUnits) String() string {
	switch u {
	case DynamicUnits:
		return "dynamic"
	case KinematicUnits:
		return "kinematic"
	}
	return "unknown"
}

// ParseImpedanceUnits maps the configuration spelling to the enum. Anything
// other than "dynamic" or "kinematic" is a fatal misconfiguration.
func ParseImpedanceUnits(s string) (ImpedanceUnits, error) {
	switch s {
	case "dynamic":
		return DynamicUnits, nil
	case "kinematic":
		return KinematicUnits, nil
	}
	return 0, fmt.Errorf("lumped: impedanceUnits must be \"dynamic\" or \"kinematic\", got %q", s)
}

const (
	// SmallPoleDt is the |pole·Δt| threshold below which [exp(x)−1]/x is
	// evaluated by Taylor expansion instead of the direct formula, avoiding
	// cancellation between two near-equal floating values.
	SmallPoleDt = 1e-6

	// StiffPoleThreshold marks poles so fast-decaying that the host may be
	// forced into very small timesteps. Such poles are legal; construction
	// only warns.
	StiffPoleThreshold = -1000.0

	// DefaultDensity is blood density in kg/m³, used when a configuration
	// omits rho.
	DefaultDensity = 1060.0
)

// PoleResidueState holds the parameters and per-pole accumulators of one
// rational-impedance outlet,
//
//	Z(s) = d + Σᵢ rᵢ/(s−pᵢ),  P = d·Q + Σᵢ zᵢ
//
// where each zᵢ follows dzᵢ/dt = pᵢ·zᵢ + rᵢ·Q. Zprev snapshots the
// accumulators at the last accepted timestep boundary, so linearizations can
// be built from settled history independent of mid-iteration guesses.
type PoleResidueState struct {
	Poles      []float64 // Strictly negative, rad/s
	Residues   []float64 // Matched 1:1 to Poles
	DirectTerm float64   // Feed-through term d

	Zvars []float64 // Per-pole accumulators, advanced once per accepted step
	Zprev []float64 // Accumulators at the previous accepted step boundary

	Rho   float64        // Fluid density, kg/m³
	Units ImpedanceUnits // Unit system of Poles/Residues/DirectTerm

	Qm1 float64 // Flow at t−Δt, persisted for restart diagnostics
}

// NewPoleResidueState validates the pole-residue parameter set and builds a
// state with zeroed accumulators. Any pole ≥ 0 is a non-decaying mode and
// therefore a fatal misconfiguration; very stiff poles only warn through log.
// A nil log uses the standard logger.
func NewPoleResidueState(poles, residues []float64, directTerm, rho float64, units ImpedanceUnits, log logrus.FieldLogger) (*PoleResidueState, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	n := len(poles)
	if n < 1 {
		return nil, fmt.Errorf("lumped: pole-residue model needs at least one pole")
	}
	if len(residues) != n {
		return nil, fmt.Errorf("lumped: residues list size (%d) must equal poles list size (%d)",
			len(residues), n)
	}
	if rho <= 0 {
		return nil, fmt.Errorf("lumped: density rho must be positive, got %g", rho)
	}
	if units != DynamicUnits && units != KinematicUnits {
		return nil, fmt.Errorf("lumped: invalid impedance units %d", units)
	}

	for i, p := range poles {
		if p >= 0 {
			return nil, fmt.Errorf("lumped: pole %d has value %g but must be negative for stability", i, p)
		}
		if p < StiffPoleThreshold {
			log.WithFields(logrus.Fields{
				"pole":  i,
				"value": p,
			}).Warn("very stiff pole; the host may need a smaller timestep")
		}
	}

	s := &PoleResidueState{
		Poles:      append([]float64(nil), poles...),
		Residues:   append([]float64(nil), residues...),
		DirectTerm: directTerm,
		Zvars:      make([]float64, n),
		Zprev:      make([]float64, n),
		Rho:        rho,
		Units:      units,
	}
	return s, nil
}

// NumPoles returns the pole count N.
func (s *PoleResidueState) NumPoles() int { return len(s.Poles) }

// RestoreAccumulators loads restart accumulator values. A size mismatch is
// recoverable: the accumulators reinitialize to zero and the run continues,
// with a warning.
func (s *PoleResidueState) RestoreAccumulators(zvars []float64, log logrus.FieldLogger) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	n := s.NumPoles()
	if len(zvars) != n {
		log.WithFields(logrus.Fields{
			"got":  len(zvars),
			"want": n,
		}).Warn("stateVariables size mismatch, reinitializing to zero")
		s.Zvars = make([]float64, n)
		s.Zprev = make([]float64, n)
		return
	}
	s.Zvars = append([]float64(nil), zvars...)
	s.Zprev = append([]float64(nil), zvars...)
}

// ConvolutionWeight evaluates [exp(pole·Δt)−1]/pole, the closing factor of
// the zero-order-hold recurrence. Near pole·Δt = 0 the direct form subtracts
// two near-equal values, so |pole·Δt| < SmallPoleDt switches to the Taylor
// expansion Δt·(1 + x/2 + x²/6).
func ConvolutionWeight(pole, dt float64) float64 {
	x := pole * dt
	if math.Abs(x) < SmallPoleDt {
		return dt * (1 + 0.5*x + x*x/6)
	}
	return (math.Exp(x) - 1) / pole
}

// StepPoleResidue advances every pole accumulator by one timestep under a
// zero-order-hold assumption for q and returns the new outlet pressure in
// the solver's working units. The recurrence
//
//	zᵢ(t+Δt) = exp(pᵢ·Δt)·zᵢ(t) + rᵢ·q·[exp(pᵢ·Δt)−1]/pᵢ
//
// is the exact one-step solution of each mode's ODE for constant q, so the
// accumulator is independent of how many steps preceded it: O(N) memory
// instead of the full flow history.
//
// The accumulators advance in the units the parameters were declared in;
// only the returned pressure is converted (divided by rho in dynamic mode).
// Callers must gate this so it runs at most once per accepted timestep.
func StepPoleResidue(s *PoleResidueState, q, dt float64) float64 {
	p := s.DirectTerm * q

	for i := range s.Poles {
		decay := math.Exp(s.Poles[i] * dt)
		s.Zvars[i] = decay*s.Zvars[i] + s.Residues[i]*q*ConvolutionWeight(s.Poles[i], dt)
		p += s.Zvars[i]
	}

	copy(s.Zprev, s.Zvars)
	s.Qm1 = q

	if s.Units == DynamicUnits {
		p /= s.Rho
	}
	return p
}
