package lumped

import "math"

// TimeEqualityTol is the absolute tolerance used to decide whether two
// simulation times are the same timestep. Outer nonlinear iterations re-enter
// the boundary update with a bit-identical time value, so the tolerance only
// has to absorb floating noise, not real step sizes.
const TimeEqualityTol = 1e-12

// UpdateGate enforces the one-mutation-per-timestep invariant of the
// stateful solvers. The host may call the boundary update several times
// within a timestep (outer nonlinear iterations); only the first call per
// simulation time is admitted. It is a two-state machine: pending, or
// committed for a specific time.
type UpdateGate struct {
	committed bool
	time      float64
}

// Admit reports whether an update at simulation time t should run, and if
// so commits the gate to that time. Repeat calls with the same t (within
// TimeEqualityTol) are rejected until a different time arrives.
func (g *UpdateGate) Admit(t float64) bool {
	if g.committed && math.Abs(t-g.time) < TimeEqualityTol {
		return false
	}
	g.committed = true
	g.time = t
	return true
}

// LastAccepted returns the most recently committed time. ok is false while
// the gate is still pending its first admission.
func (g *UpdateGate) LastAccepted() (t float64, ok bool) {
	return g.time, g.committed
}

// Restore forces the gate into the committed state for time t, used when
// reloading from a checkpoint.
func (g *UpdateGate) Restore(t float64) {
	g.committed = true
	g.time = t
}

// Reset returns the gate to pending, so the next Admit succeeds regardless
// of time.
func (g *UpdateGate) Reset() {
	g.committed = false
	g.time = 0
}
