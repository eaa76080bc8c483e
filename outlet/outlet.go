// Package outlet composes one physiological outlet boundary from its parts:
// a gated lumped-parameter model producing the boundary pressure, an
// optional implicit-coupling linearization for the host's matrix assembly,
// and the backflow stabilization tensor for the companion velocity boundary.
// The host solver interacts with an Outlet only through the narrow
// capability interfaces below; there is no inheritance chain to a field
// type.
package outlet

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/cardioflow/windkessel/coupling"
	"github.com/cardioflow/windkessel/lumped"
	"github.com/cardioflow/windkessel/patch"
	"github.com/cardioflow/windkessel/stabilization"
)

// CouplingMode selects how the boundary pressure enters the host's linear
// system.
type CouplingMode uint8

const (
	// Explicit applies the solved pressure as a plain Dirichlet value.
	Explicit CouplingMode = iota
	// Implicit additionally exposes the linearized dP/dQ and a history
	// source for injection into the momentum matrix.
	Implicit
)

// String returns the configuration-file spelling of the mode.
func (m CouplingMode) String() string {
	switch m {
	case Explicit:
		return "explicit"
	case Implicit:
		return "implicit"
	}
	return "unknown"
}

// ParseCouplingMode maps the configuration spelling to the enum. Anything
// other than "explicit" or "implicit" is a fatal misconfiguration.
func ParseCouplingMode(s string) (CouplingMode, error) {
	switch s {
	case "explicit":
		return Explicit, nil
	case "implicit":
		return Implicit, nil
	}
	return 0, fmt.Errorf("outlet: couplingMode must be \"explicit\" or \"implicit\", got %q", s)
}

// Model is one lumped downstream-vasculature model: a gated step that
// consumes the flow rate and yields pressure, and a non-mutating
// linearization of the same discrete step.
type Model interface {
	// Step advances the model by one timestep and returns the new outlet
	// pressure in working units. Mutates history; must be gated.
	Step(q, dt float64) float64
	// Linearize returns the (Zeff, Source) decomposition of the next step,
	// computed from committed history only. Safe to call repeatedly.
	Linearize(dt float64) coupling.Coefficients
}

// ValueProducer yields the current boundary pressure value.
type ValueProducer interface {
	Value() float64
}

// MatrixContributor yields linearized matrix coefficients for implicit
// coupling. ok is false when the outlet runs explicitly.
type MatrixContributor interface {
	MatrixCoefficients(dt float64) (c coupling.Coefficients, ok bool)
}

// TensorProducer yields the per-face velocity damping tensor.
type TensorProducer interface {
	FaceTensor(face int, flux float64) *mat.SymDense
}

// RCRModel adapts a Windkessel state to the Model interface.
type RCRModel struct {
	State *lumped.WindkesselState
}

func (m RCRModel) Step(q, dt float64) float64 { return lumped.StepRCR(m.State, q, dt) }

func (m RCRModel) Linearize(dt float64) coupling.Coefficients {
	return coupling.RCR(m.State, dt)
}

// PoleResidueModel adapts a pole-residue state to the Model interface.
type PoleResidueModel struct {
	State *lumped.PoleResidueState
}

func (m PoleResidueModel) Step(q, dt float64) float64 {
	return lumped.StepPoleResidue(m.State, q, dt)
}

func (m PoleResidueModel) Linearize(dt float64) coupling.Coefficients {
	return coupling.PoleResidue(m.State, dt)
}

// Outlet owns the state of one outlet boundary instance. Exclusivity is
// structural: one accumulator, one owning call site, no locking.
type Outlet struct {
	Name  string
	Mode  CouplingMode
	Stab  stabilization.Params
	Patch *patch.Patch // Optional; required for per-face operations
	Log   logrus.FieldLogger

	model Model
	gate  lumped.UpdateGate
	value float64 // Last committed boundary pressure
}

// New builds an outlet around an already-validated model. geom may be nil
// when the host never asks for per-face quantities.
func New(name string, model Model, mode CouplingMode, stab stabilization.Params, geom *patch.Patch, log logrus.FieldLogger) (*Outlet, error) {
	if model == nil {
		return nil, fmt.Errorf("outlet %s: model must not be nil", name)
	}
	if mode != Explicit && mode != Implicit {
		return nil, fmt.Errorf("outlet %s: invalid coupling mode %d", name, mode)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Outlet{
		Name:  name,
		Mode:  mode,
		Stab:  stab,
		Patch: geom,
		Log:   log,
		model: model,
	}, nil
}

// Model exposes the wrapped lumped model, mainly for checkpointing.
func (o *Outlet) Model() Model { return o.model }

// Update runs the per-timestep boundary update. The first call at
// simulation time t steps the lumped model from flow rate q and commits the
// result; every further call within the same timestep (outer nonlinear
// iterations) returns the already-committed pressure without recomputing.
func (o *Outlet) Update(t, q, dt float64) float64 {
	if !o.gate.Admit(t) {
		return o.value
	}
	o.value = o.model.Step(q, dt)
	return o.value
}

// Value returns the committed boundary pressure for the current timestep.
func (o *Outlet) Value() float64 { return o.value }

// MatrixCoefficients returns the implicit-coupling contribution for the
// host's assembly. Explicit outlets return ok=false and the host applies
// Value() as a plain Dirichlet condition. Pure; callable every outer
// iteration.
func (o *Outlet) MatrixCoefficients(dt float64) (coupling.Coefficients, bool) {
	if o.Mode != Implicit {
		return coupling.Coefficients{}, false
	}
	return o.model.Linearize(dt), true
}

// FaceCoefficients returns the implicit contribution normalized over the
// patch area, ready for per-face matrix rows. Requires patch geometry.
func (o *Outlet) FaceCoefficients(dt float64) (coupling.Coefficients, bool, error) {
	c, ok := o.MatrixCoefficients(dt)
	if !ok {
		return coupling.Coefficients{}, false, nil
	}
	if o.Patch == nil {
		return coupling.Coefficients{}, false, fmt.Errorf("outlet %s: face coefficients need patch geometry", o.Name)
	}
	return c.PerFace(o.Patch.Area()), true, nil
}

// FaceTensor returns the backflow damping tensor for one face given its
// instantaneous flux. Stateless and ungated; recomputed every call.
func (o *Outlet) FaceTensor(face int, flux float64) *mat.SymDense {
	if o.Patch == nil {
		return mat.NewSymDense(3, nil)
	}
	return o.Stab.FaceTensor(o.Patch.Normal(face), flux)
}

// LastAccepted reports the most recent committed simulation time.
func (o *Outlet) LastAccepted() (float64, bool) { return o.gate.LastAccepted() }
