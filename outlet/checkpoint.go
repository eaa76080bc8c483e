package outlet

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/cardioflow/windkessel/lumped"
)

// Checkpoint file layout. The state sections persist the model verbatim,
// using the same keys the run configuration uses, so a checkpoint can also
// seed a fresh configuration by hand.
type checkpointFile struct {
	Outlet      checkpointHeader    `toml:"outlet"`
	Windkessel  *windkesselSection  `toml:"windkessel,omitempty"`
	PoleResidue *poleResidueSection `toml:"poleResidue,omitempty"`
}

type checkpointHeader struct {
	Name     string  `toml:"name"`
	Time     float64 `toml:"time"` // Last accepted simulation time
	HasTime  bool    `toml:"hasTime"`
	Pressure float64 `toml:"pressure"` // Committed boundary value
}

type windkesselSection struct {
	Order int     `toml:"order"`
	R     float64 `toml:"R"`
	C     float64 `toml:"C"`
	Z     float64 `toml:"Z"`
	P0    float64 `toml:"p0"`
	P1    float64 `toml:"p_1"`
	P2    float64 `toml:"p_2"`
	Q1    float64 `toml:"q_1"`
	Q2    float64 `toml:"q_2"`
	Q3    float64 `toml:"q_3"`
}

type poleResidueSection struct {
	NPoles         int       `toml:"nPoles"`
	Poles          []float64 `toml:"poles"`
	Residues       []float64 `toml:"residues"`
	DirectTerm     float64   `toml:"directTerm"`
	StateVariables []float64 `toml:"stateVariables"`
	Rho            float64   `toml:"rho"`
	ImpedanceUnits string    `toml:"impedanceUnits"`
	Q1             float64   `toml:"q_1"`
}

// Checkpoint writes the outlet's complete persisted state. The trajectory of
// a run restored from this data is identical to an uninterrupted run with
// the same inputs.
func (o *Outlet) Checkpoint(w io.Writer) error {
	t, ok := o.gate.LastAccepted()
	cf := checkpointFile{
		Outlet: checkpointHeader{
			Name:     o.Name,
			Time:     t,
			HasTime:  ok,
			Pressure: o.value,
		},
	}

	switch m := o.model.(type) {
	case RCRModel:
		s := m.State
		cf.Windkessel = &windkesselSection{
			Order: s.Order,
			R:     s.R, C: s.C, Z: s.Z,
			P0: s.Pm1, P1: s.Pm2, P2: s.Pm3,
			Q1: s.Qm1, Q2: s.Qm2, Q3: s.Qm3,
		}
	case PoleResidueModel:
		s := m.State
		cf.PoleResidue = &poleResidueSection{
			NPoles:         s.NumPoles(),
			Poles:          s.Poles,
			Residues:       s.Residues,
			DirectTerm:     s.DirectTerm,
			StateVariables: s.Zvars,
			Rho:            s.Rho,
			ImpedanceUnits: s.Units.String(),
			Q1:             s.Qm1,
		}
	default:
		return fmt.Errorf("outlet %s: cannot checkpoint model type %T", o.Name, o.model)
	}

	return toml.NewEncoder(w).Encode(cf)
}

// Restore loads a checkpoint into this outlet. The outlet must already be
// configured with the same model kind; parameters are overwritten verbatim.
// A stateVariables size mismatch is recoverable: the accumulators
// reinitialize to zero with a warning and the run continues.
func (o *Outlet) Restore(r io.Reader) error {
	var cf checkpointFile
	if _, err := toml.NewDecoder(r).Decode(&cf); err != nil {
		return fmt.Errorf("outlet %s: reading checkpoint: %w", o.Name, err)
	}

	switch m := o.model.(type) {
	case RCRModel:
		sec := cf.Windkessel
		if sec == nil {
			return fmt.Errorf("outlet %s: checkpoint has no windkessel section", o.Name)
		}
		s := m.State
		s.Order = sec.Order
		s.R, s.C, s.Z = sec.R, sec.C, sec.Z
		s.Pm1, s.Pm2, s.Pm3 = sec.P0, sec.P1, sec.P2
		s.Qm1, s.Qm2, s.Qm3 = sec.Q1, sec.Q2, sec.Q3
	case PoleResidueModel:
		sec := cf.PoleResidue
		if sec == nil {
			return fmt.Errorf("outlet %s: checkpoint has no poleResidue section", o.Name)
		}
		s := m.State
		if len(sec.Poles) != s.NumPoles() || len(sec.Residues) != s.NumPoles() {
			return fmt.Errorf("outlet %s: checkpoint pole count %d does not match configured %d",
				o.Name, len(sec.Poles), s.NumPoles())
		}
		copy(s.Poles, sec.Poles)
		copy(s.Residues, sec.Residues)
		s.DirectTerm = sec.DirectTerm
		s.Qm1 = sec.Q1
		if sec.Rho > 0 {
			s.Rho = sec.Rho
		}
		if sec.ImpedanceUnits != "" {
			u, err := lumped.ParseImpedanceUnits(sec.ImpedanceUnits)
			if err != nil {
				return fmt.Errorf("outlet %s: %w", o.Name, err)
			}
			s.Units = u
		}
		s.RestoreAccumulators(sec.StateVariables, o.Log)
	default:
		return fmt.Errorf("outlet %s: cannot restore model type %T", o.Name, o.model)
	}

	o.value = cf.Outlet.Pressure
	if cf.Outlet.HasTime {
		o.gate.Restore(cf.Outlet.Time)
	} else {
		o.gate.Reset()
	}

	o.Log.WithFields(logrus.Fields{
		"outlet": o.Name,
		"time":   cf.Outlet.Time,
	}).Info("restored outlet state from checkpoint")
	return nil
}
