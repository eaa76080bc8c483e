// Package config reads outlet boundary dictionaries from TOML, validates
// them at construction time, and builds outlets. Every fatal condition is
// detected here, before the first timestep, so failures are deterministic
// and reproducible across restarts. Recoverable problems warn and substitute
// a safe default.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/cardioflow/windkessel/lumped"
	"github.com/cardioflow/windkessel/outlet"
	"github.com/cardioflow/windkessel/stabilization"
)

// Model kind spellings accepted in the "model" key.
const (
	ModelWindkessel  = "windkessel"
	ModelPoleResidue = "poleResidue"
)

// Config is one configuration file, holding one or more outlets.
type Config struct {
	Outlets []OutletConfig `toml:"outlet"`
}

// OutletConfig maps the dictionary keys of one outlet. Optional scalar keys
// are pointers so the restart default cascade (p_1←p0, q_2←q_1, q_3←q_2)
// only applies when the key is genuinely absent.
type OutletConfig struct {
	Name         string `toml:"name"`
	Model        string `toml:"model"`
	CouplingMode string `toml:"couplingMode"`

	// Windkessel keys
	Order int      `toml:"order"`
	R     float64  `toml:"R"`
	C     float64  `toml:"C"`
	Z     float64  `toml:"Z"`
	P0    float64  `toml:"p0"`
	P1    *float64 `toml:"p_1"`
	P2    *float64 `toml:"p_2"`
	Q1    float64  `toml:"q_1"`
	Q2    *float64 `toml:"q_2"`
	Q3    *float64 `toml:"q_3"`

	// Pole-residue keys. NPoles falls back to the legacy "order" key when
	// absent.
	NPoles         int       `toml:"nPoles"`
	Poles          []float64 `toml:"poles"`
	Residues       []float64 `toml:"residues"`
	DirectTerm     float64   `toml:"directTerm"`
	StateVariables []float64 `toml:"stateVariables"`
	Rho            float64   `toml:"rho"`
	ImpedanceUnits string    `toml:"impedanceUnits"`

	// Stabilizer keys
	BetaT               *float64 `toml:"betaT"`
	BetaN               *float64 `toml:"betaN"`
	EnableStabilization *bool    `toml:"enableStabilization"`
	DampingFactor       *float64 `toml:"dampingFactor"`
}

// Load reads and decodes a configuration file. Unknown keys are rejected so
// a misspelled parameter cannot silently fall back to a default.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(b)
}

// Parse decodes configuration bytes.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(string(b), &cfg)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return nil, fmt.Errorf("config: unknown key %q", undec[0].String())
	}
	if len(cfg.Outlets) == 0 {
		return nil, fmt.Errorf("config: no [[outlet]] sections found")
	}
	return &cfg, nil
}

func (oc *OutletConfig) applyDefaults() {
	if oc.CouplingMode == "" {
		oc.CouplingMode = "explicit"
	}
	if oc.Rho == 0 {
		oc.Rho = lumped.DefaultDensity
	}
	if oc.ImpedanceUnits == "" {
		oc.ImpedanceUnits = "dynamic"
	}
	if oc.P1 == nil {
		oc.P1 = &oc.P0
	}
	if oc.P2 == nil {
		oc.P2 = oc.P1
	}
	if oc.Q2 == nil {
		oc.Q2 = &oc.Q1
	}
	if oc.Q3 == nil {
		oc.Q3 = oc.Q2
	}
}

func (oc *OutletConfig) stabilization() stabilization.Params {
	p := stabilization.Defaults()
	if oc.BetaT != nil {
		p.BetaT = *oc.BetaT
	}
	if oc.BetaN != nil {
		p.BetaN = *oc.BetaN
	}
	if oc.DampingFactor != nil {
		p.DampingFactor = *oc.DampingFactor
	}
	if oc.EnableStabilization != nil {
		p.Enabled = *oc.EnableStabilization
	}
	return p
}

func (oc *OutletConfig) validateBetas() error {
	if oc.BetaT != nil && (*oc.BetaT < 0 || *oc.BetaT > 1) {
		return fmt.Errorf("config: outlet %s: betaT must lie in [0,1], got %g", oc.Name, *oc.BetaT)
	}
	if oc.BetaN != nil && (*oc.BetaN < 0 || *oc.BetaN > 1) {
		return fmt.Errorf("config: outlet %s: betaN must lie in [0,1], got %g", oc.Name, *oc.BetaN)
	}
	return nil
}

// Build validates one outlet dictionary and constructs the outlet. An order
// outside 1 to 3 is rejected as a fatal misconfiguration rather than
// silently downgraded to first order.
func (oc OutletConfig) Build(log logrus.FieldLogger) (*outlet.Outlet, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	oc.applyDefaults()

	mode, err := outlet.ParseCouplingMode(oc.CouplingMode)
	if err != nil {
		return nil, fmt.Errorf("config: outlet %s: %w", oc.Name, err)
	}
	if err := oc.validateBetas(); err != nil {
		return nil, err
	}

	var model outlet.Model
	switch oc.Model {
	case ModelWindkessel:
		s, err := lumped.NewWindkesselState(oc.Order, oc.R, oc.C, oc.Z)
		if err != nil {
			return nil, fmt.Errorf("config: outlet %s: %w", oc.Name, err)
		}
		s.Pm1 = oc.P0
		s.Pm2 = *oc.P1
		s.Pm3 = *oc.P2
		s.Qm1 = oc.Q1
		s.Qm2 = *oc.Q2
		s.Qm3 = *oc.Q3
		model = outlet.RCRModel{State: s}

	case ModelPoleResidue:
		n := oc.NPoles
		if n == 0 {
			// Legacy configurations spell the pole count "order".
			n = oc.Order
		}
		if len(oc.Poles) != n {
			return nil, fmt.Errorf("config: outlet %s: poles list size (%d) must equal nPoles (%d)",
				oc.Name, len(oc.Poles), n)
		}
		units, err := lumped.ParseImpedanceUnits(oc.ImpedanceUnits)
		if err != nil {
			return nil, fmt.Errorf("config: outlet %s: %w", oc.Name, err)
		}
		s, err := lumped.NewPoleResidueState(oc.Poles, oc.Residues, oc.DirectTerm, oc.Rho, units, log)
		if err != nil {
			return nil, fmt.Errorf("config: outlet %s: %w", oc.Name, err)
		}
		s.Qm1 = oc.Q1
		if len(oc.StateVariables) > 0 {
			s.RestoreAccumulators(oc.StateVariables, log)
		}
		model = outlet.PoleResidueModel{State: s}

	default:
		return nil, fmt.Errorf("config: outlet %s: model must be %q or %q, got %q",
			oc.Name, ModelWindkessel, ModelPoleResidue, oc.Model)
	}

	return outlet.New(oc.Name, model, mode, oc.stabilization(), nil, log)
}

// BuildAll constructs every outlet in the configuration.
func (c *Config) BuildAll(log logrus.FieldLogger) ([]*outlet.Outlet, error) {
	outs := make([]*outlet.Outlet, 0, len(c.Outlets))
	for i, oc := range c.Outlets {
		if oc.Name == "" {
			oc.Name = fmt.Sprintf("outlet%d", i)
		}
		o, err := oc.Build(log)
		if err != nil {
			return nil, err
		}
		outs = append(outs, o)
	}
	return outs, nil
}
