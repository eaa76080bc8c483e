package config

import (
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardioflow/windkessel/lumped"
	"github.com/cardioflow/windkessel/outlet"
)

const windkesselTOML = `
[[outlet]]
name = "aorta"
model = "windkessel"
order = 2
R = 1000.0
C = 1e-5
Z = 25.0
p0 = 10000.0
q_1 = 1.5
`

const poleResidueTOML = `
[[outlet]]
name = "pulmonary"
model = "poleResidue"
couplingMode = "implicit"
nPoles = 3
poles = [-8.0, -90.0, -600.0]
residues = [2.5, 14.0, 110.0]
directTerm = 3.0
rho = 1050.0
impedanceUnits = "dynamic"
betaT = 0.8
betaN = 0.0
dampingFactor = 0.5
`

func TestParse_Windkessel(t *testing.T) {
	cfg, err := Parse([]byte(windkesselTOML))
	require.NoError(t, err)
	require.Len(t, cfg.Outlets, 1)

	o, err := cfg.Outlets[0].Build(nil)
	require.NoError(t, err)
	assert.Equal(t, "aorta", o.Name)
	assert.Equal(t, outlet.Explicit, o.Mode, "couplingMode defaults to explicit")

	m, ok := o.Model().(outlet.RCRModel)
	require.True(t, ok)
	assert.Equal(t, 2, m.State.Order)
	assert.Equal(t, 10000.0, m.State.Pm1)
	assert.Equal(t, 10000.0, m.State.Pm2, "p_1 defaults to p0")
	assert.Equal(t, 10000.0, m.State.Pm3, "p_2 defaults to p_1")
	assert.Equal(t, 1.5, m.State.Qm1)
	assert.Equal(t, 1.5, m.State.Qm2, "q_2 defaults to q_1")
	assert.Equal(t, 1.5, m.State.Qm3, "q_3 defaults to q_2")
}

func TestParse_PoleResidue(t *testing.T) {
	cfg, err := Parse([]byte(poleResidueTOML))
	require.NoError(t, err)

	o, err := cfg.Outlets[0].Build(nil)
	require.NoError(t, err)
	assert.Equal(t, outlet.Implicit, o.Mode)
	assert.Equal(t, 0.8, o.Stab.BetaT)
	assert.Equal(t, 0.0, o.Stab.BetaN)
	assert.Equal(t, 0.5, o.Stab.DampingFactor)
	assert.True(t, o.Stab.Enabled, "stabilization defaults to enabled")

	m, ok := o.Model().(outlet.PoleResidueModel)
	require.True(t, ok)
	assert.Equal(t, 3, m.State.NumPoles())
	assert.Equal(t, 1050.0, m.State.Rho)
	assert.Equal(t, lumped.DynamicUnits, m.State.Units)
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte(`
[[outlet]]
name = "aorta"
model = "windkessel"
order = 1
R = 1000.0
C = 1e-5
Zz = 25.0
`))
	require.Error(t, err, "a misspelled key must not silently disappear")
	assert.Contains(t, err.Error(), "Zz")
}

func TestParse_RequiresOutletSection(t *testing.T) {
	_, err := Parse([]byte(`# empty file`))
	assert.Error(t, err)
}

func TestBuild_FatalConditions(t *testing.T) {
	base := OutletConfig{
		Name:  "x",
		Model: ModelWindkessel,
		Order: 2, R: 1000, C: 1e-5, Z: 0,
	}

	t.Run("InvalidCouplingMode", func(t *testing.T) {
		oc := base
		oc.CouplingMode = "lagged"
		_, err := oc.Build(nil)
		assert.ErrorContains(t, err, "couplingMode")
	})

	t.Run("InvalidOrderIsFatal", func(t *testing.T) {
		// A typo in the order is a configuration error, not a silent
		// downgrade to first order.
		oc := base
		oc.Order = 4
		_, err := oc.Build(nil)
		assert.ErrorContains(t, err, "order")
	})

	t.Run("UnknownModel", func(t *testing.T) {
		oc := base
		oc.Model = "windkessle"
		_, err := oc.Build(nil)
		assert.ErrorContains(t, err, "model")
	})

	t.Run("PolesLengthMismatch", func(t *testing.T) {
		oc := OutletConfig{
			Name: "x", Model: ModelPoleResidue,
			NPoles:   3,
			Poles:    []float64{-1, -2},
			Residues: []float64{1, 2},
		}
		_, err := oc.Build(nil)
		assert.ErrorContains(t, err, "poles")
	})

	t.Run("ResiduesLengthMismatch", func(t *testing.T) {
		oc := OutletConfig{
			Name: "x", Model: ModelPoleResidue,
			NPoles:   2,
			Poles:    []float64{-1, -2},
			Residues: []float64{1},
		}
		_, err := oc.Build(nil)
		assert.ErrorContains(t, err, "residues")
	})

	t.Run("NonNegativePole", func(t *testing.T) {
		oc := OutletConfig{
			Name: "x", Model: ModelPoleResidue,
			NPoles:   2,
			Poles:    []float64{-1, 0.5},
			Residues: []float64{1, 2},
		}
		_, err := oc.Build(nil)
		assert.ErrorContains(t, err, "pole")
	})

	t.Run("InvalidImpedanceUnits", func(t *testing.T) {
		oc := OutletConfig{
			Name: "x", Model: ModelPoleResidue,
			NPoles:         1,
			Poles:          []float64{-1},
			Residues:       []float64{1},
			ImpedanceUnits: "pascal",
		}
		_, err := oc.Build(nil)
		assert.ErrorContains(t, err, "impedanceUnits")
	})

	t.Run("BetaOutOfRange", func(t *testing.T) {
		oc := base
		b := 1.5
		oc.BetaT = &b
		_, err := oc.Build(nil)
		assert.ErrorContains(t, err, "betaT")
	})
}

func TestBuild_LegacyOrderKeyAsPoleCount(t *testing.T) {
	cfg, err := Parse([]byte(`
[[outlet]]
name = "legacy"
model = "poleResidue"
order = 2
poles = [-4.0, -40.0]
residues = [1.0, 2.0]
directTerm = 0.5
`))
	require.NoError(t, err)

	o, err := cfg.Outlets[0].Build(nil)
	require.NoError(t, err)

	m := o.Model().(outlet.PoleResidueModel)
	assert.Equal(t, 2, m.State.NumPoles())
	assert.Equal(t, lumped.DefaultDensity, m.State.Rho, "rho defaults to blood density")
}

func TestBuild_RestartStateVariables(t *testing.T) {
	t.Run("MatchingSize", func(t *testing.T) {
		oc := OutletConfig{
			Name: "x", Model: ModelPoleResidue,
			NPoles:         2,
			Poles:          []float64{-1, -2},
			Residues:       []float64{1, 2},
			StateVariables: []float64{0.5, -0.25},
		}
		o, err := oc.Build(nil)
		require.NoError(t, err)

		m := o.Model().(outlet.PoleResidueModel)
		assert.Equal(t, []float64{0.5, -0.25}, m.State.Zvars)
	})

	t.Run("SizeMismatchWarnsAndZeroes", func(t *testing.T) {
		log, hook := logtest.NewNullLogger()
		oc := OutletConfig{
			Name: "x", Model: ModelPoleResidue,
			NPoles:         2,
			Poles:          []float64{-1, -2},
			Residues:       []float64{1, 2},
			StateVariables: []float64{0.5},
		}
		o, err := oc.Build(log)
		require.NoError(t, err, "restart size mismatch is recoverable")

		m := o.Model().(outlet.PoleResidueModel)
		assert.Equal(t, []float64{0, 0}, m.State.Zvars)
		assert.NotNil(t, hook.LastEntry())
	})
}

func TestBuildAll_NamesDefault(t *testing.T) {
	cfg, err := Parse([]byte(`
[[outlet]]
model = "windkessel"
order = 1
R = 500.0
C = 2e-5

[[outlet]]
name = "renal"
model = "windkessel"
order = 1
R = 8000.0
C = 5e-6
`))
	require.NoError(t, err)

	outs, err := cfg.BuildAll(nil)
	require.NoError(t, err)
	require.Len(t, outs, 2)
	assert.Equal(t, "outlet0", outs[0].Name)
	assert.Equal(t, "renal", outs[1].Name)
}
