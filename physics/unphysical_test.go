package physics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"amrfluid/core"
)

func TestDetectorUnphysical(t *testing.T) {
	hydro := core.Capabilities{NPassive: 1}
	baro := core.Capabilities{Barotropic: true}

	tests := []struct {
		name string
		caps core.Capabilities
		mode CheckMode
		u    []float64
		emag float64
		want bool
	}{
		{"physical", hydro, ModeConserved, []float64{1, 0, 0, 0, 1, 0.5}, 0, false},
		{"negative density", hydro, ModeConserved, []float64{-1, 0, 0, 0, 1, 0.5}, 0, true},
		{"zero density", hydro, ModeConserved, []float64{0, 0, 0, 0, 1, 0.5}, 0, true},
		{"nan momentum", hydro, ModeConserved, []float64{1, math.NaN(), 0, 0, 1, 0.5}, 0, true},
		{"inf energy", hydro, ModeConserved, []float64{1, 0, 0, 0, math.Inf(1), 0.5}, 0, true},
		{"negative energy", hydro, ModeConserved, []float64{1, 0, 0, 0, -1, 0.5}, 0, true},
		{"negative passive", hydro, ModeConserved, []float64{1, 0, 0, 0, 1, -0.5}, 0, true},
		{"barotropic ignores energy", baro, ModeConserved, []float64{1, 0, 0, 0, -1}, 0, false},
		{"eint positive", hydro, ModeEint, []float64{1, 1, 0, 0, 1, 0}, 0.25, false},
		{"eint eaten by magnetic energy", hydro, ModeEint, []float64{1, 1, 0, 0, 1, 0}, 0.6, true},
		{"conserved mode ignores emag", hydro, ModeConserved, []float64{1, 1, 0, 0, 1, 0}, 0.6, false},
		{"primitive pressure", hydro, ModePrimitive, []float64{1, -3, 0, 0, 0, 0}, 0, true},
		{"primitive ok", hydro, ModePrimitive, []float64{1, -3, 0, 0, 0.1, 0}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckUnphysical(tt.caps, tt.mode, tt.u, tt.emag))
		})
	}
}

func TestNormalizePassive(t *testing.T) {
	p := []float64{1, 2, 3}
	NormalizePassive(12, p, []int{0, 2})
	assert.InDelta(t, 3.0, p[0], 1e-12)
	assert.Equal(t, 2.0, p[1])
	assert.InDelta(t, 9.0, p[2], 1e-12)

	// an empty selection or a zero sum leaves the scalars alone
	q := []float64{0, 0}
	NormalizePassive(1, q, []int{0, 1})
	assert.Equal(t, []float64{0, 0}, q)
	NormalizePassive(1, p, nil)
	assert.InDelta(t, 3.0, p[0], 1e-12)
}

func TestCheckMinEintInEngy(t *testing.T) {
	assert.Equal(t, 5.0, CheckMinEintInEngy(1, 1, 0, 0, 5, 0.1, 1))
	assert.InDelta(t, 0.5+1+0.1, CheckMinEintInEngy(1, 1, 0, 0, 0.2, 0.1, 1), 1e-12)
}

func TestDualEnergyFixMinPres(t *testing.T) {
	de := EntropyDualEnergy{Gamma: 1.4}
	u := []float64{1, 0, 0, 0, 1e-3, 1e-9}
	status := de.Fix(u, core.NCompFluid, 0, 1e-2, true, 1e-5)
	assert.Equal(t, core.DEUpdatedByEtot, status, "ratio is infinite for a fluid at rest")
	assert.InDelta(t, 0.4e-3, de.DensDual2Pres(1, u[core.NCompFluid]), 1e-15)

	u = []float64{1, 1, 0, 0, 0.5, 1e-6}
	status = de.Fix(u, core.NCompFluid, 0, 1e-2, true, 0.01)
	assert.Equal(t, core.DEUpdatedByMinPres, status)
	assert.InDelta(t, 0.5+0.01/0.4, u[core.Engy], 1e-12)

	u = []float64{-1, 0, 0, 0, 1, 1}
	assert.Equal(t, core.DEUpdatedByEtot, de.Fix(u, core.NCompFluid, 0, 1e-2, false, 0))
	assert.Equal(t, []float64{-1, 0, 0, 0, 1, 1}, u)
}

func TestDualEnergyRoundTrip(t *testing.T) {
	de := EntropyDualEnergy{Gamma: testGamma}
	assert.InDelta(t, 2.5, de.DensDual2Pres(3, de.DensPres2Dual(3, 2.5)), 1e-12)
}
