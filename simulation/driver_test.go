package simulation

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"amrfluid/amr"
	"amrfluid/compute"
	"amrfluid/core"
	"amrfluid/fixup"
	"amrfluid/physics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testOptions() Options {
	return Options{
		Caps:          core.Capabilities{NPassive: 1},
		EoS:           physics.IdealGas{Gamma: 5.0 / 3},
		BaseCells:     8,
		Box:           amr.Box{Lo: [3]int{2, 2, 2}, Size: 4},
		CFL:           0.3,
		MinmodCoeff:   1,
		MinmodMaxIter: 3,
		Fixup:         fixup.Options{Restrict: true, Electric: true, Flux: true},
	}
}

var testBlast = Blast([3]float64{0.5, 0.5, 0.5}, 0.2, 1, 10, 1)

func newTestDriver(t *testing.T, opts Options) *Driver {
	t.Helper()
	d, err := NewDriver(opts)
	require.NoError(t, err)
	require.NoError(t, d.Initialize(testBlast))
	return d
}

func TestDriverConservesCompositeTotals(t *testing.T) {
	tests := []struct {
		name        string
		caps        core.Capabilities
		eos         physics.EoS
		energyExact bool
	}{
		{"ideal gas", core.Capabilities{NPassive: 1}, physics.IdealGas{Gamma: 5.0 / 3}, true},
		{"dual energy", core.Capabilities{DualEnergy: true, NPassive: 1}, physics.IdealGas{Gamma: 1.4}, false},
		{"isothermal", core.Capabilities{Barotropic: true}, physics.Isothermal{Cs2: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			opts.Caps, opts.EoS = tt.caps, tt.eos
			d := newTestDriver(t, opts)
			h := d.Hierarchy()

			mass := h.CompositeTotal(core.Dens)
			energy := h.CompositeTotal(core.Engy)
			passive := 0.0
			if tt.caps.NPassive > 0 {
				passive = h.CompositeTotal(tt.caps.PassiveStart())
			}
			var steps []Diagnostics
			require.NoError(t, d.Run(context.Background(), 4, func(diag Diagnostics) {
				steps = append(steps, diag)
			}))
			require.Len(t, steps, 4)

			last := steps[len(steps)-1]
			assert.Equal(t, 4, last.Step)
			assert.Equal(t, d.RunID().String(), last.RunID)
			assert.Zero(t, last.Rejected)
			assert.Zero(t, last.Exhausted)
			assert.Positive(t, last.MinDens)
			assert.InEpsilon(t, mass, last.Mass, 1e-12)
			for _, v := range []int{core.MomX, core.MomY, core.MomZ} {
				assert.InDelta(t, 0, h.CompositeTotal(v), 1e-12)
			}
			if tt.energyExact {
				assert.InEpsilon(t, energy, last.Energy, 1e-12)
			}
			if tt.caps.NPassive > 0 {
				assert.InEpsilon(t, passive, h.CompositeTotal(tt.caps.PassiveStart()), 1e-10)
			}
		})
	}
}

func TestDriverLaunchersAgree(t *testing.T) {
	host := newTestDriver(t, testOptions())
	opts := testOptions()
	opts.Launcher = compute.Parallel{Workers: 4}
	par := newTestDriver(t, opts)

	for s := 0; s < 2; s++ {
		_, err := host.Step()
		require.NoError(t, err)
		_, err = par.Step()
		require.NoError(t, err)
	}
	for lv := range host.Hierarchy().Levels {
		want := host.Hierarchy().Levels[lv].Fluid()
		got := par.Hierarchy().Levels[lv].Fluid()
		assert.Empty(t, cmp.Diff(want.Data, got.Data), "level %d", lv)
	}
}

func TestDriverUniformFlowStaysUniform(t *testing.T) {
	d, err := NewDriver(testOptions())
	require.NoError(t, err)
	require.NoError(t, d.Initialize(Uniform(1, 1, [3]float64{0.5, -0.25, 0.125})))
	require.NoError(t, d.Run(context.Background(), 3, nil))

	for _, l := range d.Hierarchy().Levels {
		g := l.Fluid()
		for idx := 0; idx < g.Cells(); idx++ {
			require.InDelta(t, 1, g.Data[core.Dens][idx], 1e-12)
			require.InDelta(t, 0.5, g.Data[core.MomX][idx], 1e-12)
		}
	}
}

func TestDriverRunStopsOnCancelledContext(t *testing.T) {
	d := newTestDriver(t, testOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.Run(ctx, 5, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, d.Diagnostics().Step)
}

func TestNewDriverRejectsInvalidOptions(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
	}{
		{"magnetized", func(o *Options) { o.Caps.Magnetized = true }},
		{"no eos", func(o *Options) { o.EoS = nil }},
		{"cfl", func(o *Options) { o.CFL = 0 }},
		{"retry budget", func(o *Options) { o.MinmodMaxIter = -1 }},
		{"box too large", func(o *Options) { o.Box = amr.Box{Lo: [3]int{1, 1, 1}, Size: 7} }},
		{"eos mismatch", func(o *Options) { o.EoS = physics.Isothermal{Cs2: 1} }},
		{"passive index", func(o *Options) { o.Params.NormIdx = []int{3} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			tt.modify(&opts)
			_, err := NewDriver(opts)
			assert.Error(t, err)
		})
	}
}
