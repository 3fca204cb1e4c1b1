package fixup

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amrfluid/amr"
	"amrfluid/core"
	"amrfluid/physics"
)

var testBox = amr.Box{Lo: [3]int{1, 1, 1}, Size: 2}

func randomEdges(n int, rng *rand.Rand) *amr.EdgeField {
	e := amr.NewEdgeField(n)
	for _, comp := range [][]float64{e.X, e.Y, e.Z} {
		for i := range comp {
			comp[i] = rng.Float64() - 0.5
		}
	}
	return e
}

func keepAll(int, int, int, int) bool { return true }

func fillUniform(g *core.Grid, dens, engy float64) {
	g.Fill(core.Dens, dens)
	g.Fill(core.Engy, engy)
}

func TestRestrictConservesTotals(t *testing.T) {
	caps := core.Capabilities{NPassive: 1}
	h, err := amr.New(caps, 4, 1, testBox)
	require.NoError(t, err)
	randomize(h, 7)

	coarse := h.Levels[0]
	r := &Restrict{H: h}
	require.NoError(t, r.Restrict(0, Request{Mask: FieldTotal}))

	g := coarse.Fluid()
	for v := 0; v < caps.NComp(); v++ {
		covered := 0.0
		for k := 1; k < 3; k++ {
			for j := 1; j < 3; j++ {
				for i := 1; i < 3; i++ {
					covered += g.Data[v][g.Idx(i, j, k)]
				}
			}
		}
		fineTotal := h.Total(1, v)
		assert.InDelta(t, fineTotal, covered*coarse.Dh*coarse.Dh*coarse.Dh, 1e-12, "field %d", v)
	}
	// cells outside the box are untouched
	assert.Greater(t, g.Data[core.Dens][g.Idx(0, 0, 0)], 1.0)
}

func TestRestrictRejectsBadGeneration(t *testing.T) {
	h, err := amr.New(core.Capabilities{}, 4, 1, testBox)
	require.NoError(t, err)
	r := &Restrict{H: h}
	assert.Error(t, r.Restrict(0, Request{FluSrc: 2, Mask: FieldTotal}))
	assert.ErrorIs(t, r.Restrict(1, Request{Mask: FieldTotal}), amr.ErrNoFinerLevel)
}

func TestRestrictFacesKeepsCoveredCellsDivergenceFree(t *testing.T) {
	h, err := amr.New(core.Capabilities{Magnetized: true}, 4, 1, testBox)
	require.NoError(t, err)
	randomize(h, 11)
	fine := h.Levels[1]
	*fine.Magnetic() = *core.NewFaceField(fine.N)
	randomEdges(fine.N, rand.New(rand.NewSource(5))).Curl(fine.Magnetic(), fine.Dh, keepAll)
	require.Less(t, fine.MaxAbsDivergence(), 1e-12)

	r := &Restrict{H: h}
	require.NoError(t, r.Restrict(0, Request{HasMag: true, Mask: FieldMag}))

	coarse := h.Levels[0]
	fb := coarse.Magnetic()
	for k := 1; k < 3; k++ {
		for j := 1; j < 3; j++ {
			for i := 1; i < 3; i++ {
				assert.InDelta(t, 0, fb.Divergence(i, j, k, coarse.Dh), 1e-12, "cell (%d,%d,%d)", i, j, k)
			}
		}
	}
}

// curlHierarchy returns a magnetized hierarchy whose coarse B is divergence-free
// and whose EMF register holds unrelated fine and coarse edge fields
func curlHierarchy(t *testing.T, seed int64) *amr.Hierarchy {
	t.Helper()
	h, err := amr.New(core.Capabilities{Magnetized: true}, 4, 1, testBox)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(seed))
	coarse := h.Levels[0]
	randomEdges(coarse.N, rng).Curl(coarse.Magnetic(), coarse.Dh, keepAll)
	require.Less(t, coarse.MaxAbsDivergence(), 1e-12)

	reg := h.EMF[0]
	reg.Fine = randomEdges(coarse.N, rng)
	reg.Coarse = randomEdges(coarse.N, rng)
	return h
}

// faceChanges counts the faces inside or outside the box that differ between a and b
func faceChanges(a, b *core.FaceField, box amr.Box) (covered, uncovered int) {
	n := a.N
	for d := 0; d < 3; d++ {
		for k := 0; k <= n; k++ {
			for j := 0; j <= n; j++ {
				for i := 0; i <= n; i++ {
					var idx int
					switch {
					case d == core.X && j < n && k < n:
						idx = a.IdxX(i, j, k)
					case d == core.Y && i < n && k < n:
						idx = a.IdxY(i, j, k)
					case d == core.Z && i < n && j < n:
						idx = a.IdxZ(i, j, k)
					default:
						continue
					}
					if a.Component(d)[idx] == b.Component(d)[idx] {
						continue
					}
					if box.ContainsFace(d, i, j, k) {
						covered++
					} else {
						uncovered++
					}
				}
			}
		}
	}
	return covered, uncovered
}

func TestElectricPreservesDivergenceWithoutRestriction(t *testing.T) {
	h := curlHierarchy(t, 13)
	coarse := h.Levels[0]
	before := coarse.Magnetic().Clone()

	e := &Electric{H: h}
	require.NoError(t, e.CorrectElectric(0, Request{HasMag: true, Mask: FieldMag}))

	assert.Less(t, coarse.MaxAbsDivergence(), 1e-12)
	covered, uncovered := faceChanges(before, coarse.Magnetic(), testBox)
	assert.Positive(t, covered)
	assert.Positive(t, uncovered)
}

func TestElectricSkipsCoveredFacesAfterRestriction(t *testing.T) {
	h := curlHierarchy(t, 13)
	coarse := h.Levels[0]
	before := coarse.Magnetic().Clone()

	e := &Electric{H: h}
	require.NoError(t, e.CorrectElectric(0, Request{HasMag: true, Mask: FieldMag, Restricted: true}))

	covered, uncovered := faceChanges(before, coarse.Magnetic(), testBox)
	assert.Zero(t, covered)
	assert.Positive(t, uncovered)
}

func TestElectricOnlyCorrectionKeepsDivergenceFree(t *testing.T) {
	h := curlHierarchy(t, 29)
	o := referenceOrchestrator(t, h, Options{Electric: true})
	require.NoError(t, o.ApplyCorrections(0))
	assert.Less(t, h.Levels[0].MaxAbsDivergence(), 1e-12)
}

func TestElectricRequiresMagneticHierarchy(t *testing.T) {
	h, err := amr.New(core.Capabilities{}, 4, 1, testBox)
	require.NoError(t, err)
	e := &Electric{H: h}
	assert.Error(t, e.CorrectElectric(0, Request{HasMag: true, Mask: FieldMag}))
}

func TestFluxFixAppliesSignedDifference(t *testing.T) {
	h, err := amr.New(core.Capabilities{}, 4, 1, testBox)
	require.NoError(t, err)
	coarse := h.Levels[0]
	fillUniform(coarse.Fluid(), 1, 10)

	reg := h.Flux[0]
	reg.Fine[0][core.Dens][reg.Idx(0, 0)] = 0.3
	reg.Coarse[0][core.Dens][reg.Idx(0, 0)] = 0.1
	reg.Fine[1][core.Dens][reg.Idx(1, 0)] = 0.3
	reg.Coarse[1][core.Dens][reg.Idx(1, 0)] = 0.1

	f := &FluxFix{H: h}
	require.NoError(t, f.CorrectFlux(0, Request{Mask: FieldTotal}))
	assert.Zero(t, f.Rejected())

	g := coarse.Fluid()
	// lower x side: the fine level took more out through the face
	assert.InDelta(t, 0.8, g.Data[core.Dens][g.Idx(0, 1, 1)], 1e-15)
	// upper x side: transverse offset a=1 is y=2
	assert.InDelta(t, 1.2, g.Data[core.Dens][g.Idx(3, 2, 1)], 1e-15)
	assert.Equal(t, 1.0, g.Data[core.Dens][g.Idx(3, 1, 1)])
}

func TestFluxFixRejectsUnphysicalCorrection(t *testing.T) {
	h, err := amr.New(core.Capabilities{}, 4, 1, testBox)
	require.NoError(t, err)
	coarse := h.Levels[0]
	fillUniform(coarse.Fluid(), 1, 1)

	reg := h.Flux[0]
	reg.Fine[2][core.Dens][reg.Idx(1, 1)] = 2
	f := &FluxFix{H: h}
	require.NoError(t, f.CorrectFlux(0, Request{Mask: FieldTotal}))
	assert.Equal(t, 1, f.Rejected())

	g := coarse.Fluid()
	i, j, k := reg.UncoveredCell(2, 1, 1)
	assert.Equal(t, 1.0, g.Data[core.Dens][g.Idx(i, j, k)])
}

func TestFluxFixResyncsDualEnergyTracker(t *testing.T) {
	caps := core.Capabilities{DualEnergy: true}
	h, err := amr.New(caps, 4, 1, testBox)
	require.NoError(t, err)
	coarse := h.Levels[0]
	g := coarse.Fluid()
	fillUniform(g, 1, 10)
	dual := physics.EntropyDualEnergy{Gamma: 5.0 / 3}
	g.Fill(caps.Enpy(), dual.DensPres2Dual(1, 10*(dual.Gamma-1)))

	reg := h.Flux[0]
	reg.Fine[5][core.Engy][reg.Idx(0, 0)] = 2
	f := &FluxFix{H: h, Dual: dual}
	require.NoError(t, f.CorrectFlux(0, Request{Mask: FieldTotal}))

	i, j, k := reg.UncoveredCell(5, 0, 0)
	idx := g.Idx(i, j, k)
	assert.InDelta(t, 12, g.Data[core.Engy][idx], 1e-12)
	assert.InDelta(t, dual.DensPres2Dual(1, 12*(dual.Gamma-1)), g.Data[caps.Enpy()][idx], 1e-12)
}

// A consistent fine-level evolution, restricted and then propagated to the
// uncovered faces through the EMF mismatch, leaves every coarse cell
// divergence-free.
func TestCorrectionsKeepCoarseFieldDivergenceFree(t *testing.T) {
	caps := core.Capabilities{Magnetized: true}
	h, err := amr.New(caps, 4, 1, testBox)
	require.NoError(t, err)
	coarse, fine := h.Levels[0], h.Levels[1]
	fillUniform(coarse.Fluid(), 1, 1e3)
	fillUniform(fine.Fluid(), 1, 1e3)

	edges := randomEdges(fine.N, rand.New(rand.NewSource(17)))
	edges.Curl(fine.Magnetic(), fine.Dh, keepAll)
	h.EMF[0].AddFine(edges)

	o := referenceOrchestrator(t, h, Options{Restrict: true, Electric: true, Flux: true})
	require.NoError(t, o.ApplyCorrections(0))
	assert.Less(t, coarse.MaxAbsDivergence(), 1e-12)

	nonzero := false
	for _, v := range coarse.Magnetic().X {
		if v != 0 {
			nonzero = true
		}
	}
	assert.True(t, nonzero)
}

// staleFieldSetup prepares a coarse cell whose flux correction is only safe to
// judge once the electric-field correction has raised its magnetic energy.
func staleFieldSetup(t *testing.T) *amr.Hierarchy {
	t.Helper()
	caps := core.Capabilities{Magnetized: true}
	h, err := amr.New(caps, 4, 1, testBox)
	require.NoError(t, err)
	fillUniform(h.Levels[0].Fluid(), 1, 1)
	fillUniform(h.Levels[1].Fluid(), 1, 1)

	// By on the lower y face of cell (0,1,1) becomes 2, so Emag there is 0.5
	emf := h.EMF[0]
	emf.Fine.Z[emf.Fine.IdxZ(1, 1, 1)] = 2
	// and the fine level removed 0.7 more energy through the face next to it
	h.Flux[0].Fine[0][core.Engy][h.Flux[0].Idx(0, 0)] = 0.7
	return h
}

func TestFluxCorrectionScreensWithCorrectedField(t *testing.T) {
	h := staleFieldSetup(t)
	coarse := h.Levels[0]
	flux := &FluxFix{H: h}
	o, err := NewOrchestrator(Config{
		Options:    Options{Restrict: true, Electric: true, Flux: true},
		Magnetized: true,
		Levels:     h,
		Restrictor: &Restrict{H: h},
		Electric:   &Electric{H: h},
		Flux:       flux,
	})
	require.NoError(t, err)
	require.NoError(t, o.ApplyCorrections(0))

	g := coarse.Fluid()
	fb := coarse.Magnetic()
	idx := g.Idx(0, 1, 1)
	emag := physics.CellMagneticEnergy(fb, 0, 1, 1)
	assert.InDelta(t, 0.5, emag, 1e-15)
	assert.Equal(t, 1, flux.Rejected())
	assert.Equal(t, 1.0, g.Data[core.Engy][idx])
	assert.False(t, physics.CheckUnphysical(h.Caps, physics.ModeEint, g.Cell(idx, nil), emag))
}

func TestFluxCorrectionBeforeElectricLeavesNegativeEint(t *testing.T) {
	h := staleFieldSetup(t)
	coarse := h.Levels[0]
	flux := &FluxFix{H: h}
	require.NoError(t, (&Restrict{H: h}).Restrict(0, Request{HasMag: true, Mask: FieldTotal | FieldMag}))
	require.NoError(t, flux.CorrectFlux(0, Request{HasMag: true, Mask: FieldTotal}))
	require.NoError(t, (&Electric{H: h}).CorrectElectric(0, Request{HasMag: true, Mask: FieldMag, Restricted: true}))

	g := coarse.Fluid()
	idx := g.Idx(0, 1, 1)
	emag := physics.CellMagneticEnergy(coarse.Magnetic(), 0, 1, 1)
	assert.Zero(t, flux.Rejected())
	assert.InDelta(t, 0.3, g.Data[core.Engy][idx], 1e-15)
	assert.True(t, physics.CheckUnphysical(h.Caps, physics.ModeEint, g.Cell(idx, nil), emag))
}
