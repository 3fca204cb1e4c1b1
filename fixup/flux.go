package fixup

import (
	"amrfluid/amr"
	"amrfluid/core"
	"amrfluid/physics"
)

// FluxFix corrects coarse cells bordering a refined box with the difference
// between the fine and coarse time-integrated fluxes through the shared faces.
// A correction that would leave the cell unphysical, judged with the cell's
// current magnetic energy, is discarded.
type FluxFix struct {
	H    *amr.Hierarchy
	Dual physics.DualEnergyCorrector // resynchronizes the tracker when set

	rejected int
}

// Rejected returns how many cells the last call left uncorrected
func (f *FluxFix) Rejected() int { return f.rejected }

func (f *FluxFix) CorrectFlux(lv int, req Request) error {
	coarse, _, err := f.H.Pair(lv)
	if err != nil {
		return err
	}
	if err := checkSg(req.FluDst, req.MagDst); err != nil {
		return err
	}
	caps := f.H.Caps
	detector := physics.Detector{Caps: caps}
	reg := f.H.Flux[lv]
	g := coarse.Flu[req.FluDst]
	var fb *core.FaceField
	if req.HasMag {
		fb = coarse.Mag[req.MagDst]
	}

	f.rejected = 0
	u := make([]float64, caps.NComp())
	inv := 1 / coarse.Dh
	size := reg.Box.Size
	for s := amr.Side(0); s < 6; s++ {
		sign := -1.0
		if s.Upper() {
			sign = 1
		}
		for b := 0; b < size; b++ {
			for a := 0; a < size; a++ {
				i, j, k := reg.UncoveredCell(s, a, b)
				idx := g.Idx(i, j, k)
				r := reg.Idx(a, b)
				g.Cell(idx, u)
				for v := range u {
					u[v] += sign * (reg.Fine[s][v][r] - reg.Coarse[s][v][r]) * inv
				}

				emag := 0.0
				if fb != nil {
					emag = physics.CellMagneticEnergy(fb, i, j, k)
				}
				if detector.Unphysical(physics.ModeEint, u, emag) {
					f.rejected++
					continue
				}
				if caps.DualEnergy && f.Dual != nil {
					f.Dual.Fix(u, caps.Enpy(), emag, 0, false, 0)
				}
				g.SetCell(idx, u)
			}
		}
	}
	return nil
}
