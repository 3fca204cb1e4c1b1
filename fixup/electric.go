package fixup

import (
	"fmt"

	"amrfluid/amr"
)

// Electric applies the mismatch between the fine and coarse line-integrated
// electric fields on the coarse-fine edges to the coarse B field. After a
// restriction the faces covered by the finer level already carry the fine data
// and are left alone; otherwise every face is corrected.
type Electric struct {
	H *amr.Hierarchy
}

func (e *Electric) CorrectElectric(lv int, req Request) error {
	coarse, fine, err := e.H.Pair(lv)
	if err != nil {
		return err
	}
	if err := checkSg(req.MagDst); err != nil {
		return err
	}
	reg := e.H.EMF[lv]
	fb := coarse.Mag[req.MagDst]
	if reg == nil || fb == nil {
		return fmt.Errorf("level %d: electric correction on a hydro hierarchy", lv)
	}

	keep := func(int, int, int, int) bool { return true }
	if req.Restricted {
		box := fine.Box
		keep = func(d, i, j, k int) bool { return !box.ContainsFace(d, i, j, k) }
	}
	reg.Mismatch().Curl(fb, coarse.Dh, keep)
	return nil
}
