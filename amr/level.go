package amr

import "amrfluid/core"

// Box is a cubic region of a parent level, in parent cell indices
type Box struct {
	Lo   [3]int
	Size int
}

// Hi returns the exclusive upper corner
func (b Box) Hi(d int) int { return b.Lo[d] + b.Size }

// ContainsCell reports whether parent cell (i,j,k) is covered by the box
func (b Box) ContainsCell(i, j, k int) bool {
	c := [3]int{i, j, k}
	for d := 0; d < 3; d++ {
		if c[d] < b.Lo[d] || c[d] >= b.Hi(d) {
			return false
		}
	}
	return true
}

// ContainsFace reports whether the parent face normal to d at lower corner
// (i,j,k) lies inside or on the surface of the box. Those are the faces the
// restriction overwrites from the finer level.
func (b Box) ContainsFace(d, i, j, k int) bool {
	c := [3]int{i, j, k}
	for a := 0; a < 3; a++ {
		hi := b.Hi(a)
		if a == d {
			hi++
		}
		if c[a] < b.Lo[a] || c[a] >= hi {
			return false
		}
	}
	return true
}

// OnSurfaceEdge reports whether the parent edge along d starting at node
// (i,j,k) lies on the surface of the box
func (b Box) OnSurfaceEdge(d, i, j, k int) bool {
	c := [3]int{i, j, k}
	onBoundary := false
	for a := 0; a < 3; a++ {
		if a == d {
			if c[a] < b.Lo[a] || c[a] >= b.Hi(a) {
				return false
			}
			continue
		}
		if c[a] < b.Lo[a] || c[a] > b.Hi(a) {
			return false
		}
		if c[a] == b.Lo[a] || c[a] == b.Hi(a) {
			onBoundary = true
		}
	}
	return onBoundary
}

// Level is one refinement level: a uniform cube of cells with double-buffered
// fluid and magnetic storage. FluSg and MagSg select the current generation.
type Level struct {
	Index int
	N     int
	Dh    float64
	Box   Box // region of the parent level covered by this level; unused on level 0

	Flu   [2]*core.Grid
	Mag   [2]*core.FaceField
	Pot   *core.Grid // gravitational potential, never restricted
	FluSg int
	MagSg int
	Time  float64
}

func newLevel(index, n int, dh float64, caps core.Capabilities) *Level {
	lv := &Level{Index: index, N: n, Dh: dh, Pot: core.NewGrid(n, 1)}
	for sg := 0; sg < 2; sg++ {
		lv.Flu[sg] = core.NewGrid(n, caps.NComp())
		if caps.Magnetized {
			lv.Mag[sg] = core.NewFaceField(n)
		}
	}
	return lv
}

// Fluid returns the current fluid generation
func (lv *Level) Fluid() *core.Grid { return lv.Flu[lv.FluSg] }

// NextFluid returns the generation the next step writes into
func (lv *Level) NextFluid() *core.Grid { return lv.Flu[1-lv.FluSg] }

// Magnetic returns the current face-centered B, or nil for hydro runs
func (lv *Level) Magnetic() *core.FaceField { return lv.Mag[lv.MagSg] }

// NextMagnetic returns the B generation the next step writes into
func (lv *Level) NextMagnetic() *core.FaceField { return lv.Mag[1-lv.MagSg] }

// SwapFluid makes the next generation current
func (lv *Level) SwapFluid() { lv.FluSg = 1 - lv.FluSg }

// SwapMagnetic makes the next B generation current
func (lv *Level) SwapMagnetic() { lv.MagSg = 1 - lv.MagSg }

// MaxAbsDivergence returns the largest |div B| over the current generation
func (lv *Level) MaxAbsDivergence() float64 {
	fb := lv.Magnetic()
	if fb == nil {
		return 0
	}
	max := 0.0
	for k := 0; k < lv.N; k++ {
		for j := 0; j < lv.N; j++ {
			for i := 0; i < lv.N; i++ {
				div := fb.Divergence(i, j, k, lv.Dh)
				if div < 0 {
					div = -div
				}
				if div > max {
					max = div
				}
			}
		}
	}
	return max
}
