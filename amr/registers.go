package amr

// Side identifies one face of a refined box: Side = 2*axis + (0 lower, 1 upper)
type Side int

// Axis returns the normal direction of the side
func (s Side) Axis() int { return int(s) / 2 }

// Upper reports whether the side is on the high end of its axis
func (s Side) Upper() bool { return int(s)%2 == 1 }

// Transverse returns the two axes spanning a face normal to d, in increasing order
func Transverse(d int) (int, int) {
	switch d {
	case 0:
		return 1, 2
	case 1:
		return 0, 2
	default:
		return 0, 1
	}
}

// FluxRegister records, for every coarse face on the surface of a refined box,
// the time-integrated coarse flux and the accumulated time-integrated fine flux
// averaged over the fine faces tiling it. Values are indexed
// [side][field][a + Size*b] with a, b the transverse offsets inside the box.
type FluxRegister struct {
	Box    Box
	NComp  int
	Coarse [6][][]float64
	Fine   [6][][]float64
}

// NewFluxRegister allocates a zeroed register for box
func NewFluxRegister(box Box, ncomp int) *FluxRegister {
	r := &FluxRegister{Box: box, NComp: ncomp}
	for s := 0; s < 6; s++ {
		r.Coarse[s] = make([][]float64, ncomp)
		r.Fine[s] = make([][]float64, ncomp)
		for v := 0; v < ncomp; v++ {
			r.Coarse[s][v] = make([]float64, box.Size*box.Size)
			r.Fine[s][v] = make([]float64, box.Size*box.Size)
		}
	}
	return r
}

// Idx flattens transverse offsets
func (r *FluxRegister) Idx(a, b int) int { return a + r.Box.Size*b }

// Reset zeroes both sides of the register
func (r *FluxRegister) Reset() {
	for s := 0; s < 6; s++ {
		for v := 0; v < r.NComp; v++ {
			clear(r.Coarse[s][v])
			clear(r.Fine[s][v])
		}
	}
}

// UncoveredCell returns the coarse cell outside the box that borders the face at
// transverse offsets (a,b) of side s
func (r *FluxRegister) UncoveredCell(s Side, a, b int) (i, j, k int) {
	d := s.Axis()
	t1, t2 := Transverse(d)
	var c [3]int
	if s.Upper() {
		c[d] = r.Box.Hi(d)
	} else {
		c[d] = r.Box.Lo[d] - 1
	}
	c[t1] = r.Box.Lo[t1] + a
	c[t2] = r.Box.Lo[t2] + b
	return c[0], c[1], c[2]
}

// EMFRegister records, on coarse edges lying on the surface of a refined box,
// the line-integrated electric field the coarse step applied and the sum of the
// fine-level contributions along the same edges
type EMFRegister struct {
	Box    Box
	Coarse *EdgeField
	Fine   *EdgeField
}

// NewEMFRegister allocates a register on an n³ coarse level
func NewEMFRegister(box Box, n int) *EMFRegister {
	return &EMFRegister{Box: box, Coarse: NewEdgeField(n), Fine: NewEdgeField(n)}
}

// Reset zeroes both sides of the register
func (r *EMFRegister) Reset() {
	r.Coarse.Reset()
	r.Fine.Reset()
}

// Mismatch returns fine minus coarse on box-surface edges and zero elsewhere
func (r *EMFRegister) Mismatch() *EdgeField {
	n := r.Coarse.N
	delta := NewEdgeField(n)
	for k := 0; k <= n; k++ {
		for j := 0; j <= n; j++ {
			for i := 0; i <= n; i++ {
				if i < n && r.Box.OnSurfaceEdge(0, i, j, k) {
					idx := delta.IdxX(i, j, k)
					delta.X[idx] = r.Fine.X[idx] - r.Coarse.X[idx]
				}
				if j < n && r.Box.OnSurfaceEdge(1, i, j, k) {
					idx := delta.IdxY(i, j, k)
					delta.Y[idx] = r.Fine.Y[idx] - r.Coarse.Y[idx]
				}
				if k < n && r.Box.OnSurfaceEdge(2, i, j, k) {
					idx := delta.IdxZ(i, j, k)
					delta.Z[idx] = r.Fine.Z[idx] - r.Coarse.Z[idx]
				}
			}
		}
	}
	return delta
}

// AddFine accumulates a fine-level edge field onto the coarse surface edges.
// Each coarse edge is the sum of the two fine edges that make it up.
func (r *EMFRegister) AddFine(fine *EdgeField) {
	b := r.Box
	n := r.Coarse.N
	for k := 0; k <= n; k++ {
		for j := 0; j <= n; j++ {
			for i := 0; i <= n; i++ {
				// fine node coordinates of coarse node (i,j,k)
				fi, fj, fk := 2*(i-b.Lo[0]), 2*(j-b.Lo[1]), 2*(k-b.Lo[2])
				if i < n && b.OnSurfaceEdge(0, i, j, k) {
					r.Fine.X[r.Fine.IdxX(i, j, k)] += fine.X[fine.IdxX(fi, fj, fk)] + fine.X[fine.IdxX(fi+1, fj, fk)]
				}
				if j < n && b.OnSurfaceEdge(1, i, j, k) {
					r.Fine.Y[r.Fine.IdxY(i, j, k)] += fine.Y[fine.IdxY(fi, fj, fk)] + fine.Y[fine.IdxY(fi, fj+1, fk)]
				}
				if k < n && b.OnSurfaceEdge(2, i, j, k) {
					r.Fine.Z[r.Fine.IdxZ(i, j, k)] += fine.Z[fine.IdxZ(fi, fj, fk)] + fine.Z[fine.IdxZ(fi, fj, fk+1)]
				}
			}
		}
	}
}
