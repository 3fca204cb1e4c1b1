package amr

import "amrfluid/core"

// EdgeField holds line-integrated electric fields (E·dl·dt) on the cell edges of
// an n³ grid. X edges span [i,i+1] at node (j,k), Y edges [j,j+1] at (i,k) and
// Z edges [k,k+1] at (i,j).
type EdgeField struct {
	N int
	X []float64
	Y []float64
	Z []float64
}

// NewEdgeField allocates a zeroed edge field
func NewEdgeField(n int) *EdgeField {
	m := n * (n + 1) * (n + 1)
	return &EdgeField{N: n, X: make([]float64, m), Y: make([]float64, m), Z: make([]float64, m)}
}

func (e *EdgeField) IdxX(i, j, k int) int { return i + e.N*(j+(e.N+1)*k) }
func (e *EdgeField) IdxY(i, j, k int) int { return i + (e.N+1)*(j+e.N*k) }
func (e *EdgeField) IdxZ(i, j, k int) int { return i + (e.N+1)*(j+(e.N+1)*k) }

// Reset zeroes every edge
func (e *EdgeField) Reset() {
	clear(e.X)
	clear(e.Y)
	clear(e.Z)
}

// Curl applies the constrained-transport update B -= curl(E)/dh² to the faces
// of fb accepted by keep. Because every edge enters the two faces of a cell with
// opposite signs, the discrete divergence of fb is left unchanged.
func (e *EdgeField) Curl(fb *core.FaceField, dh float64, keep func(d, i, j, k int) bool) {
	n := fb.N
	inv := 1 / (dh * dh)
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i <= n; i++ {
				if keep(core.X, i, j, k) {
					circ := e.Z[e.IdxZ(i, j+1, k)] - e.Z[e.IdxZ(i, j, k)] - e.Y[e.IdxY(i, j, k+1)] + e.Y[e.IdxY(i, j, k)]
					fb.X[fb.IdxX(i, j, k)] -= circ * inv
				}
			}
		}
	}
	for k := 0; k < n; k++ {
		for j := 0; j <= n; j++ {
			for i := 0; i < n; i++ {
				if keep(core.Y, i, j, k) {
					circ := e.X[e.IdxX(i, j, k+1)] - e.X[e.IdxX(i, j, k)] - e.Z[e.IdxZ(i+1, j, k)] + e.Z[e.IdxZ(i, j, k)]
					fb.Y[fb.IdxY(i, j, k)] -= circ * inv
				}
			}
		}
	}
	for k := 0; k <= n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				if keep(core.Z, i, j, k) {
					circ := e.Y[e.IdxY(i+1, j, k)] - e.Y[e.IdxY(i, j, k)] - e.X[e.IdxX(i, j+1, k)] + e.X[e.IdxX(i, j, k)]
					fb.Z[fb.IdxZ(i, j, k)] -= circ * inv
				}
			}
		}
	}
}
