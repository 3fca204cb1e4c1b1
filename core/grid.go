package core

// Grid is a cube of cell-centered fields stored as structure of arrays.
// Data[v][Idx(i,j,k)] holds field v of cell (i,j,k).
type Grid struct {
	N    int
	Data [][]float64
}

// NewGrid allocates an n³ grid with ncomp fields
func NewGrid(n, ncomp int) *Grid {
	g := &Grid{N: n, Data: make([][]float64, ncomp)}
	for v := range g.Data {
		g.Data[v] = make([]float64, n*n*n)
	}
	return g
}

// Idx flattens a cell coordinate, x fastest
func (g *Grid) Idx(i, j, k int) int {
	return i + g.N*(j+g.N*k)
}

// NComp returns the number of stored fields
func (g *Grid) NComp() int { return len(g.Data) }

// Cells returns the number of cells
func (g *Grid) Cells() int { return g.N * g.N * g.N }

// Cell copies the fields of one cell into dst and returns it
func (g *Grid) Cell(idx int, dst []float64) []float64 {
	if cap(dst) < len(g.Data) {
		dst = make([]float64, len(g.Data))
	}
	dst = dst[:len(g.Data)]
	for v := range g.Data {
		dst[v] = g.Data[v][idx]
	}
	return dst
}

// SetCell writes the fields of one cell
func (g *Grid) SetCell(idx int, src []float64) {
	for v := range g.Data {
		g.Data[v][idx] = src[v]
	}
}

// Fill sets every cell of field v to val
func (g *Grid) Fill(v int, val float64) {
	for i := range g.Data[v] {
		g.Data[v][i] = val
	}
}

// Clone returns a deep copy
func (g *Grid) Clone() *Grid {
	c := &Grid{N: g.N, Data: make([][]float64, len(g.Data))}
	for v := range g.Data {
		c.Data[v] = append([]float64(nil), g.Data[v]...)
	}
	return c
}

// FaceField holds a face-centered vector field (the magnetic field) of an n³ block.
// X has (n+1)×n×n entries, Y n×(n+1)×n, Z n×n×(n+1).
type FaceField struct {
	N int
	X []float64
	Y []float64
	Z []float64
}

// NewFaceField allocates a zeroed face field for an n³ block
func NewFaceField(n int) *FaceField {
	m := (n + 1) * n * n
	return &FaceField{N: n, X: make([]float64, m), Y: make([]float64, m), Z: make([]float64, m)}
}

// IdxX indexes the x-face at the lower x side of cell (i,j,k), 0 <= i <= n
func (f *FaceField) IdxX(i, j, k int) int { return i + (f.N+1)*(j+f.N*k) }

// IdxY indexes the y-face at the lower y side of cell (i,j,k), 0 <= j <= n
func (f *FaceField) IdxY(i, j, k int) int { return i + f.N*(j+(f.N+1)*k) }

// IdxZ indexes the z-face at the lower z side of cell (i,j,k), 0 <= k <= n
func (f *FaceField) IdxZ(i, j, k int) int { return i + f.N*(j+f.N*k) }

// Component returns the storage of one axis
func (f *FaceField) Component(d int) []float64 {
	switch d {
	case X:
		return f.X
	case Y:
		return f.Y
	default:
		return f.Z
	}
}

// Clone returns a deep copy
func (f *FaceField) Clone() *FaceField {
	return &FaceField{
		N: f.N,
		X: append([]float64(nil), f.X...),
		Y: append([]float64(nil), f.Y...),
		Z: append([]float64(nil), f.Z...),
	}
}

// CellCentered averages the two faces bounding cell (i,j,k) along each axis
func (f *FaceField) CellCentered(i, j, k int) (bx, by, bz float64) {
	bx = 0.5 * (f.X[f.IdxX(i, j, k)] + f.X[f.IdxX(i+1, j, k)])
	by = 0.5 * (f.Y[f.IdxY(i, j, k)] + f.Y[f.IdxY(i, j+1, k)])
	bz = 0.5 * (f.Z[f.IdxZ(i, j, k)] + f.Z[f.IdxZ(i, j, k+1)])
	return bx, by, bz
}

// Divergence returns the discrete divergence of cell (i,j,k) for cell size dh
func (f *FaceField) Divergence(i, j, k int, dh float64) float64 {
	return (f.X[f.IdxX(i+1, j, k)] - f.X[f.IdxX(i, j, k)] +
		f.Y[f.IdxY(i, j+1, k)] - f.Y[f.IdxY(i, j, k)] +
		f.Z[f.IdxZ(i, j, k+1)] - f.Z[f.IdxZ(i, j, k)]) / dh
}

// FluxField stores face fluxes for the three axes: Data[d][v][Idx(i,j,k)] on a
// face grid of N entries per axis.
type FluxField struct {
	N    int
	Data [3][][]float64
}

// NewFluxField allocates a zeroed flux field with n entries per axis and nflux components
func NewFluxField(n, nflux int) *FluxField {
	f := &FluxField{N: n}
	for d := 0; d < 3; d++ {
		f.Data[d] = make([][]float64, nflux)
		for v := range f.Data[d] {
			f.Data[d][v] = make([]float64, n*n*n)
		}
	}
	return f
}

// Idx flattens a face-grid coordinate, x fastest
func (f *FluxField) Idx(i, j, k int) int {
	return i + f.N*(j+f.N*k)
}

// FluxSize returns the face-grid extent for an n³ output block
func FluxSize(n int, caps Capabilities) int {
	if caps.Magnetized {
		return n + 2
	}
	return n + 1
}
