package simulation

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"amrfluid/core"
	"amrfluid/physics"
)

// Rusanov produces hydrodynamic face fluxes with the local Lax-Friedrichs solver
// on linear reconstructions limited by min-mod. Fields past the total energy
// (dual-energy tracker, passive scalars) are advected with the flow.
type Rusanov struct {
	Caps core.Capabilities
	EoS  physics.EoS
}

// ReducedCoefficient returns the min-mod coefficient for attempt it. The
// coefficient shrinks linearly with every retry and the final attempt falls
// back to a piecewise constant reconstruction.
func ReducedCoefficient(coeff float64, it physics.Iteration) float64 {
	if it.Max <= 0 {
		return coeff
	}
	if it.Final() {
		return 0
	}
	return coeff * float64(it.Max-it.Current) / float64(it.Max)
}

func minmod(a, b float64) float64 {
	if a*b <= 0 {
		return 0
	}
	if math.Abs(a) < math.Abs(b) {
		return a
	}
	return b
}

// primitive converts u into density, velocity, pressure and specific scalars
func (r Rusanov) primitive(u, w []float64) {
	dens := u[core.Dens]
	w[core.Dens] = dens
	for d := 0; d < 3; d++ {
		w[core.MomX+d] = u[core.MomX+d] / dens
	}
	eint := u[core.Engy] - physics.KineticEnergy(dens, u[core.MomX], u[core.MomY], u[core.MomZ])
	w[core.Engy] = r.EoS.DensEint2Pres(dens, eint)
	for v := core.NCompFluid; v < len(u); v++ {
		w[v] = u[v] / dens
	}
}

func (r Rusanov) conserved(w, u []float64) {
	dens := w[core.Dens]
	u[core.Dens] = dens
	v2 := 0.0
	for d := 0; d < 3; d++ {
		u[core.MomX+d] = dens * w[core.MomX+d]
		v2 += w[core.MomX+d] * w[core.MomX+d]
	}
	u[core.Engy] = 0.5*dens*v2 + r.EoS.DensPres2Eint(dens, w[core.Engy])
	for v := core.NCompFluid; v < len(w); v++ {
		u[v] = dens * w[v]
	}
}

// physicalFlux writes the flux of state (w,u) along d into f and returns the
// fastest signal speed
func (r Rusanov) physicalFlux(d int, w, u, f []float64) float64 {
	dens, pres := w[core.Dens], w[core.Engy]
	vn := w[core.MomX+d]
	for v := range f {
		f[v] = u[v] * vn
	}
	f[core.MomX+d] += pres
	f[core.Engy] += pres * vn
	return math.Abs(vn) + math.Sqrt(r.EoS.SoundSpeedSq(dens, pres))
}

// Fluxes fills out with the face fluxes of the ghosted block in. in must carry
// at least two ghost cells around an n³ block and out must hold n+1 faces per
// axis. coeff scales the limited slopes; zero gives a first-order scheme.
// Unphysical reconstructions are not repaired: they show up as NaN or negative
// states that the update kernel detects.
func (r Rusanov) Fluxes(in *core.Grid, ghost int, coeff float64, out *core.FluxField) {
	n := in.N - 2*ghost
	ncomp := in.NComp()
	alloc := func() []float64 { return make([]float64, ncomp) }

	var w [4][]float64
	for s := range w {
		w[s] = alloc()
	}
	u := alloc()
	wL, wR, uL, uR, fL, fR := alloc(), alloc(), alloc(), alloc(), alloc(), alloc()
	strides := [3]int{1, in.N, in.N * in.N}

	for d := 0; d < 3; d++ {
		for k := 0; k <= n; k++ {
			for j := 0; j <= n; j++ {
				for i := 0; i <= n; i++ {
					// only the face-normal index reaches n
					if (d != core.X && i == n) || (d != core.Y && j == n) || (d != core.Z && k == n) {
						continue
					}
					right := in.Idx(i+ghost, j+ghost, k+ghost)
					for s := range w {
						r.primitive(in.Cell(right+(s-2)*strides[d], u), w[s])
					}
					for v := 0; v < ncomp; v++ {
						wL[v] = w[1][v] + 0.5*coeff*minmod(w[1][v]-w[0][v], w[2][v]-w[1][v])
						wR[v] = w[2][v] - 0.5*coeff*minmod(w[2][v]-w[1][v], w[3][v]-w[2][v])
					}
					r.conserved(wL, uL)
					r.conserved(wR, uR)
					smax := math.Max(r.physicalFlux(d, wL, uL, fL), r.physicalFlux(d, wR, uR, fR))

					face := out.Idx(i, j, k)
					for v := 0; v < ncomp; v++ {
						out.Data[d][v][face] = 0.5*(fL[v]+fR[v]) - 0.5*smax*(uR[v]-uL[v])
					}
				}
			}
		}
	}
}

// MaxSignalSpeed returns the largest |vx|+|vy|+|vz|+3c over the cells of g
func (r Rusanov) MaxSignalSpeed(g *core.Grid) float64 {
	speeds := make([]float64, g.Cells())
	u := make([]float64, g.NComp())
	w := make([]float64, g.NComp())
	for idx := range speeds {
		r.primitive(g.Cell(idx, u), w)
		cs := math.Sqrt(r.EoS.SoundSpeedSq(w[core.Dens], w[core.Engy]))
		speeds[idx] = math.Abs(w[core.MomX]) + math.Abs(w[core.MomY]) + math.Abs(w[core.MomZ]) + 3*cs
	}
	return floats.Max(speeds)
}
