package simulation

import "amrfluid/core"

// Blast is a gas at rest with an overpressured sphere of the given radius.
// Scalars past the total energy are 1 inside the sphere and 0 outside.
func Blast(center [3]float64, radius, dens, pIn, pOut float64) InitialCondition {
	return func(x, y, z float64, w []float64) {
		dx, dy, dz := x-center[0], y-center[1], z-center[2]
		inside := dx*dx+dy*dy+dz*dz < radius*radius

		w[core.Dens] = dens
		w[core.Engy] = pOut
		if inside {
			w[core.Engy] = pIn
		}
		for v := core.NCompFluid; v < len(w); v++ {
			if inside {
				w[v] = 1
			}
		}
	}
}

// Uniform is a gas moving with constant velocity
func Uniform(dens, pres float64, vel [3]float64) InitialCondition {
	return func(_, _, _ float64, w []float64) {
		w[core.Dens] = dens
		w[core.MomX], w[core.MomY], w[core.MomZ] = vel[0], vel[1], vel[2]
		w[core.Engy] = pres
	}
}
