package physics

import "amrfluid/core"

// KineticEnergy returns the kinetic energy density of a conserved state
func KineticEnergy(dens, momx, momy, momz float64) float64 {
	return 0.5 * (momx*momx + momy*momy + momz*momz) / dens
}

// CellMagneticEnergy returns the magnetic energy density of cell (i,j,k) from the
// face-centered field, using the average of the two faces along each axis
func CellMagneticEnergy(fb *core.FaceField, i, j, k int) float64 {
	bx, by, bz := fb.CellCentered(i, j, k)
	return 0.5 * (bx*bx + by*by + bz*bz)
}

// InternalEnergy returns total minus kinetic minus magnetic energy density
func InternalEnergy(u []float64, emag float64) float64 {
	return u[core.Engy] - KineticEnergy(u[core.Dens], u[core.MomX], u[core.MomY], u[core.MomZ]) - emag
}

// CheckMinEintInEngy returns a total energy whose internal part is at least minEint
func CheckMinEintInEngy(dens, momx, momy, momz, engy, minEint, emag float64) float64 {
	ekin := KineticEnergy(dens, momx, momy, momz)
	if engy-ekin-emag >= minEint {
		return engy
	}
	return ekin + emag + minEint
}
