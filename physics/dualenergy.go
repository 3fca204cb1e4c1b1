package physics

import (
	"math"

	"amrfluid/core"
)

// DualEnergyCorrector decides whether a cell's internal energy comes from the
// total-energy budget or from the independently advected tracker, updates the
// state accordingly and reports the path taken.
type DualEnergyCorrector interface {
	Fix(u []float64, enpy int, emag, sw float64, checkMinPres bool, minPres float64) core.DEStatus
}

// EntropyDualEnergy uses the pseudo-entropy s = P * rho^(1-gamma) as tracker
type EntropyDualEnergy struct {
	Gamma float64
}

// DensPres2Dual converts pressure to the tracker variable
func (e EntropyDualEnergy) DensPres2Dual(dens, pres float64) float64 {
	return pres * math.Pow(dens, 1-e.Gamma)
}

// DensDual2Pres converts the tracker variable back to pressure
func (e EntropyDualEnergy) DensDual2Pres(dens, dual float64) float64 {
	return dual * math.Pow(dens, e.Gamma-1)
}

// Fix applies the dual-energy formalism to u. The tracker is trusted when the
// internal energy is non-positive or its ratio to the kinetic energy drops below
// sw; otherwise the tracker is resynchronized from the total energy.
func (e EntropyDualEnergy) Fix(u []float64, enpy int, emag, sw float64, checkMinPres bool, minPres float64) core.DEStatus {
	dens := u[core.Dens]
	// leave negative density for the detector and the retry path
	if !(dens > 0) {
		return core.DEUpdatedByEtot
	}

	gm1 := e.Gamma - 1
	ekin := KineticEnergy(dens, u[core.MomX], u[core.MomY], u[core.MomZ])
	eint := u[core.Engy] - ekin - emag

	if eint <= 0 || eint < sw*ekin {
		pres := e.DensDual2Pres(dens, u[enpy])
		status := core.DEUpdatedByDual
		if checkMinPres && pres < minPres {
			pres = minPres
			u[enpy] = e.DensPres2Dual(dens, pres)
			status = core.DEUpdatedByMinPres
		}
		u[core.Engy] = ekin + emag + pres/gm1
		return status
	}

	pres := gm1 * eint
	if checkMinPres && pres < minPres {
		pres = minPres
		u[core.Engy] = ekin + emag + pres/gm1
		u[enpy] = e.DensPres2Dual(dens, pres)
		return core.DEUpdatedByMinPres
	}
	u[enpy] = e.DensPres2Dual(dens, pres)
	return core.DEUpdatedByEtot
}
