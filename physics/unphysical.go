package physics

import (
	"math"

	"amrfluid/core"
)

// CheckMode selects which admissibility rules CheckUnphysical applies
type CheckMode int

const (
	// ModeConserved checks a conserved state: finite fields, positive density,
	// positive total energy (non-barotropic) and non-negative passives
	ModeConserved CheckMode = iota
	// ModeEint additionally requires a positive internal energy given the
	// cell's magnetic energy
	ModeEint
	// ModePrimitive checks a primitive state (dens, vx, vy, vz, pres, ...)
	ModePrimitive
)

func (m CheckMode) String() string {
	switch m {
	case ModeConserved:
		return "conserved"
	case ModeEint:
		return "eint"
	case ModePrimitive:
		return "primitive"
	default:
		return "unknown"
	}
}

// Detector classifies cell states as physical or unphysical
type Detector struct {
	Caps core.Capabilities
}

// Unphysical reports whether u violates the admissibility rules of mode. emag is
// only used by ModeEint.
func (d Detector) Unphysical(mode CheckMode, u []float64, emag float64) bool {
	for _, v := range u {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	if !(u[core.Dens] > 0) {
		return true
	}
	for v := d.Caps.PassiveStart(); v < len(u); v++ {
		if u[v] < 0 {
			return true
		}
	}

	switch mode {
	case ModePrimitive:
		return !(u[core.Engy] > 0)
	case ModeEint:
		if d.Caps.Barotropic {
			return false
		}
		return !(u[core.Engy] > 0) || !(InternalEnergy(u, emag) > 0)
	default:
		if d.Caps.Barotropic {
			return false
		}
		return !(u[core.Engy] > 0)
	}
}

// CheckUnphysical is the package-level form of Detector.Unphysical
func CheckUnphysical(caps core.Capabilities, mode CheckMode, u []float64, emag float64) bool {
	return Detector{Caps: caps}.Unphysical(mode, u, emag)
}
