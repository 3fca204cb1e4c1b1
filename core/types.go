package core

import "fmt"

// Field indices of the conserved variable set. The order is shared by every
// component: density, momentum, total energy, then the optional dual-energy
// tracker and the passive scalars.
const (
	Dens = iota
	MomX
	MomY
	MomZ
	Engy

	NCompFluid // number of fluid components always present
)

// Axis directions
const (
	X = iota
	Y
	Z
)

// TinyNumber is the floor applied to passive scalar densities
const TinyNumber = 1.0e-20

// DEStatus records which path the dual-energy formalism used for a cell
type DEStatus uint8

const (
	DEUpdatedByEtot    DEStatus = 'E' // internal energy taken from the total-energy budget
	DEUpdatedByDual    DEStatus = 'D' // internal energy taken from the advected tracker
	DEUpdatedByMinPres DEStatus = 'P' // internal energy raised to the pressure floor
)

func (s DEStatus) String() string {
	switch s {
	case DEUpdatedByEtot:
		return "etot"
	case DEUpdatedByDual:
		return "dual"
	case DEUpdatedByMinPres:
		return "min-pres"
	default:
		return fmt.Sprintf("DEStatus(%d)", uint8(s))
	}
}

// Capabilities describes the compiled-in physics of a run. It is resolved once at
// start-up and shared by every solver component.
type Capabilities struct {
	Magnetized bool // face-centered B and CT electric fields are evolved
	DualEnergy bool // an entropy-like tracker follows the internal energy
	Barotropic bool // pressure depends on density only
	NPassive   int  // number of passive scalar fields
}

// Enpy returns the index of the dual-energy tracker, or -1 when it is absent
func (c Capabilities) Enpy() int {
	if !c.DualEnergy {
		return -1
	}
	return NCompFluid
}

// PassiveStart returns the index of the first passive scalar
func (c Capabilities) PassiveStart() int {
	if c.DualEnergy {
		return NCompFluid + 1
	}
	return NCompFluid
}

// NComp returns the total number of cell-centered conserved fields
func (c Capabilities) NComp() int {
	return c.PassiveStart() + c.NPassive
}

// NFlux returns the number of flux components stored per face. Magnetized runs
// carry the two transverse electric-field components alongside the fluid fluxes.
func (c Capabilities) NFlux() int {
	if c.Magnetized {
		return c.NComp() + 2
	}
	return c.NComp()
}

// Validate checks that the capability set is self-consistent
func (c Capabilities) Validate() error {
	if c.NPassive < 0 {
		return fmt.Errorf("negative passive scalar count %d", c.NPassive)
	}
	if c.Barotropic && c.DualEnergy {
		return fmt.Errorf("dual-energy formalism is meaningless with a barotropic equation of state")
	}
	return nil
}
