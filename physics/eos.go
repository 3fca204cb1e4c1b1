package physics

import (
	"fmt"
	"math"
)

// EoS is the equation-of-state model consumed by the solver. Only the pieces the
// update and correction stages need are exposed.
type EoS interface {
	// DensEint2Pres returns the pressure of a cell with the given density and
	// internal energy density
	DensEint2Pres(dens, eint float64) float64
	// DensPres2Eint is the inverse of DensEint2Pres
	DensPres2Eint(dens, pres float64) float64
	// SoundSpeedSq returns the squared adiabatic sound speed
	SoundSpeedSq(dens, pres float64) float64
	// Barotropic reports whether pressure depends on density only
	Barotropic() bool
	Name() string
}

// IdealGas is a gamma-law gas
type IdealGas struct {
	Gamma float64
}

// NewIdealGas validates gamma and returns the model
func NewIdealGas(gamma float64) (IdealGas, error) {
	if !(gamma > 1) {
		return IdealGas{}, fmt.Errorf("ideal gas requires gamma > 1, got %g", gamma)
	}
	return IdealGas{Gamma: gamma}, nil
}

func (e IdealGas) DensEint2Pres(_, eint float64) float64 { return (e.Gamma - 1) * eint }
func (e IdealGas) DensPres2Eint(_, pres float64) float64 { return pres / (e.Gamma - 1) }
func (e IdealGas) SoundSpeedSq(dens, pres float64) float64 {
	return e.Gamma * pres / dens
}
func (e IdealGas) Barotropic() bool { return false }
func (e IdealGas) Name() string     { return fmt.Sprintf("ideal(gamma=%g)", e.Gamma) }

// Isothermal is the barotropic model P = Cs2 * rho. The stored energy still
// carries an internal part so that the update kernel can floor it.
type Isothermal struct {
	Cs2 float64
}

func (e Isothermal) DensEint2Pres(dens, _ float64) float64 { return e.Cs2 * dens }
func (e Isothermal) DensPres2Eint(dens, _ float64) float64 { return e.Cs2 * dens }
func (e Isothermal) SoundSpeedSq(_, _ float64) float64     { return e.Cs2 }
func (e Isothermal) Barotropic() bool                      { return true }
func (e Isothermal) Name() string                          { return fmt.Sprintf("isothermal(cs=%g)", math.Sqrt(e.Cs2)) }
