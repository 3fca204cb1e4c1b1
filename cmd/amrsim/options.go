package main

import (
	"go.uber.org/zap"

	"amrfluid/amr"
	"amrfluid/compute"
	"amrfluid/config"
	"amrfluid/core"
	"amrfluid/fixup"
	"amrfluid/physics"
	"amrfluid/simulation"
)

// driverOptions maps validated settings onto the driver
func driverOptions(s *config.Settings, log *zap.Logger) (simulation.Options, error) {
	caps := core.Capabilities{
		DualEnergy: s.Physics.DualEnergy,
		Barotropic: s.Physics.Barotropic,
		NPassive:   s.Physics.NPassive,
	}

	var eos physics.EoS
	if caps.Barotropic {
		eos = physics.Isothermal{Cs2: s.Physics.SoundSpeed * s.Physics.SoundSpeed}
	} else {
		gas, err := physics.NewIdealGas(s.Hydro.Gamma)
		if err != nil {
			return simulation.Options{}, err
		}
		eos = gas
	}

	launcher, err := compute.New(s.Compute.Launcher, s.Compute.Workers)
	if err != nil {
		return simulation.Options{}, err
	}

	return simulation.Options{
		Caps:      caps,
		EoS:       eos,
		BaseCells: s.Mesh.BaseCells,
		Box:       amr.Box{Lo: s.Mesh.BoxLo, Size: s.Mesh.BoxSize},
		CFL:       s.Hydro.CFL,
		Params: physics.Params{
			MinDens:          s.Hydro.MinDens,
			MinEint:          s.Hydro.MinEint,
			DualEnergySwitch: s.Hydro.DualEnergySwitch,
			NormPassive:      s.Hydro.NormPassive,
			NormIdx:          s.Hydro.NormIdx,
		},
		MinmodCoeff:   s.Hydro.MinmodCoeff,
		MinmodMaxIter: s.Hydro.MinmodMaxIter,
		Fixup: fixup.Options{
			Restrict: s.Fixup.Restrict,
			Electric: s.Fixup.Electric,
			Flux:     s.Fixup.Flux,
		},
		Launcher: launcher,
		Logger:   log,
	}, nil
}

// newDriver builds a driver and loads the blast wave
func newDriver(s *config.Settings) (*simulation.Driver, error) {
	opts, err := driverOptions(s, logger)
	if err != nil {
		return nil, err
	}
	d, err := simulation.NewDriver(opts)
	if err != nil {
		return nil, err
	}
	if err := d.Initialize(simulation.Blast([3]float64{0.5, 0.5, 0.5}, 0.15, 1, 10, 1)); err != nil {
		return nil, err
	}
	return d, nil
}
