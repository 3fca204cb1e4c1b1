package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Settings is the full run configuration
type Settings struct {
	Mesh    MeshSettings    `yaml:"mesh"`
	Physics PhysicsSettings `yaml:"physics"`
	Hydro   HydroSettings   `yaml:"hydro"`
	Fixup   FixupSettings   `yaml:"fixup"`
	Compute ComputeSettings `yaml:"compute"`
	Server  ServerSettings  `yaml:"server"`
}

type MeshSettings struct {
	BaseCells int    `yaml:"base_cells"` // coarse cells per axis
	BoxLo     [3]int `yaml:"box_lo"`     // refined box corner in coarse cells
	BoxSize   int    `yaml:"box_size"`   // refined box extent in coarse cells
}

// PhysicsSettings are the capability toggles of the run
type PhysicsSettings struct {
	DualEnergy bool    `yaml:"dual_energy"`
	Barotropic bool    `yaml:"barotropic"`
	NPassive   int     `yaml:"passive"`
	SoundSpeed float64 `yaml:"sound_speed"` // isothermal sound speed, barotropic runs only
}

type HydroSettings struct {
	Gamma            float64 `yaml:"gamma"`
	CFL              float64 `yaml:"cfl"`
	MinDens          float64 `yaml:"min_dens"`
	MinEint          float64 `yaml:"min_eint"`
	DualEnergySwitch float64 `yaml:"dual_energy_switch"`
	NormPassive      bool    `yaml:"norm_passive"`
	NormIdx          []int   `yaml:"norm_idx,omitempty"`
	MinmodCoeff      float64 `yaml:"minmod_coeff"`
	MinmodMaxIter    int     `yaml:"minmod_max_iter"`
}

// FixupSettings toggles the coarse-fine correction passes
type FixupSettings struct {
	Restrict bool `yaml:"restrict"`
	Electric bool `yaml:"electric"`
	Flux     bool `yaml:"flux"`
}

type ComputeSettings struct {
	Launcher string `yaml:"launcher"` // host, parallel or auto
	Workers  int    `yaml:"workers"`  // 0 uses GOMAXPROCS
}

type ServerSettings struct {
	Port             int `yaml:"port"`
	UpdateIntervalMs int `yaml:"update_interval_ms"`
}

// Default returns the settings used when no file is present
func Default() *Settings {
	return &Settings{
		Mesh: MeshSettings{
			BaseCells: 16,
			BoxLo:     [3]int{4, 4, 4},
			BoxSize:   8,
		},
		Physics: PhysicsSettings{
			NPassive:   1,
			SoundSpeed: 1,
		},
		Hydro: HydroSettings{
			Gamma:            5.0 / 3.0,
			CFL:              0.3,
			MinDens:          0,
			MinEint:          0,
			DualEnergySwitch: 2e-2,
			MinmodCoeff:      1.5,
			MinmodMaxIter:    3,
		},
		Fixup: FixupSettings{
			Restrict: true,
			Electric: true,
			Flux:     true,
		},
		Compute: ComputeSettings{
			Launcher: "host",
		},
		Server: ServerSettings{
			Port:             8080,
			UpdateIntervalMs: 100,
		},
	}
}

// Load reads settings from a YAML file on top of the defaults. A missing file
// yields the defaults. Environment overrides are applied last.
func Load(path string) (*Settings, error) {
	s := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := s.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return s, nil
}

// Save writes the settings as YAML, creating the directory if needed
func (s *Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// applyEnvOverrides lets AMRSIM_LAUNCHER and AMRSIM_WORKERS select the
// execution substrate without editing the file
func (s *Settings) applyEnvOverrides() error {
	if launcher := os.Getenv("AMRSIM_LAUNCHER"); launcher != "" {
		s.Compute.Launcher = launcher
	}
	if workers := os.Getenv("AMRSIM_WORKERS"); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil {
			return fmt.Errorf("AMRSIM_WORKERS: %w", err)
		}
		s.Compute.Workers = n
	}
	return nil
}

// Validate checks values the solver cannot recover from
func (s *Settings) Validate() error {
	var errs []error
	m := s.Mesh
	if m.BaseCells < 4 {
		errs = append(errs, fmt.Errorf("mesh.base_cells must be >= 4, got %d", m.BaseCells))
	}
	if m.BoxSize < 1 {
		errs = append(errs, fmt.Errorf("mesh.box_size must be >= 1, got %d", m.BoxSize))
	}
	for d, lo := range m.BoxLo {
		if lo < 1 || lo+m.BoxSize > m.BaseCells-1 {
			errs = append(errs, fmt.Errorf("mesh box must leave one coarse cell on every side (axis %d)", d))
		}
	}

	p := s.Physics
	if p.NPassive < 0 {
		errs = append(errs, fmt.Errorf("physics.passive must be >= 0, got %d", p.NPassive))
	}
	if p.Barotropic && p.DualEnergy {
		errs = append(errs, errors.New("physics.dual_energy cannot be combined with physics.barotropic"))
	}
	if p.Barotropic && !(p.SoundSpeed > 0) {
		errs = append(errs, fmt.Errorf("physics.sound_speed must be > 0, got %g", p.SoundSpeed))
	}

	h := s.Hydro
	if !p.Barotropic && !(h.Gamma > 1) {
		errs = append(errs, fmt.Errorf("hydro.gamma must be > 1, got %g", h.Gamma))
	}
	if !(h.CFL > 0) || h.CFL > 1 {
		errs = append(errs, fmt.Errorf("hydro.cfl must be in (0,1], got %g", h.CFL))
	}
	if h.MinDens < 0 || h.MinEint < 0 || h.DualEnergySwitch < 0 {
		errs = append(errs, errors.New("hydro floors and dual_energy_switch must be >= 0"))
	}
	if h.MinmodCoeff < 0 || h.MinmodCoeff > 2 {
		errs = append(errs, fmt.Errorf("hydro.minmod_coeff must be in [0,2], got %g", h.MinmodCoeff))
	}
	if h.MinmodMaxIter < 0 {
		errs = append(errs, fmt.Errorf("hydro.minmod_max_iter must be >= 0, got %d", h.MinmodMaxIter))
	}
	for _, idx := range h.NormIdx {
		if idx < 0 || idx >= p.NPassive {
			errs = append(errs, fmt.Errorf("hydro.norm_idx %d out of range [0,%d)", idx, p.NPassive))
		}
	}

	switch strings.ToLower(s.Compute.Launcher) {
	case "", "host", "cpu", "parallel", "auto":
	default:
		errs = append(errs, fmt.Errorf("compute.launcher %q is not one of host, parallel, auto", s.Compute.Launcher))
	}
	if s.Compute.Workers < 0 {
		errs = append(errs, fmt.Errorf("compute.workers must be >= 0, got %d", s.Compute.Workers))
	}
	if s.Server.Port <= 0 || s.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", s.Server.Port))
	}
	if s.Server.UpdateIntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("server.update_interval_ms must be > 0, got %d", s.Server.UpdateIntervalMs))
	}
	return errors.Join(errs...)
}
