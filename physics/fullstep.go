package physics

import (
	"errors"
	"fmt"
	"math"

	"amrfluid/compute"
	"amrfluid/core"
)

// ErrShapeMismatch is returned when update inputs do not fit the kernel
var ErrShapeMismatch = errors.New("shape mismatch")

// Iteration is the caller's retry state for one update. Failure detection is
// enabled only when an Iteration is supplied.
type Iteration struct {
	Current int
	Max     int
}

// Final reports whether this is the last allowed attempt
func (it Iteration) Final() bool { return it.Current >= it.Max }

// Params are the scalar inputs of one full-step update
type Params struct {
	Dt               float64
	Dh               float64
	MinDens          float64
	MinEint          float64
	DualEnergySwitch float64 // trust the tracker when Eint/Ekin drops below this
	NormPassive      bool
	NormIdx          []int // passive indices (relative to the first passive) to normalize
}

// UpdateInput bundles everything one full-step update reads. Out and Status are
// optional buffers reused across retries; they are fully overwritten.
type UpdateInput struct {
	In    *core.Grid      // ghosted input, (N+2*Ghost)³
	Flux  *core.FluxField // face fluxes, FluxSize(N)³ per axis
	FaceB *core.FaceField // updated face-centered B, magnetized runs only
	Params
	Iter *Iteration

	Out    *core.Grid
	Status []core.DEStatus
}

// UpdateResult is the outcome of one update. When Failed is set and the
// iteration budget was not exhausted, Out may be partially written and must be
// discarded.
type UpdateResult struct {
	Out    *core.Grid
	Status []core.DEStatus // nil unless the dual-energy formalism is enabled
	Failed bool
}

// KernelConfig configures a FullStepKernel
type KernelConfig struct {
	Caps       core.Capabilities
	N          int // output cells per axis
	Ghost      int // ghost cells on each side of the input block
	EoS        EoS
	Dual       DualEnergyCorrector // defaults to EntropyDualEnergy for an ideal gas
	Normalizer PassiveNormalizer   // defaults to NormalizePassive
	Launcher   compute.Launcher    // defaults to compute.Host
}

// cellState is the working copy of one output cell
type cellState struct {
	i, j, k int
	u       []float64
	status  core.DEStatus
}

type stage func(c *cellState, in *UpdateInput)

// FullStepKernel advances a block by one full step from precomputed face fluxes.
// The per-capability behavior is resolved into a fixed stage list at
// construction, so the per-cell loop carries no configuration branches.
type FullStepKernel struct {
	caps     core.Capabilities
	n        int
	ghost    int
	nFlux    int
	dual     DualEnergyCorrector
	norm     PassiveNormalizer
	launcher compute.Launcher
	detector Detector

	shift        int    // face-grid offset of output cell (0,0,0)
	upper, lower [3]int // flat offsets of the bounding faces along each axis
	emag         func(fb *core.FaceField, i, j, k int) float64
	stages       []stage
}

// NewFullStepKernel validates cfg and resolves the per-cell stage list
func NewFullStepKernel(cfg KernelConfig) (*FullStepKernel, error) {
	if err := cfg.Caps.Validate(); err != nil {
		return nil, err
	}
	if cfg.N <= 0 || cfg.Ghost < 0 {
		return nil, fmt.Errorf("invalid block size N=%d ghost=%d", cfg.N, cfg.Ghost)
	}
	if cfg.EoS == nil {
		return nil, errors.New("equation of state is required")
	}
	if cfg.EoS.Barotropic() != cfg.Caps.Barotropic {
		return nil, fmt.Errorf("EoS %s does not match barotropic=%v", cfg.EoS.Name(), cfg.Caps.Barotropic)
	}

	kern := &FullStepKernel{
		caps:     cfg.Caps,
		n:        cfg.N,
		ghost:    cfg.Ghost,
		nFlux:    core.FluxSize(cfg.N, cfg.Caps),
		dual:     cfg.Dual,
		norm:     cfg.Normalizer,
		launcher: cfg.Launcher,
		detector: Detector{Caps: cfg.Caps},
	}
	if kern.launcher == nil {
		kern.launcher = compute.Host{}
	}
	if kern.norm == nil {
		kern.norm = PassiveNormalizerFunc(NormalizePassive)
	}
	if cfg.Caps.DualEnergy && kern.dual == nil {
		gas, ok := cfg.EoS.(IdealGas)
		if !ok {
			return nil, fmt.Errorf("dual-energy formalism needs a corrector for EoS %s", cfg.EoS.Name())
		}
		kern.dual = EntropyDualEnergy{Gamma: gas.Gamma}
	}

	// magnetized runs carry one extra transverse face layer on each side, so the
	// output cell (i,j,k) sits at face (i+1,j+1,k+1) and differences look backwards
	strides := [3]int{1, kern.nFlux, kern.nFlux * kern.nFlux}
	if cfg.Caps.Magnetized {
		kern.shift = 1
		for d := 0; d < 3; d++ {
			kern.upper[d], kern.lower[d] = 0, -strides[d]
		}
		kern.emag = CellMagneticEnergy
	} else {
		for d := 0; d < 3; d++ {
			kern.upper[d], kern.lower[d] = strides[d], 0
		}
		kern.emag = func(*core.FaceField, int, int, int) float64 { return 0 }
	}

	kern.stages = append(kern.stages, kern.fluxDivergence)
	if cfg.Caps.Barotropic {
		kern.stages = append(kern.stages, kern.barotropicFloor)
	}
	if cfg.Caps.NPassive > 0 {
		kern.stages = append(kern.stages, kern.passiveFloor)
	}
	if cfg.Caps.DualEnergy {
		kern.stages = append(kern.stages, kern.dualEnergy)
	}
	return kern, nil
}

// CheckInput verifies that in fits the kernel. Update itself does not validate.
func (kern *FullStepKernel) CheckInput(in *UpdateInput) error {
	ncomp := kern.caps.NComp()
	nIn := kern.n + 2*kern.ghost
	switch {
	case in.In == nil || in.In.N != nIn || in.In.NComp() != ncomp:
		return fmt.Errorf("%w: input block must be %d^3 x %d", ErrShapeMismatch, nIn, ncomp)
	case in.Flux == nil || in.Flux.N != kern.nFlux:
		return fmt.Errorf("%w: flux field must have %d faces per axis", ErrShapeMismatch, kern.nFlux)
	case in.Out != nil && (in.Out.N != kern.n || in.Out.NComp() != ncomp):
		return fmt.Errorf("%w: output block must be %d^3 x %d", ErrShapeMismatch, kern.n, ncomp)
	case !(in.Dt > 0) || !(in.Dh > 0):
		return fmt.Errorf("dt and dh must be positive (dt=%g dh=%g)", in.Dt, in.Dh)
	}
	for d := 0; d < 3; d++ {
		if len(in.Flux.Data[d]) < ncomp {
			return fmt.Errorf("%w: flux axis %d has %d components, need %d", ErrShapeMismatch, d, len(in.Flux.Data[d]), ncomp)
		}
	}
	if kern.caps.Magnetized && (in.FaceB == nil || in.FaceB.N != kern.n) {
		return fmt.Errorf("%w: magnetized update needs a %d^3 face field", ErrShapeMismatch, kern.n)
	}
	for _, idx := range in.NormIdx {
		if idx < 0 || idx >= kern.caps.NPassive {
			return fmt.Errorf("passive normalization index %d out of range [0,%d)", idx, kern.caps.NPassive)
		}
	}
	if in.Iter != nil && (in.Iter.Current < 0 || in.Iter.Current > in.Iter.Max) {
		return fmt.Errorf("iteration %d outside [0,%d]", in.Iter.Current, in.Iter.Max)
	}
	return nil
}

// Update evaluates the full-step solution of every output cell. It never fails
// as such: unphysical results are reported through UpdateResult.Failed.
//
// If any cell of the block ends up unphysical and in.Iter.Current < in.Iter.Max,
// the remaining cells are skipped so the caller can retry with a more diffusive
// reconstruction. On the final iteration every cell is still written.
func (kern *FullStepKernel) Update(in *UpdateInput) UpdateResult {
	n := kern.n
	cells := n * n * n
	ncomp := kern.caps.NComp()

	out := in.Out
	if out == nil {
		out = core.NewGrid(n, ncomp)
	}
	var status []core.DEStatus
	if kern.caps.DualEnergy {
		status = in.Status
		if len(status) != cells {
			status = make([]core.DEStatus, cells)
		}
	}

	var failure compute.FailureSignal
	var abort func() bool
	detect := in.Iter != nil
	if detect {
		iter := *in.Iter
		abort = func() bool { return failure.Raised() && iter.Current < iter.Max }
	}

	kern.launcher.Launch(cells, func(idx int) {
		c := cellState{
			i:      idx % n,
			j:      idx / n % n,
			k:      idx / (n * n),
			u:      make([]float64, ncomp),
			status: core.DEUpdatedByEtot,
		}
		for _, s := range kern.stages {
			s(&c, in)
		}

		out.SetCell(idx, c.u)
		if status != nil {
			status[idx] = c.status
		}

		if detect && kern.detector.Unphysical(ModeConserved, c.u, 0) {
			failure.Raise()
		}
	}, abort)

	return UpdateResult{Out: out, Status: status, Failed: failure.Raised()}
}

// fluxDivergence applies U' = U - dt/dh * sum_d (F_upper - F_lower). No floor is
// applied here: a negative density must reach the detector so the block can be
// retried with a lower-order reconstruction.
func (kern *FullStepKernel) fluxDivergence(c *cellState, in *UpdateInput) {
	g := kern.ghost
	src := in.In.Idx(c.i+g, c.j+g, c.k+g)
	s := kern.shift
	face := in.Flux.Idx(c.i+s, c.j+s, c.k+s)
	dtdh := in.Dt / in.Dh

	for v := range c.u {
		var div float64
		for d := 0; d < 3; d++ {
			f := in.Flux.Data[d][v]
			div += f[face+kern.upper[d]] - f[face+kern.lower[d]]
		}
		c.u[v] = in.In.Data[v][src] - dtdh*div
	}
}

// barotropicFloor floors the internal energy right away; with a barotropic EoS a
// negative internal energy carries no information and would only raise false alarms
func (kern *FullStepKernel) barotropicFloor(c *cellState, in *UpdateInput) {
	emag := kern.emag(in.FaceB, c.i, c.j, c.k)
	u := c.u
	u[core.Engy] = CheckMinEintInEngy(u[core.Dens], u[core.MomX], u[core.MomY], u[core.MomZ], u[core.Engy], in.MinEint, emag)
}

func (kern *FullStepKernel) passiveFloor(c *cellState, in *UpdateInput) {
	passive := c.u[kern.caps.PassiveStart():]
	for v := range passive {
		passive[v] = math.Max(passive[v], core.TinyNumber)
	}
	if in.NormPassive {
		kern.norm.Normalize(c.u[core.Dens], passive, in.NormIdx)
	}
}

// dualEnergy needs the B field already advanced to the new step. Minimum
// pressure is left to the later floor stage, like the density floor.
func (kern *FullStepKernel) dualEnergy(c *cellState, in *UpdateInput) {
	emag := kern.emag(in.FaceB, c.i, c.j, c.k)
	c.status = kern.dual.Fix(c.u, kern.caps.Enpy(), emag, in.DualEnergySwitch, false, 0)
}
