package simulation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"amrfluid/amr"
	"amrfluid/compute"
	"amrfluid/core"
	"amrfluid/fixup"
	"amrfluid/physics"
)

// Ghost is the ghost-zone width the reconstruction reads
const Ghost = 2

// Options configures a Driver
type Options struct {
	Caps      core.Capabilities
	EoS       physics.EoS
	BaseCells int     // coarse cells per axis of the unit cube
	Box       amr.Box // region refined by the second level
	CFL       float64

	// Params carries the floors and passive settings; Dt and Dh are filled per level
	Params        physics.Params
	MinmodCoeff   float64
	MinmodMaxIter int

	Fixup    fixup.Options
	Launcher compute.Launcher
	Logger   *zap.Logger
}

// Diagnostics summarizes one step
type Diagnostics struct {
	RunID     string  `json:"runId"`
	Step      int     `json:"step"`
	Time      float64 `json:"time"`
	Dt        float64 `json:"dt"`
	Mass      float64 `json:"mass"`
	Energy    float64 `json:"energy"`
	MinDens   float64 `json:"minDens"`
	MaxDivB   float64 `json:"maxDivB"`
	Retries   int     `json:"retries"`   // extra attempts across both levels
	Exhausted int     `json:"exhausted"` // updates that used up every attempt
	Rejected  int     `json:"rejected"`  // flux corrections discarded as unphysical
}

// InitialCondition fills the primitive state w (density, velocity, pressure,
// then specific tracker and passive scalars) at position (x,y,z) of the unit cube
type InitialCondition func(x, y, z float64, w []float64)

// Driver advances a two-level hierarchy: the coarse level with step dt on a
// periodic domain, then the refined box with two steps of dt/2, followed by the
// coarse-fine corrections.
type Driver struct {
	opts    Options
	h       *amr.Hierarchy
	solver  Rusanov
	kernels [2]*physics.FullStepKernel
	orch    *fixup.Orchestrator
	fluxFix *fixup.FluxFix
	logger  *zap.Logger
	runID   uuid.UUID

	ghosted [2]*core.Grid
	flux    [2]*core.FluxField
	status  [2][]core.DEStatus

	step      int
	time      float64
	retries   int
	exhausted int
}

// NewDriver builds the hierarchy, kernels and correctors for opts
func NewDriver(opts Options) (*Driver, error) {
	if opts.Caps.Magnetized {
		return nil, errors.New("driver advances hydrodynamics only; magnetized runs need an MHD flux producer")
	}
	if opts.EoS == nil {
		return nil, errors.New("equation of state is required")
	}
	if !(opts.CFL > 0) || opts.CFL > 1 {
		return nil, fmt.Errorf("CFL must be in (0,1], got %g", opts.CFL)
	}
	if opts.MinmodMaxIter < 0 {
		return nil, fmt.Errorf("negative min-mod iteration budget %d", opts.MinmodMaxIter)
	}
	if opts.BaseCells <= 0 {
		return nil, fmt.Errorf("invalid base resolution %d", opts.BaseCells)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Launcher == nil {
		opts.Launcher = compute.Host{}
	}

	h, err := amr.New(opts.Caps, opts.BaseCells, 1/float64(opts.BaseCells), opts.Box)
	if err != nil {
		return nil, fmt.Errorf("build hierarchy: %w", err)
	}

	d := &Driver{
		opts:   opts,
		h:      h,
		solver: Rusanov{Caps: opts.Caps, EoS: opts.EoS},
		logger: logger,
		runID:  uuid.New(),
	}

	var dual physics.DualEnergyCorrector
	if gas, ok := opts.EoS.(physics.IdealGas); ok && opts.Caps.DualEnergy {
		dual = physics.EntropyDualEnergy{Gamma: gas.Gamma}
	}
	for lv, l := range h.Levels {
		kern, err := physics.NewFullStepKernel(physics.KernelConfig{
			Caps:     opts.Caps,
			N:        l.N,
			Ghost:    Ghost,
			EoS:      opts.EoS,
			Dual:     dual,
			Launcher: opts.Launcher,
		})
		if err != nil {
			return nil, fmt.Errorf("level %d kernel: %w", lv, err)
		}
		d.kernels[lv] = kern
		d.ghosted[lv] = core.NewGrid(l.N+2*Ghost, opts.Caps.NComp())
		d.flux[lv] = core.NewFluxField(core.FluxSize(l.N, opts.Caps), opts.Caps.NFlux())

		// shapes never change, so one check covers every later update
		probe := d.updateInput(lv, 1, nil)
		if err := kern.CheckInput(probe); err != nil {
			return nil, fmt.Errorf("level %d: %w", lv, err)
		}
	}

	d.fluxFix = &fixup.FluxFix{H: h, Dual: dual}
	d.orch, err = fixup.NewOrchestrator(fixup.Config{
		Options:    opts.Fixup,
		Magnetized: opts.Caps.Magnetized,
		Levels:     h,
		Restrictor: &fixup.Restrict{H: h},
		Electric:   &fixup.Electric{H: h},
		Flux:       d.fluxFix,
		Logger:     logger.Named("fixup"),
	})
	if err != nil {
		return nil, err
	}

	logger.Info("driver ready",
		zap.String("run_id", d.runID.String()),
		zap.Int("base_cells", opts.BaseCells),
		zap.Int("fine_cells", h.Levels[1].N),
		zap.String("eos", opts.EoS.Name()),
		zap.String("launcher", opts.Launcher.Name()),
	)
	return d, nil
}

// RunID identifies this driver's run
func (d *Driver) RunID() uuid.UUID { return d.runID }

// Hierarchy exposes the levels being advanced
func (d *Driver) Hierarchy() *amr.Hierarchy { return d.h }

// Initialize fills both levels from ic and restricts the fine level so the
// covered coarse cells start consistent
func (d *Driver) Initialize(ic InitialCondition) error {
	ncomp := d.opts.Caps.NComp()
	w := make([]float64, ncomp)
	u := make([]float64, ncomp)
	enpy := d.opts.Caps.Enpy()
	gas, isIdeal := d.opts.EoS.(physics.IdealGas)

	for lv, l := range d.h.Levels {
		var origin [3]float64
		if lv > 0 {
			parent := d.h.Levels[lv-1]
			for a := 0; a < 3; a++ {
				origin[a] = float64(l.Box.Lo[a]) * parent.Dh
			}
		}
		g := l.Fluid()
		for k := 0; k < l.N; k++ {
			for j := 0; j < l.N; j++ {
				for i := 0; i < l.N; i++ {
					clear(w)
					ic(origin[0]+(float64(i)+0.5)*l.Dh, origin[1]+(float64(j)+0.5)*l.Dh, origin[2]+(float64(k)+0.5)*l.Dh, w)
					if !(w[core.Dens] > 0) {
						return fmt.Errorf("initial density %g at level %d cell (%d,%d,%d)", w[core.Dens], lv, i, j, k)
					}
					d.solver.conserved(w, u)
					if enpy >= 0 && isIdeal {
						u[enpy] = physics.EntropyDualEnergy{Gamma: gas.Gamma}.DensPres2Dual(w[core.Dens], w[core.Engy])
					}
					g.SetCell(g.Idx(i, j, k), u)
				}
			}
		}
	}

	fluSg, _ := d.h.Generations(1)
	coarseSg, _ := d.h.Generations(0)
	r := &fixup.Restrict{H: d.h}
	return r.Restrict(0, fixup.Request{FluSrc: fluSg, FluDst: coarseSg, Mask: fixup.FieldTotal})
}

// Step advances the hierarchy by one coarse step
func (d *Driver) Step() (Diagnostics, error) {
	coarse, fine := d.h.Levels[0], d.h.Levels[1]
	speed := max(d.solver.MaxSignalSpeed(coarse.Fluid()), d.solver.MaxSignalSpeed(fine.Fluid()))
	if !(speed > 0) {
		return Diagnostics{}, fmt.Errorf("step %d: invalid signal speed %g", d.step, speed)
	}
	// the fine level runs at dt/2 with half the cell size, so the coarse CFL
	// condition with the fastest speed of either level covers both
	dt := d.opts.CFL * coarse.Dh / speed

	reg := d.h.Flux[0]
	reg.Reset()

	d.fillPeriodic(coarse.Fluid(), d.ghosted[0])
	d.advance(0, dt)
	d.recordFlux(reg, 0, dt)

	for sub := 0; sub < amr.RefinementRatio; sub++ {
		d.fillFromCoarse(0.5 * float64(sub))
		d.advance(1, dt/amr.RefinementRatio)
		d.recordFlux(reg, 1, dt/amr.RefinementRatio)
		fine.SwapFluid()
		fine.Time += dt / amr.RefinementRatio
	}
	coarse.SwapFluid()
	coarse.Time += dt

	if err := d.orch.ApplyCorrections(0); err != nil {
		return Diagnostics{}, fmt.Errorf("step %d: %w", d.step, err)
	}

	d.step++
	d.time += dt
	diag := d.Diagnostics()
	diag.Dt = dt
	d.logger.Debug("step",
		zap.Int("step", diag.Step),
		zap.Float64("time", diag.Time),
		zap.Float64("dt", dt),
		zap.Float64("mass", diag.Mass),
		zap.Int("retries", diag.Retries),
	)
	return diag, nil
}

// Run performs steps coarse steps, reporting each to observe when it is non-nil
func (d *Driver) Run(ctx context.Context, steps int, observe func(Diagnostics)) error {
	for s := 0; s < steps; s++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		diag, err := d.Step()
		if err != nil {
			return err
		}
		if observe != nil {
			observe(diag)
		}
	}
	return nil
}

// Diagnostics reports the current state of the run
func (d *Driver) Diagnostics() Diagnostics {
	diag := Diagnostics{
		RunID:     d.runID.String(),
		Step:      d.step,
		Time:      d.time,
		Mass:      d.h.CompositeTotal(core.Dens),
		Energy:    d.h.CompositeTotal(core.Engy),
		MinDens:   d.h.MinDensity(),
		Retries:   d.retries,
		Exhausted: d.exhausted,
	}
	for _, l := range d.h.Levels {
		diag.MaxDivB = max(diag.MaxDivB, l.MaxAbsDivergence())
	}
	if d.orch.Options().Flux {
		diag.Rejected = d.fluxFix.Rejected()
	}
	return diag
}

func (d *Driver) updateInput(lv int, dt float64, it *physics.Iteration) *physics.UpdateInput {
	l := d.h.Levels[lv]
	p := d.opts.Params
	p.Dt, p.Dh = dt, l.Dh
	return &physics.UpdateInput{
		In:     d.ghosted[lv],
		Flux:   d.flux[lv],
		Params: p,
		Iter:   it,
		Out:    l.NextFluid(),
		Status: d.status[lv],
	}
}

// advance updates level lv from its ghosted buffer into the next generation,
// retrying with a more diffusive reconstruction while the result is unphysical
func (d *Driver) advance(lv int, dt float64) {
	kern := d.kernels[lv]
	loop := physics.NewRetryLoop(d.opts.MinmodMaxIter)
	state := loop.Run(func(it *physics.Iteration) bool {
		d.solver.Fluxes(d.ghosted[lv], Ghost, ReducedCoefficient(d.opts.MinmodCoeff, *it), d.flux[lv])
		res := kern.Update(d.updateInput(lv, dt, it))
		d.status[lv] = res.Status
		return res.Failed
	})

	d.retries += loop.Attempts() - 1
	if state == physics.ExhaustedRetries {
		d.exhausted++
		d.logger.Warn("update still unphysical after every retry",
			zap.Int("level", lv),
			zap.Int("step", d.step),
			zap.Int("attempts", loop.Attempts()),
		)
	}
}

// fillPeriodic copies g into the ghosted buffer dst, wrapping around the domain
func (d *Driver) fillPeriodic(g *core.Grid, dst *core.Grid) {
	n := g.N
	wrap := func(a int) int { return ((a-Ghost)%n + n) % n }
	for k := 0; k < dst.N; k++ {
		for j := 0; j < dst.N; j++ {
			for i := 0; i < dst.N; i++ {
				src := g.Idx(wrap(i), wrap(j), wrap(k))
				idx := dst.Idx(i, j, k)
				for v := range dst.Data {
					dst.Data[v][idx] = g.Data[v][src]
				}
			}
		}
	}
}

func floorHalf(a int) int {
	if a < 0 {
		return (a - 1) / 2
	}
	return a / 2
}

// fillFromCoarse builds the fine ghosted buffer: interior from the current fine
// generation, ghost cells injected from the parent coarse cell, interpolated in
// time between the old and new coarse generations with weight frac
func (d *Driver) fillFromCoarse(frac float64) {
	coarse, fine := d.h.Levels[0], d.h.Levels[1]
	old, cur := coarse.Fluid(), coarse.NextFluid()
	src := fine.Fluid()
	dst := d.ghosted[1]
	nf := fine.N
	lo := fine.Box.Lo

	for k := 0; k < dst.N; k++ {
		for j := 0; j < dst.N; j++ {
			for i := 0; i < dst.N; i++ {
				fi, fj, fk := i-Ghost, j-Ghost, k-Ghost
				idx := dst.Idx(i, j, k)
				if fi >= 0 && fi < nf && fj >= 0 && fj < nf && fk >= 0 && fk < nf {
					s := src.Idx(fi, fj, fk)
					for v := range dst.Data {
						dst.Data[v][idx] = src.Data[v][s]
					}
					continue
				}
				c := old.Idx(lo[0]+floorHalf(fi), lo[1]+floorHalf(fj), lo[2]+floorHalf(fk))
				for v := range dst.Data {
					dst.Data[v][idx] = old.Data[v][c] + frac*(cur.Data[v][c]-old.Data[v][c])
				}
			}
		}
	}
}

// recordFlux stores the time-integrated fluxes of level lv through the faces
// of the refined box: the coarse flux replaces, the fine fluxes accumulate
// averaged over the four fine faces tiling each coarse face
func (d *Driver) recordFlux(reg *amr.FluxRegister, lv int, dt float64) {
	flux := d.flux[lv]
	box := reg.Box
	size := box.Size
	nf := d.h.Levels[1].N

	for s := amr.Side(0); s < 6; s++ {
		ax := s.Axis()
		t1, t2 := amr.Transverse(ax)
		for b := 0; b < size; b++ {
			for a := 0; a < size; a++ {
				r := reg.Idx(a, b)
				var c [3]int
				if lv == 0 {
					c[ax] = box.Lo[ax]
					if s.Upper() {
						c[ax] = box.Hi(ax)
					}
					c[t1], c[t2] = box.Lo[t1]+a, box.Lo[t2]+b
					face := flux.Idx(c[0], c[1], c[2])
					for v := 0; v < reg.NComp; v++ {
						reg.Coarse[s][v][r] = flux.Data[ax][v][face] * dt
					}
					continue
				}

				if s.Upper() {
					c[ax] = nf
				}
				for db := 0; db < 2; db++ {
					for da := 0; da < 2; da++ {
						c[t1], c[t2] = 2*a+da, 2*b+db
						face := flux.Idx(c[0], c[1], c[2])
						for v := 0; v < reg.NComp; v++ {
							reg.Fine[s][v][r] += 0.25 * flux.Data[ax][v][face] * dt
						}
					}
				}
			}
		}
	}
}
