package amr

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"amrfluid/core"
)

// ErrNoFinerLevel is returned when a coarse-fine operation targets the finest level
var ErrNoFinerLevel = errors.New("no finer level")

// RefinementRatio between consecutive levels
const RefinementRatio = 2

// Hierarchy is a stack of nested uniform levels. Level lv+1 covers Box of level
// lv at twice the resolution. Flux[lv] and EMF[lv] hold the coarse-fine
// registers of the interface between lv and lv+1.
type Hierarchy struct {
	Caps   core.Capabilities
	Levels []*Level
	Flux   []*FluxRegister
	EMF    []*EMFRegister
}

// New builds a hierarchy whose base level has n0³ cells of size dh0. Each box
// refines the level before it and must leave at least one uncovered parent cell
// on every side.
func New(caps core.Capabilities, n0 int, dh0 float64, boxes ...Box) (*Hierarchy, error) {
	if err := caps.Validate(); err != nil {
		return nil, err
	}
	if n0 <= 0 || !(dh0 > 0) {
		return nil, fmt.Errorf("invalid base level n=%d dh=%g", n0, dh0)
	}

	h := &Hierarchy{Caps: caps}
	h.Levels = append(h.Levels, newLevel(0, n0, dh0, caps))
	for lv, box := range boxes {
		parent := h.Levels[lv]
		if box.Size <= 0 {
			return nil, fmt.Errorf("level %d: empty box", lv+1)
		}
		for d := 0; d < 3; d++ {
			if box.Lo[d] < 1 || box.Hi(d) > parent.N-1 {
				return nil, fmt.Errorf("level %d: box %v does not fit inside level %d with a one-cell margin", lv+1, box, lv)
			}
		}
		fine := newLevel(lv+1, RefinementRatio*box.Size, parent.Dh/RefinementRatio, caps)
		fine.Box = box
		h.Levels = append(h.Levels, fine)
		h.Flux = append(h.Flux, NewFluxRegister(box, caps.NComp()))
		if caps.Magnetized {
			h.EMF = append(h.EMF, NewEMFRegister(box, parent.N))
		} else {
			h.EMF = append(h.EMF, nil)
		}
	}
	return h, nil
}

// NumLevels returns the number of levels
func (h *Hierarchy) NumLevels() int { return len(h.Levels) }

// Pair returns level lv and the level refining it
func (h *Hierarchy) Pair(lv int) (coarse, fine *Level, err error) {
	if lv < 0 || lv >= len(h.Levels) {
		return nil, nil, fmt.Errorf("level %d out of range [0,%d)", lv, len(h.Levels))
	}
	if lv+1 >= len(h.Levels) {
		return nil, nil, fmt.Errorf("level %d: %w", lv, ErrNoFinerLevel)
	}
	return h.Levels[lv], h.Levels[lv+1], nil
}

// Total returns the volume integral of field v over the current generation of
// level lv, cells covered by finer levels included
func (h *Hierarchy) Total(lv, v int) float64 {
	l := h.Levels[lv]
	return floats.Sum(l.Fluid().Data[v]) * l.Dh * l.Dh * l.Dh
}

// CompositeTotal integrates field v over the domain, taking each region from the
// finest level that covers it
func (h *Hierarchy) CompositeTotal(v int) float64 {
	total := 0.0
	for lv, l := range h.Levels {
		g := l.Fluid()
		vol := l.Dh * l.Dh * l.Dh
		var covered *Box
		if lv+1 < len(h.Levels) {
			covered = &h.Levels[lv+1].Box
		}
		for k := 0; k < l.N; k++ {
			for j := 0; j < l.N; j++ {
				for i := 0; i < l.N; i++ {
					if covered != nil && covered.ContainsCell(i, j, k) {
						continue
					}
					total += g.Data[v][g.Idx(i, j, k)] * vol
				}
			}
		}
	}
	return total
}

// MinDensity returns the smallest density over all levels
func (h *Hierarchy) MinDensity() float64 {
	min := 0.0
	for lv, l := range h.Levels {
		m := floats.Min(l.Fluid().Data[core.Dens])
		if lv == 0 || m < min {
			min = m
		}
	}
	return min
}

// Generations returns the current fluid and magnetic storage generations of lv
func (h *Hierarchy) Generations(lv int) (fluSg, magSg int) {
	l := h.Levels[lv]
	return l.FluSg, l.MagSg
}
