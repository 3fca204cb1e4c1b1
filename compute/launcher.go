package compute

import (
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Launcher runs a per-cell body over a block. It abstracts where the work runs:
// in order on the calling goroutine, or spread across worker goroutines.
type Launcher interface {
	// Launch runs cell(idx) for every idx in [0,n). When abort is non-nil all
	// units meet at a barrier after each cell, and remaining work is skipped as
	// soon as abort reports true there.
	Launch(n int, cell func(idx int), abort func() bool)
	Name() string
}

// Host processes cells one after another on the calling goroutine
type Host struct{}

func (Host) Launch(n int, cell func(idx int), abort func() bool) {
	for idx := 0; idx < n; idx++ {
		cell(idx)
		if abort != nil && abort() {
			return
		}
	}
}

func (Host) Name() string { return "host" }

// Parallel processes cells on Workers goroutines. Worker w handles cells
// w, w+Workers, w+2*Workers, ... in rounds.
type Parallel struct {
	Workers int
}

func (p Parallel) Name() string { return fmt.Sprintf("parallel(%d)", p.Workers) }

func (p Parallel) units(n int) int {
	w := p.Workers
	if w <= 0 {
		w = runtime.GOMAXPROCS(0)
	}
	if w > n {
		w = n
	}
	return w
}

func (p Parallel) Launch(n int, cell func(idx int), abort func() bool) {
	if n <= 0 {
		return
	}
	units := p.units(n)

	var g errgroup.Group
	if abort == nil {
		for u := 0; u < units; u++ {
			g.Go(func() error {
				for idx := u; idx < n; idx += units {
					cell(idx)
				}
				return nil
			})
		}
		_ = g.Wait()
		return
	}

	// every unit runs the same number of rounds so the barrier never strands one
	rounds := (n + units - 1) / units
	barrier := NewBarrier(units)
	for u := 0; u < units; u++ {
		g.Go(func() error {
			for r := 0; r < rounds; r++ {
				if idx := r*units + u; idx < n {
					cell(idx)
				}
				if barrier.Await(abort) {
					return nil
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}

// New selects a launcher by name: "host", "parallel" or "auto"
func New(name string, workers int) (Launcher, error) {
	switch strings.ToLower(name) {
	case "host", "cpu", "":
		return Host{}, nil
	case "parallel":
		return Parallel{Workers: workers}, nil
	case "auto":
		if runtime.GOMAXPROCS(0) > 1 {
			return Parallel{Workers: workers}, nil
		}
		return Host{}, nil
	default:
		return nil, fmt.Errorf("unknown launcher %q", name)
	}
}
