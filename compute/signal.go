package compute

import (
	"sync"
	"sync/atomic"
)

// FailureSignal is the flag shared by every cell of a block during one kernel
// call. Cells only ever raise it; it is read after a barrier rendezvous.
type FailureSignal struct {
	flag atomic.Bool
}

// Raise marks the block as failed
func (s *FailureSignal) Raise() {
	s.flag.Swap(true)
}

// Raised reports whether any cell raised the signal
func (s *FailureSignal) Raised() bool {
	return s.flag.Load()
}

// Barrier is a reusable rendezvous for a fixed number of parties. The last party
// to arrive evaluates the decision for the generation, so every party leaves with
// the same answer even if others race ahead and raise new failures.
type Barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	parties    int
	waiting    int
	generation uint64
	decision   bool
}

// NewBarrier creates a barrier for the given number of parties
func NewBarrier(parties int) *Barrier {
	if parties < 1 {
		parties = 1
	}
	b := &Barrier{parties: parties}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Await blocks until all parties arrive and returns the generation's decision.
// decide may be nil, in which case the decision is false.
func (b *Barrier) Await(decide func() bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	gen := b.generation
	b.waiting++
	if b.waiting == b.parties {
		b.decision = decide != nil && decide()
		b.waiting = 0
		b.generation++
		b.cond.Broadcast()
		return b.decision
	}
	for gen == b.generation {
		b.cond.Wait()
	}
	return b.decision
}
