package physics

import "fmt"

// RetryState is the state of the caller-side retry loop around a block update
type RetryState int

const (
	Attempting RetryState = iota
	Succeeded
	ExhaustedRetries
)

func (s RetryState) String() string {
	switch s {
	case Attempting:
		return "attempting"
	case Succeeded:
		return "succeeded"
	case ExhaustedRetries:
		return "exhausted"
	default:
		return fmt.Sprintf("RetryState(%d)", int(s))
	}
}

// RetryLoop drives repeated full-step updates of one block. Each failed attempt
// moves to the next iteration until the budget is spent; the result of the final
// attempt is kept even when it is still unphysical.
type RetryLoop struct {
	state RetryState
	iter  Iteration
}

// NewRetryLoop starts in Attempting(0) with maxIter further attempts allowed
func NewRetryLoop(maxIter int) *RetryLoop {
	if maxIter < 0 {
		maxIter = 0
	}
	return &RetryLoop{state: Attempting, iter: Iteration{Current: 0, Max: maxIter}}
}

// State returns the current state
func (r *RetryLoop) State() RetryState { return r.state }

// Iteration returns the iteration context for the next attempt
func (r *RetryLoop) Iteration() *Iteration {
	it := r.iter
	return &it
}

// Attempts returns how many attempts have been made or are in flight
func (r *RetryLoop) Attempts() int { return r.iter.Current + 1 }

// Observe records the outcome of the current attempt and returns the new state.
// Terminal states are sticky.
func (r *RetryLoop) Observe(failed bool) RetryState {
	if r.state != Attempting {
		return r.state
	}
	switch {
	case !failed:
		r.state = Succeeded
	case r.iter.Current < r.iter.Max:
		r.iter.Current++
	default:
		r.state = ExhaustedRetries
	}
	return r.state
}

// Run calls attempt until it succeeds or the budget is exhausted
func (r *RetryLoop) Run(attempt func(it *Iteration) (failed bool)) RetryState {
	for r.state == Attempting {
		r.Observe(attempt(r.Iteration()))
	}
	return r.state
}
