// Package interaction computes per-agent infection probabilities from
// pairwise encounters. Each pass walks spatially binned agents and folds
// per-pair transmission factors into a shared accumulator, so the value
// left in slot i is the probability agent i escaped every exposure.
package interaction

import (
	"math"
	"sync/atomic"
)

// ProbBuffer is one disease's accumulator: slot i holds the probability
// that agent i was NOT infected by any encounter so far this pass. Slots
// store float64 bits in atomics so factors can be multiplied in lock-free
// from many worker goroutines.
type ProbBuffer struct {
	bits []atomic.Uint64
}

// NewProbBuffer returns a buffer for n agents, initialized to 1.0.
func NewProbBuffer(n int) *ProbBuffer {
	p := &ProbBuffer{bits: make([]atomic.Uint64, n)}
	p.Reset()
	return p
}

// Len returns the slot count.
func (p *ProbBuffer) Len() int {
	return len(p.bits)
}

// Reset sets every slot back to 1.0. Call at the start of a pass.
func (p *ProbBuffer) Reset() {
	one := math.Float64bits(1.0)
	for i := range p.bits {
		p.bits[i].Store(one)
	}
}

// Mul multiplies factor into slot i with a compare-and-swap loop. Safe for
// concurrent callers; multiplication commutes, so the result does not
// depend on arrival order.
func (p *ProbBuffer) Mul(i int, factor float64) {
	for {
		old := p.bits[i].Load()
		next := math.Float64bits(math.Float64frombits(old) * factor)
		if p.bits[i].CompareAndSwap(old, next) {
			return
		}
	}
}

// Get returns slot i.
func (p *ProbBuffer) Get(i int) float64 {
	return math.Float64frombits(p.bits[i].Load())
}

// Mean returns the average survival probability across all slots, or 1.0
// for an empty buffer.
func (p *ProbBuffer) Mean() float64 {
	if len(p.bits) == 0 {
		return 1.0
	}
	sum := 0.0
	for i := range p.bits {
		sum += math.Float64frombits(p.bits[i].Load())
	}
	return sum / float64(len(p.bits))
}
