// Package binning groups agent indices by spatial cell so interaction
// passes can walk same-cell candidate pairs without scanning the whole
// population. The layout is a permutation plus bin offsets, built with a
// counting sort.
package binning

import "fmt"

// Bins is the binned view of one population snapshot. perm holds the agent
// indices grouped by bin; offsets[b] .. offsets[b+1] delimits bin b's slice
// of perm.
type Bins struct {
	perm    []int32
	offsets []int32
	numBins int
}

// Build sorts the indices [0, n) into numBins bins. binOf must return a
// value in [0, numBins) for every index; anything else is a corrupted
// position and panics. Within a bin, indices keep ascending order, so the
// result is deterministic for a given input.
func Build(n, numBins int, binOf func(i int) int) *Bins {
	ids := make([]int32, n)
	offsets := make([]int32, numBins+1)
	for i := 0; i < n; i++ {
		b := binOf(i)
		if b < 0 || b >= numBins {
			panic(fmt.Sprintf("binning: item %d has bin id %d outside [0,%d)", i, b, numBins))
		}
		ids[i] = int32(b)
		offsets[b+1]++
	}
	for b := 0; b < numBins; b++ {
		offsets[b+1] += offsets[b]
	}

	perm := make([]int32, n)
	cursor := make([]int32, numBins)
	copy(cursor, offsets[:numBins])
	for i := 0; i < n; i++ {
		b := ids[i]
		perm[cursor[b]] = int32(i)
		cursor[b]++
	}
	return &Bins{perm: perm, offsets: offsets, numBins: numBins}
}

// Items returns the number of binned indices.
func (b *Bins) Items() int {
	return len(b.perm)
}

// NumBins returns the bin count.
func (b *Bins) NumBins() int {
	return b.numBins
}

// Perm returns the grouped index permutation. Callers must not modify it.
func (b *Bins) Perm() []int32 {
	return b.perm
}

// Range returns the half-open [lo, hi) slice of Perm holding bin id's
// members. Empty bins return lo == hi.
func (b *Bins) Range(id int) (lo, hi int) {
	return int(b.offsets[id]), int(b.offsets[id+1])
}

// BinOf returns the bin that perm position k falls in. Only used by
// sanity checks and tests; hot paths track the bin while iterating.
func (b *Bins) BinOf(k int) int {
	lo, hi := 0, b.numBins
	for lo < hi {
		mid := (lo + hi) / 2
		if int(b.offsets[mid+1]) <= k {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
