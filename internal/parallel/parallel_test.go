package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/outbreak-sim/internal/rng"
)

func TestForCoversEveryIndexOnce(t *testing.T) {
	for _, n := range []int{0, 1, 100, ChunkSize, ChunkSize + 1, 3*ChunkSize + 17} {
		hits := make([]atomic.Int32, n)
		For(n, 4, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				hits[i].Add(1)
			}
		})
		for i := 0; i < n; i++ {
			require.EqualValues(t, 1, hits[i].Load(), "n=%d index %d", n, i)
		}
	}
}

func TestForSingleWorkerOrdered(t *testing.T) {
	var total atomic.Int64
	For(2500, 1, func(lo, hi int) {
		require.Less(t, lo, hi)
		total.Add(int64(hi - lo))
	})
	assert.EqualValues(t, 2500, total.Load())
}

func TestForRNGDeterministicAcrossWorkerCounts(t *testing.T) {
	const n = 2*ChunkSize + 123
	const seed = 777

	draw := func(workers int) []float64 {
		out := make([]float64, n)
		ForRNG(n, workers, seed, func(i int, s *rng.Stream) {
			out[i] = s.Float()
		})
		return out
	}

	one := draw(1)
	four := draw(4)
	nine := draw(9)
	assert.Equal(t, one, four)
	assert.Equal(t, one, nine)
}

func TestForRNGDifferentSeedsDiffer(t *testing.T) {
	const n = 256
	a := make([]float64, n)
	b := make([]float64, n)
	ForRNG(n, 2, 1, func(i int, s *rng.Stream) { a[i] = s.Float() })
	ForRNG(n, 2, 2, func(i int, s *rng.Stream) { b[i] = s.Float() })
	assert.NotEqual(t, a, b)
}

func TestForEmpty(t *testing.T) {
	called := false
	For(0, 8, func(lo, hi int) { called = true })
	assert.False(t, called)
}
