package commute

import (
	"math"

	"github.com/talgya/outbreak-sim/internal/census"
	"github.com/talgya/outbreak-sim/internal/geo"
)

// SynthesizeFlow builds a gravity-model worker flow for a demography.
// Attraction between two units scales with both populations and falls
// off with the distance between their centroid cells; each unit's
// outbound counts sum to roughly its working-age population. The result
// is deterministic for a demography and stands in for a measured flow
// file.
func SynthesizeFlow(demo *census.Data, dom geo.Domain) []Record {
	centroids := make([]geo.Cell, demo.NUnit)
	for u := range centroids {
		if demo.Communities(u) == 0 {
			continue
		}
		mid := int(demo.Start[u]) + demo.Communities(u)/2
		centroids[u] = dom.AtOffset(mid)
	}

	var recs []Record
	weights := make([]float64, demo.NUnit)
	for u := 0; u < demo.NUnit; u++ {
		if demo.Communities(u) == 0 || demo.Population[u] == 0 {
			continue
		}

		var sum float64
		for v := 0; v < demo.NUnit; v++ {
			weights[v] = 0
			if demo.Communities(v) == 0 || demo.Population[v] == 0 {
				continue
			}
			w := float64(demo.Population[u]) * float64(demo.Population[v]) /
				(1 + geo.Dist(centroids[u], centroids[v]))
			weights[v] = w
			sum += w
		}
		if sum == 0 {
			continue
		}

		workers := workingAgeShare * float64(demo.Population[u])
		for v := 0; v < demo.NUnit; v++ {
			if weights[v] == 0 {
				continue
			}
			count := uint32(math.RoundToEven(workers * weights[v] / sum))
			if count == 0 {
				continue
			}
			recs = append(recs, Record{From: demo.UnitID[u], To: demo.UnitID[v], Count: count})
		}
	}
	return recs
}
