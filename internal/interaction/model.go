package interaction

import (
	"github.com/talgya/outbreak-sim/internal/agents"
	"github.com/talgya/outbreak-sim/internal/binning"
	"github.com/talgya/outbreak-sim/internal/disease"
	"github.com/talgya/outbreak-sim/internal/geo"
	"github.com/talgya/outbreak-sim/internal/parallel"
)

// Model is one interaction context. Interact runs a full pass for disease
// d over the binned population and returns only after every pair has been
// folded into probs; buffers are per disease, so the caller must not start
// another disease's pass concurrently on the same buffer.
type Model interface {
	Name() string
	Interact(pop *agents.Population, dom geo.Domain, bins *binning.Bins, d int, p *disease.Params, probs *ProbBuffer)
}

// forSusceptibles is the shared pass driver: walk agents in bin order,
// skip everyone not susceptible to d, and hand each (infectious j,
// susceptible i) same-cell pair to the context rule. Candidates come only
// from i's own cell range; agents in other cells never meet.
func forSusceptibles(pop *agents.Population, dom geo.Domain, bins *binning.Bins, d int, incubationDays float64, workers int, pair func(inf, sus int)) {
	perm := bins.Perm()
	parallel.For(bins.Items(), workers, func(lo, hi int) {
		for ii := lo; ii < hi; ii++ {
			i := int(perm[ii])
			if !pop.Susceptible(d, i) {
				continue
			}
			cellLo, cellHi := bins.Range(dom.Index(pop.Cell(i)))
			for jj := cellLo; jj < cellHi; jj++ {
				j := int(perm[jj])
				if i == j {
					continue
				}
				if pop.Infectious(d, j, incubationDays) {
					pair(j, i)
				}
			}
		}
	})
}
