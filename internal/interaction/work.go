package interaction

import (
	"github.com/talgya/outbreak-sim/internal/agents"
	"github.com/talgya/outbreak-sim/internal/binning"
	"github.com/talgya/outbreak-sim/internal/disease"
	"github.com/talgya/outbreak-sim/internal/geo"
)

// Work is the workplace interaction context: transmission between
// co-located coworkers who share a workgroup id.
type Work struct {
	Workers int
	Scale   float64 // work contact scale; 0 means 1.0
}

// Name implements Model.
func (m Work) Name() string {
	return "work"
}

// Interact implements Model.
func (m Work) Interact(pop *agents.Population, dom geo.Domain, bins *binning.Bins, d int, p *disease.Params, probs *ProbBuffer) {
	scale := m.Scale
	if scale == 0 {
		scale = 1.0
	}
	forSusceptibles(pop, dom, bins, d, p.IncubationDays, m.Workers, func(inf, sus int) {
		workPair(pop, p, inf, sus, scale, probs)
	})
}

// workPair folds one coworker encounter into the susceptible side's slot.
// The infectious side must hold a workgroup and a work location; the
// susceptible side must share the workgroup and have a work location of
// its own. Anything else is a no-op.
func workPair(pop *agents.Population, p *disease.Params, inf, sus int, scale float64, probs *ProbBuffer) {
	if pop.Withdrawn[inf] || pop.Withdrawn[sus] {
		return
	}
	if pop.Workgroup[inf] == 0 || pop.WorkX[inf] < 0 {
		return
	}
	if pop.WorkX[sus] < 0 || pop.Workgroup[sus] != pop.Workgroup[inf] {
		return
	}
	probs.Mul(sus, 1.0-p.Infect*p.VacEff*p.XmitWork*scale)
}
