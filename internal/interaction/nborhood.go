package interaction

import (
	"github.com/talgya/outbreak-sim/internal/agents"
	"github.com/talgya/outbreak-sim/internal/binning"
	"github.com/talgya/outbreak-sim/internal/disease"
	"github.com/talgya/outbreak-sim/internal/geo"
)

// Nborhood is the community and neighborhood interaction context. Every
// same-cell pair shares a community and takes the community-level factor;
// pairs that also share a neighborhood id take the neighborhood factor on
// top.
type Nborhood struct {
	Workers int
	Scale   float64 // social contact scale; 0 means 1.0. TODO vary by cell density
}

// Name implements Model.
func (m Nborhood) Name() string {
	return "nborhood"
}

// Interact implements Model.
func (m Nborhood) Interact(pop *agents.Population, dom geo.Domain, bins *binning.Bins, d int, p *disease.Params, probs *ProbBuffer) {
	scale := m.Scale
	if scale == 0 {
		scale = 1.0
	}
	forSusceptibles(pop, dom, bins, d, p.IncubationDays, m.Workers, func(inf, sus int) {
		nborhoodPair(pop, p, inf, sus, scale, probs)
	})
}

// nborhoodPair folds one encounter into the susceptible side's slot. The
// rate tables are read at the susceptible agent's age band; the
// school-closed variants apply when the infectious agent is a student
// currently kept out of school (school id < 0).
func nborhoodPair(pop *agents.Population, p *disease.Params, inf, sus int, scale float64, probs *ProbBuffer) {
	if pop.Withdrawn[inf] || pop.Withdrawn[sus] {
		return
	}
	infect := p.Infect * p.VacEff
	age := pop.AgeGroup[sus]

	factor := 1.0
	if pop.School[inf] < 0 {
		factor *= 1.0 - infect*p.XmitCommSC[age]*scale
	} else {
		factor *= 1.0 - infect*p.XmitComm[age]*scale
	}

	if pop.Nborhood[inf] == pop.Nborhood[sus] {
		if pop.School[inf] < 0 {
			factor *= 1.0 - infect*p.XmitHoodSC[age]*scale
		} else {
			factor *= 1.0 - infect*p.XmitHood[age]*scale
		}
	}

	probs.Mul(sus, factor)
}
