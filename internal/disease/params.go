// Package disease holds per-disease transmission parameters. Rates are
// per-pair, per-tick infection probabilities, tabulated by the susceptible
// agent's age band.
package disease

import (
	"fmt"

	"github.com/talgya/outbreak-sim/internal/agents"
)

// Params is one disease's parameter block as it appears in run config.
type Params struct {
	Name string `yaml:"name"`

	// Infect scales every transmission rate; VacEff folds population-wide
	// vaccine efficacy into the same product.
	Infect float64 `yaml:"infect"`
	VacEff float64 `yaml:"vac_eff"`

	// IncubationDays is how long after infection an agent starts
	// transmitting.
	IncubationDays float64 `yaml:"incubation_days"`

	// Community- and neighborhood-level rates. The SC tables replace the
	// base ones for pairs whose infectious side is a student currently
	// kept out of school.
	XmitComm   [agents.NumAgeGroups]float64 `yaml:"xmit_comm"`
	XmitCommSC [agents.NumAgeGroups]float64 `yaml:"xmit_comm_sc"`
	XmitHood   [agents.NumAgeGroups]float64 `yaml:"xmit_hood"`
	XmitHoodSC [agents.NumAgeGroups]float64 `yaml:"xmit_hood_sc"`

	// XmitWork is the flat coworker rate, applied within shared workgroups.
	XmitWork float64 `yaml:"xmit_work"`
}

// Default returns a baseline parameter block. The contact rates follow the
// influenza calibration this model family descends from; school-closure
// tables double the child bands' community and neighborhood contacts.
func Default() Params {
	return Params{
		Name:           "baseline",
		Infect:         1.0,
		VacEff:         1.0,
		IncubationDays: 3,
		XmitComm:       [agents.NumAgeGroups]float64{0.000125, 0.000375, 0.00100, 0.00075, 0.00050},
		XmitCommSC:     [agents.NumAgeGroups]float64{0.000250, 0.000750, 0.00100, 0.00075, 0.00050},
		XmitHood:       [agents.NumAgeGroups]float64{0.00048, 0.00144, 0.00384, 0.00288, 0.00192},
		XmitHoodSC:     [agents.NumAgeGroups]float64{0.00096, 0.00288, 0.00384, 0.00288, 0.00192},
		XmitWork:       0.0575,
	}
}

// Validate checks that every rate is a probability and the block is usable.
func (p *Params) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("disease needs a name")
	}
	if p.Infect < 0 || p.Infect > 1 {
		return fmt.Errorf("disease %s: infect %v out of [0,1]", p.Name, p.Infect)
	}
	if p.VacEff < 0 || p.VacEff > 1 {
		return fmt.Errorf("disease %s: vac_eff %v out of [0,1]", p.Name, p.VacEff)
	}
	if p.IncubationDays < 0 {
		return fmt.Errorf("disease %s: negative incubation_days", p.Name)
	}
	if p.XmitWork < 0 || p.XmitWork > 1 {
		return fmt.Errorf("disease %s: xmit_work %v out of [0,1]", p.Name, p.XmitWork)
	}
	tables := map[string][agents.NumAgeGroups]float64{
		"xmit_comm":    p.XmitComm,
		"xmit_comm_sc": p.XmitCommSC,
		"xmit_hood":    p.XmitHood,
		"xmit_hood_sc": p.XmitHoodSC,
	}
	for name, tab := range tables {
		for g, v := range tab {
			if v < 0 || v > 1 {
				return fmt.Errorf("disease %s: %s[%d] = %v out of [0,1]", p.Name, name, g, v)
			}
		}
	}
	return nil
}
