// Package agents holds the simulated population as a structure of arrays.
// Hot loops index plain slices instead of chasing per-agent pointers, so
// the interaction passes stay cache-friendly at millions of agents.
package agents

import (
	"github.com/talgya/outbreak-sim/internal/geo"
	"github.com/talgya/outbreak-sim/internal/rng"
)

// Age bands used by the transmission rate tables.
const (
	AgeUnder5 uint8 = iota // under 5
	AgeSchool              // 5-17
	AgeYoung               // 18-29, working age
	AgeAdult               // 30-64, working age
	AgeSenior              // 65+
)

// NumAgeGroups is the number of age bands.
const NumAgeGroups = 5

// WorkingAge reports whether an age band is eligible for workplace
// assignment.
func WorkingAge(g uint8) bool {
	return g == AgeYoung || g == AgeAdult
}

// Status is an agent's standing with respect to one disease.
type Status uint8

const (
	StatusNever       Status = iota // never infected
	StatusInfected                  // currently infected
	StatusImmune                    // recovered or vaccinated
	StatusSusceptible               // can be infected this pass
	StatusDead
)

// Population is the agent store. All top-level slices have length N; the
// per-disease slices are indexed [disease][agent].
type Population struct {
	N int

	AgeGroup []uint8
	Nborhood []int32 // neighborhood id within the agent's community
	School   []int32 // >= 1 attending, < 0 kept home, 0 not a student

	Workgroup []uint32 // 0 = no workgroup, assigned groups start at 1
	WorkX     []int32  // work community cell, -1 = unassigned
	WorkY     []int32

	HomeX []int32
	HomeY []int32
	X     []int32 // current cell, what the spatial binner reads
	Y     []int32

	Withdrawn []bool

	Status  [][]Status  // [disease][agent]
	Counter [][]float32 // [disease][agent], days since infection

	gen uint64 // position generation, bumped by every movement op
}

// NewPopulation allocates a population of n agents tracking the given
// number of diseases. Agents start susceptible to everything, at cell
// (0,0), with no work assignment.
func NewPopulation(n, diseases int) *Population {
	p := &Population{
		N:         n,
		AgeGroup:  make([]uint8, n),
		Nborhood:  make([]int32, n),
		School:    make([]int32, n),
		Workgroup: make([]uint32, n),
		WorkX:     make([]int32, n),
		WorkY:     make([]int32, n),
		HomeX:     make([]int32, n),
		HomeY:     make([]int32, n),
		X:         make([]int32, n),
		Y:         make([]int32, n),
		Withdrawn: make([]bool, n),
		Status:    make([][]Status, diseases),
		Counter:   make([][]float32, diseases),
	}
	for d := range p.Status {
		p.Status[d] = make([]Status, n)
		p.Counter[d] = make([]float32, n)
		for i := 0; i < n; i++ {
			p.Status[d][i] = StatusSusceptible
		}
	}
	for i := 0; i < n; i++ {
		p.WorkX[i] = -1
		p.WorkY[i] = -1
	}
	return p
}

// NumDiseases returns how many diseases the population tracks.
func (p *Population) NumDiseases() int {
	return len(p.Status)
}

// Susceptible reports whether agent i can currently be infected with
// disease d. Agents in any other state are skipped by interaction passes.
func (p *Population) Susceptible(d, i int) bool {
	return p.Status[d][i] == StatusSusceptible
}

// Infectious reports whether agent i transmits disease d: infected and
// past the incubation window. Immune and freshly infected agents are not
// sources.
func (p *Population) Infectious(d, i int, incubationDays float64) bool {
	return p.Status[d][i] == StatusInfected && float64(p.Counter[d][i]) >= incubationDays
}

// Cell returns agent i's current cell.
func (p *Population) Cell(i int) geo.Cell {
	return geo.Cell{X: p.X[i], Y: p.Y[i]}
}

// Home returns agent i's home cell.
func (p *Population) Home(i int) geo.Cell {
	return geo.Cell{X: p.HomeX[i], Y: p.HomeY[i]}
}

// HasWorkplace reports whether agent i has an assigned work location.
func (p *Population) HasWorkplace(i int) bool {
	return p.WorkX[i] >= 0 && p.WorkY[i] >= 0
}

// Gen returns the position generation. It changes whenever any agent
// moves, which is what invalidates cached spatial bins.
func (p *Population) Gen() uint64 {
	return p.gen
}

// SetCell moves agent i to cell c.
func (p *Population) SetCell(i int, c geo.Cell) {
	p.X[i] = c.X
	p.Y[i] = c.Y
	p.gen++
}

// RandomWalk steps each agent to a neighboring cell with probability
// chance, clipped to the domain.
func (p *Population) RandomWalk(dom geo.Domain, s *rng.Stream, chance float64) {
	if chance <= 0 {
		return
	}
	moved := false
	for i := 0; i < p.N; i++ {
		if s.Float() >= chance {
			continue
		}
		dir := geo.MooreDirections[s.Intn(len(geo.MooreDirections))]
		c := dom.Clip(geo.Cell{X: p.X[i] + dir.X, Y: p.Y[i] + dir.Y})
		p.X[i] = c.X
		p.Y[i] = c.Y
		moved = true
	}
	if moved {
		p.gen++
	}
}

// RandomTravel sends each agent to a uniformly random domain cell with
// probability chance. Run once per simulated day.
func (p *Population) RandomTravel(dom geo.Domain, s *rng.Stream, chance float64) {
	if chance <= 0 {
		return
	}
	moved := false
	for i := 0; i < p.N; i++ {
		if s.Float() >= chance {
			continue
		}
		c := dom.AtOffset(s.Intn(dom.NumCells()))
		p.X[i] = c.X
		p.Y[i] = c.Y
		moved = true
	}
	if moved {
		p.gen++
	}
}

// CommuteToWork places every agent with a work assignment at its work
// cell. Agents without one stay put.
func (p *Population) CommuteToWork() {
	for i := 0; i < p.N; i++ {
		if p.WorkX[i] >= 0 && p.WorkY[i] >= 0 {
			p.X[i] = p.WorkX[i]
			p.Y[i] = p.WorkY[i]
		}
	}
	p.gen++
}

// ReturnHome places every agent back at its home cell.
func (p *Population) ReturnHome() {
	for i := 0; i < p.N; i++ {
		p.X[i] = p.HomeX[i]
		p.Y[i] = p.HomeY[i]
	}
	p.gen++
}

// SeedInfections marks up to count uniformly chosen susceptible agents as
// infected with disease d, with their counters set to days. Returns how
// many agents were actually seeded.
func (p *Population) SeedInfections(d, count int, days float32, s *rng.Stream) int {
	if count > p.N {
		count = p.N
	}
	seeded := 0
	for _, i := range s.Perm(p.N) {
		if seeded == count {
			break
		}
		if p.Status[d][i] != StatusSusceptible {
			continue
		}
		p.Status[d][i] = StatusInfected
		p.Counter[d][i] = days
		seeded++
	}
	return seeded
}

// AdvanceCounters adds one day to every currently infected agent's
// counter for disease d. Status transitions stay with the caller.
func (p *Population) AdvanceCounters(d int) {
	for i := 0; i < p.N; i++ {
		if p.Status[d][i] == StatusInfected {
			p.Counter[d][i]++
		}
	}
}

// Counts is a per-status tally for one disease.
type Counts struct {
	Never       int `json:"never"`
	Infected    int `json:"infected"`
	Immune      int `json:"immune"`
	Susceptible int `json:"susceptible"`
	Dead        int `json:"dead"`
	Withdrawn   int `json:"withdrawn"`
}

// Totals tallies the population by status for disease d.
func (p *Population) Totals(d int) Counts {
	var c Counts
	for i := 0; i < p.N; i++ {
		switch p.Status[d][i] {
		case StatusNever:
			c.Never++
		case StatusInfected:
			c.Infected++
		case StatusImmune:
			c.Immune++
		case StatusSusceptible:
			c.Susceptible++
		case StatusDead:
			c.Dead++
		}
		if p.Withdrawn[i] {
			c.Withdrawn++
		}
	}
	return c
}
