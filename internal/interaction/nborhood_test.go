package interaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/outbreak-sim/internal/agents"
	"github.com/talgya/outbreak-sim/internal/binning"
	"github.com/talgya/outbreak-sim/internal/disease"
	"github.com/talgya/outbreak-sim/internal/geo"
	"github.com/talgya/outbreak-sim/internal/rng"
)

var testDom = geo.Domain{NX: 4, NY: 4}

// flatParams builds a parameter block whose rate tables hold one value per
// table, so age bands do not matter unless a test sets them apart.
func flatParams(comm, commSC, hood, hoodSC float64) *disease.Params {
	p := disease.Default()
	p.Infect = 0.1
	p.VacEff = 1.0
	p.IncubationDays = 3
	p.XmitWork = 0.0575
	for g := 0; g < agents.NumAgeGroups; g++ {
		p.XmitComm[g] = comm
		p.XmitCommSC[g] = commSC
		p.XmitHood[g] = hood
		p.XmitHoodSC[g] = hoodSC
	}
	return &p
}

// place puts every agent at the same cell with school open and distinct
// neighborhoods unless changed by the test.
func place(pop *agents.Population, c geo.Cell) {
	for i := 0; i < pop.N; i++ {
		pop.SetCell(i, c)
		pop.School[i] = 1
		pop.Nborhood[i] = int32(i)
	}
}

func infect(pop *agents.Population, i int) {
	pop.Status[0][i] = agents.StatusInfected
	pop.Counter[0][i] = 10
}

func binsFor(pop *agents.Population) *binning.Bins {
	return binning.Build(pop.N, testDom.NumCells(), func(i int) int {
		return testDom.Index(pop.Cell(i))
	})
}

func runNborhood(pop *agents.Population, p *disease.Params, workers int) *ProbBuffer {
	probs := NewProbBuffer(pop.N)
	m := Nborhood{Workers: workers}
	m.Interact(pop, testDom, binsFor(pop), 0, p, probs)
	return probs
}

func TestNborhoodTwoAgentOracle(t *testing.T) {
	// One infectious agent past incubation, one susceptible agent in the
	// same cell and neighborhood, both attending school, infect=0.1:
	// survival = (1 - 0.1*0.1) * (1 - 0.1*0.2) = 0.882.
	pop := agents.NewPopulation(2, 1)
	place(pop, geo.Cell{X: 1, Y: 1})
	pop.Nborhood[0] = 7
	pop.Nborhood[1] = 7
	infect(pop, 1)

	p := flatParams(0.1, 0.9, 0.2, 0.9)
	probs := runNborhood(pop, p, 1)

	assert.InDelta(t, 0.882, probs.Get(0), 1e-12)
	assert.Equal(t, 1.0, probs.Get(1), "infectious agent takes nothing")
}

func TestNborhoodCommunityOnlyWhenDifferentNeighborhood(t *testing.T) {
	pop := agents.NewPopulation(2, 1)
	place(pop, geo.Cell{X: 0, Y: 0})
	pop.Nborhood[0] = 1
	pop.Nborhood[1] = 2
	infect(pop, 1)

	p := flatParams(0.1, 0.9, 0.2, 0.9)
	probs := runNborhood(pop, p, 1)

	assert.InDelta(t, 1.0-0.1*0.1, probs.Get(0), 1e-12, "community factor only")
}

func TestNborhoodSchoolClosedTables(t *testing.T) {
	// The infectious side being kept out of school selects the SC tables.
	pop := agents.NewPopulation(2, 1)
	place(pop, geo.Cell{X: 2, Y: 0})
	pop.Nborhood[0] = 3
	pop.Nborhood[1] = 3
	pop.School[1] = -1
	infect(pop, 1)

	p := flatParams(0.1, 0.3, 0.2, 0.4)
	probs := runNborhood(pop, p, 1)

	want := (1.0 - 0.1*0.3) * (1.0 - 0.1*0.4)
	assert.InDelta(t, want, probs.Get(0), 1e-12)

	// A kept-home susceptible side changes nothing: tables follow the
	// infectious agent.
	pop2 := agents.NewPopulation(2, 1)
	place(pop2, geo.Cell{X: 2, Y: 0})
	pop2.Nborhood[0] = 3
	pop2.Nborhood[1] = 3
	pop2.School[0] = -1
	infect(pop2, 1)

	probs2 := runNborhood(pop2, p, 1)
	want2 := (1.0 - 0.1*0.1) * (1.0 - 0.1*0.2)
	assert.InDelta(t, want2, probs2.Get(0), 1e-12)
}

func TestNborhoodRatesIndexedBySusceptibleAge(t *testing.T) {
	pop := agents.NewPopulation(2, 1)
	place(pop, geo.Cell{X: 1, Y: 2})
	pop.Nborhood[0] = 1
	pop.Nborhood[1] = 1
	pop.AgeGroup[0] = agents.AgeSenior
	pop.AgeGroup[1] = agents.AgeUnder5
	infect(pop, 1)

	p := flatParams(0, 0, 0, 0)
	p.XmitComm[agents.AgeSenior] = 0.5
	p.XmitHood[agents.AgeSenior] = 0.25
	// Rates at the infectious side's band stay zero; if the kernel read
	// them the survival would be 1.0.

	probs := runNborhood(pop, p, 1)
	want := (1.0 - 0.1*0.5) * (1.0 - 0.1*0.25)
	assert.InDelta(t, want, probs.Get(0), 1e-12)
}

func TestNborhoodWithdrawnPairsDoNothing(t *testing.T) {
	for _, withdrawnIdx := range []int{0, 1} {
		pop := agents.NewPopulation(2, 1)
		place(pop, geo.Cell{X: 3, Y: 3})
		pop.Nborhood[0] = 1
		pop.Nborhood[1] = 1
		pop.Withdrawn[withdrawnIdx] = true
		infect(pop, 1)

		probs := runNborhood(pop, flatParams(0.5, 0.5, 0.5, 0.5), 1)
		assert.Equal(t, 1.0, probs.Get(0), "withdrawn side %d", withdrawnIdx)
	}
}

func TestNborhoodDifferentCellsNeverInteract(t *testing.T) {
	pop := agents.NewPopulation(2, 1)
	place(pop, geo.Cell{X: 0, Y: 0})
	pop.SetCell(1, geo.Cell{X: 1, Y: 0})
	pop.Nborhood[0] = 1
	pop.Nborhood[1] = 1
	infect(pop, 1)

	probs := runNborhood(pop, flatParams(0.9, 0.9, 0.9, 0.9), 1)
	assert.Equal(t, 1.0, probs.Get(0))
}

func TestNborhoodSourceGating(t *testing.T) {
	p := flatParams(0.5, 0.5, 0.5, 0.5)

	// Incubating source: infected but counter below incubation.
	pop := agents.NewPopulation(2, 1)
	place(pop, geo.Cell{X: 1, Y: 1})
	pop.Status[0][1] = agents.StatusInfected
	pop.Counter[0][1] = 1
	probs := runNborhood(pop, p, 1)
	assert.Equal(t, 1.0, probs.Get(0), "incubating agents do not transmit")

	// Immune source.
	pop2 := agents.NewPopulation(2, 1)
	place(pop2, geo.Cell{X: 1, Y: 1})
	pop2.Status[0][1] = agents.StatusImmune
	probs2 := runNborhood(pop2, p, 1)
	assert.Equal(t, 1.0, probs2.Get(0))
}

func TestNborhoodTargetGating(t *testing.T) {
	// Only susceptible agents accumulate: the never-infected and immune
	// stay at 1.0 even surrounded by sources.
	pop := agents.NewPopulation(4, 1)
	place(pop, geo.Cell{X: 2, Y: 2})
	for i := 0; i < 4; i++ {
		pop.Nborhood[i] = 1
	}
	infect(pop, 0)
	pop.Status[0][1] = agents.StatusNever
	pop.Status[0][2] = agents.StatusImmune

	probs := runNborhood(pop, flatParams(0.5, 0.5, 0.5, 0.5), 1)
	assert.Equal(t, 1.0, probs.Get(1))
	assert.Equal(t, 1.0, probs.Get(2))
	assert.Less(t, probs.Get(3), 1.0, "susceptible agent accumulates")
}

func TestNborhoodMultipleSourcesCompound(t *testing.T) {
	const sources = 5
	pop := agents.NewPopulation(sources+1, 1)
	place(pop, geo.Cell{X: 0, Y: 3})
	for i := 0; i <= sources; i++ {
		pop.Nborhood[i] = 9
	}
	for i := 1; i <= sources; i++ {
		infect(pop, i)
	}

	p := flatParams(0.1, 0.1, 0.2, 0.2)
	probs := runNborhood(pop, p, 1)

	single := (1.0 - 0.1*0.1) * (1.0 - 0.1*0.2)
	want := 1.0
	for k := 0; k < sources; k++ {
		want *= single
	}
	assert.InDelta(t, want, probs.Get(0), 1e-12)
}

func TestNborhoodBoundsAndParallelStability(t *testing.T) {
	const n = 3000
	dom := geo.Domain{NX: 4, NY: 4}
	pop := agents.NewPopulation(n, 1)
	s := rng.New(123)
	for i := 0; i < n; i++ {
		pop.SetCell(i, dom.AtOffset(s.Intn(dom.NumCells())))
		pop.Nborhood[i] = int32(s.Intn(4) + 1)
		pop.School[i] = int32(s.Intn(3) - 1)
		pop.AgeGroup[i] = uint8(s.Intn(agents.NumAgeGroups))
		if s.Float() < 0.2 {
			infect(pop, i)
		}
	}

	p := flatParams(0.05, 0.08, 0.1, 0.15)

	serial := runNborhood(pop, p, 1)
	wide := runNborhood(pop, p, 8)

	for i := 0; i < n; i++ {
		require.GreaterOrEqual(t, serial.Get(i), 0.0)
		require.LessOrEqual(t, serial.Get(i), 1.0)
		require.InDelta(t, serial.Get(i), wide.Get(i), 1e-12,
			"agent %d differs across worker counts", i)
	}
}
