// Synthetic demography: layered simplex noise shapes community sizes over
// the grid so population clusters the way real tracts do, and contiguous
// runs of communities roll up into units.
package census

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/outbreak-sim/internal/agents"
	"github.com/talgya/outbreak-sim/internal/geo"
	"github.com/talgya/outbreak-sim/internal/rng"
)

// NeighborhoodsPerCommunity partitions every community for the
// neighborhood-level transmission factor.
const NeighborhoodsPerCommunity = 4

// DaycareID is the school id given to under-5 agents placed in group
// care; student ids stay in [1, NeighborhoodsPerCommunity].
const DaycareID = NeighborhoodsPerCommunity + 1

// SynthConfig drives the synthetic demography generator.
type SynthConfig struct {
	Communities       int `yaml:"communities"`
	Units             int `yaml:"units"`
	MeanCommunitySize int `yaml:"mean_community_size"`
}

// withDefaults fills zero fields and clamps units to the community count.
func (c SynthConfig) withDefaults() SynthConfig {
	if c.Communities <= 0 {
		c.Communities = 240
	}
	if c.Units <= 0 {
		c.Units = 12
	}
	if c.Units > c.Communities {
		c.Units = c.Communities
	}
	if c.MeanCommunitySize <= 0 {
		c.MeanCommunitySize = 2000
	}
	return c
}

// Synthesize builds a deterministic synthetic demography for the given
// seed. Community sizes vary around the configured mean by a noise factor
// in [0.5, 1.5].
func Synthesize(cfg SynthConfig, seed int64) *Data {
	cfg = cfg.withDefaults()
	dom := geo.Square(cfg.Communities)
	noise := opensimplex.NewNormalized(seed)

	perUnit := cfg.Communities / cfg.Units
	extra := cfg.Communities % cfg.Units

	ids := make([]uint32, cfg.Units)
	commPops := make([][]uint32, cfg.Units)
	k := 0
	for u := 0; u < cfg.Units; u++ {
		n := perUnit
		if u < extra {
			n++
		}
		comms := make([]uint32, n)
		for j := range comms {
			cell := dom.AtOffset(k)
			density := octaveNoise(noise, float64(cell.X), float64(cell.Y), 3, 0.12, 0.5)
			comms[j] = uint32(math.Round(float64(cfg.MeanCommunitySize) * (0.5 + density)))
			k++
		}
		// Non-contiguous external ids keep the id mapping honest.
		ids[u] = 1000 + uint32(u)*11
		commPops[u] = comms
	}

	d, err := New(ids, commPops)
	if err != nil {
		panic("census: synthesized demography invalid: " + err.Error())
	}
	return d
}

// ageDistribution is the resident fraction per age band: under 5, 5-17,
// 18-29, 30-64, 65+.
var ageDistribution = [agents.NumAgeGroups]float64{0.067, 0.175, 0.165, 0.445, 0.148}

// BuildPopulation realizes one agent per resident. Agents start at their
// home community cell, susceptible to every disease, with neighborhoods
// and school ids drawn deterministically from seed.
func BuildPopulation(demo *Data, dom geo.Domain, diseases int, seed int64) *agents.Population {
	total := 0
	for _, cp := range demo.CommPop {
		total += int(cp)
	}
	pop := agents.NewPopulation(total, diseases)
	s := rng.New(seed)

	i := 0
	for k, cp := range demo.CommPop {
		cell := dom.AtOffset(k)
		for r := uint32(0); r < cp; r++ {
			pop.HomeX[i] = cell.X
			pop.HomeY[i] = cell.Y
			pop.X[i] = cell.X
			pop.Y[i] = cell.Y

			g := sampleAgeGroup(s)
			pop.AgeGroup[i] = g
			nb := int32(1 + s.Intn(NeighborhoodsPerCommunity))
			pop.Nborhood[i] = nb

			switch g {
			case agents.AgeSchool:
				pop.School[i] = nb // one school per neighborhood
			case agents.AgeUnder5:
				if s.Float() < 0.5 {
					pop.School[i] = DaycareID
				}
			}
			i++
		}
	}
	return pop
}

func sampleAgeGroup(s *rng.Stream) uint8 {
	r := s.Float()
	acc := 0.0
	for g := 0; g < agents.NumAgeGroups-1; g++ {
		acc += ageDistribution[g]
		if r < acc {
			return uint8(g)
		}
	}
	return agents.AgeSenior
}

func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
