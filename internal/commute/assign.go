// Workplace assignment from a cumulated, scaled flow table.
package commute

import (
	"math"
	"sync/atomic"

	"github.com/talgya/outbreak-sim/internal/agents"
	"github.com/talgya/outbreak-sim/internal/census"
	"github.com/talgya/outbreak-sim/internal/geo"
	"github.com/talgya/outbreak-sim/internal/parallel"
	"github.com/talgya/outbreak-sim/internal/rng"
)

// DefaultWorkgroupSize is the target headcount of one workgroup.
const DefaultWorkgroupSize = 20

// DefaultStayLocal is the extra chance that an agent commuting within its
// home unit works in its home community.
const DefaultStayLocal = 0.25

// AssignConfig tunes workplace assignment.
type AssignConfig struct {
	WorkgroupSize int     // target workgroup headcount; <= 0 means DefaultWorkgroupSize
	StayLocal     float64 // chance of working in the home community when staying in the home unit
	Workers       int     // parallel fan-out; 0 means GOMAXPROCS
}

// DefaultAssignConfig returns the standard assignment tuning.
func DefaultAssignConfig() AssignConfig {
	return AssignConfig{WorkgroupSize: DefaultWorkgroupSize, StayLocal: DefaultStayLocal}
}

// AssignStats summarizes one assignment pass.
type AssignStats struct {
	Eligible int // working-age agents in units with any modeled workers
	Assigned int // agents given a workplace
	Overflow int // draws beyond the row total, left unassigned
}

// AssignWorkplaces gives each working-age agent a workplace community and
// workgroup drawn from the flow table. The table must be cumulated and
// scaled. Each agent draws against its home unit's row; a draw beyond the
// row total leaves the agent's previous assignment untouched. Results are
// deterministic for a given seed regardless of worker count.
func AssignWorkplaces(pop *agents.Population, demo *census.Data, flow *FlowTable, dom geo.Domain, cfg AssignConfig, seed int64) AssignStats {
	if cfg.WorkgroupSize <= 0 {
		cfg.WorkgroupSize = DefaultWorkgroupSize
	}

	var eligible, assigned, overflow atomic.Int64
	parallel.ForRNG(pop.N, cfg.Workers, seed, func(ip int, s *rng.Stream) {
		home := pop.Home(ip)
		from := demo.UnitAtCell(dom, home)
		if from < 0 {
			return
		}
		number := math.RoundToEven(float64(demo.Population[from]) / tractSize)
		nwork := uint32(tractSize * number * workingAgeShare)
		if nwork == 0 {
			return
		}
		if !agents.WorkingAge(pop.AgeGroup[ip]) {
			return
		}
		row := flow.rows[from]
		if row == nil {
			return
		}
		eligible.Add(1)

		draw := uint32(s.Intn(int(nwork)))
		to, ok := destUnit(row, draw)
		if !ok {
			overflow.Add(1)
			return
		}

		var comm int
		if to == from && s.Float() < cfg.StayLocal {
			comm = demo.CommunityAtCell(dom, home)
		} else {
			comm = int(demo.Start[to]) + s.Intn(demo.Communities(to))
		}
		cell := dom.AtOffset(comm)
		pop.WorkX[ip] = cell.X
		pop.WorkY[ip] = cell.Y

		ngrp := int(math.RoundToEven(float64(flow.Ndaywork[to]) / (float64(cfg.WorkgroupSize) * float64(demo.Communities(to)))))
		if ngrp > 0 {
			pop.Workgroup[ip] = 1 + uint32(s.Intn(ngrp))
		}
		assigned.Add(1)
	})

	return AssignStats{
		Eligible: int(eligible.Load()),
		Assigned: int(assigned.Load()),
		Overflow: int(overflow.Load()),
	}
}

// destUnit scans a cumulative row for the first unit whose running total
// exceeds draw. ok is false when the draw lies at or beyond the row total.
func destUnit(row []uint32, draw uint32) (int, bool) {
	if len(row) == 0 || draw >= row[len(row)-1] {
		return 0, false
	}
	to := 0
	for draw >= row[to] {
		to++
	}
	return to, true
}
