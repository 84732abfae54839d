// Package census holds the demographic layout a run is built on:
// administrative units, their communities, and how both map onto grid
// cells. Community k occupies cell dom.AtOffset(k); cells past the last
// community are padding and hold nobody at start.
package census

import (
	"fmt"

	"github.com/talgya/outbreak-sim/internal/geo"
)

// Data is an immutable demographic snapshot.
type Data struct {
	NUnit      int
	NCommunity int

	// Start has length NUnit+1; unit u owns communities
	// [Start[u], Start[u+1]).
	Start []int32

	// Population is nighttime residents per unit, CommPop per community.
	Population []uint32
	CommPop    []uint32

	// UnitID is each unit's external census id, the id space worker-flow
	// files speak.
	UnitID []uint32

	unitByID   map[uint32]int
	unitOfComm []int32
}

// New assembles a Data from per-unit external ids and per-unit community
// populations. commPops[u] lists unit u's community sizes in community
// order.
func New(unitIDs []uint32, commPops [][]uint32) (*Data, error) {
	if len(unitIDs) == 0 {
		return nil, fmt.Errorf("census: no units")
	}
	if len(unitIDs) != len(commPops) {
		return nil, fmt.Errorf("census: %d unit ids for %d community lists", len(unitIDs), len(commPops))
	}

	d := &Data{
		NUnit:    len(unitIDs),
		UnitID:   append([]uint32(nil), unitIDs...),
		Start:    make([]int32, len(unitIDs)+1),
		unitByID: make(map[uint32]int, len(unitIDs)),
	}
	for u, comms := range commPops {
		if _, dup := d.unitByID[unitIDs[u]]; dup {
			return nil, fmt.Errorf("census: duplicate unit id %d", unitIDs[u])
		}
		d.unitByID[unitIDs[u]] = u
		d.Start[u+1] = d.Start[u] + int32(len(comms))

		var total uint32
		for _, cp := range comms {
			total += cp
			d.CommPop = append(d.CommPop, cp)
			d.unitOfComm = append(d.unitOfComm, int32(u))
		}
		d.Population = append(d.Population, total)
	}
	d.NCommunity = len(d.CommPop)
	return d, nil
}

// Domain returns the grid sized for this demography, one cell per
// community plus padding.
func (d *Data) Domain() geo.Domain {
	return geo.Square(d.NCommunity)
}

// UnitByID maps an external unit id to its dense index.
func (d *Data) UnitByID(id uint32) (int, bool) {
	u, ok := d.unitByID[id]
	return u, ok
}

// UnitOfCommunity returns the unit owning community k.
func (d *Data) UnitOfCommunity(k int) int {
	return int(d.unitOfComm[k])
}

// Communities returns how many communities unit u owns.
func (d *Data) Communities(u int) int {
	return int(d.Start[u+1] - d.Start[u])
}

// CommunityAtCell returns the community at cell c, or -1 for padding
// cells.
func (d *Data) CommunityAtCell(dom geo.Domain, c geo.Cell) int {
	k := dom.Index(c)
	if k < 0 || k >= d.NCommunity {
		return -1
	}
	return k
}

// UnitAtCell returns the unit owning the community at cell c, or -1 for
// padding cells.
func (d *Data) UnitAtCell(dom geo.Domain, c geo.Cell) int {
	k := d.CommunityAtCell(dom, c)
	if k < 0 {
		return -1
	}
	return d.UnitOfCommunity(k)
}

// TotalPopulation sums residents across every unit.
func (d *Data) TotalPopulation() uint64 {
	var total uint64
	for _, p := range d.Population {
		total += uint64(p)
	}
	return total
}
