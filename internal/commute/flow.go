// Package commute turns census worker-flow data into per-agent workplace
// assignments. The flow file is a stream of little-endian (from, to,
// count) uint32 records keyed by external unit ids; rows become cumulative
// distributions so one uniform draw per agent picks a destination unit.
package commute

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/talgya/outbreak-sim/internal/census"
)

// RecordSize is the byte width of one worker-flow record.
const RecordSize = 12

// Census tracts are modeled at a granularity of 2000 residents; worker
// counts and flow scaling both derive from it.
const tractSize = 2000.0

// workingAgeShare is the share of residents in the working-age bands.
const workingAgeShare = 0.586

// censusCorrection adds back the roughly 2% of workers missed during the
// census reporting week.
const censusCorrection = 1.02

// Record is one worker-flow file entry: count workers commuting from one
// external unit id to another.
type Record struct {
	From  uint32
	To    uint32
	Count uint32
}

// FlowTable is the worker-flow matrix for one demography. Rows exist only
// for units with local communities; Ndaywork holds the raw inbound worker
// count per destination unit, used to size workgroups.
type FlowTable struct {
	NUnit    int
	Ndaywork []uint32

	rows [][]uint32
}

// NewFlowTable allocates an empty table with a row per unit that owns
// communities.
func NewFlowTable(demo *census.Data) *FlowTable {
	ft := &FlowTable{
		NUnit:    demo.NUnit,
		Ndaywork: make([]uint32, demo.NUnit),
		rows:     make([][]uint32, demo.NUnit),
	}
	for u := 0; u < demo.NUnit; u++ {
		if demo.Communities(u) > 0 {
			ft.rows[u] = make([]uint32, demo.NUnit)
		}
	}
	return ft
}

// Local reports whether unit u has a row.
func (ft *FlowTable) Local(u int) bool {
	return ft.rows[u] != nil
}

// Row returns unit u's row, nil for non-local units. Callers must not
// modify it.
func (ft *FlowTable) Row(u int) []uint32 {
	return ft.rows[u]
}

// RowTotal returns the last entry of a cumulated row, the value agent
// draws are measured against. Zero for non-local units.
func (ft *FlowTable) RowTotal(u int) uint32 {
	row := ft.rows[u]
	if len(row) == 0 {
		return 0
	}
	return row[len(row)-1]
}

// ParseFlow builds a table from raw record bytes. Records whose from unit
// is unknown or not local, or whose to unit is unknown or has no
// communities, are dropped; the count of dropped records is returned.
// Duplicate (from, to) pairs keep the last count seen.
func ParseFlow(data []byte, demo *census.Data) (*FlowTable, int, error) {
	if len(data)%RecordSize != 0 {
		return nil, 0, fmt.Errorf("commute: flow data is %d bytes, not a multiple of %d", len(data), RecordSize)
	}

	ft := NewFlowTable(demo)
	dropped := 0
	for off := 0; off < len(data); off += RecordSize {
		from := binary.LittleEndian.Uint32(data[off:])
		to := binary.LittleEndian.Uint32(data[off+4:])
		count := binary.LittleEndian.Uint32(data[off+8:])

		i, ok := demo.UnitByID(from)
		if !ok || ft.rows[i] == nil {
			dropped++
			continue
		}
		j, ok := demo.UnitByID(to)
		if !ok || demo.Communities(j) == 0 {
			dropped++
			continue
		}
		ft.rows[i][j] = count
	}

	for _, row := range ft.rows {
		if row == nil {
			continue
		}
		for j, c := range row {
			ft.Ndaywork[j] += c
		}
	}
	return ft, dropped, nil
}

// ReadFlowFile reads and parses a worker-flow file.
func ReadFlowFile(path string, demo *census.Data) (*FlowTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("commute: read flow file: %w", err)
	}
	ft, dropped, err := ParseFlow(data, demo)
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		slog.Debug("worker-flow records dropped", "file", path, "dropped", dropped)
	}
	return ft, nil
}

// MarshalRecords encodes records in file order.
func MarshalRecords(recs []Record) []byte {
	out := make([]byte, len(recs)*RecordSize)
	for i, r := range recs {
		off := i * RecordSize
		binary.LittleEndian.PutUint32(out[off:], r.From)
		binary.LittleEndian.PutUint32(out[off+4:], r.To)
		binary.LittleEndian.PutUint32(out[off+8:], r.Count)
	}
	return out
}

// WriteFlowFile writes records to path in the flow file format.
func WriteFlowFile(path string, recs []Record) error {
	if err := os.WriteFile(path, MarshalRecords(recs), 0o644); err != nil {
		return fmt.Errorf("commute: write flow file: %w", err)
	}
	return nil
}

// Cumulate converts every local row into running totals so a single
// uniform draw selects a destination unit. Call once, before Scale.
func (ft *FlowTable) Cumulate() {
	for _, row := range ft.rows {
		if row == nil {
			continue
		}
		for j := 1; j < len(row); j++ {
			row[j] += row[j-1]
		}
	}
}

// Scale fits every cumulated row to the modeled tract population of its
// source unit and folds the reporting-week undercount back in. Rounding
// is half-to-even and preserves the non-decreasing row shape. Units with
// zero population keep their raw rows.
func (ft *FlowTable) Scale(demo *census.Data) {
	for u, row := range ft.rows {
		if row == nil || demo.Population[u] == 0 {
			continue
		}
		number := math.RoundToEven(float64(demo.Population[u]) / tractSize)
		scale := censusCorrection * (tractSize * number) / float64(demo.Population[u])
		for j := range row {
			row[j] = uint32(math.RoundToEven(float64(row[j]) * scale))
		}
	}
}
