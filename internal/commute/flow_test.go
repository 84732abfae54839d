package commute

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/outbreak-sim/internal/census"
)

// twoUnits is a demography with one community per unit, populations 2000
// each, external ids 1001 and 1050.
func twoUnits(t *testing.T) *census.Data {
	t.Helper()
	demo, err := census.New(
		[]uint32{1001, 1050},
		[][]uint32{{2000}, {2000}},
	)
	require.NoError(t, err)
	return demo
}

func TestParseFlowRejectsBadLength(t *testing.T) {
	demo := twoUnits(t)
	_, _, err := ParseFlow(make([]byte, RecordSize+5), demo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple")
}

func TestParseFlowFillsRowsAndDaywork(t *testing.T) {
	demo := twoUnits(t)
	data := MarshalRecords([]Record{
		{From: 1001, To: 1001, Count: 10},
		{From: 1001, To: 1050, Count: 20},
		{From: 1050, To: 1001, Count: 5},
	})

	ft, dropped, err := ParseFlow(data, demo)
	require.NoError(t, err)
	assert.Equal(t, 0, dropped)

	assert.Equal(t, []uint32{10, 20}, ft.Row(0))
	assert.Equal(t, []uint32{5, 0}, ft.Row(1))
	assert.Equal(t, []uint32{15, 20}, ft.Ndaywork)
}

func TestParseFlowDropsUnusableRecords(t *testing.T) {
	// Unit 1050 exists but owns no communities, so it can neither send
	// nor receive workers.
	demo, err := census.New(
		[]uint32{1001, 1050, 1200},
		[][]uint32{{1000}, {}, {1000}},
	)
	require.NoError(t, err)

	data := MarshalRecords([]Record{
		{From: 9999, To: 1001, Count: 3}, // unknown source
		{From: 1001, To: 9999, Count: 3}, // unknown destination
		{From: 1050, To: 1001, Count: 3}, // source has no communities
		{From: 1001, To: 1050, Count: 3}, // destination has no communities
		{From: 1001, To: 1200, Count: 7}, // kept
	})

	ft, dropped, err := ParseFlow(data, demo)
	require.NoError(t, err)
	assert.Equal(t, 4, dropped)
	assert.Nil(t, ft.Row(1))
	assert.Equal(t, []uint32{0, 0, 7}, ft.Row(0))
	assert.Equal(t, []uint32{0, 0, 7}, ft.Ndaywork)
}

func TestParseFlowLastRecordWins(t *testing.T) {
	demo := twoUnits(t)
	data := MarshalRecords([]Record{
		{From: 1001, To: 1050, Count: 5},
		{From: 1001, To: 1050, Count: 9},
	})

	ft, _, err := ParseFlow(data, demo)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), ft.Row(0)[1])
	assert.Equal(t, uint32(9), ft.Ndaywork[1])
}

func TestFlowFileRoundTrip(t *testing.T) {
	demo := twoUnits(t)
	recs := []Record{
		{From: 1001, To: 1001, Count: 600},
		{From: 1001, To: 1050, Count: 600},
		{From: 1050, To: 1050, Count: 800},
	}
	path := filepath.Join(t.TempDir(), "flow.bin")
	require.NoError(t, WriteFlowFile(path, recs))

	ft, err := ReadFlowFile(path, demo)
	require.NoError(t, err)
	assert.Equal(t, []uint32{600, 600}, ft.Row(0))
	assert.Equal(t, []uint32{0, 800}, ft.Row(1))
}

func TestReadFlowFileMissing(t *testing.T) {
	demo := twoUnits(t)
	_, err := ReadFlowFile(filepath.Join(t.TempDir(), "absent.bin"), demo)
	require.Error(t, err)
}

func TestCumulate(t *testing.T) {
	demo := twoUnits(t)
	ft, _, err := ParseFlow(MarshalRecords([]Record{
		{From: 1001, To: 1001, Count: 10},
		{From: 1001, To: 1050, Count: 20},
	}), demo)
	require.NoError(t, err)

	ft.Cumulate()
	assert.Equal(t, []uint32{10, 30}, ft.Row(0))
	assert.Equal(t, uint32(30), ft.RowTotal(0))
	assert.Equal(t, uint32(0), ft.RowTotal(1))
}

func TestScale(t *testing.T) {
	// Unit 1001 has 4000 residents: two modeled tracts, scale factor
	// 1.02 * 4000/4000 = 1.02.
	demo, err := census.New(
		[]uint32{1001, 1050},
		[][]uint32{{2000, 2000}, {2000}},
	)
	require.NoError(t, err)

	ft, _, err := ParseFlow(MarshalRecords([]Record{
		{From: 1001, To: 1001, Count: 10},
		{From: 1001, To: 1050, Count: 20},
	}), demo)
	require.NoError(t, err)

	ft.Cumulate() // [10, 30]
	ft.Scale(demo)
	// 10*1.02 = 10.2 -> 10, 30*1.02 = 30.6 -> 31.
	assert.Equal(t, []uint32{10, 31}, ft.Row(0))
}

func TestScaleSkipsEmptyUnits(t *testing.T) {
	// A zero-population unit keeps its raw row, and a sub-tract unit
	// scales to zero.
	demo, err := census.New(
		[]uint32{1001, 1050},
		[][]uint32{{0}, {900}},
	)
	require.NoError(t, err)

	ft := NewFlowTable(demo)
	ft.rows[0][0] = 50
	ft.rows[1][1] = 50
	ft.Cumulate()
	ft.Scale(demo)

	assert.Equal(t, uint32(50), ft.Row(0)[0], "zero-population unit left raw")
	// 900 residents round to zero tracts, so the whole row collapses.
	assert.Equal(t, []uint32{0, 0}, ft.Row(1))
}

func TestDestUnit(t *testing.T) {
	row := []uint32{10, 30, 30}
	cases := []struct {
		draw uint32
		unit int
		ok   bool
	}{
		{0, 0, true},
		{9, 0, true},
		{10, 1, true},
		{25, 1, true},
		{29, 1, true},
		{30, 0, false}, // at the row total: no assignment
		{35, 0, false},
	}
	for _, tc := range cases {
		unit, ok := destUnit(row, tc.draw)
		assert.Equal(t, tc.ok, ok, "draw %d", tc.draw)
		if ok {
			assert.Equal(t, tc.unit, unit, "draw %d", tc.draw)
		}
	}

	_, ok := destUnit(nil, 0)
	assert.False(t, ok)
}
