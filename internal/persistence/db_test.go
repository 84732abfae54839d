package persistence

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateAndGetRun(t *testing.T) {
	db := openTestDB(t)

	id, err := db.CreateRun(42, 480000, "seed: 42\n")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	run, err := db.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, id, run.ID)
	assert.Equal(t, int64(42), run.Seed)
	assert.Equal(t, 480000, run.Population)
	assert.Equal(t, "seed: 42\n", run.Config)
	assert.NotEmpty(t, run.StartedAt)
}

func TestDayStatsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	id, err := db.CreateRun(1, 100, "")
	require.NoError(t, err)

	var rows []DayStats
	for day := 0; day < 5; day++ {
		rows = append(rows, DayStats{
			RunID:        id,
			Day:          day,
			Disease:      0,
			Susceptible:  100 - day*3,
			Infected:     day * 3,
			MeanSurvival: 1.0 - float64(day)*0.01,
		})
	}
	require.NoError(t, db.SaveDayStats(rows))

	got, err := db.DayStatsHistory(id, 0, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Newest first.
	assert.Equal(t, 4, got[0].Day)
	assert.Equal(t, 12, got[0].Infected)
	assert.Equal(t, 2, got[2].Day)
	assert.InDelta(t, 0.96, got[0].MeanSurvival, 1e-9)
}

func TestDayStatsReplaceSameDay(t *testing.T) {
	db := openTestDB(t)
	id, err := db.CreateRun(1, 10, "")
	require.NoError(t, err)

	row := DayStats{RunID: id, Day: 1, Disease: 0, Infected: 5, MeanSurvival: 1}
	require.NoError(t, db.SaveDayStats([]DayStats{row}))
	row.Infected = 7
	require.NoError(t, db.SaveDayStats([]DayStats{row}))

	got, err := db.DayStatsHistory(id, 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 7, got[0].Infected)
}

func TestDayStatsPerDisease(t *testing.T) {
	db := openTestDB(t)
	id, err := db.CreateRun(1, 10, "")
	require.NoError(t, err)

	require.NoError(t, db.SaveDayStats([]DayStats{
		{RunID: id, Day: 0, Disease: 0, Infected: 3, MeanSurvival: 1},
		{RunID: id, Day: 0, Disease: 1, Infected: 8, MeanSurvival: 1},
	}))

	got, err := db.DayStatsHistory(id, 1, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 8, got[0].Infected)
}

func TestSaveDayStatsEmpty(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, db.SaveDayStats(nil))
}

func TestEventsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	id, err := db.CreateRun(1, 100, "")
	require.NoError(t, err)

	require.NoError(t, db.SaveEvents([]EventRow{
		{RunID: id, Tick: 24, Description: "schools closed", Category: "intervention"},
		{RunID: id, Tick: 48, Description: "outbreak spreading", Category: "epidemic"},
		{RunID: id, Tick: 72, Description: "schools reopened", Category: "intervention"},
	}))
	require.NoError(t, db.SaveEvents([]EventRow{
		{RunID: "other-run", Tick: 5, Description: "noise", Category: "epidemic"},
	}))

	got, err := db.RecentEvents(id, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Newest first, scoped to the run.
	assert.Equal(t, int64(72), got[0].Tick)
	assert.Equal(t, int64(48), got[1].Tick)
	assert.Equal(t, "epidemic", got[1].Category)
}

func TestSaveEventsEmpty(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, db.SaveEvents(nil))
}

func TestMeta(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.SetMeta("last_run", "abc"))
	v, err := db.GetMeta("last_run")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	require.NoError(t, db.SetMeta("last_run", "def"))
	v, err = db.GetMeta("last_run")
	require.NoError(t, err)
	assert.Equal(t, "def", v)

	_, err = db.GetMeta("missing")
	assert.Error(t, err)
}

func TestOpenReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	db, err := Open(path)
	require.NoError(t, err)
	id, err := db.CreateRun(9, 50, "")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db2, err := Open(path)
	require.NoError(t, err)
	defer db2.Close()
	run, err := db2.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, int64(9), run.Seed)
}
