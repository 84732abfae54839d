// Package persistence provides SQLite-based run and statistics storage.
package persistence

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite connection for run bookkeeping.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		population INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		config TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS day_stats (
		run_id TEXT NOT NULL,
		day INTEGER NOT NULL,
		disease INTEGER NOT NULL,
		never INTEGER NOT NULL,
		susceptible INTEGER NOT NULL,
		infected INTEGER NOT NULL,
		immune INTEGER NOT NULL,
		dead INTEGER NOT NULL,
		withdrawn INTEGER NOT NULL,
		mean_survival REAL NOT NULL,
		PRIMARY KEY (run_id, day, disease)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_day_stats_run ON day_stats(run_id, disease);
	CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Run is one row of the run registry.
type Run struct {
	ID         string `db:"id" json:"id"`
	Seed       int64  `db:"seed" json:"seed"`
	Population int    `db:"population" json:"population"`
	StartedAt  string `db:"started_at" json:"started_at"`
	Config     string `db:"config" json:"config"`
}

// DayStats is one disease's status totals at the end of one simulated day.
type DayStats struct {
	RunID        string  `db:"run_id" json:"run_id"`
	Day          int     `db:"day" json:"day"`
	Disease      int     `db:"disease" json:"disease"`
	Never        int     `db:"never" json:"never"`
	Susceptible  int     `db:"susceptible" json:"susceptible"`
	Infected     int     `db:"infected" json:"infected"`
	Immune       int     `db:"immune" json:"immune"`
	Dead         int     `db:"dead" json:"dead"`
	Withdrawn    int     `db:"withdrawn" json:"withdrawn"`
	MeanSurvival float64 `db:"mean_survival" json:"mean_survival"`
}

// EventRow is one notable occurrence, persisted for post-run analysis.
type EventRow struct {
	RunID       string `db:"run_id" json:"run_id"`
	Tick        int64  `db:"tick" json:"tick"`
	Description string `db:"description" json:"description"`
	Category    string `db:"category" json:"category"`
}

// CreateRun registers a new run and returns its id.
func (db *DB) CreateRun(seed int64, population int, configYAML string) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.Exec(
		"INSERT INTO runs (id, seed, population, started_at, config) VALUES (?, ?, ?, ?, ?)",
		id, seed, population, time.Now().UTC().Format(time.RFC3339), configYAML,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// GetRun fetches one run row.
func (db *DB) GetRun(id string) (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT * FROM runs WHERE id = ?", id)
	return r, err
}

// SaveDayStats writes one day's rows, replacing any earlier save of the
// same (run, day, disease).
func (db *DB) SaveDayStats(rows []DayStats) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT OR REPLACE INTO day_stats
		(run_id, day, disease, never, susceptible, infected, immune, dead, withdrawn, mean_survival)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.Exec(
			r.RunID, r.Day, r.Disease, r.Never, r.Susceptible,
			r.Infected, r.Immune, r.Dead, r.Withdrawn, r.MeanSurvival,
		)
		if err != nil {
			return fmt.Errorf("insert day %d disease %d: %w", r.Day, r.Disease, err)
		}
	}

	return tx.Commit()
}

// DayStatsHistory returns the most recent limit days for one disease,
// newest first.
func (db *DB) DayStatsHistory(runID string, disease, limit int) ([]DayStats, error) {
	var rows []DayStats
	err := db.conn.Select(&rows,
		"SELECT * FROM day_stats WHERE run_id = ? AND disease = ? ORDER BY day DESC LIMIT ?",
		runID, disease, limit,
	)
	return rows, err
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(rows []EventRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(
		"INSERT INTO events (run_id, tick, description, category) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(r.RunID, r.Tick, r.Description, r.Category); err != nil {
			return fmt.Errorf("insert event at tick %d: %w", r.Tick, err)
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent limit events of a run, newest
// first.
func (db *DB) RecentEvents(runID string, limit int) ([]EventRow, error) {
	var rows []EventRow
	err := db.conn.Select(&rows,
		"SELECT run_id, tick, description, category FROM events WHERE run_id = ? ORDER BY id DESC LIMIT ?",
		runID, limit,
	)
	return rows, err
}

// SetMeta stores a key-value pair.
func (db *DB) SetMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}
