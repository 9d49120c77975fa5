// Package history persists poll outcomes, issued commands and moisture
// readings to a local sqlite database so restarts keep their trail.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS polls (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	serial TEXT NOT NULL,
	polled_at TEXT NOT NULL,
	success BOOLEAN NOT NULL,
	error TEXT,
	token_remaining INTEGER,
	slowdown_factor INTEGER
);
CREATE INDEX IF NOT EXISTS idx_polls_serial ON polls(serial, polled_at);

CREATE TABLE IF NOT EXISTS commands (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	serial TEXT NOT NULL,
	issued_at TEXT NOT NULL,
	command TEXT NOT NULL,
	detail TEXT,
	success BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS moisture_readings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	serial TEXT NOT NULL,
	zone INTEGER NOT NULL,
	reading_date TEXT NOT NULL,
	moisture REAL NOT NULL,
	recorded_at TEXT NOT NULL,
	UNIQUE(serial, zone, reading_date)
);
`

type History struct {
	db *sql.DB
}

type PollRecord struct {
	Serial         string
	PolledAt       time.Time
	Success        bool
	Error          string
	TokenRemaining *int
	SlowdownFactor int
}

// Open opens or creates the history database at path and ensures the schema
// exists.
func Open(path string) (*History, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}
	return &History{db: db}, nil
}

func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) RecordPoll(r PollRecord) error {
	_, err := h.db.Exec(
		`INSERT INTO polls (serial, polled_at, success, error, token_remaining, slowdown_factor) VALUES (?, ?, ?, ?, ?, ?)`,
		r.Serial, r.PolledAt.UTC().Format(time.RFC3339), r.Success, r.Error, r.TokenRemaining, r.SlowdownFactor)
	if err != nil {
		return fmt.Errorf("failed to record poll: %w", err)
	}
	return nil
}

func (h *History) RecordCommand(serial, command, detail string, success bool) error {
	_, err := h.db.Exec(
		`INSERT INTO commands (serial, issued_at, command, detail, success) VALUES (?, ?, ?, ?, ?)`,
		serial, time.Now().UTC().Format(time.RFC3339), command, detail, success)
	if err != nil {
		return fmt.Errorf("failed to record command: %w", err)
	}
	return nil
}

// RecordMoisture upserts one zone reading. Readings are keyed by serial,
// zone and date so re-polling the same day overwrites instead of piling up.
func (h *History) RecordMoisture(serial string, zone int, readingDate string, moisture float64) error {
	_, err := h.db.Exec(
		`INSERT INTO moisture_readings (serial, zone, reading_date, moisture, recorded_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(serial, zone, reading_date) DO UPDATE SET moisture = excluded.moisture, recorded_at = excluded.recorded_at`,
		serial, zone, readingDate, moisture, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record moisture reading: %w", err)
	}
	return nil
}

// RecentPolls returns the newest poll records for a device, most recent
// first.
func (h *History) RecentPolls(serial string, limit int) ([]PollRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.db.Query(
		`SELECT serial, polled_at, success, error, token_remaining, slowdown_factor
		 FROM polls WHERE serial = ? ORDER BY id DESC LIMIT ?`, serial, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query polls: %w", err)
	}
	defer rows.Close()

	var records []PollRecord
	for rows.Next() {
		var r PollRecord
		var polledAt string
		var errMsg sql.NullString
		var remaining sql.NullInt64
		if err := rows.Scan(&r.Serial, &polledAt, &r.Success, &errMsg, &remaining, &r.SlowdownFactor); err != nil {
			return nil, fmt.Errorf("failed to scan poll record: %w", err)
		}
		r.PolledAt, _ = time.Parse(time.RFC3339, polledAt)
		r.Error = errMsg.String
		if remaining.Valid {
			v := int(remaining.Int64)
			r.TokenRemaining = &v
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read poll records: %w", err)
	}
	return records, nil
}
