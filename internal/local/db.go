// Package local implements the on-device record store backed by SQLite.
//
// Every application write marks the row dirty so the syncer knows to push
// it; rows written by the syncer carry the remote timestamp they were based
// on, which is what conflict detection compares against.
package local

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// timeLayout is RFC 3339 UTC with fixed-width nanoseconds so that string
// comparison in SQL matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DB is the local record store.
type DB struct {
	db *sql.DB
}

// Meta is the sync bookkeeping attached to every record.
type Meta struct {
	Dirty bool
	// BaseUpdatedAt is the remote updated_at this row was last reconciled
	// against. Zero when the row has never been synced.
	BaseUpdatedAt time.Time
}

// Open creates or opens the record store at dir/repsync.db.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "repsync.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening local db: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db: db}, nil
}

func createSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS exercises (
			id              TEXT PRIMARY KEY,
			name            TEXT NOT NULL,
			category        TEXT NOT NULL DEFAULT '',
			notes           TEXT NOT NULL DEFAULT '',
			updated_at      TEXT NOT NULL,
			base_updated_at TEXT NOT NULL DEFAULT '',
			dirty           INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS workouts (
			id              TEXT PRIMARY KEY,
			date            TEXT NOT NULL,
			notes           TEXT NOT NULL DEFAULT '',
			updated_at      TEXT NOT NULL,
			base_updated_at TEXT NOT NULL DEFAULT '',
			dirty           INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS workout_sets (
			id              TEXT PRIMARY KEY,
			date            TEXT NOT NULL,
			reps            INTEGER NOT NULL,
			weight          REAL NOT NULL,
			notes           TEXT NOT NULL DEFAULT '',
			exercise_id     TEXT,
			workout_id      TEXT,
			updated_at      TEXT NOT NULL,
			base_updated_at TEXT NOT NULL DEFAULT '',
			dirty           INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS tombstones (
			kind       TEXT NOT NULL,
			id         TEXT NOT NULL,
			deleted_at TEXT NOT NULL,
			dirty      INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (kind, id)
		)`,
		`CREATE TABLE IF NOT EXISTS sync_state (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sets_date ON workout_sets(date)`,
		`CREATE INDEX IF NOT EXISTS idx_sets_exercise ON workout_sets(exercise_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sets_workout ON workout_sets(workout_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("creating local schema: %w", err)
		}
	}
	return nil
}

// Close closes the store.
func (d *DB) Close() error {
	return d.db.Close()
}

// ClearAll deletes every record, tombstone, and sync cursor.
func (d *DB) ClearAll() error {
	for _, table := range []string{"workout_sets", "workouts", "exercises", "tombstones", "sync_state"} {
		if _, err := d.db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return nil
}

// SyncCursor returns the stored pull cursor for a record kind.
// Zero time when no cursor has been stored yet.
func (d *DB) SyncCursor(kind string) (time.Time, error) {
	var value string
	err := d.db.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, "pull_cursor_"+kind).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading sync cursor: %w", err)
	}
	return parseTime(value)
}

// SetSyncCursor stores the pull cursor for a record kind.
func (d *DB) SetSyncCursor(kind string, cursor time.Time) error {
	_, err := d.db.Exec(
		`INSERT OR REPLACE INTO sync_state (key, value) VALUES (?, ?)`,
		"pull_cursor_"+kind, fmtTime(cursor),
	)
	if err != nil {
		return fmt.Errorf("storing sync cursor: %w", err)
	}
	return nil
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored time %q: %w", s, err)
	}
	return t, nil
}

func fmtNullTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmtTime(t)
}
