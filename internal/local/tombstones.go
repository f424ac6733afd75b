package local

import (
	"fmt"

	"github.com/claude/repsync/internal/models"
	"github.com/google/uuid"
)

func (d *DB) putTombstone(ts models.Tombstone, dirty bool) error {
	_, err := d.db.Exec(
		`INSERT OR REPLACE INTO tombstones (kind, id, deleted_at, dirty) VALUES (?, ?, ?, ?)`,
		ts.Kind, ts.ID.String(), fmtTime(ts.DeletedAt), boolToInt(dirty))
	if err != nil {
		return fmt.Errorf("storing tombstone: %w", err)
	}
	return nil
}

// DirtyTombstones returns deletions that have not been pushed yet.
func (d *DB) DirtyTombstones() ([]models.Tombstone, error) {
	rows, err := d.db.Query(
		`SELECT kind, id, deleted_at FROM tombstones WHERE dirty = 1 ORDER BY deleted_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing dirty tombstones: %w", err)
	}
	defer rows.Close()

	var result []models.Tombstone
	for rows.Next() {
		var (
			ts        models.Tombstone
			idStr     string
			deletedAt string
		)
		if err := rows.Scan(&ts.Kind, &idStr, &deletedAt); err != nil {
			return nil, fmt.Errorf("scanning tombstone: %w", err)
		}
		if ts.ID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("parsing tombstone id: %w", err)
		}
		if ts.DeletedAt, err = parseTime(deletedAt); err != nil {
			return nil, err
		}
		result = append(result, ts)
	}
	return result, rows.Err()
}

// MarkTombstoneSynced clears the dirty flag after a tombstone was pushed.
func (d *DB) MarkTombstoneSynced(kind string, id uuid.UUID) error {
	_, err := d.db.Exec(
		`UPDATE tombstones SET dirty = 0 WHERE kind = ? AND id = ?`,
		kind, id.String())
	if err != nil {
		return fmt.Errorf("marking tombstone synced: %w", err)
	}
	return nil
}

// ApplyRemoteTombstone deletes the named record locally (if present) and
// stores a clean tombstone so the delete is not pushed back.
func (d *DB) ApplyRemoteTombstone(ts models.Tombstone) error {
	var table string
	switch ts.Kind {
	case models.KindExercise:
		table = "exercises"
	case models.KindWorkout:
		table = "workouts"
	case models.KindWorkoutSet:
		table = "workout_sets"
	default:
		return fmt.Errorf("unknown tombstone kind %q", ts.Kind)
	}

	if ts.Kind == models.KindExercise {
		// Mirror the nullify-on-delete rule for pulled exercise deletes.
		_, err := d.db.Exec(
			`UPDATE workout_sets SET exercise_id = NULL WHERE exercise_id = ?`, ts.ID.String())
		if err != nil {
			return fmt.Errorf("nullifying set references: %w", err)
		}
	}
	if ts.Kind == models.KindWorkout {
		// Mirror the cascade rule for pulled workout deletes.
		_, err := d.db.Exec(
			`DELETE FROM workout_sets WHERE workout_id = ?`, ts.ID.String())
		if err != nil {
			return fmt.Errorf("cascading set delete: %w", err)
		}
	}

	if _, err := d.db.Exec(`DELETE FROM `+table+` WHERE id = ?`, ts.ID.String()); err != nil {
		return fmt.Errorf("applying remote delete: %w", err)
	}
	return d.putTombstone(ts, false)
}
