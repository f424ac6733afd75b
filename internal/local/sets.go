package local

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/claude/repsync/internal/models"
	"github.com/google/uuid"
)

// SaveSet creates or updates a workout set from an application write.
func (d *DB) SaveSet(s *models.WorkoutSet) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.UpdatedAt = time.Now().UTC()

	_, err := d.db.Exec(
		`INSERT INTO workout_sets (id, date, reps, weight, notes, exercise_id, workout_id, updated_at, dirty)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)
		 ON CONFLICT(id) DO UPDATE SET
		   date = excluded.date, reps = excluded.reps, weight = excluded.weight,
		   notes = excluded.notes, exercise_id = excluded.exercise_id,
		   workout_id = excluded.workout_id, updated_at = excluded.updated_at, dirty = 1`,
		s.ID.String(), fmtTime(s.Date), s.Reps, s.Weight, s.Notes,
		uuidOrNil(s.ExerciseID), uuidOrNil(s.WorkoutID), fmtTime(s.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving set: %w", err)
	}
	return nil
}

// PutSet writes a set with explicit sync bookkeeping.
func (d *DB) PutSet(s models.WorkoutSet, dirty bool, base time.Time) error {
	_, err := d.db.Exec(
		`INSERT INTO workout_sets (id, date, reps, weight, notes, exercise_id, workout_id, updated_at, base_updated_at, dirty)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   date = excluded.date, reps = excluded.reps, weight = excluded.weight,
		   notes = excluded.notes, exercise_id = excluded.exercise_id,
		   workout_id = excluded.workout_id, updated_at = excluded.updated_at,
		   base_updated_at = excluded.base_updated_at, dirty = excluded.dirty`,
		s.ID.String(), fmtTime(s.Date), s.Reps, s.Weight, s.Notes,
		uuidOrNil(s.ExerciseID), uuidOrNil(s.WorkoutID),
		fmtTime(s.UpdatedAt), fmtNullTime(base), boolToInt(dirty),
	)
	if err != nil {
		return fmt.Errorf("putting set: %w", err)
	}
	return nil
}

// GetSet returns a set and its sync metadata.
func (d *DB) GetSet(id uuid.UUID) (models.WorkoutSet, Meta, error) {
	row := d.db.QueryRow(
		`SELECT id, date, reps, weight, notes, exercise_id, workout_id, updated_at, base_updated_at, dirty
		 FROM workout_sets WHERE id = ?`, id.String())
	return scanSet(row)
}

// ListSets returns sets in a date range, newest first.
func (d *DB) ListSets(start, end time.Time) ([]models.WorkoutSet, error) {
	return d.querySets(
		`SELECT id, date, reps, weight, notes, exercise_id, workout_id, updated_at, base_updated_at, dirty
		 FROM workout_sets WHERE date >= ? AND date < ? ORDER BY date DESC`,
		fmtTime(start), fmtTime(end))
}

// SetsForWorkout returns the sets belonging to one workout, oldest first.
func (d *DB) SetsForWorkout(workoutID uuid.UUID) ([]models.WorkoutSet, error) {
	return d.querySets(
		`SELECT id, date, reps, weight, notes, exercise_id, workout_id, updated_at, base_updated_at, dirty
		 FROM workout_sets WHERE workout_id = ? ORDER BY date ASC`,
		workoutID.String())
}

// DirtySets returns sets with unsynced local changes.
func (d *DB) DirtySets() ([]models.WorkoutSet, error) {
	return d.querySets(
		`SELECT id, date, reps, weight, notes, exercise_id, workout_id, updated_at, base_updated_at, dirty
		 FROM workout_sets WHERE dirty = 1 ORDER BY updated_at ASC`)
}

func (d *DB) querySets(query string, args ...any) ([]models.WorkoutSet, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sets: %w", err)
	}
	defer rows.Close()

	var result []models.WorkoutSet
	for rows.Next() {
		s, _, err := scanSet(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// MarkSetSynced clears the dirty flag after a successful push.
func (d *DB) MarkSetSynced(id uuid.UUID, base time.Time) error {
	_, err := d.db.Exec(
		`UPDATE workout_sets SET dirty = 0, base_updated_at = ? WHERE id = ?`,
		fmtNullTime(base), id.String())
	if err != nil {
		return fmt.Errorf("marking set synced: %w", err)
	}
	return nil
}

// DeleteSet removes a set and records a dirty tombstone.
func (d *DB) DeleteSet(id uuid.UUID) error {
	res, err := d.db.Exec(`DELETE FROM workout_sets WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("deleting set: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	ts := models.Tombstone{Kind: models.KindWorkoutSet, ID: id, DeletedAt: time.Now().UTC()}
	return d.putTombstone(ts, true)
}

func scanSet(row rowScanner) (models.WorkoutSet, Meta, error) {
	var (
		s                     models.WorkoutSet
		idStr                 string
		date, updatedAt, base string
		exID, woID            sql.NullString
		dirty                 int
	)
	err := row.Scan(&idStr, &date, &s.Reps, &s.Weight, &s.Notes, &exID, &woID, &updatedAt, &base, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return models.WorkoutSet{}, Meta{}, ErrNotFound
	}
	if err != nil {
		return models.WorkoutSet{}, Meta{}, fmt.Errorf("scanning set: %w", err)
	}

	if s.ID, err = uuid.Parse(idStr); err != nil {
		return models.WorkoutSet{}, Meta{}, fmt.Errorf("parsing set id: %w", err)
	}
	if s.Date, err = parseTime(date); err != nil {
		return models.WorkoutSet{}, Meta{}, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return models.WorkoutSet{}, Meta{}, err
	}
	if s.ExerciseID, err = parseNullUUID(exID); err != nil {
		return models.WorkoutSet{}, Meta{}, err
	}
	if s.WorkoutID, err = parseNullUUID(woID); err != nil {
		return models.WorkoutSet{}, Meta{}, err
	}
	meta := Meta{Dirty: dirty != 0}
	if meta.BaseUpdatedAt, err = parseTime(base); err != nil {
		return models.WorkoutSet{}, Meta{}, err
	}
	return s, meta, nil
}

func uuidOrNil(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func parseNullUUID(ns sql.NullString) (*uuid.UUID, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	id, err := uuid.Parse(ns.String)
	if err != nil {
		return nil, fmt.Errorf("parsing reference id: %w", err)
	}
	return &id, nil
}
