package local

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/claude/repsync/internal/models"
	"github.com/google/uuid"
)

// SaveWorkout creates or updates a workout from an application write.
func (d *DB) SaveWorkout(w *models.Workout) error {
	if err := w.Validate(); err != nil {
		return err
	}
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	w.UpdatedAt = time.Now().UTC()

	_, err := d.db.Exec(
		`INSERT INTO workouts (id, date, notes, updated_at, dirty)
		 VALUES (?, ?, ?, ?, 1)
		 ON CONFLICT(id) DO UPDATE SET
		   date = excluded.date, notes = excluded.notes,
		   updated_at = excluded.updated_at, dirty = 1`,
		w.ID.String(), fmtTime(w.Date), w.Notes, fmtTime(w.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving workout: %w", err)
	}
	return nil
}

// PutWorkout writes a workout with explicit sync bookkeeping.
func (d *DB) PutWorkout(w models.Workout, dirty bool, base time.Time) error {
	_, err := d.db.Exec(
		`INSERT INTO workouts (id, date, notes, updated_at, base_updated_at, dirty)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   date = excluded.date, notes = excluded.notes,
		   updated_at = excluded.updated_at, base_updated_at = excluded.base_updated_at,
		   dirty = excluded.dirty`,
		w.ID.String(), fmtTime(w.Date), w.Notes,
		fmtTime(w.UpdatedAt), fmtNullTime(base), boolToInt(dirty),
	)
	if err != nil {
		return fmt.Errorf("putting workout: %w", err)
	}
	return nil
}

// GetWorkout returns a workout and its sync metadata.
func (d *DB) GetWorkout(id uuid.UUID) (models.Workout, Meta, error) {
	row := d.db.QueryRow(
		`SELECT id, date, notes, updated_at, base_updated_at, dirty
		 FROM workouts WHERE id = ?`, id.String())
	return scanWorkout(row)
}

// ListWorkouts returns workouts in a date range, newest first.
func (d *DB) ListWorkouts(start, end time.Time) ([]models.Workout, error) {
	rows, err := d.db.Query(
		`SELECT id, date, notes, updated_at, base_updated_at, dirty
		 FROM workouts WHERE date >= ? AND date < ? ORDER BY date DESC`,
		fmtTime(start), fmtTime(end))
	if err != nil {
		return nil, fmt.Errorf("listing workouts: %w", err)
	}
	defer rows.Close()

	var result []models.Workout
	for rows.Next() {
		w, _, err := scanWorkout(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

// DirtyWorkouts returns workouts with unsynced local changes.
func (d *DB) DirtyWorkouts() ([]models.Workout, error) {
	rows, err := d.db.Query(
		`SELECT id, date, notes, updated_at, base_updated_at, dirty
		 FROM workouts WHERE dirty = 1 ORDER BY updated_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing dirty workouts: %w", err)
	}
	defer rows.Close()

	var result []models.Workout
	for rows.Next() {
		w, _, err := scanWorkout(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

// MarkWorkoutSynced clears the dirty flag after a successful push.
func (d *DB) MarkWorkoutSynced(id uuid.UUID, base time.Time) error {
	_, err := d.db.Exec(
		`UPDATE workouts SET dirty = 0, base_updated_at = ? WHERE id = ?`,
		fmtNullTime(base), id.String())
	if err != nil {
		return fmt.Errorf("marking workout synced: %w", err)
	}
	return nil
}

// DeleteWorkout removes a workout and cascades the delete to its sets.
// Both the workout and each cascaded set get a dirty tombstone.
func (d *DB) DeleteWorkout(id uuid.UUID) error {
	now := time.Now().UTC()

	setRows, err := d.db.Query(
		`SELECT id FROM workout_sets WHERE workout_id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("finding workout sets: %w", err)
	}
	var setIDs []uuid.UUID
	for setRows.Next() {
		var idStr string
		if err := setRows.Scan(&idStr); err != nil {
			setRows.Close()
			return fmt.Errorf("scanning set id: %w", err)
		}
		sid, err := uuid.Parse(idStr)
		if err != nil {
			setRows.Close()
			return fmt.Errorf("parsing set id: %w", err)
		}
		setIDs = append(setIDs, sid)
	}
	if err := setRows.Err(); err != nil {
		setRows.Close()
		return err
	}
	setRows.Close()

	res, err := d.db.Exec(`DELETE FROM workouts WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("deleting workout: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if _, err := d.db.Exec(`DELETE FROM workout_sets WHERE workout_id = ?`, id.String()); err != nil {
		return fmt.Errorf("cascading set delete: %w", err)
	}
	for _, sid := range setIDs {
		ts := models.Tombstone{Kind: models.KindWorkoutSet, ID: sid, DeletedAt: now}
		if err := d.putTombstone(ts, true); err != nil {
			return err
		}
	}
	return d.putTombstone(models.Tombstone{Kind: models.KindWorkout, ID: id, DeletedAt: now}, true)
}

func scanWorkout(row rowScanner) (models.Workout, Meta, error) {
	var (
		w                     models.Workout
		idStr                 string
		date, updatedAt, base string
		dirty                 int
	)
	err := row.Scan(&idStr, &date, &w.Notes, &updatedAt, &base, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Workout{}, Meta{}, ErrNotFound
	}
	if err != nil {
		return models.Workout{}, Meta{}, fmt.Errorf("scanning workout: %w", err)
	}

	if w.ID, err = uuid.Parse(idStr); err != nil {
		return models.Workout{}, Meta{}, fmt.Errorf("parsing workout id: %w", err)
	}
	if w.Date, err = parseTime(date); err != nil {
		return models.Workout{}, Meta{}, err
	}
	if w.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return models.Workout{}, Meta{}, err
	}
	meta := Meta{Dirty: dirty != 0}
	if meta.BaseUpdatedAt, err = parseTime(base); err != nil {
		return models.Workout{}, Meta{}, err
	}
	return w, meta, nil
}
