package local

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/claude/repsync/internal/models"
	"github.com/google/uuid"
)

// SaveExercise creates or updates an exercise from an application write.
// Assigns an ID when missing, bumps updated_at, and marks the row dirty.
func (d *DB) SaveExercise(ex *models.Exercise) error {
	if err := ex.Validate(); err != nil {
		return err
	}
	if ex.ID == uuid.Nil {
		ex.ID = uuid.New()
	}
	ex.UpdatedAt = time.Now().UTC()

	_, err := d.db.Exec(
		`INSERT INTO exercises (id, name, category, notes, updated_at, dirty)
		 VALUES (?, ?, ?, ?, ?, 1)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name, category = excluded.category,
		   notes = excluded.notes, updated_at = excluded.updated_at, dirty = 1`,
		ex.ID.String(), ex.Name, ex.Category, ex.Notes, fmtTime(ex.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving exercise: %w", err)
	}
	return nil
}

// PutExercise writes an exercise with explicit sync bookkeeping. Used by the
// syncer to apply pulled records and store merge results.
func (d *DB) PutExercise(ex models.Exercise, dirty bool, base time.Time) error {
	_, err := d.db.Exec(
		`INSERT INTO exercises (id, name, category, notes, updated_at, base_updated_at, dirty)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name, category = excluded.category, notes = excluded.notes,
		   updated_at = excluded.updated_at, base_updated_at = excluded.base_updated_at,
		   dirty = excluded.dirty`,
		ex.ID.String(), ex.Name, ex.Category, ex.Notes,
		fmtTime(ex.UpdatedAt), fmtNullTime(base), boolToInt(dirty),
	)
	if err != nil {
		return fmt.Errorf("putting exercise: %w", err)
	}
	return nil
}

// GetExercise returns an exercise and its sync metadata.
func (d *DB) GetExercise(id uuid.UUID) (models.Exercise, Meta, error) {
	row := d.db.QueryRow(
		`SELECT id, name, category, notes, updated_at, base_updated_at, dirty
		 FROM exercises WHERE id = ?`, id.String())
	return scanExercise(row)
}

// FindExerciseByName returns the exercise with the given name, if any.
func (d *DB) FindExerciseByName(name string) (models.Exercise, Meta, error) {
	row := d.db.QueryRow(
		`SELECT id, name, category, notes, updated_at, base_updated_at, dirty
		 FROM exercises WHERE name = ? LIMIT 1`, name)
	return scanExercise(row)
}

// ListExercises returns all exercises ordered by name.
func (d *DB) ListExercises() ([]models.Exercise, error) {
	rows, err := d.db.Query(
		`SELECT id, name, category, notes, updated_at, base_updated_at, dirty
		 FROM exercises ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing exercises: %w", err)
	}
	defer rows.Close()

	var result []models.Exercise
	for rows.Next() {
		ex, _, err := scanExercise(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ex)
	}
	return result, rows.Err()
}

// DirtyExercises returns exercises with unsynced local changes.
func (d *DB) DirtyExercises() ([]models.Exercise, error) {
	rows, err := d.db.Query(
		`SELECT id, name, category, notes, updated_at, base_updated_at, dirty
		 FROM exercises WHERE dirty = 1 ORDER BY updated_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing dirty exercises: %w", err)
	}
	defer rows.Close()

	var result []models.Exercise
	for rows.Next() {
		ex, _, err := scanExercise(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ex)
	}
	return result, rows.Err()
}

// MarkExerciseSynced clears the dirty flag after a successful push.
func (d *DB) MarkExerciseSynced(id uuid.UUID, base time.Time) error {
	_, err := d.db.Exec(
		`UPDATE exercises SET dirty = 0, base_updated_at = ? WHERE id = ?`,
		fmtNullTime(base), id.String())
	if err != nil {
		return fmt.Errorf("marking exercise synced: %w", err)
	}
	return nil
}

// DeleteExercise removes an exercise, nulls the reference on its sets, and
// records a dirty tombstone so the delete propagates.
func (d *DB) DeleteExercise(id uuid.UUID) error {
	now := time.Now().UTC()
	// Nullify references first so the orphaned sets sync as updated records.
	_, err := d.db.Exec(
		`UPDATE workout_sets SET exercise_id = NULL, updated_at = ?, dirty = 1
		 WHERE exercise_id = ?`,
		fmtTime(now), id.String())
	if err != nil {
		return fmt.Errorf("nullifying set references: %w", err)
	}

	res, err := d.db.Exec(`DELETE FROM exercises WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("deleting exercise: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return d.putTombstone(models.Tombstone{Kind: models.KindExercise, ID: id, DeletedAt: now}, true)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExercise(row rowScanner) (models.Exercise, Meta, error) {
	var (
		ex              models.Exercise
		idStr           string
		updatedAt, base string
		dirty           int
	)
	err := row.Scan(&idStr, &ex.Name, &ex.Category, &ex.Notes, &updatedAt, &base, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Exercise{}, Meta{}, ErrNotFound
	}
	if err != nil {
		return models.Exercise{}, Meta{}, fmt.Errorf("scanning exercise: %w", err)
	}

	if ex.ID, err = uuid.Parse(idStr); err != nil {
		return models.Exercise{}, Meta{}, fmt.Errorf("parsing exercise id: %w", err)
	}
	if ex.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return models.Exercise{}, Meta{}, err
	}
	meta := Meta{Dirty: dirty != 0}
	if meta.BaseUpdatedAt, err = parseTime(base); err != nil {
		return models.Exercise{}, Meta{}, err
	}
	return ex, meta, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
