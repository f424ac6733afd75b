package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/repsync/internal/models"
)

// UpsertExercise writes an exercise with a last-writer-wins guard: an older
// copy never overwrites a newer one.
func (db *DB) UpsertExercise(ctx context.Context, ex models.Exercise) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO exercises (id, name, category, notes, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
		   name = excluded.name, category = excluded.category,
		   notes = excluded.notes, updated_at = excluded.updated_at
		 WHERE excluded.updated_at >= exercises.updated_at`,
		ex.ID, ex.Name, ex.Category, ex.Notes, ex.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting exercise: %w", err)
	}
	return nil
}

// UpsertWorkout writes a workout with a last-writer-wins guard.
func (db *DB) UpsertWorkout(ctx context.Context, w models.Workout) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO workouts (id, date, notes, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET
		   date = excluded.date, notes = excluded.notes, updated_at = excluded.updated_at
		 WHERE excluded.updated_at >= workouts.updated_at`,
		w.ID, w.Date, w.Notes, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting workout: %w", err)
	}
	return nil
}

// UpsertWorkoutSet writes a set with a last-writer-wins guard. The exercise
// and workout references map to FK reference records; parents are pushed
// before children so the references resolve.
func (db *DB) UpsertWorkoutSet(ctx context.Context, s models.WorkoutSet) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO workout_sets (id, date, reps, weight, notes, exercise_id, workout_id, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   date = excluded.date, reps = excluded.reps, weight = excluded.weight,
		   notes = excluded.notes, exercise_id = excluded.exercise_id,
		   workout_id = excluded.workout_id, updated_at = excluded.updated_at
		 WHERE excluded.updated_at >= workout_sets.updated_at`,
		s.ID, s.Date, s.Reps, s.Weight, s.Notes, s.ExerciseID, s.WorkoutID, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting workout set: %w", err)
	}
	return nil
}

// ExercisesChangedSince returns exercises updated strictly after the cursor.
func (db *DB) ExercisesChangedSince(ctx context.Context, since time.Time) ([]models.Exercise, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, name, category, notes, updated_at
		 FROM exercises WHERE updated_at > $1 ORDER BY updated_at ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("querying changed exercises: %w", err)
	}
	defer rows.Close()

	var result []models.Exercise
	for rows.Next() {
		var ex models.Exercise
		if err := rows.Scan(&ex.ID, &ex.Name, &ex.Category, &ex.Notes, &ex.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning exercise: %w", err)
		}
		result = append(result, ex)
	}
	return result, rows.Err()
}

// WorkoutsChangedSince returns workouts updated strictly after the cursor.
func (db *DB) WorkoutsChangedSince(ctx context.Context, since time.Time) ([]models.Workout, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, date, notes, updated_at
		 FROM workouts WHERE updated_at > $1 ORDER BY updated_at ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("querying changed workouts: %w", err)
	}
	defer rows.Close()

	var result []models.Workout
	for rows.Next() {
		var w models.Workout
		if err := rows.Scan(&w.ID, &w.Date, &w.Notes, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning workout: %w", err)
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

// WorkoutSetsChangedSince returns sets updated strictly after the cursor.
func (db *DB) WorkoutSetsChangedSince(ctx context.Context, since time.Time) ([]models.WorkoutSet, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, date, reps, weight, notes, exercise_id, workout_id, updated_at
		 FROM workout_sets WHERE updated_at > $1 ORDER BY updated_at ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("querying changed sets: %w", err)
	}
	defer rows.Close()

	var result []models.WorkoutSet
	for rows.Next() {
		var s models.WorkoutSet
		if err := rows.Scan(&s.ID, &s.Date, &s.Reps, &s.Weight, &s.Notes,
			&s.ExerciseID, &s.WorkoutID, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning workout set: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// ApplyTombstone records a deletion and removes the record. FK actions on
// the schema handle the cascade (workout sets) and nullify (set references).
func (db *DB) ApplyTombstone(ctx context.Context, ts models.Tombstone) error {
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

	_, err := db.Pool.Exec(ctx,
		`INSERT INTO tombstones (kind, id, deleted_at) VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING`,
		ts.Kind, ts.ID, ts.DeletedAt)
	if err != nil {
		return fmt.Errorf("storing tombstone: %w", err)
	}

	if _, err := db.Pool.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, ts.ID); err != nil {
		return fmt.Errorf("applying delete: %w", err)
	}
	return nil
}

// TombstonesSince returns deletions recorded strictly after the cursor.
func (db *DB) TombstonesSince(ctx context.Context, since time.Time) ([]models.Tombstone, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT kind, id, deleted_at
		 FROM tombstones WHERE deleted_at > $1 ORDER BY deleted_at ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("querying tombstones: %w", err)
	}
	defer rows.Close()

	var result []models.Tombstone
	for rows.Next() {
		var ts models.Tombstone
		if err := rows.Scan(&ts.Kind, &ts.ID, &ts.DeletedAt); err != nil {
			return nil, fmt.Errorf("scanning tombstone: %w", err)
		}
		result = append(result, ts)
	}
	return result, rows.Err()
}
