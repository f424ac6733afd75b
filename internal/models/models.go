package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record kinds, used for tombstones and sync cursors.
const (
	KindExercise   = "exercise"
	KindWorkout    = "workout"
	KindWorkoutSet = "workout_set"
)

// Exercise is a named movement that sets reference.
type Exercise struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the fields required for a saved exercise.
func (e Exercise) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("exercise name is required")
	}
	return nil
}

// Workout is a training session. Deleting a workout deletes its sets.
type Workout struct {
	ID        uuid.UUID `json:"id"`
	Date      time.Time `json:"date"`
	Notes     string    `json:"notes,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the fields required for a saved workout.
func (w Workout) Validate() error {
	if w.Date.IsZero() {
		return fmt.Errorf("workout date is required")
	}
	return nil
}

// WorkoutSet is a single logged set. The exercise and workout references
// are optional and are nulled when the referenced record is deleted.
type WorkoutSet struct {
	ID         uuid.UUID  `json:"id"`
	Date       time.Time  `json:"date"`
	Reps       int        `json:"reps"`
	Weight     float64    `json:"weight"`
	Notes      string     `json:"notes,omitempty"`
	ExerciseID *uuid.UUID `json:"exercise_id,omitempty"`
	WorkoutID  *uuid.UUID `json:"workout_id,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Volume is the training-load metric for one set: reps × weight.
func (s WorkoutSet) Volume() float64 {
	return float64(s.Reps) * s.Weight
}

// Validate checks the fields required for a saved set.
func (s WorkoutSet) Validate() error {
	if s.Date.IsZero() {
		return fmt.Errorf("set date is required")
	}
	if s.Reps <= 0 {
		return fmt.Errorf("reps must be positive, got %d", s.Reps)
	}
	if s.Weight < 0 {
		return fmt.Errorf("weight must not be negative, got %g", s.Weight)
	}
	return nil
}

// Tombstone records a deletion so it can propagate to the other store.
type Tombstone struct {
	Kind      string    `json:"kind"`
	ID        uuid.UUID `json:"id"`
	DeletedAt time.Time `json:"deleted_at"`
}
