package models

import (
	"testing"
	"time"
)

// TestVolume verifies the volume invariant: volume = reps × weight.
func TestVolume(t *testing.T) {
	tests := []struct {
		name   string
		reps   int
		weight float64
		want   float64
	}{
		{"typical set", 8, 100, 800},
		{"fractional weight", 5, 102.5, 512.5},
		{"bodyweight", 12, 0, 0},
		{"single rep", 1, 180, 180},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := WorkoutSet{Reps: tt.reps, Weight: tt.weight}
			if got := s.Volume(); got != tt.want {
				t.Errorf("Volume() = %g, want %g", got, tt.want)
			}
		})
	}
}

// TestSetValidate verifies that invalid rep and weight values are rejected.
func TestSetValidate(t *testing.T) {
	date := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	valid := WorkoutSet{Date: date, Reps: 5, Weight: 80}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid set rejected: %v", err)
	}

	if err := (WorkoutSet{Date: date, Reps: 0, Weight: 80}).Validate(); err == nil {
		t.Error("expected error for zero reps")
	}
	if err := (WorkoutSet{Date: date, Reps: -3, Weight: 80}).Validate(); err == nil {
		t.Error("expected error for negative reps")
	}
	if err := (WorkoutSet{Date: date, Reps: 5, Weight: -1}).Validate(); err == nil {
		t.Error("expected error for negative weight")
	}
	if err := (WorkoutSet{Reps: 5, Weight: 80}).Validate(); err == nil {
		t.Error("expected error for zero date")
	}
}

// TestExerciseValidate verifies that an exercise requires a name.
func TestExerciseValidate(t *testing.T) {
	if err := (Exercise{Name: "Bench Press"}).Validate(); err != nil {
		t.Errorf("valid exercise rejected: %v", err)
	}
	if err := (Exercise{}).Validate(); err == nil {
		t.Error("expected error for empty name")
	}
}

// TestWorkoutValidate verifies that a workout requires a date.
func TestWorkoutValidate(t *testing.T) {
	if err := (Workout{Date: time.Now()}).Validate(); err != nil {
		t.Errorf("valid workout rejected: %v", err)
	}
	if err := (Workout{}).Validate(); err == nil {
		t.Error("expected error for zero date")
	}
}
