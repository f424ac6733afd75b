package syncer

import (
	"testing"
	"time"

	"github.com/claude/repsync/internal/models"
	"github.com/google/uuid"
)

var (
	older = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	newer = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
)

// TestParseStrategy verifies the config string mapping.
func TestParseStrategy(t *testing.T) {
	for _, valid := range []string{"keep-local", "keep-remote", "merge"} {
		if _, err := ParseStrategy(valid); err != nil {
			t.Errorf("ParseStrategy(%q) error: %v", valid, err)
		}
	}
	if _, err := ParseStrategy("newest"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

// TestMergeExercises verifies the field heuristics: longer string wins,
// ties keep local, merged timestamp is the later of the two.
func TestMergeExercises(t *testing.T) {
	id := uuid.New()
	local := models.Exercise{
		ID: id, Name: "Bench", Category: "Chest and Triceps", Notes: "",
		UpdatedAt: newer,
	}
	remote := models.Exercise{
		ID: id, Name: "Bench Press", Category: "Chest", Notes: "pause reps",
		UpdatedAt: older,
	}

	got := MergeExercises(local, remote)

	if got.Name != "Bench Press" {
		t.Errorf("Name = %q, want longer remote value", got.Name)
	}
	if got.Category != "Chest and Triceps" {
		t.Errorf("Category = %q, want longer local value", got.Category)
	}
	if got.Notes != "pause reps" {
		t.Errorf("Notes = %q, want remote value over empty local", got.Notes)
	}
	if !got.UpdatedAt.Equal(newer) {
		t.Errorf("UpdatedAt = %v, want the newer timestamp", got.UpdatedAt)
	}
	if got.ID != id {
		t.Errorf("ID = %v, want %v", got.ID, id)
	}
}

// TestMergeExercisesTieKeepsLocal verifies equal-length strings keep local.
func TestMergeExercisesTieKeepsLocal(t *testing.T) {
	id := uuid.New()
	local := models.Exercise{ID: id, Name: "Rows", UpdatedAt: older}
	remote := models.Exercise{ID: id, Name: "Curl", UpdatedAt: older}

	if got := MergeExercises(local, remote); got.Name != "Rows" {
		t.Errorf("Name = %q, want local value on tie", got.Name)
	}
}

// TestMergeWorkouts verifies newer date wins.
func TestMergeWorkouts(t *testing.T) {
	id := uuid.New()
	local := models.Workout{ID: id, Date: older, Notes: "short", UpdatedAt: older}
	remote := models.Workout{ID: id, Date: newer, Notes: "a bit longer", UpdatedAt: newer}

	got := MergeWorkouts(local, remote)
	if !got.Date.Equal(newer) {
		t.Errorf("Date = %v, want newer remote date", got.Date)
	}
	if got.Notes != "a bit longer" {
		t.Errorf("Notes = %q, want longer value", got.Notes)
	}
}

// TestMergeSets verifies larger number wins for reps and weight and that
// a present reference beats a nullified one.
func TestMergeSets(t *testing.T) {
	id := uuid.New()
	exID := uuid.New()
	local := models.WorkoutSet{
		ID: id, Date: older, Reps: 8, Weight: 95, Notes: "",
		ExerciseID: nil, UpdatedAt: newer,
	}
	remote := models.WorkoutSet{
		ID: id, Date: older, Reps: 6, Weight: 100, Notes: "felt heavy",
		ExerciseID: &exID, UpdatedAt: older,
	}

	got := MergeSets(local, remote)
	if got.Reps != 8 {
		t.Errorf("Reps = %d, want larger local value 8", got.Reps)
	}
	if got.Weight != 100 {
		t.Errorf("Weight = %g, want larger remote value 100", got.Weight)
	}
	if got.Notes != "felt heavy" {
		t.Errorf("Notes = %q, want longer remote value", got.Notes)
	}
	if got.ExerciseID == nil || *got.ExerciseID != exID {
		t.Errorf("ExerciseID = %v, want present reference %v", got.ExerciseID, exID)
	}
	if !got.UpdatedAt.Equal(newer) {
		t.Errorf("UpdatedAt = %v, want newer timestamp", got.UpdatedAt)
	}
}

// TestMergeSetsRefBothPresent verifies the newer copy's reference wins when
// both references are set.
func TestMergeSetsRefBothPresent(t *testing.T) {
	id := uuid.New()
	localRef := uuid.New()
	remoteRef := uuid.New()
	local := models.WorkoutSet{ID: id, Reps: 5, Weight: 100, WorkoutID: &localRef, UpdatedAt: older}
	remote := models.WorkoutSet{ID: id, Reps: 5, Weight: 100, WorkoutID: &remoteRef, UpdatedAt: newer}

	got := MergeSets(local, remote)
	if got.WorkoutID == nil || *got.WorkoutID != remoteRef {
		t.Errorf("WorkoutID = %v, want newer copy's reference %v", got.WorkoutID, remoteRef)
	}
}
