package syncer

import (
	"fmt"
	"time"

	"github.com/claude/repsync/internal/models"
	"github.com/google/uuid"
)

// Strategy selects how a conflicting record is resolved.
type Strategy string

const (
	// StrategyKeepLocal ignores the remote copy; the local edit pushes on
	// the next phase and wins.
	StrategyKeepLocal Strategy = "keep-local"
	// StrategyKeepRemote overwrites the local edit with the remote copy.
	StrategyKeepRemote Strategy = "keep-remote"
	// StrategyMerge resolves field by field: newer time wins, longer
	// string wins, larger number wins.
	StrategyMerge Strategy = "merge"
)

// ParseStrategy converts a config string into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyKeepLocal, StrategyKeepRemote, StrategyMerge:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown conflict strategy %q", s)
}

// MergeExercises resolves a conflicting exercise field by field.
// Ties keep the local value. The merged updated_at is the later of the two
// so a subsequent sync treats the merge result as newest.
func MergeExercises(local, remote models.Exercise) models.Exercise {
	return models.Exercise{
		ID:        local.ID,
		Name:      longerString(local.Name, remote.Name),
		Category:  longerString(local.Category, remote.Category),
		Notes:     longerString(local.Notes, remote.Notes),
		UpdatedAt: newerTime(local.UpdatedAt, remote.UpdatedAt),
	}
}

// MergeWorkouts resolves a conflicting workout field by field.
func MergeWorkouts(local, remote models.Workout) models.Workout {
	return models.Workout{
		ID:        local.ID,
		Date:      newerTime(local.Date, remote.Date),
		Notes:     longerString(local.Notes, remote.Notes),
		UpdatedAt: newerTime(local.UpdatedAt, remote.UpdatedAt),
	}
}

// MergeSets resolves a conflicting set field by field. References are not
// covered by the value heuristics: a present reference beats a nullified
// one, and when both are present the copy with the newer updated_at wins.
func MergeSets(local, remote models.WorkoutSet) models.WorkoutSet {
	return models.WorkoutSet{
		ID:         local.ID,
		Date:       newerTime(local.Date, remote.Date),
		Reps:       largerInt(local.Reps, remote.Reps),
		Weight:     largerFloat(local.Weight, remote.Weight),
		Notes:      longerString(local.Notes, remote.Notes),
		ExerciseID: mergeRef(local.ExerciseID, remote.ExerciseID, local.UpdatedAt, remote.UpdatedAt),
		WorkoutID:  mergeRef(local.WorkoutID, remote.WorkoutID, local.UpdatedAt, remote.UpdatedAt),
		UpdatedAt:  newerTime(local.UpdatedAt, remote.UpdatedAt),
	}
}

func newerTime(local, remote time.Time) time.Time {
	if remote.After(local) {
		return remote
	}
	return local
}

func longerString(local, remote string) string {
	if len(remote) > len(local) {
		return remote
	}
	return local
}

func largerInt(local, remote int) int {
	if remote > local {
		return remote
	}
	return local
}

func largerFloat(local, remote float64) float64 {
	if remote > local {
		return remote
	}
	return local
}

func mergeRef(local, remote *uuid.UUID, localAt, remoteAt time.Time) *uuid.UUID {
	if local == nil {
		return remote
	}
	if remote == nil {
		return local
	}
	if remoteAt.After(localAt) {
		return remote
	}
	return local
}
