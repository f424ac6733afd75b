// Package syncer reconciles the local record store with the remote replica.
//
// A run pulls remote changes per record kind in dependency order (exercises
// and workouts before the sets that reference them), resolves conflicts with
// the configured strategy, then pushes dirty local records and tombstones.
// Conflict detection is a single timestamp comparison: a record conflicts
// when it is locally dirty and the remote updated_at differs from the base
// timestamp captured at the last reconciliation.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/repsync/internal/local"
	"github.com/claude/repsync/internal/models"
)

// Remote is the replica surface the syncer needs. *remote.DB satisfies it.
type Remote interface {
	UpsertExercise(ctx context.Context, ex models.Exercise) error
	UpsertWorkout(ctx context.Context, w models.Workout) error
	UpsertWorkoutSet(ctx context.Context, s models.WorkoutSet) error
	ExercisesChangedSince(ctx context.Context, since time.Time) ([]models.Exercise, error)
	WorkoutsChangedSince(ctx context.Context, since time.Time) ([]models.Workout, error)
	WorkoutSetsChangedSince(ctx context.Context, since time.Time) ([]models.WorkoutSet, error)
	ApplyTombstone(ctx context.Context, ts models.Tombstone) error
	TombstonesSince(ctx context.Context, since time.Time) ([]models.Tombstone, error)
}

// Options tunes a Syncer.
type Options struct {
	Strategy    Strategy
	MaxAttempts int           // failed runs are retried up to this many attempts
	RetryDelay  time.Duration // fixed delay between attempts
	Interval    time.Duration // fallback poll period for the background loop
}

// Syncer drives reconciliation between a local store and a remote replica.
type Syncer struct {
	store  *local.DB
	remote Remote
	opts   Options
	log    *slog.Logger

	trigger chan struct{}

	mu          sync.Mutex
	status      Status
	subscribers []func(Status)
}

// New creates a Syncer. Zero option fields get defaults: merge strategy,
// 3 attempts, 2s retry delay, 5m interval.
func New(store *local.DB, remote Remote, opts Options, log *slog.Logger) *Syncer {
	if opts.Strategy == "" {
		opts.Strategy = StrategyMerge
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = 2 * time.Second
	}
	if opts.Interval == 0 {
		opts.Interval = 5 * time.Minute
	}
	return &Syncer{
		store:   store,
		remote:  remote,
		opts:    opts,
		log:     log,
		trigger: make(chan struct{}, 1),
		status:  Status{State: StateIdle},
	}
}

// Trigger requests a sync run from the background loop without blocking.
func (s *Syncer) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run is the background loop: it syncs when nudged by remote change
// notifications, by Trigger, or by the interval ticker, until the context
// is cancelled. notifications may be nil.
func (s *Syncer) Run(ctx context.Context, notifications <-chan struct{}) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-notifications:
			if !ok {
				// Listener died; keep going on the interval alone.
				notifications = nil
				continue
			}
		case <-s.trigger:
		case <-ticker.C:
		}

		if _, err := s.Sync(ctx); err != nil {
			s.log.Error("sync failed", "error", err)
		}

		// Our own pushes fire the remote change trigger; drain the echo
		// so a run does not immediately schedule another.
		select {
		case <-notifications:
		default:
		}
	}
}

// Sync performs one reconciliation, retrying transient failures with a
// fixed delay up to the attempt limit. The returned Status is also posted
// to subscribers.
func (s *Syncer) Sync(ctx context.Context) (Status, error) {
	s.publish(Status{State: StateSyncing, LastSync: s.Status().LastSync})

	var (
		counts  runCounts
		lastErr error
	)
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			s.log.Info("retrying sync", "attempt", attempt)
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
			case <-time.After(s.opts.RetryDelay):
			}
			if ctx.Err() != nil {
				break
			}
		}

		counts, lastErr = s.syncOnce(ctx)
		if lastErr == nil {
			st := Status{
				State:     StateOK,
				Pushed:    counts.pushed,
				Pulled:    counts.pulled,
				Conflicts: counts.conflicts,
				Attempts:  attempt,
				LastSync:  time.Now().UTC(),
			}
			s.publish(st)
			s.log.Info("sync complete",
				"pushed", st.Pushed, "pulled", st.Pulled,
				"conflicts", st.Conflicts, "attempts", st.Attempts)
			return st, nil
		}
		s.log.Warn("sync attempt failed", "attempt", attempt, "error", lastErr)
	}

	st := Status{
		State:    StateFailed,
		Attempts: s.opts.MaxAttempts,
		Error:    lastErr.Error(),
		LastSync: s.Status().LastSync,
	}
	s.publish(st)
	return st, fmt.Errorf("sync failed after %d attempts: %w", s.opts.MaxAttempts, lastErr)
}

type runCounts struct {
	pushed    int
	pulled    int
	conflicts int
}

// syncOnce is a single pull+push pass over all record kinds.
func (s *Syncer) syncOnce(ctx context.Context) (runCounts, error) {
	var c runCounts

	if err := s.pullExercises(ctx, &c); err != nil {
		return c, err
	}
	if err := s.pullWorkouts(ctx, &c); err != nil {
		return c, err
	}
	if err := s.pullSets(ctx, &c); err != nil {
		return c, err
	}
	if err := s.pullTombstones(ctx, &c); err != nil {
		return c, err
	}

	if err := s.pushExercises(ctx, &c); err != nil {
		return c, err
	}
	if err := s.pushWorkouts(ctx, &c); err != nil {
		return c, err
	}
	if err := s.pushSets(ctx, &c); err != nil {
		return c, err
	}
	if err := s.pushTombstones(ctx, &c); err != nil {
		return c, err
	}
	return c, nil
}

func (s *Syncer) pullExercises(ctx context.Context, c *runCounts) error {
	cursor, err := s.store.SyncCursor(models.KindExercise)
	if err != nil {
		return err
	}
	changed, err := s.remote.ExercisesChangedSince(ctx, cursor)
	if err != nil {
		return fmt.Errorf("pulling exercises: %w", err)
	}

	maxSeen := cursor
	for _, rex := range changed {
		if rex.UpdatedAt.After(maxSeen) {
			maxSeen = rex.UpdatedAt
		}

		lex, meta, err := s.store.GetExercise(rex.ID)
		switch {
		case errors.Is(err, local.ErrNotFound):
			if err := s.store.PutExercise(rex, false, rex.UpdatedAt); err != nil {
				return err
			}
			c.pulled++
		case err != nil:
			return err
		case !meta.Dirty:
			if rex.UpdatedAt.After(lex.UpdatedAt) {
				if err := s.store.PutExercise(rex, false, rex.UpdatedAt); err != nil {
					return err
				}
				c.pulled++
			}
		case rex.UpdatedAt.Equal(meta.BaseUpdatedAt):
			// Remote unchanged since our last reconciliation: the local
			// edit is not in conflict and pushes below.
		default:
			c.conflicts++
			switch s.opts.Strategy {
			case StrategyKeepLocal:
				// The kept record must carry at least the remote timestamp
				// or the replica's last-writer-wins guard drops the push.
				lex.UpdatedAt = newerTime(lex.UpdatedAt, rex.UpdatedAt)
				if err := s.store.PutExercise(lex, true, rex.UpdatedAt); err != nil {
					return err
				}
			case StrategyKeepRemote:
				if err := s.store.PutExercise(rex, false, rex.UpdatedAt); err != nil {
					return err
				}
				c.pulled++
			case StrategyMerge:
				merged := MergeExercises(lex, rex)
				if err := s.store.PutExercise(merged, true, rex.UpdatedAt); err != nil {
					return err
				}
				c.pulled++
			}
		}
	}
	if maxSeen.After(cursor) {
		return s.store.SetSyncCursor(models.KindExercise, maxSeen)
	}
	return nil
}

func (s *Syncer) pullWorkouts(ctx context.Context, c *runCounts) error {
	cursor, err := s.store.SyncCursor(models.KindWorkout)
	if err != nil {
		return err
	}
	changed, err := s.remote.WorkoutsChangedSince(ctx, cursor)
	if err != nil {
		return fmt.Errorf("pulling workouts: %w", err)
	}

	maxSeen := cursor
	for _, rw := range changed {
		if rw.UpdatedAt.After(maxSeen) {
			maxSeen = rw.UpdatedAt
		}

		lw, meta, err := s.store.GetWorkout(rw.ID)
		switch {
		case errors.Is(err, local.ErrNotFound):
			if err := s.store.PutWorkout(rw, false, rw.UpdatedAt); err != nil {
				return err
			}
			c.pulled++
		case err != nil:
			return err
		case !meta.Dirty:
			if rw.UpdatedAt.After(lw.UpdatedAt) {
				if err := s.store.PutWorkout(rw, false, rw.UpdatedAt); err != nil {
					return err
				}
				c.pulled++
			}
		case rw.UpdatedAt.Equal(meta.BaseUpdatedAt):
		default:
			c.conflicts++
			switch s.opts.Strategy {
			case StrategyKeepLocal:
				lw.UpdatedAt = newerTime(lw.UpdatedAt, rw.UpdatedAt)
				if err := s.store.PutWorkout(lw, true, rw.UpdatedAt); err != nil {
					return err
				}
			case StrategyKeepRemote:
				if err := s.store.PutWorkout(rw, false, rw.UpdatedAt); err != nil {
					return err
				}
				c.pulled++
			case StrategyMerge:
				merged := MergeWorkouts(lw, rw)
				if err := s.store.PutWorkout(merged, true, rw.UpdatedAt); err != nil {
					return err
				}
				c.pulled++
			}
		}
	}
	if maxSeen.After(cursor) {
		return s.store.SetSyncCursor(models.KindWorkout, maxSeen)
	}
	return nil
}

func (s *Syncer) pullSets(ctx context.Context, c *runCounts) error {
	cursor, err := s.store.SyncCursor(models.KindWorkoutSet)
	if err != nil {
		return err
	}
	changed, err := s.remote.WorkoutSetsChangedSince(ctx, cursor)
	if err != nil {
		return fmt.Errorf("pulling sets: %w", err)
	}

	maxSeen := cursor
	for _, rs := range changed {
		if rs.UpdatedAt.After(maxSeen) {
			maxSeen = rs.UpdatedAt
		}

		ls, meta, err := s.store.GetSet(rs.ID)
		switch {
		case errors.Is(err, local.ErrNotFound):
			if err := s.store.PutSet(rs, false, rs.UpdatedAt); err != nil {
				return err
			}
			c.pulled++
		case err != nil:
			return err
		case !meta.Dirty:
			if rs.UpdatedAt.After(ls.UpdatedAt) {
				if err := s.store.PutSet(rs, false, rs.UpdatedAt); err != nil {
					return err
				}
				c.pulled++
			}
		case rs.UpdatedAt.Equal(meta.BaseUpdatedAt):
		default:
			c.conflicts++
			switch s.opts.Strategy {
			case StrategyKeepLocal:
				ls.UpdatedAt = newerTime(ls.UpdatedAt, rs.UpdatedAt)
				if err := s.store.PutSet(ls, true, rs.UpdatedAt); err != nil {
					return err
				}
			case StrategyKeepRemote:
				if err := s.store.PutSet(rs, false, rs.UpdatedAt); err != nil {
					return err
				}
				c.pulled++
			case StrategyMerge:
				merged := MergeSets(ls, rs)
				if err := s.store.PutSet(merged, true, rs.UpdatedAt); err != nil {
					return err
				}
				c.pulled++
			}
		}
	}
	if maxSeen.After(cursor) {
		return s.store.SetSyncCursor(models.KindWorkoutSet, maxSeen)
	}
	return nil
}

// pullTombstones applies remote deletes last so they win over any record
// pulled earlier in the same pass.
func (s *Syncer) pullTombstones(ctx context.Context, c *runCounts) error {
	const kind = "tombstone"
	cursor, err := s.store.SyncCursor(kind)
	if err != nil {
		return err
	}
	changed, err := s.remote.TombstonesSince(ctx, cursor)
	if err != nil {
		return fmt.Errorf("pulling tombstones: %w", err)
	}

	maxSeen := cursor
	for _, ts := range changed {
		if ts.DeletedAt.After(maxSeen) {
			maxSeen = ts.DeletedAt
		}
		if err := s.store.ApplyRemoteTombstone(ts); err != nil {
			return err
		}
		c.pulled++
	}
	if maxSeen.After(cursor) {
		return s.store.SetSyncCursor(kind, maxSeen)
	}
	return nil
}

func (s *Syncer) pushExercises(ctx context.Context, c *runCounts) error {
	dirty, err := s.store.DirtyExercises()
	if err != nil {
		return err
	}
	for _, ex := range dirty {
		if err := s.remote.UpsertExercise(ctx, ex); err != nil {
			return fmt.Errorf("pushing exercise %s: %w", ex.ID, err)
		}
		if err := s.store.MarkExerciseSynced(ex.ID, ex.UpdatedAt); err != nil {
			return err
		}
		c.pushed++
	}
	return nil
}

func (s *Syncer) pushWorkouts(ctx context.Context, c *runCounts) error {
	dirty, err := s.store.DirtyWorkouts()
	if err != nil {
		return err
	}
	for _, w := range dirty {
		if err := s.remote.UpsertWorkout(ctx, w); err != nil {
			return fmt.Errorf("pushing workout %s: %w", w.ID, err)
		}
		if err := s.store.MarkWorkoutSynced(w.ID, w.UpdatedAt); err != nil {
			return err
		}
		c.pushed++
	}
	return nil
}

func (s *Syncer) pushSets(ctx context.Context, c *runCounts) error {
	dirty, err := s.store.DirtySets()
	if err != nil {
		return err
	}
	for _, set := range dirty {
		if err := s.remote.UpsertWorkoutSet(ctx, set); err != nil {
			return fmt.Errorf("pushing set %s: %w", set.ID, err)
		}
		if err := s.store.MarkSetSynced(set.ID, set.UpdatedAt); err != nil {
			return err
		}
		c.pushed++
	}
	return nil
}

func (s *Syncer) pushTombstones(ctx context.Context, c *runCounts) error {
	dirty, err := s.store.DirtyTombstones()
	if err != nil {
		return err
	}
	for _, ts := range dirty {
		if err := s.remote.ApplyTombstone(ctx, ts); err != nil {
			return fmt.Errorf("pushing tombstone %s/%s: %w", ts.Kind, ts.ID, err)
		}
		if err := s.store.MarkTombstoneSynced(ts.Kind, ts.ID); err != nil {
			return err
		}
		c.pushed++
	}
	return nil
}
