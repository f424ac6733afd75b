package remote

import (
	"context"
	"fmt"
	"log/slog"
)

// changeChannel is the NOTIFY channel the schema trigger fires on every write.
const changeChannel = "repsync_changes"

// WatchChanges listens for remote change notifications and delivers a nudge
// on the returned channel. The channel is closed when the listener stops,
// either from context cancellation or a connection failure; callers fall
// back to interval polling either way.
func (db *DB) WatchChanges(ctx context.Context, log *slog.Logger) (<-chan struct{}, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+changeChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listening on %s: %w", changeChannel, err)
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		defer conn.Release()

		for {
			if _, err := conn.Conn().WaitForNotification(ctx); err != nil {
				if ctx.Err() == nil {
					log.Warn("change listener stopped", "error", err)
				}
				return
			}
			// Coalesce bursts: a pending nudge is enough.
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}()
	return ch, nil
}
