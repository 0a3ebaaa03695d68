package postgres

import (
	"context"
	"fmt"
	"time"
)

// TryRunLock takes a session-scoped advisory lock on a dedicated connection.
// The lock lives as long as the connection, so the returned unlock must always be called.
func (d *DB) TryRunLock(ctx context.Context) (func(), bool, error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, d.runLockKey).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("failed to try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		// Use a fresh context, the caller's may already be cancelled
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := conn.Exec(unlockCtx, `SELECT pg_advisory_unlock($1)`, d.runLockKey); err != nil {
			// Drop the connection so the server releases the lock with the session
			conn.Conn().Close(unlockCtx)
		}
		conn.Release()
	}
	return unlock, true, nil
}
