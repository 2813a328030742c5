package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"loom/internal/services"
)

// claimSQL transitions the single best eligible task to running in one
// statement. Eligibility: pending, and either no dependency or a dependency
// that is done. A dependency pointing at a missing id joins to NULL and stays
// ineligible. Order: lowest priority value first, then insertion order.
const claimSQL = `
UPDATE tasks
SET status = ?, started_at = ?, updated_at = ?
WHERE id = (
    SELECT t.id
    FROM tasks t
    LEFT JOIN tasks d ON t.after_id = d.id
    WHERE t.status = ?
      AND (t.after_id IS NULL OR d.status = ?)
    ORDER BY t.priority ASC, t.id ASC
    LIMIT 1
)
RETURNING ` + taskColumns

// ClaimNext atomically dispatches the next eligible task to the caller.
// Returns (nil, nil) when nothing is eligible. Concurrent callers never
// receive the same task: the claim is a single UPDATE, so the database is the
// only lock involved.
func (s *Store) ClaimNext(ctx context.Context) (*Task, error) {
	ctx = ensureContext(ctx)
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	var task *Task
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx, claimSQL,
			StatusRunning,
			timestamp,
			timestamp,
			StatusPending,
			StatusDone,
		)
		claimed, err := scanTask(row)
		if err != nil {
			return err
		}
		task = claimed
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		if isSQLiteBusy(err) {
			return nil, services.Wrap(services.ErrLockTimeout, "queue", "claim",
				"task database stayed locked past the configured lock timeout", err)
		}
		return nil, fmt.Errorf("claim next task: %w", err)
	}
	return task, nil
}

// Snapshot reports pending/eligible/running counts in one query.
func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `
        SELECT
            COALESCE(SUM(CASE WHEN t.status = ? THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN t.status = ? AND (t.after_id IS NULL OR d.status = ?) THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN t.status = ? THEN 1 ELSE 0 END), 0)
        FROM tasks t
        LEFT JOIN tasks d ON t.after_id = d.id`,
		StatusPending,
		StatusPending,
		StatusDone,
		StatusRunning,
	)

	var snap Snapshot
	if err := row.Scan(&snap.Pending, &snap.Eligible, &snap.Running); err != nil {
		return Snapshot{}, fmt.Errorf("queue snapshot: %w", err)
	}
	return snap, nil
}
