package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"loom/internal/services"
	"loom/internal/textutil"
)

const (
	// maxStoredErrorBytes caps persisted failure messages so one giant agent
	// traceback cannot bloat the database.
	maxStoredErrorBytes = 4 * 1024
	// maxStoredOutputBytes caps the persisted tail of successful agent output.
	maxStoredOutputBytes = 16 * 1024
)

// MarkDone finishes a running task successfully, recording output and token
// usage and clearing any error from earlier attempts.
func (s *Store) MarkDone(ctx context.Context, id int64, output string, tokensIn, tokensOut int64) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks
         SET status = ?, completed_at = ?, updated_at = ?, error_message = NULL,
             output_summary = ?, tokens_input = tokens_input + ?, tokens_output = tokens_output + ?
         WHERE id = ? AND status = ?`,
		StatusDone,
		timestamp,
		timestamp,
		nullableString(textutil.Truncate(output, maxStoredOutputBytes)),
		tokensIn,
		tokensOut,
		id,
		StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("mark task done: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("task %d is not running", id)
	}
	return nil
}

// RequeueForRetry returns a failed attempt to pending and consumes one retry.
// The SQL guard keeps retries within the task's budget even if two callers
// race on the same row.
func (s *Store) RequeueForRetry(ctx context.Context, id int64, message string) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks
         SET status = ?, retries = retries + 1, started_at = NULL, completed_at = NULL,
             error_message = ?, updated_at = ?
         WHERE id = ? AND status = ? AND retries < max_retries`,
		StatusPending,
		nullableString(textutil.Truncate(message, maxStoredErrorBytes)),
		timestamp,
		id,
		StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("requeue task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("task %d has no retry budget left or is not running", id)
	}
	return nil
}

// MarkFailed finishes a running task as permanently failed.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks
         SET status = ?, completed_at = ?, updated_at = ?, error_message = ?
         WHERE id = ? AND status = ?`,
		StatusFailed,
		timestamp,
		timestamp,
		nullableString(textutil.Truncate(message, maxStoredErrorBytes)),
		id,
		StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("mark task failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("task %d is not running", id)
	}
	return nil
}

// Cancel moves a pending task to cancelled. Running tasks must finish or fail;
// terminal tasks cannot be cancelled.
func (s *Store) Cancel(ctx context.Context, id int64) (*Task, error) {
	ctx = ensureContext(ctx)
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	var task *Task
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(
			ctx,
			`UPDATE tasks
             SET status = ?, completed_at = ?, updated_at = ?
             WHERE id = ? AND status = ?
             RETURNING `+taskColumns,
			StatusCancelled,
			timestamp,
			timestamp,
			id,
			StatusPending,
		)
		cancelled, err := scanTask(row)
		if err != nil {
			return err
		}
		task = cancelled
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		existing, getErr := s.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if existing == nil {
			return nil, services.Wrap(services.ErrNotFound, "queue", "cancel",
				fmt.Sprintf("task %d does not exist", id), nil)
		}
		return nil, services.Wrap(services.ErrUserInput, "queue", "cancel",
			fmt.Sprintf("task %d is %s; only pending tasks can be cancelled", id, existing.Status), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("cancel task: %w", err)
	}
	return task, nil
}

// Retry moves failed tasks back to pending with a fresh retry budget. With no
// ids it retries every failed task; with ids only those in failed state are
// touched. Returns the number of tasks requeued.
func (s *Store) Retry(ctx context.Context, ids ...int64) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE tasks
             SET status = ?, retries = 0, error_message = NULL,
                 started_at = NULL, completed_at = NULL, updated_at = ?
             WHERE status = ?`,
			StatusPending,
			timestamp,
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed tasks: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+3)
	args = append(args, StatusPending, timestamp, StatusFailed)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE tasks
        SET status = ?, retries = 0, error_message = NULL,
            started_at = NULL, completed_at = NULL, updated_at = ?
        WHERE status = ? AND id IN (` + placeholders + `)`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected tasks: %w", err)
	}
	return res.RowsAffected()
}

// ReleaseInterrupted returns one claimed task to pending without consuming
// retry budget. Used when shutdown interrupts an attempt this process owns.
func (s *Store) ReleaseInterrupted(ctx context.Context, id int64) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE tasks
         SET status = ?, started_at = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusPending,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("release interrupted task: %w", err)
	}
	return nil
}

// ResetStuckRunning returns running tasks to pending. Called on daemon start
// so attempts orphaned by a crash are dispatched again without burning a
// retry.
func (s *Store) ResetStuckRunning(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks
         SET status = ?, started_at = NULL, updated_at = ?
         WHERE status = ?`,
		StatusPending,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck tasks: %w", err)
	}
	return res.RowsAffected()
}
