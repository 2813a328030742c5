package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"loom/internal/services"
)

// Add validates and inserts a new task, returning the stored row. Dependency
// cycles are rejected here so the scheduler never has to break one at claim
// time; a dependency on an id that does not exist is allowed and simply keeps
// the task pending until such a task exists and completes.
func (s *Store) Add(ctx context.Context, req AddRequest) (*Task, error) {
	ctx = ensureContext(ctx)

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, services.Wrap(services.ErrUserInput, "queue", "add", "prompt must not be empty", nil)
	}
	mode, ok := ParseMode(string(req.Mode))
	if !ok {
		return nil, services.Wrap(services.ErrUserInput, "queue", "add",
			fmt.Sprintf("unknown execution mode %q (expected cli or api)", req.Mode), nil)
	}
	if req.Model != "" && mode != ModeAPI {
		return nil, services.Wrap(services.ErrUserInput, "queue", "add", "model selection requires api mode", nil)
	}
	if req.AfterID != nil && *req.AfterID <= 0 {
		return nil, services.Wrap(services.ErrUserInput, "queue", "add", "dependency id must be positive", nil)
	}
	maxRetries := s.defaultMaxRetries
	if req.MaxRetries != nil {
		if *req.MaxRetries < 0 {
			return nil, services.Wrap(services.ErrUserInput, "queue", "add", "max retries must not be negative", nil)
		}
		maxRetries = *req.MaxRetries
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	var id int64
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin add tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO tasks (
                prompt, agent, after_id, priority, worktree, mode, model,
                status, created_at, updated_at, retries, max_retries
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
			prompt,
			strings.TrimSpace(req.Agent),
			nullableInt64(req.AfterID),
			req.Priority,
			boolToInt(req.Worktree),
			string(mode),
			nullableString(strings.TrimSpace(req.Model)),
			StatusPending,
			timestamp,
			timestamp,
			maxRetries,
		)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}

		if req.AfterID != nil {
			if err := checkDependencyCycle(ctx, tx, id, *req.AfterID); err != nil {
				return err
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit add: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetByID(ctx, id)
}

// checkDependencyCycle walks the after chain from the requested dependency.
// The walk runs inside the insert transaction so the new row is visible: a
// chain that loops back to the new id (an older task already referenced this
// id before it existed) is rejected along with any pre-existing loop.
func checkDependencyCycle(ctx context.Context, tx *sql.Tx, newID, after int64) error {
	seen := map[int64]struct{}{newID: {}}
	cursor := after
	for cursor > 0 {
		if _, dup := seen[cursor]; dup {
			return services.Wrap(services.ErrUserInput, "queue", "add",
				fmt.Sprintf("dependency chain through task %d would form a cycle", cursor), nil)
		}
		seen[cursor] = struct{}{}

		var next sql.NullInt64
		err := tx.QueryRowContext(ctx, `SELECT after_id FROM tasks WHERE id = ?`, cursor).Scan(&next)
		if errors.Is(err, sql.ErrNoRows) {
			// Missing dependency: allowed, the task stays pending.
			return nil
		}
		if err != nil {
			return fmt.Errorf("walk dependency chain: %w", err)
		}
		if !next.Valid {
			return nil
		}
		cursor = next.Int64
	}
	return nil
}

// GetByID fetches a task by identifier. Returns (nil, nil) when no task with
// that id exists.
func (s *Store) GetByID(ctx context.Context, id int64) (*Task, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// List returns tasks filtered by status set (or all tasks when no status is
// provided), in insertion order.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Task, error) {
	ctx = ensureContext(ctx)
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + taskColumns + ` FROM tasks`
	orderClause := ` ORDER BY id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// Dependents returns pending tasks that wait on the given task.
func (s *Store) Dependents(ctx context.Context, id int64) ([]*Task, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE after_id = ? AND status = ? ORDER BY id`,
		id,
		StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("list dependents: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// SetWorkspace records the isolated workspace prepared for a task.
func (s *Store) SetWorkspace(ctx context.Context, id int64, path string) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE tasks SET workspace_path = ?, updated_at = ? WHERE id = ?`,
		nullableString(path),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("set workspace: %w", err)
	}
	return nil
}

// Remove deletes a task by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}
