package queue

import (
	"database/sql"
	"errors"
	"time"
)

const taskColumns = "id, prompt, agent, after_id, priority, worktree, mode, model, status, error_message, created_at, updated_at, started_at, completed_at, retries, max_retries, workspace_path, output_summary, tokens_input, tokens_output"

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		id           int64
		prompt       string
		agent        sql.NullString
		afterID      sql.NullInt64
		priority     int
		worktree     sql.NullInt64
		mode         sql.NullString
		model        sql.NullString
		statusStr    string
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
		startedRaw   sql.NullString
		completedRaw sql.NullString
		retries      int
		maxRetries   int
		workspace    sql.NullString
		output       sql.NullString
		tokensIn     sql.NullInt64
		tokensOut    sql.NullInt64
	)

	if err := scanner.Scan(
		&id,
		&prompt,
		&agent,
		&afterID,
		&priority,
		&worktree,
		&mode,
		&model,
		&statusStr,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&completedRaw,
		&retries,
		&maxRetries,
		&workspace,
		&output,
		&tokensIn,
		&tokensOut,
	); err != nil {
		return nil, err
	}

	task := &Task{
		ID:            id,
		Prompt:        prompt,
		Agent:         agent.String,
		Priority:      priority,
		Worktree:      worktree.Int64 != 0,
		Mode:          ExecutionMode(mode.String),
		Model:         model.String,
		Status:        Status(statusStr),
		ErrorMessage:  errorMessage.String,
		Retries:       retries,
		MaxRetries:    maxRetries,
		WorkspacePath: workspace.String,
		OutputSummary: output.String,
		TokensInput:   tokensIn.Int64,
		TokensOutput:  tokensOut.Int64,
	}
	if task.Mode == "" {
		task.Mode = ModeCLI
	}
	if afterID.Valid {
		after := afterID.Int64
		task.AfterID = &after
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		task.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		task.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			task.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			task.CompletedAt = &completed
		}
	}
	return task, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt64(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
