package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusDone,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status can no longer change without operator
// action.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDone, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// ExecutionMode selects how a task's agent is invoked.
type ExecutionMode string

const (
	// ModeCLI runs the configured agent binary as a subprocess.
	ModeCLI ExecutionMode = "cli"
	// ModeAPI sends the prompt to the configured HTTP completion endpoint.
	ModeAPI ExecutionMode = "api"
)

// ParseMode converts a string into a known ExecutionMode.
func ParseMode(value string) (ExecutionMode, bool) {
	normalized := ExecutionMode(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case ModeCLI, ModeAPI:
		return normalized, true
	case "":
		return ModeCLI, true
	default:
		return "", false
	}
}

// Task represents a unit of agent work persisted in SQLite. The struct doubles
// as the IPC and `--json` wire shape, so field tags stay stable.
type Task struct {
	ID            int64         `json:"id"`
	Prompt        string        `json:"prompt"`
	Agent         string        `json:"agent,omitempty"`
	AfterID       *int64        `json:"after_id,omitempty"`
	Priority      int           `json:"priority"`
	Worktree      bool          `json:"worktree"`
	Mode          ExecutionMode `json:"mode"`
	Model         string        `json:"model,omitempty"`
	Status        Status        `json:"status"`
	ErrorMessage  string        `json:"error,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	StartedAt     *time.Time    `json:"started_at,omitempty"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	Retries       int           `json:"retries"`
	MaxRetries    int           `json:"max_retries"`
	WorkspacePath string        `json:"workspace_path,omitempty"`
	OutputSummary string        `json:"output_summary,omitempty"`
	TokensInput   int64         `json:"tokens_input,omitempty"`
	TokensOutput  int64         `json:"tokens_output,omitempty"`
}

// IsTerminal reports whether the task has reached a final state.
func (t Task) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// Blocked reports whether the task declares a dependency it may wait on.
func (t Task) Blocked() bool {
	return t.Status == StatusPending && t.AfterID != nil
}

// Runtime returns how long the task has been (or was) executing. Zero when the
// task never started.
func (t Task) Runtime() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	end := time.Now().UTC()
	if t.CompletedAt != nil {
		end = *t.CompletedAt
	}
	if end.Before(*t.StartedAt) {
		return 0
	}
	return end.Sub(*t.StartedAt)
}

// AddRequest carries the caller-supplied fields for a new task. A nil
// MaxRetries falls back to the store's configured default budget.
type AddRequest struct {
	Prompt     string        `json:"prompt"`
	Agent      string        `json:"agent,omitempty"`
	AfterID    *int64        `json:"after_id,omitempty"`
	Priority   int           `json:"priority"`
	Worktree   bool          `json:"worktree"`
	Mode       ExecutionMode `json:"mode,omitempty"`
	Model      string        `json:"model,omitempty"`
	MaxRetries *int          `json:"max_retries,omitempty"`
}

// Snapshot aggregates scheduler-relevant queue counts in a single query so the
// runner can decide whether more work can ever arrive without operator action.
type Snapshot struct {
	Pending  int `json:"pending"`
	Eligible int `json:"eligible"`
	Running  int `json:"running"`
}

// Blocked returns pending tasks whose dependency is not done yet (including
// dependencies that do not exist).
func (s Snapshot) Blocked() int {
	blocked := s.Pending - s.Eligible
	if blocked < 0 {
		return 0
	}
	return blocked
}

// Drained reports that no task is running and none can start.
func (s Snapshot) Drained() bool {
	return s.Running == 0 && s.Eligible == 0
}

// HealthSummary describes aggregated queue counts per lifecycle state.
type HealthSummary struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Done      int `json:"done"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    string   `json:"schema_version"`
	TableExists      bool     `json:"table_exists"`
	ColumnsPresent   []string `json:"columns_present,omitempty"`
	MissingColumns   []string `json:"missing_columns,omitempty"`
	IntegrityCheck   bool     `json:"integrity_check"`
	TotalTasks       int      `json:"total_tasks"`
	Error            string   `json:"error,omitempty"`
}
