package ipc

import "loom/internal/queue"

// Task is the wire representation of a queued task. The queue model carries
// stable JSON tags and doubles as the IPC DTO, so it is aliased directly.
type Task = queue.Task

// StartRequest triggers queue processing inside a running daemon.
type StartRequest struct{}

// StartResponse indicates whether processing was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest halts queue processing without terminating the daemon process.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon and runner status information.
type StatusResponse struct {
	Running     bool           `json:"running"`
	PID         int            `json:"pid"`
	Workers     int            `json:"workers"`
	ActiveTasks int            `json:"active_tasks"`
	LastError   string         `json:"last_error,omitempty"`
	QueueStats  map[string]int `json:"queue_stats"`
	LockPath    string         `json:"lock_path"`
	QueueDBPath string         `json:"queue_db_path"`
}

// QueueAddRequest enqueues a new task. The queue request type already carries
// wire tags, so it is aliased directly.
type QueueAddRequest = queue.AddRequest

// QueueAddResponse returns the persisted task.
type QueueAddResponse struct {
	Task Task `json:"task"`
}

// QueueListRequest filters queue listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains queue entries in insertion order.
type QueueListResponse struct {
	Tasks []Task `json:"tasks"`
}

// QueueDescribeRequest fetches a single task by id.
type QueueDescribeRequest struct {
	ID int64 `json:"id"`
}

// QueueDescribeResponse contains a task plus its dependency neighborhood.
type QueueDescribeResponse struct {
	Task       Task   `json:"task"`
	BlockedOn  *Task  `json:"blocked_on,omitempty"`
	Dependents []Task `json:"dependents,omitempty"`
}

// QueueCancelRequest cancels a pending task.
type QueueCancelRequest struct {
	ID int64 `json:"id"`
}

// QueueCancelResponse returns the task after cancellation.
type QueueCancelResponse struct {
	Task Task `json:"task"`
}

// QueueRetryRequest retries failed tasks. Empty list means all failed tasks.
type QueueRetryRequest struct {
	IDs []int64 `json:"ids"`
}

// QueueRetryResponse reports number of retried tasks.
type QueueRetryResponse struct {
	Updated int64 `json:"updated"`
}

// QueueClearRequest removes all tasks.
type QueueClearRequest struct{}

// QueueClearResponse reports number of removed entries.
type QueueClearResponse struct {
	Removed int64 `json:"removed"`
}

// QueueClearCompletedRequest removes done tasks.
type QueueClearCompletedRequest struct{}

// QueueClearCompletedResponse reports number of removed entries.
type QueueClearCompletedResponse struct {
	Removed int64 `json:"removed"`
}

// QueueClearFailedRequest removes failed tasks.
type QueueClearFailedRequest struct{}

// QueueClearFailedResponse reports number of removed entries.
type QueueClearFailedResponse struct {
	Removed int64 `json:"removed"`
}

// QueueClearFinishedRequest removes done, failed, and cancelled tasks.
type QueueClearFinishedRequest struct{}

// QueueClearFinishedResponse reports number of removed entries.
type QueueClearFinishedResponse struct {
	Removed int64 `json:"removed"`
}

// QueueResetRequest requeues tasks stuck in the running state.
type QueueResetRequest struct{}

// QueueResetResponse reports number of tasks reset.
type QueueResetResponse struct {
	Updated int64 `json:"updated"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// QueueHealthRequest fetches aggregate diagnostics.
type QueueHealthRequest struct{}

// QueueHealthResponse reports per-status queue counts.
type QueueHealthResponse = queue.HealthSummary

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse = queue.DatabaseHealth

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
