package queueaccess

import (
	"context"
	"fmt"
	"strings"

	"loom/internal/ipc"
	"loom/internal/queue"
)

// TaskDetail bundles a task with its dependency neighborhood: the task it
// waits on (if any) and the tasks waiting on it.
type TaskDetail struct {
	Task       queue.Task   `json:"task"`
	BlockedOn  *queue.Task  `json:"blocked_on,omitempty"`
	Dependents []queue.Task `json:"dependents,omitempty"`
}

// Access provides queue operations regardless of IPC or direct store backing.
// Describe returns (nil, nil) when the task does not exist on either path.
type Access interface {
	Stats(ctx context.Context) (map[string]int, error)
	List(ctx context.Context, statuses []string) ([]queue.Task, error)
	Describe(ctx context.Context, id int64) (*TaskDetail, error)
	Add(ctx context.Context, req queue.AddRequest) (*queue.Task, error)
	Cancel(ctx context.Context, id int64) (*queue.Task, error)
	RetryAll(ctx context.Context) (int64, error)
	Retry(ctx context.Context, ids []int64) (int64, error)
	ClearAll(ctx context.Context) (int64, error)
	ClearCompleted(ctx context.Context) (int64, error)
	ClearFailed(ctx context.Context) (int64, error)
	ClearFinished(ctx context.Context) (int64, error)
	ResetStuck(ctx context.Context) (int64, error)
	Health(ctx context.Context) (queue.HealthSummary, error)
	DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error)
}

// NewIPCAccess returns an Access backed by daemon IPC.
func NewIPCAccess(client *ipc.Client) Access {
	return &ipcAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct DB access.
func NewStoreAccess(store *queue.Store) Access {
	return &storeAccess{store: store}
}

type ipcAccess struct {
	client *ipc.Client
}

func (a *ipcAccess) Stats(_ context.Context) (map[string]int, error) {
	resp, err := a.client.Status()
	if err != nil {
		return nil, err
	}
	return resp.QueueStats, nil
}

func (a *ipcAccess) List(_ context.Context, statuses []string) ([]queue.Task, error) {
	resp, err := a.client.QueueList(statuses)
	if err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

func (a *ipcAccess) Describe(_ context.Context, id int64) (*TaskDetail, error) {
	resp, err := a.client.QueueDescribe(id)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return nil, nil
		}
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	return &TaskDetail{
		Task:       resp.Task,
		BlockedOn:  resp.BlockedOn,
		Dependents: resp.Dependents,
	}, nil
}

func (a *ipcAccess) Add(_ context.Context, req queue.AddRequest) (*queue.Task, error) {
	resp, err := a.client.QueueAdd(req)
	if err != nil {
		return nil, err
	}
	task := resp.Task
	return &task, nil
}

func (a *ipcAccess) Cancel(_ context.Context, id int64) (*queue.Task, error) {
	resp, err := a.client.QueueCancel(id)
	if err != nil {
		return nil, err
	}
	task := resp.Task
	return &task, nil
}

func (a *ipcAccess) RetryAll(_ context.Context) (int64, error) {
	resp, err := a.client.QueueRetry(nil)
	if err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

func (a *ipcAccess) Retry(_ context.Context, ids []int64) (int64, error) {
	resp, err := a.client.QueueRetry(ids)
	if err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

func (a *ipcAccess) ClearAll(_ context.Context) (int64, error) {
	resp, err := a.client.QueueClear()
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (a *ipcAccess) ClearCompleted(_ context.Context) (int64, error) {
	resp, err := a.client.QueueClearCompleted()
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (a *ipcAccess) ClearFailed(_ context.Context) (int64, error) {
	resp, err := a.client.QueueClearFailed()
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (a *ipcAccess) ClearFinished(_ context.Context) (int64, error) {
	resp, err := a.client.QueueClearFinished()
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (a *ipcAccess) ResetStuck(_ context.Context) (int64, error) {
	resp, err := a.client.QueueReset()
	if err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

func (a *ipcAccess) Health(_ context.Context) (queue.HealthSummary, error) {
	resp, err := a.client.QueueHealth()
	if err != nil {
		return queue.HealthSummary{}, err
	}
	return *resp, nil
}

func (a *ipcAccess) DatabaseHealth(_ context.Context) (queue.DatabaseHealth, error) {
	resp, err := a.client.DatabaseHealth()
	if err != nil {
		return queue.DatabaseHealth{}, err
	}
	return *resp, nil
}

type storeAccess struct {
	store *queue.Store
}

func (a *storeAccess) Stats(ctx context.Context) (map[string]int, error) {
	stats, err := a.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	converted := make(map[string]int, len(stats))
	for status, count := range stats {
		converted[string(status)] = count
	}
	return converted, nil
}

func (a *storeAccess) List(ctx context.Context, statuses []string) ([]queue.Task, error) {
	filters, err := parseStatuses(statuses)
	if err != nil {
		return nil, err
	}
	tasks, err := a.store.List(ctx, filters...)
	if err != nil {
		return nil, err
	}
	converted := make([]queue.Task, 0, len(tasks))
	for _, task := range tasks {
		if task == nil {
			continue
		}
		converted = append(converted, *task)
	}
	return converted, nil
}

func (a *storeAccess) Describe(ctx context.Context, id int64) (*TaskDetail, error) {
	task, err := a.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, nil
	}
	detail := &TaskDetail{Task: *task}
	if task.AfterID != nil {
		// A dependency that no longer resolves is reported as absent.
		if dep, depErr := a.store.GetByID(ctx, *task.AfterID); depErr == nil && dep != nil {
			detail.BlockedOn = dep
		}
	}
	dependents, err := a.store.Dependents(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, dep := range dependents {
		detail.Dependents = append(detail.Dependents, *dep)
	}
	return detail, nil
}

func (a *storeAccess) Add(ctx context.Context, req queue.AddRequest) (*queue.Task, error) {
	return a.store.Add(ctx, req)
}

func (a *storeAccess) Cancel(ctx context.Context, id int64) (*queue.Task, error) {
	return a.store.Cancel(ctx, id)
}

func (a *storeAccess) RetryAll(ctx context.Context) (int64, error) {
	return a.store.Retry(ctx)
}

func (a *storeAccess) Retry(ctx context.Context, ids []int64) (int64, error) {
	return a.store.Retry(ctx, ids...)
}

func (a *storeAccess) ClearAll(ctx context.Context) (int64, error) {
	return a.store.Clear(ctx)
}

func (a *storeAccess) ClearCompleted(ctx context.Context) (int64, error) {
	return a.store.ClearCompleted(ctx)
}

func (a *storeAccess) ClearFailed(ctx context.Context) (int64, error) {
	return a.store.ClearFailed(ctx)
}

func (a *storeAccess) ClearFinished(ctx context.Context) (int64, error) {
	return a.store.ClearFinished(ctx)
}

func (a *storeAccess) ResetStuck(ctx context.Context) (int64, error) {
	return a.store.ResetStuckRunning(ctx)
}

func (a *storeAccess) Health(ctx context.Context) (queue.HealthSummary, error) {
	return a.store.Health(ctx)
}

func (a *storeAccess) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return a.store.CheckHealth(ctx)
}

// parseStatuses mirrors the IPC server's filter validation so both transports
// reject the same inputs.
func parseStatuses(statuses []string) ([]queue.Status, error) {
	var filters []queue.Status
	for _, s := range statuses {
		parsed, ok := queue.ParseStatus(s)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", s)
		}
		filters = append(filters, parsed)
	}
	return filters, nil
}
