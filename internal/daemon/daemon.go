package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/notifications"
	"loom/internal/queue"
	"loom/internal/runner"
)

// Daemon coordinates background queue processing and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *queue.Store
	runner  *runner.Runner
	logPath string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Runner       runner.Status
	QueueStats   map[queue.Status]int
	QueueDBPath  string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, run *runner.Runner) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || run == nil {
		return nil, errors.New("daemon requires config, store, logger, and runner")
	}

	lockPath := cfg.DaemonLockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.ForComponent(logger, "daemon", cfg.Logging.ComponentOverrides),
		store:    store,
		runner:   run,
		logPath:  cfg.LogFilePath(),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, requeues tasks stranded by a dead process,
// and launches the worker pool.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another loom daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	released, err := d.store.ResetStuckRunning(d.ctx)
	if err != nil {
		d.teardownStart()
		return fmt.Errorf("requeue interrupted tasks: %w", err)
	}
	if released > 0 {
		d.logger.Info("requeued tasks stranded in running state", logging.Int64("count", released))
	}

	if err := d.runner.Start(d.ctx); err != nil {
		d.teardownStart()
		return fmt.Errorf("start runner: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("loom daemon started", logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) teardownStart() {
	_ = d.lock.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx = nil
	d.cancel = nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.runner.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("loom daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// AddTask enqueues a new task.
func (d *Daemon) AddTask(ctx context.Context, req queue.AddRequest) (*queue.Task, error) {
	if d.store == nil {
		return nil, errors.New("queue store unavailable")
	}
	task, err := d.store.Add(ctx, req)
	if err != nil {
		return nil, err
	}
	d.logger.Info("task queued",
		logging.Int64(logging.FieldTaskID, task.ID),
		logging.String("agent", task.Agent),
		logging.String("mode", string(task.Mode)))
	return task, nil
}

// GetTask loads a single task by ID.
func (d *Daemon) GetTask(ctx context.Context, id int64) (*queue.Task, error) {
	if d.store == nil {
		return nil, errors.New("queue store unavailable")
	}
	return d.store.GetByID(ctx, id)
}

// Dependents returns the tasks waiting on the given task.
func (d *Daemon) Dependents(ctx context.Context, id int64) ([]*queue.Task, error) {
	if d.store == nil {
		return nil, errors.New("queue store unavailable")
	}
	return d.store.Dependents(ctx, id)
}

// ListQueue returns queued tasks filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses []queue.Status) ([]*queue.Task, error) {
	if d.store == nil {
		return nil, errors.New("queue store unavailable")
	}
	if len(statuses) == 0 {
		return d.store.List(ctx)
	}
	return d.store.List(ctx, statuses...)
}

// CancelTask cancels a pending task.
func (d *Daemon) CancelTask(ctx context.Context, id int64) (*queue.Task, error) {
	if d.store == nil {
		return nil, errors.New("queue store unavailable")
	}
	task, err := d.store.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	d.logger.Info("task cancelled", logging.Int64(logging.FieldTaskID, task.ID))
	return task, nil
}

// RetryFailed resets failed tasks (optionally a subset) back to pending.
func (d *Daemon) RetryFailed(ctx context.Context, ids []int64) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.Retry(ctx, ids...)
}

// ClearQueue removes all tasks.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.Clear(ctx)
}

// ClearCompleted removes only done tasks.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.ClearCompleted(ctx)
}

// ClearFailed removes only failed tasks.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.ClearFailed(ctx)
}

// ClearFinished removes done, failed, and cancelled tasks.
func (d *Daemon) ClearFinished(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.ClearFinished(ctx)
}

// ResetStuck transitions running tasks back to pending for retry.
func (d *Daemon) ResetStuck(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.ResetStuckRunning(ctx)
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	if d.store == nil {
		return queue.HealthSummary{}, errors.New("queue store unavailable")
	}
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	if d.store == nil {
		return queue.DatabaseHealth{}, errors.New("queue store unavailable")
	}
	return d.store.CheckHealth(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Runner:       d.runner.Status(),
		QueueDBPath:  d.cfg.QueueDBPath(),
		LockFilePath: d.lockPath,
	}
	if stats, err := d.store.Stats(ctx); err == nil {
		status.QueueStats = stats
	} else {
		d.logger.Warn("failed to collect queue stats", logging.Error(err))
	}
	return status
}
