package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"loom/internal/agent"
	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/notifications"
	"loom/internal/queue"
)

// Runner drains the task queue through a bounded worker pool. Each worker
// loops claim, execute, transition; the atomic claim in the store is the
// only dispatch lock, so any number of runners can share a database without
// double-dispatching a task.
type Runner struct {
	cfg      *config.Config
	store    *queue.Store
	exec     agent.Executor
	logger   *slog.Logger
	notifier notifications.Service

	maxParallel  int
	pollInterval time.Duration
	taskTimeout  time.Duration

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	activeTasks int
	lastErr     error
	fatalErr    error

	queueActive bool
	queueStart  time.Time
	succeeded   int
	failed      int
}

// Option overrides runner timing derived from configuration.
type Option func(*Runner)

// WithPollInterval overrides the idle poll sleep.
func WithPollInterval(interval time.Duration) Option {
	return func(r *Runner) {
		if interval > 0 {
			r.pollInterval = interval
		}
	}
}

// WithTaskTimeout overrides the per-task execution deadline. Zero disables
// the deadline.
func WithTaskTimeout(timeout time.Duration) Option {
	return func(r *Runner) {
		r.taskTimeout = timeout
	}
}

// New constructs a runner. The notifier may be nil.
func New(cfg *config.Config, store *queue.Store, exec agent.Executor, logger *slog.Logger, notifier notifications.Service, opts ...Option) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	maxParallel := cfg.Runner.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 1
	}
	pollInterval := cfg.PollInterval()
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	runner := &Runner{
		cfg:          cfg,
		store:        store,
		exec:         exec,
		logger:       logging.ForComponent(logger, "runner", cfg.Logging.ComponentOverrides),
		notifier:     notifier,
		maxParallel:  maxParallel,
		pollInterval: pollInterval,
		taskTimeout:  cfg.TaskTimeout(),
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner
}

// Start begins background processing and returns immediately. Workers keep
// polling for new tasks until Stop is called; an idle queue does not stop
// them.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return errors.New("runner already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.wg.Add(r.maxParallel)
	r.mu.Unlock()

	for i := 0; i < r.maxParallel; i++ {
		go r.worker(runCtx, false)
	}
	r.logger.Info("runner started", logging.Int("workers", r.maxParallel))
	return nil
}

// Stop terminates background processing and waits for in-flight attempts to
// release.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
	r.logger.Info("runner stopped")
}

// Run processes the queue until it drains: no task running and none
// eligible. Tasks blocked forever on unmet dependencies do not hold the
// pool open. Returns the first fatal error encountered, if any.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return errors.New("runner already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.wg.Add(r.maxParallel)
	r.mu.Unlock()

	for i := 0; i < r.maxParallel; i++ {
		go r.worker(runCtx, true)
	}
	r.wg.Wait()
	cancel()

	r.mu.Lock()
	r.running = false
	r.cancel = nil
	fatal := r.fatalErr
	r.mu.Unlock()

	if fatal != nil {
		return fatal
	}
	return ctx.Err()
}

// RunOnce claims and executes at most one task, applies its transition, and
// returns the task's final state. A nil task means nothing was eligible.
func (r *Runner) RunOnce(ctx context.Context) (*queue.Task, error) {
	task, err := r.store.ClaimNext(ctx)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, nil
	}
	r.dispatch(ctx, task)
	return r.store.GetByID(ctx, task.ID)
}

// Status reports the runner's live state.
type Status struct {
	Running     bool   `json:"running"`
	Workers     int    `json:"workers"`
	ActiveTasks int    `json:"active_tasks"`
	LastError   string `json:"last_error,omitempty"`
}

// Status returns a point-in-time view of pool activity.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := Status{
		Running:     r.running,
		Workers:     r.maxParallel,
		ActiveTasks: r.activeTasks,
	}
	if r.lastErr != nil {
		status.LastError = r.lastErr.Error()
	}
	return status
}

// Err returns the fatal error that stopped the pool, if any.
func (r *Runner) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fatalErr
}

func (r *Runner) setLastError(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
}

// recordFatal stores the first fatal error and tears the pool down.
func (r *Runner) recordFatal(err error) {
	r.mu.Lock()
	if r.fatalErr == nil {
		r.fatalErr = err
	}
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
