package runner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"loom/internal/agent"
	"loom/internal/logging"
	"loom/internal/queue"
	"loom/internal/services"
	"loom/internal/textutil"
)

const transitionTimeout = 5 * time.Second

// dispatch runs one attempt of a claimed task and applies the resulting
// status transition.
func (r *Runner) dispatch(ctx context.Context, task *queue.Task) {
	attempt := task.Retries + 1
	logger := r.logger.With(
		logging.Int64(logging.FieldTaskID, task.ID),
		logging.Int(logging.FieldAttempt, attempt))

	execCtx := ctx
	if r.taskTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, r.taskTimeout)
		defer cancel()
	}

	logger.Info("task dispatched",
		logging.String("mode", string(task.Mode)),
		logging.Int("priority", task.Priority))

	started := time.Now()
	result, execErr := r.exec.Execute(execCtx, task)
	elapsed := time.Since(started)

	if execErr == nil {
		r.completeTask(ctx, logger, task, result, elapsed)
		return
	}

	// Shutdown interrupts the attempt; hand the claim back without
	// consuming budget. A task-level timeout is a real failure and falls
	// through.
	if errors.Is(ctx.Err(), context.Canceled) {
		r.releaseTask(logger, task)
		return
	}

	r.failAttempt(ctx, logger, task, execErr, elapsed)
}

func (r *Runner) completeTask(ctx context.Context, logger *slog.Logger, task *queue.Task, result *agent.Result, elapsed time.Duration) {
	markCtx := ctx
	if ctx.Err() != nil {
		// A finished result is persisted even when shutdown raced the
		// attempt; re-running a completed task would repeat its side
		// effects.
		var cancel context.CancelFunc
		markCtx, cancel = context.WithTimeout(context.Background(), transitionTimeout)
		defer cancel()
	}
	err := r.store.MarkDone(markCtx, task.ID, result.Output,
		int64(result.Usage.PromptTokens), int64(result.Usage.CompletionTokens))
	if err != nil {
		r.handleTransitionError(logger, "mark done", err)
		return
	}
	r.mu.Lock()
	r.succeeded++
	r.mu.Unlock()
	logger.Info("task completed",
		logging.Duration("elapsed", elapsed),
		logging.Int("tokens_input", result.Usage.PromptTokens),
		logging.Int("tokens_output", result.Usage.CompletionTokens))
}

func (r *Runner) failAttempt(ctx context.Context, logger *slog.Logger, task *queue.Task, execErr error, elapsed time.Duration) {
	details := services.Details(execErr)
	message := details.Message
	if message == "" {
		message = execErr.Error()
	}

	if services.IsRetryable(execErr) && task.Retries < task.MaxRetries {
		if err := r.store.RequeueForRetry(ctx, task.ID, message); err != nil {
			r.handleTransitionError(logger, "requeue for retry", err)
			return
		}
		logger.Warn("task attempt failed; requeued",
			logging.Duration("elapsed", elapsed),
			logging.Int("retries_left", task.MaxRetries-task.Retries-1),
			logging.String("error_kind", details.Kind),
			logging.Error(execErr))
		return
	}

	if err := r.store.MarkFailed(ctx, task.ID, message); err != nil {
		r.handleTransitionError(logger, "mark failed", err)
		return
	}
	r.mu.Lock()
	r.failed++
	r.mu.Unlock()
	logger.Error("task failed permanently",
		logging.Duration("elapsed", elapsed),
		logging.String("error_kind", details.Kind),
		logging.Error(execErr))

	summary := textutil.Truncate(textutil.FirstLine(task.Prompt), 120)
	if err := r.notifier.NotifyTaskFailed(ctx, task.ID, summary, message); err != nil {
		logger.Warn("failure notification failed", logging.Error(err))
	}
}

// releaseTask returns an interrupted claim to the queue. The worker context
// is already cancelled, so the transition gets its own bounded context.
func (r *Runner) releaseTask(logger *slog.Logger, task *queue.Task) {
	releaseCtx, cancel := context.WithTimeout(context.Background(), transitionTimeout)
	defer cancel()
	if err := r.store.ReleaseInterrupted(releaseCtx, task.ID); err != nil {
		logger.Error("release interrupted task failed; task stays running until next daemon start",
			logging.Error(err))
		return
	}
	logger.Info("task interrupted by shutdown; requeued without consuming budget")
}

func (r *Runner) handleTransitionError(logger *slog.Logger, operation string, err error) {
	r.setLastError(err)
	logger.Error("status transition failed",
		logging.String("operation", operation),
		logging.Error(err))
	if services.IsFatal(err) {
		r.recordFatal(err)
	}
}
