package runner

import (
	"context"
	"errors"
	"time"

	"loom/internal/logging"
	"loom/internal/services"
)

// worker is one claim-execute-transition loop. With drainAndExit the worker
// returns once nothing is running and nothing can become eligible; otherwise
// it polls until the run context is cancelled.
func (r *Runner) worker(ctx context.Context, drainAndExit bool) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := r.store.ClaimNext(ctx)
		if err != nil {
			if !r.handleClaimError(ctx, err) {
				return
			}
			continue
		}
		if task == nil {
			if drainAndExit && r.isDrained(ctx) {
				return
			}
			r.waitForWorkOrShutdown(ctx)
			continue
		}

		r.noteClaimed()
		r.dispatch(ctx, task)
		r.noteSettled()
		r.maybeNotifyDrained(ctx)
	}
}

// handleClaimError reports whether the worker should keep going. Lock
// timeouts are skipped cycles; store corruption stops the pool.
func (r *Runner) handleClaimError(ctx context.Context, err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	r.setLastError(err)
	if services.IsFatal(err) {
		r.logger.Error("task store unusable; stopping runner",
			logging.Error(err),
			logging.String("error_kind", services.Details(err).Kind))
		if notifyErr := r.notifier.NotifyError(ctx, err, "queue processing halted"); notifyErr != nil {
			r.logger.Warn("error notification failed", logging.Error(notifyErr))
		}
		r.recordFatal(err)
		return false
	}
	if errors.Is(err, services.ErrLockTimeout) {
		r.logger.Warn("task store locked; skipping cycle", logging.Error(err))
	} else {
		r.logger.Error("claim next task failed", logging.Error(err))
	}
	r.waitForWorkOrShutdown(ctx)
	return true
}

func (r *Runner) waitForWorkOrShutdown(ctx context.Context) {
	timer := time.NewTimer(r.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// isDrained reports whether no task is running and none can start.
func (r *Runner) isDrained(ctx context.Context) bool {
	snap, err := r.store.Snapshot(ctx)
	if err != nil {
		return false
	}
	return snap.Drained()
}

func (r *Runner) noteClaimed() {
	r.mu.Lock()
	r.activeTasks++
	if !r.queueActive {
		r.queueActive = true
		r.queueStart = time.Now()
		r.succeeded = 0
		r.failed = 0
	}
	r.mu.Unlock()
}

func (r *Runner) noteSettled() {
	r.mu.Lock()
	r.activeTasks--
	r.mu.Unlock()
}

// maybeNotifyDrained fires the drain notification once per busy period.
func (r *Runner) maybeNotifyDrained(ctx context.Context) {
	r.mu.Lock()
	active := r.queueActive
	r.mu.Unlock()
	if !active || !r.isDrained(ctx) {
		return
	}

	r.mu.Lock()
	if !r.queueActive {
		r.mu.Unlock()
		return
	}
	r.queueActive = false
	succeeded := r.succeeded
	failed := r.failed
	elapsed := time.Since(r.queueStart)
	r.mu.Unlock()

	r.logger.Info("queue drained",
		logging.Int("succeeded", succeeded),
		logging.Int("failed", failed),
		logging.Duration("elapsed", elapsed))
	if err := r.notifier.NotifyQueueDrained(ctx, succeeded, failed, elapsed); err != nil {
		r.logger.Warn("drain notification failed", logging.Error(err))
	}
}
