package daemon_test

import (
	"context"
	"testing"
	"time"

	"loom/internal/agent"
	"loom/internal/config"
	"loom/internal/daemon"
	"loom/internal/logging"
	"loom/internal/queue"
	"loom/internal/runner"
	"loom/internal/testsupport"
)

type stubExecutor struct{}

func (stubExecutor) Execute(context.Context, *queue.Task) (*agent.Result, error) {
	return &agent.Result{Output: "ok"}, nil
}

func newTestDaemon(t *testing.T) (*daemon.Daemon, *queue.Store, *config.Config) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	run := runner.New(cfg, store, stubExecutor{}, logging.NewNop(), nil,
		runner.WithPollInterval(10*time.Millisecond))
	d, err := daemon.New(cfg, store, logging.NewNop(), run)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	return d, store, cfg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNewValidatesDependencies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := daemon.New(cfg, nil, logging.NewNop(), nil); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestDaemonStartStop(t *testing.T) {
	d, _, _ := newTestDaemon(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.PID <= 0 {
		t.Fatalf("expected positive PID, got %d", status.PID)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestSecondInstanceRefused(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	makeDaemon := func() *daemon.Daemon {
		run := runner.New(cfg, store, stubExecutor{}, logging.NewNop(), nil,
			runner.WithPollInterval(10*time.Millisecond))
		d, err := daemon.New(cfg, store, logging.NewNop(), run)
		if err != nil {
			t.Fatalf("daemon.New: %v", err)
		}
		return d
	}

	first := makeDaemon()
	second := makeDaemon()
	t.Cleanup(func() {
		first.Stop()
		second.Stop()
	})

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		t.Fatal("expected second instance to be refused while lock is held")
	}

	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("Start after lock release failed: %v", err)
	}
}

func TestStartRequeuesStrandedRunningTasks(t *testing.T) {
	d, store, _ := newTestDaemon(t)
	ctx := context.Background()

	task := testsupport.AddTask(t, store, queue.AddRequest{Prompt: "stranded", Agent: "agent"})
	claimed, err := store.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if claimed == nil || claimed.ID != task.ID {
		t.Fatalf("expected to claim task %d, got %+v", task.ID, claimed)
	}

	// The claim above stands in for a previous process that died mid-task.
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, "stranded task to be re-dispatched", func() bool {
		got, getErr := store.GetByID(ctx, task.ID)
		return getErr == nil && got.Status == queue.StatusDone
	})
	d.Stop()
}

func TestQueueFacade(t *testing.T) {
	d, _, _ := newTestDaemon(t)
	ctx := context.Background()

	added, err := d.AddTask(ctx, queue.AddRequest{Prompt: "facade", Agent: "agent"})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	got, err := d.GetTask(ctx, added.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Prompt != "facade" {
		t.Fatalf("unexpected prompt %q", got.Prompt)
	}

	listed, err := d.ListQueue(ctx, nil)
	if err != nil {
		t.Fatalf("ListQueue: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 task, got %d", len(listed))
	}

	cancelled, err := d.CancelTask(ctx, added.ID)
	if err != nil {
		t.Fatalf("CancelTask: %v", err)
	}
	if cancelled.Status != queue.StatusCancelled {
		t.Fatalf("expected cancelled status, got %s", cancelled.Status)
	}

	// Nothing is done or failed yet, so these are no-ops.
	if n, err := d.ClearCompleted(ctx); err != nil || n != 0 {
		t.Fatalf("ClearCompleted = (%d, %v), want (0, nil)", n, err)
	}
	if n, err := d.RetryFailed(ctx, nil); err != nil || n != 0 {
		t.Fatalf("RetryFailed = (%d, %v), want (0, nil)", n, err)
	}

	removed, err := d.ClearFinished(ctx)
	if err != nil {
		t.Fatalf("ClearFinished: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected cancelled task to be cleared, got %d", removed)
	}

	health, err := d.QueueHealth(ctx)
	if err != nil {
		t.Fatalf("QueueHealth: %v", err)
	}
	if health.Total != 0 {
		t.Fatalf("expected empty queue, total=%d", health.Total)
	}

	dbHealth, err := d.DatabaseHealth(ctx)
	if err != nil {
		t.Fatalf("DatabaseHealth: %v", err)
	}
	if !dbHealth.DatabaseExists || !dbHealth.IntegrityCheck {
		t.Fatalf("unexpected database health: %+v", dbHealth)
	}
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	d, _, _ := newTestDaemon(t)

	sent, detail, err := d.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if sent {
		t.Fatal("expected no notification without a configured topic")
	}
	if detail != "ntfy topic not configured" {
		t.Fatalf("unexpected detail %q", detail)
	}
}
