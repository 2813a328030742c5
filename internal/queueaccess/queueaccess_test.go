package queueaccess_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"loom/internal/ipc"
	"loom/internal/queue"
	"loom/internal/queueaccess"
	"loom/internal/testsupport"
)

func TestOpenWithFallbackPrefersDial(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	dialCalled := false
	session, err := queueaccess.OpenWithFallback(
		func() (*ipc.Client, error) {
			dialCalled = true
			return nil, errors.New("socket missing")
		},
		func() (*queue.Store, error) { return store, nil },
	)
	if err != nil {
		t.Fatalf("OpenWithFallback: %v", err)
	}
	defer session.Close()

	if !dialCalled {
		t.Fatal("expected dial to be attempted first")
	}
	if _, err := session.Access.Stats(context.Background()); err != nil {
		t.Fatalf("Stats through fallback store: %v", err)
	}
}

func TestOpenWithFallbackRequiresStoreOpener(t *testing.T) {
	_, err := queueaccess.OpenWithFallback(nil, nil)
	if err == nil {
		t.Fatal("expected error when neither transport is available")
	}
}

func TestStoreAccessOperations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	access := queueaccess.NewStoreAccess(store)
	ctx := context.Background()

	first, err := access.Add(ctx, queue.AddRequest{Prompt: "write release notes"})
	if err != nil {
		t.Fatalf("Add first: %v", err)
	}
	second, err := access.Add(ctx, queue.AddRequest{Prompt: "publish release notes", AfterID: &first.ID})
	if err != nil {
		t.Fatalf("Add second: %v", err)
	}

	stats, err := access.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[string(queue.StatusPending)] != 2 {
		t.Fatalf("expected 2 pending, got %v", stats)
	}

	tasks, err := access.List(ctx, []string{"pending"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if _, err := access.List(ctx, []string{"bogus"}); err == nil {
		t.Fatal("expected unknown status filter to error")
	}

	detail, err := access.Describe(ctx, second.ID)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if detail == nil || detail.BlockedOn == nil || detail.BlockedOn.ID != first.ID {
		t.Fatalf("expected second task blocked on first, got %+v", detail)
	}
	detail, err = access.Describe(ctx, first.ID)
	if err != nil {
		t.Fatalf("Describe first: %v", err)
	}
	if len(detail.Dependents) != 1 || detail.Dependents[0].ID != second.ID {
		t.Fatalf("expected first task to list second as dependent, got %+v", detail)
	}

	missing, err := access.Describe(ctx, 9999)
	if err != nil {
		t.Fatalf("Describe missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil detail for missing task, got %+v", missing)
	}

	cancelled, err := access.Cancel(ctx, second.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != queue.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}

	if _, err := access.RetryAll(ctx); err != nil {
		t.Fatalf("RetryAll: %v", err)
	}
	if _, err := access.ResetStuck(ctx); err != nil {
		t.Fatalf("ResetStuck: %v", err)
	}

	removed, err := access.ClearFinished(ctx)
	if err != nil {
		t.Fatalf("ClearFinished: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected cancelled task cleared, got %d", removed)
	}

	health, err := access.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 1 || health.Pending != 1 {
		t.Fatalf("unexpected health summary: %+v", health)
	}

	dbHealth, err := access.DatabaseHealth(ctx)
	if err != nil {
		t.Fatalf("DatabaseHealth: %v", err)
	}
	if !dbHealth.DatabaseExists || !strings.HasSuffix(dbHealth.DBPath, "queue.db") {
		t.Fatalf("unexpected database health: %+v", dbHealth)
	}
}
