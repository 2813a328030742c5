package testsupport

import (
	"context"
	"testing"

	"loom/internal/config"
	"loom/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// AddTask inserts a task for tests using the provided store.
func AddTask(t testing.TB, store *queue.Store, req queue.AddRequest) *queue.Task {
	t.Helper()

	task, err := store.Add(context.Background(), req)
	if err != nil {
		t.Fatalf("store.Add: %v", err)
	}
	return task
}
