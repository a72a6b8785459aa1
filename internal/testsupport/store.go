package testsupport

import (
	"context"
	"testing"

	"github.com/randompersona1/ussplitter-server/internal/config"
	"github.com/randompersona1/ussplitter-server/internal/queue"
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

// EnqueueJob enqueues a job for tests using the provided store.
func EnqueueJob(t testing.TB, store *queue.Store, jobID, model string) {
	t.Helper()

	if err := store.Enqueue(context.Background(), jobID, model); err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
}
