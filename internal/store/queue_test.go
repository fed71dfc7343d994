// ABOUTME: Integration tests for the job_queue claim/complete/fail lifecycle.
package store_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fixbay/workshop-ops/internal/store"
	"github.com/fixbay/workshop-ops/internal/testutil"
)

func resetRunAt(t *testing.T, s *store.Store) {
	t.Helper()
	err := s.RunSystem(context.Background(), func(tx pgx.Tx) error {
		_, txErr := tx.Exec(context.Background(), "UPDATE job_queue SET run_at = now()")
		return txErr
	})
	if err != nil {
		t.Fatalf("reset run_at: %v", err)
	}
}

func TestQueue_ClaimCompleteFlow(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	payload := map[string]string{"note": "inspect chainsaw"}
	err := s.Store.RunSystem(ctx, func(tx pgx.Tx) error {
		return store.EnqueueTask(ctx, tx, "test_queue", payload)
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, err := s.Store.ClaimTask(ctx, "test_queue", "worker-1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if task == nil {
		t.Fatal("claim returned nil, want the enqueued task")
	}
	if task.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", task.Attempts)
	}
	var got map[string]string
	if err := json.Unmarshal(task.Payload, &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got["note"] != "inspect chainsaw" {
		t.Errorf("payload = %v", got)
	}

	// A second claim while the task is running gets nothing.
	again, err := s.Store.ClaimTask(ctx, "test_queue", "worker-2")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if again != nil {
		t.Errorf("claimed a running task: %+v", again)
	}

	if err := s.Store.CompleteTask(ctx, task.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// Done tasks are not reclaimed.
	final, err := s.Store.ClaimTask(ctx, "test_queue", "worker-1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if final != nil {
		t.Errorf("claimed a completed task: %+v", final)
	}
}

func TestQueue_FailRetriesThenParks(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	err := s.Store.RunSystem(ctx, func(tx pgx.Tx) error {
		return store.EnqueueTask(ctx, tx, "retry_queue", map[string]int{"n": 1})
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// Attempts 1 and 2 fail and go back to pending.
	for attempt := 1; attempt <= 2; attempt++ {
		task, err := s.Store.ClaimTask(ctx, "retry_queue", "worker-1")
		if err != nil {
			t.Fatalf("claim %d: %v", attempt, err)
		}
		if task == nil {
			t.Fatalf("claim %d returned nil", attempt)
		}
		if task.Attempts != attempt {
			t.Errorf("claim %d: attempts = %d", attempt, task.Attempts)
		}
		if err := s.Store.FailTask(ctx, task.ID, "handler exploded"); err != nil {
			t.Fatalf("fail %d: %v", attempt, err)
		}
		resetRunAt(t, s.Store) // skip the retry delay
	}

	// Attempt 3 fails and parks the task.
	task, err := s.Store.ClaimTask(ctx, "retry_queue", "worker-1")
	if err != nil {
		t.Fatalf("claim 3: %v", err)
	}
	if task == nil {
		t.Fatal("claim 3 returned nil")
	}
	if err := s.Store.FailTask(ctx, task.ID, "handler exploded"); err != nil {
		t.Fatalf("fail 3: %v", err)
	}
	resetRunAt(t, s.Store)

	parked, err := s.Store.ClaimTask(ctx, "retry_queue", "worker-1")
	if err != nil {
		t.Fatalf("claim after park: %v", err)
	}
	if parked != nil {
		t.Errorf("claimed a parked task: %+v", parked)
	}
}

func TestQueue_RecoverStaleTasks(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	err := s.Store.RunSystem(ctx, func(tx pgx.Tx) error {
		return store.EnqueueTask(ctx, tx, "stale_queue", map[string]int{"n": 1})
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, err := s.Store.ClaimTask(ctx, "stale_queue", "crashed-worker")
	if err != nil || task == nil {
		t.Fatalf("claim: task=%v err=%v", task, err)
	}

	// Simulate a worker crash ten minutes ago.
	err = s.Store.RunSystem(ctx, func(tx pgx.Tx) error {
		_, txErr := tx.Exec(ctx,
			"UPDATE job_queue SET locked_at = now() - interval '10 minutes' WHERE id = $1", task.ID)
		return txErr
	})
	if err != nil {
		t.Fatalf("age lock: %v", err)
	}

	n, err := s.Store.RecoverStaleTasks(ctx, 5*time.Minute)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if n != 1 {
		t.Errorf("recovered = %d, want 1", n)
	}

	reclaimed, err := s.Store.ClaimTask(ctx, "stale_queue", "worker-2")
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if reclaimed == nil {
		t.Fatal("stale task was not reclaimable")
	}
	if reclaimed.ID != task.ID {
		t.Errorf("reclaimed id = %s, want %s", reclaimed.ID, task.ID)
	}
}
