// ABOUTME: Background task queue over the job_queue table using SKIP LOCKED.
// ABOUTME: Claim/complete/fail run under RunSystem; enqueue joins the caller's scoped tx.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// maxTaskAttempts is the number of handler failures before a task is parked
// as failed instead of retried.
const maxTaskAttempts = 3

// Task is one queued unit of background work.
type Task struct {
	ID       uuid.UUID
	Queue    string
	Payload  json.RawMessage
	Attempts int
}

// EnqueueTask inserts a pending task in the caller's transaction, so a rolled
// back intake enqueues nothing.
func EnqueueTask(ctx context.Context, tx pgx.Tx, queue string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("enqueue task: encode payload: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO job_queue (queue, payload) VALUES ($1, $2)`,
		queue, body); err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}
	return nil
}

// ClaimTask atomically claims the oldest runnable task on queue for workerID,
// or returns (nil, nil) when the queue is empty. FOR UPDATE SKIP LOCKED lets
// concurrent workers claim without blocking each other.
func (s *Store) ClaimTask(ctx context.Context, queue, workerID string) (*Task, error) {
	var task *Task
	err := s.RunSystem(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE job_queue SET status = 'running', locked_by = $1, locked_at = now(),
				attempts = attempts + 1
			WHERE id = (
				SELECT id FROM job_queue
				WHERE queue = $2 AND status = 'pending' AND run_at <= now()
				ORDER BY run_at
				LIMIT 1
				FOR UPDATE SKIP LOCKED
			)
			RETURNING id, queue, payload, attempts`,
			workerID, queue)
		var t Task
		err := row.Scan(&t.ID, &t.Queue, &t.Payload, &t.Attempts)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		task = &t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim task: %w", err)
	}
	return task, nil
}

// CompleteTask marks the task done.
func (s *Store) CompleteTask(ctx context.Context, id uuid.UUID) error {
	err := s.RunSystem(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`UPDATE job_queue SET status = 'done', locked_by = NULL, locked_at = NULL
			 WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return nil
}

// FailTask records a handler failure. Tasks under the attempt limit go back
// to pending with a one-minute delay; the rest are parked as failed.
func (s *Store) FailTask(ctx context.Context, id uuid.UUID, reason string) error {
	err := s.RunSystem(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE job_queue SET
				status = CASE WHEN attempts >= $2 THEN 'failed' ELSE 'pending' END,
				run_at = now() + interval '1 minute',
				last_error = $3,
				locked_by = NULL, locked_at = NULL
			WHERE id = $1`,
			id, maxTaskAttempts, reason)
		return err
	})
	if err != nil {
		return fmt.Errorf("fail task: %w", err)
	}
	return nil
}

// RecoverStaleTasks resets tasks stuck in 'running' longer than olderThan,
// e.g. after a worker crash mid-task. Returns the number reclaimed.
func (s *Store) RecoverStaleTasks(ctx context.Context, olderThan time.Duration) (int64, error) {
	var n int64
	err := s.RunSystem(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE job_queue SET status = 'pending', locked_by = NULL, locked_at = NULL
			WHERE status = 'running' AND locked_at < now() - make_interval(secs => $1)`,
			olderThan.Seconds())
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("recover stale tasks: %w", err)
	}
	return n, nil
}
