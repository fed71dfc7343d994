package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fixbay/workshop-ops/internal/store"
)

const (
	// pollInterval is how often each queue goroutine checks for new tasks.
	pollInterval = 2 * time.Second

	// staleCheckInterval is how often the recovery goroutine runs.
	staleCheckInterval = 1 * time.Minute

	// staleThreshold is the age at which a 'running' task is considered stuck.
	staleThreshold = 5 * time.Minute
)

// Handler executes one claimed task. A non-nil error sends the task back for
// retry (or parks it as failed after the attempt limit).
type Handler func(ctx context.Context, payload []byte) error

// Pool manages a set of goroutine workers that claim and execute tasks from
// the job_queue table. One polling goroutine runs per registered queue; a
// shared stale-lock recovery goroutine resets stuck tasks.
type Pool struct {
	store    *store.Store
	workerID string
	mu       sync.RWMutex
	handlers map[string]Handler
}

// New creates a Pool backed by s. A random workerID is generated at
// construction time to distinguish this process in the locked_by column.
func New(s *store.Store) *Pool {
	return &Pool{
		store:    s,
		workerID: uuid.New().String(),
		handlers: make(map[string]Handler),
	}
}

// Register associates h with the named queue. Must be called before Start.
func (p *Pool) Register(queue string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[queue] = h
}

// Start launches one polling goroutine per registered queue plus the
// stale-lock recovery goroutine, then blocks until ctx is cancelled. On
// cancellation any in-flight task completes before Start returns.
func (p *Pool) Start(ctx context.Context) {
	p.mu.RLock()
	queues := make([]string, 0, len(p.handlers))
	for q := range p.handlers {
		queues = append(queues, q)
	}
	p.mu.RUnlock()

	var wg sync.WaitGroup

	for _, q := range queues {
		wg.Add(1)
		go func(queue string) {
			defer wg.Done()
			p.runQueue(ctx, queue)
		}(q)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.runStaleRecovery(ctx)
	}()

	wg.Wait()
	slog.Info("worker pool stopped", "worker_id", p.workerID)
}

// runQueue polls queue for tasks until ctx is cancelled. Uses time.NewTicker
// (not time.After) to avoid timer leaks.
func (p *Pool) runQueue(ctx context.Context, queue string) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	slog.Info("worker queue started", "queue", queue, "worker_id", p.workerID)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker queue stopping", "queue", queue)
			return
		case <-ticker.C:
			p.processOne(ctx, queue)
		}
	}
}

// processOne claims one task from queue and executes it. Errors are logged but
// do not stop the polling loop — the goroutine continues to the next tick.
func (p *Pool) processOne(ctx context.Context, queue string) {
	task, err := p.store.ClaimTask(ctx, queue, p.workerID)
	if err != nil {
		slog.Error("claim task error", "queue", queue, "error", err)
		return
	}
	if task == nil {
		return // queue empty; normal case
	}

	p.mu.RLock()
	h := p.handlers[queue]
	p.mu.RUnlock()

	if h == nil {
		slog.Error("no handler registered for queue",
			"queue", queue, "task_id", task.ID)
		return
	}

	slog.Info("executing task",
		"queue", queue, "task_id", task.ID, "attempts", task.Attempts)

	if err := h(ctx, task.Payload); err != nil {
		slog.Error("task handler failed",
			"queue", queue, "task_id", task.ID, "error", err)
		if failErr := p.store.FailTask(ctx, task.ID, err.Error()); failErr != nil {
			slog.Error("fail task error", "task_id", task.ID, "error", failErr)
		}
		return
	}

	if err := p.store.CompleteTask(ctx, task.ID); err != nil {
		slog.Error("complete task error", "task_id", task.ID, "error", err)
		return
	}
	slog.Info("task completed", "queue", queue, "task_id", task.ID)
}

// runStaleRecovery periodically resets tasks stuck in 'running' state. Uses
// time.NewTicker (not time.After) to avoid timer leaks.
func (p *Pool) runStaleRecovery(ctx context.Context) {
	ticker := time.NewTicker(staleCheckInterval)
	defer ticker.Stop()

	slog.Info("stale recovery started", "worker_id", p.workerID,
		"threshold", staleThreshold, "check_interval", staleCheckInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("stale recovery stopping")
			return
		case <-ticker.C:
			n, err := p.store.RecoverStaleTasks(ctx, staleThreshold)
			if err != nil {
				slog.Error("stale task recovery error", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("reclaimed stale tasks", "count", n)
			}
		}
	}
}
