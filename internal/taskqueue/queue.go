// Package taskqueue runs long analyses asynchronously on a bounded worker
// pool. Work dequeues highest priority first, FIFO within a priority, and each
// execution carries its own timeout, retry, and cooperative cancellation.
package taskqueue

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"creator-insights/internal/domain/entity"
	"creator-insights/internal/resilience/retry"
)

var (
	// ErrTaskNotFound is returned by Poll for unknown task IDs.
	ErrTaskNotFound = errors.New("task not found")

	// ErrQueueClosed is returned by Submit after shutdown has begun.
	ErrQueueClosed = errors.New("task queue closed")
)

// Job is the unit of work a worker executes. The context carries the task's
// timeout and is cancelled when the task is cancelled; long jobs should check
// it between steps.
type Job func(ctx context.Context) (any, error)

// Config holds queue tuning parameters.
type Config struct {
	// Workers is the size of the worker pool.
	Workers int

	// DefaultTimeout applies to tasks submitted without an explicit timeout.
	DefaultTimeout time.Duration

	// Retry overrides the task retry profile. Zero value keeps retry.TaskConfig.
	Retry retry.Config
}

// Queue is the in-process priority task queue. One instance is shared across
// all requests; the heap and task table are guarded by a mutex.
type Queue struct {
	cfg      Config
	retryCfg retry.Config
	now      func() time.Time

	mu      sync.Mutex
	cond    *sync.Cond
	pending taskHeap
	tasks   map[string]*item
	seq     uint64
	closed  bool
}

// New creates a queue. Run must be called to start the workers.
func New(cfg Config) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 5 * time.Minute
	}
	retryCfg := cfg.Retry
	if retryCfg.MaxAttempts == 0 {
		retryCfg = retry.TaskConfig()
	}
	q := &Queue{
		cfg:      cfg,
		retryCfg: retryCfg,
		now:      time.Now,
		tasks:    make(map[string]*item),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Submit enqueues a job and returns its task ID immediately.
// A timeout of zero uses the queue's default.
func (q *Queue) Submit(job Job, priority entity.TaskPriority, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = q.cfg.DefaultTimeout
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return "", ErrQueueClosed
	}

	q.seq++
	it := &item{
		task: &entity.Task{
			ID:          uuid.NewString(),
			Priority:    priority,
			State:       entity.TaskQueued,
			SubmittedAt: q.now(),
		},
		job:     job,
		timeout: timeout,
		seq:     q.seq,
	}
	heap.Push(&q.pending, it)
	q.tasks[it.task.ID] = it
	recordQueueDepth(priority.String(), q.depthLocked(priority))
	q.cond.Signal()

	slog.Debug("task submitted",
		slog.String("task_id", it.task.ID),
		slog.String("priority", priority.String()),
		slog.Duration("timeout", timeout))

	return it.task.ID, nil
}

// Poll returns a snapshot of the task's current state.
func (q *Queue) Poll(taskID string) (*entity.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	it, ok := q.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	snapshot := *it.task
	return &snapshot, nil
}

// Cancel stops a task. Queued tasks are cancelled outright; running tasks have
// their context cancelled and finish cooperatively. It reports whether the
// cancellation was accepted.
func (q *Queue) Cancel(taskID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	it, ok := q.tasks[taskID]
	if !ok || it.task.State.Terminal() {
		return false
	}

	it.cancelled = true
	switch it.task.State {
	case entity.TaskQueued:
		heap.Remove(&q.pending, it.index)
		q.finishLocked(it, entity.TaskCancelled, nil, context.Canceled)
	case entity.TaskRunning:
		if it.cancel != nil {
			it.cancel()
		}
	}
	return true
}

// Run starts the worker pool and blocks until ctx is cancelled and all
// in-flight tasks have finished. Pending tasks left in the queue at shutdown
// stay queued and are not executed.
func (q *Queue) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		q.cond.Broadcast()
	}()

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		g.Go(func() error {
			q.worker(ctx)
			return nil
		})
	}
	return g.Wait()
}

// worker loops dequeuing and executing tasks until shutdown.
func (q *Queue) worker(ctx context.Context) {
	for {
		it := q.dequeue()
		if it == nil {
			return
		}
		q.execute(ctx, it)
	}
}

// dequeue blocks until a task is available or the queue is closed.
func (q *Queue) dequeue() *item {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.pending.Len() == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return nil
	}

	it := heap.Pop(&q.pending).(*item)
	now := q.now()
	it.task.State = entity.TaskRunning
	it.task.StartedAt = &now
	recordQueueDepth(it.task.Priority.String(), q.depthLocked(it.task.Priority))
	recordQueueWait(now.Sub(it.task.SubmittedAt))
	return it
}

// execute runs one task with its timeout and retry profile and records the
// terminal state.
func (q *Queue) execute(ctx context.Context, it *item) {
	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	q.mu.Lock()
	it.cancel = cancel
	alreadyCancelled := it.cancelled
	q.mu.Unlock()
	if alreadyCancelled {
		cancel()
	}

	var result any
	start := q.now()
	err := retry.WithBackoff(taskCtx, q.retryCfg, func() error {
		q.mu.Lock()
		it.task.Attempts++
		q.mu.Unlock()

		attemptCtx, attemptCancel := context.WithTimeout(taskCtx, it.timeout)
		defer attemptCancel()

		var attemptErr error
		result, attemptErr = it.job(attemptCtx)
		if attemptErr != nil && attemptCtx.Err() != nil && taskCtx.Err() == nil {
			return fmt.Errorf("task timed out after %s: %w", it.timeout, context.DeadlineExceeded)
		}
		return attemptErr
	})
	duration := q.now().Sub(start)

	q.mu.Lock()
	defer q.mu.Unlock()

	state := entity.TaskSucceeded
	switch {
	case it.cancelled:
		state = entity.TaskCancelled
	case errors.Is(err, context.DeadlineExceeded):
		state = entity.TaskTimedOut
	case err != nil:
		state = entity.TaskFailed
	}
	q.finishLocked(it, state, result, err)

	slog.Info("task finished",
		slog.String("task_id", it.task.ID),
		slog.String("state", string(state)),
		slog.String("priority", it.task.Priority.String()),
		slog.Int("attempts", it.task.Attempts),
		slog.Duration("duration", duration))
	recordTaskFinished(string(state), it.task.Priority.String(), duration)
}

// finishLocked moves a task to its terminal state. Caller holds q.mu.
func (q *Queue) finishLocked(it *item, state entity.TaskState, result any, err error) {
	now := q.now()
	it.task.State = state
	it.task.CompletedAt = &now
	if state == entity.TaskSucceeded {
		it.task.Result = result
	} else if err != nil {
		it.task.Error = err.Error()
	}
	it.cancel = nil
}

// Depth returns the number of queued tasks, across all priorities.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Len()
}

func (q *Queue) depthLocked(priority entity.TaskPriority) int {
	depth := 0
	for _, it := range q.pending {
		if it.task.Priority == priority {
			depth++
		}
	}
	return depth
}
