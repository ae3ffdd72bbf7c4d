// Package dispatch runs submitted tasks one at a time, in submission order,
// on a single background worker.
//
// Submission never blocks: pending tasks are kept in an unbounded slice and
// the worker is woken through a one-slot channel. A task that fails or
// panics is reported as a failed Result and the worker moves on.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Task is one unit of background work.
type Task struct {
	ID   string
	Name string
	Run  func(ctx context.Context) error
}

// Result describes how a task ended.
type Result struct {
	TaskID     string
	Name       string
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// OK reports whether the task completed without error.
func (r Result) OK() bool {
	return r.Err == nil
}

// Duration is the task's wall-clock run time.
func (r Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger used for task results.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithResultHandler registers a callback invoked on the worker after each task.
func WithResultHandler(fn func(Result)) Option {
	return func(q *Queue) {
		q.onResult = fn
	}
}

// Queue is a single-worker FIFO task queue.
type Queue struct {
	mu      sync.Mutex
	pending []Task
	running bool
	idle    chan struct{}
	drained bool

	wake     chan struct{}
	start    sync.Once
	logger   *slog.Logger
	onResult func(Result)
}

// New creates an idle queue. Call Start to launch the worker.
func New(opts ...Option) *Queue {
	idle := make(chan struct{})
	close(idle)

	q := &Queue{
		idle:    idle,
		drained: true,
		wake:    make(chan struct{}, 1),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start launches the worker goroutine. Only the first call has an effect;
// the worker runs until ctx is done.
func (q *Queue) Start(ctx context.Context) {
	q.start.Do(func() {
		go q.loop(ctx)
	})
}

// Submit enqueues task and returns its ID. It never blocks.
func (q *Queue) Submit(task Task) string {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	q.mu.Lock()
	if q.drained {
		q.idle = make(chan struct{})
		q.drained = false
	}
	q.pending = append(q.pending, task)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return task.ID
}

// Pending returns the number of tasks waiting to start.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Running reports whether a task is executing.
func (q *Queue) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Wait blocks until nothing is pending or running, or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) loop(ctx context.Context) {
	for {
		task, ok := q.next()
		if !ok {
			select {
			case <-q.wake:
				continue
			case <-ctx.Done():
				return
			}
		}

		result := q.execute(ctx, task)
		q.report(result)
		q.finish()
	}
}

// next pops the oldest task and marks the worker busy.
func (q *Queue) next() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return Task{}, false
	}
	task := q.pending[0]
	q.pending[0] = Task{}
	q.pending = q.pending[1:]
	q.running = true
	return task, true
}

func (q *Queue) finish() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.running = false
	if len(q.pending) == 0 && !q.drained {
		close(q.idle)
		q.drained = true
	}
}

func (q *Queue) execute(ctx context.Context, task Task) (result Result) {
	result = Result{
		TaskID:    task.ID,
		Name:      task.Name,
		StartedAt: time.Now(),
	}
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("task panicked: %v", r)
			q.logger.Error("task panic", "task_id", task.ID, "stack", string(debug.Stack()))
		}
		result.FinishedAt = time.Now()
	}()

	if task.Run == nil {
		result.Err = fmt.Errorf("task %s has no run function", task.ID)
		return result
	}
	result.Err = task.Run(ctx)
	return result
}

func (q *Queue) report(result Result) {
	if result.OK() {
		q.logger.Info("task finished",
			"task_id", result.TaskID,
			"name", result.Name,
			"duration", result.Duration().Round(time.Millisecond))
	} else {
		q.logger.Error("task failed",
			"task_id", result.TaskID,
			"name", result.Name,
			"duration", result.Duration().Round(time.Millisecond),
			"error", result.Err)
	}

	if q.onResult == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("result handler panic", "task_id", result.TaskID, "panic", r)
		}
	}()
	q.onResult(result)
}
