// Package jobs runs independent tasks on a bounded worker pool and joins
// them at a barrier.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrQueueFull is returned by Submit when the queue has no room.
	ErrQueueFull = errors.New("worker queue full")

	// ErrPoolClosed is returned by Submit after Wait has been called.
	ErrPoolClosed = errors.New("worker pool closed")

	// ErrAbandoned marks tasks that had not finished when Wait gave up.
	ErrAbandoned = errors.New("task abandoned")

	// ErrPanic wraps a panic recovered from a task.
	ErrPanic = errors.New("task panicked")
)

// Task is one unit of work. Run receives the pool context, which is
// cancelled when Wait abandons the remaining tasks.
type Task[T any] struct {
	ID  string
	Run func(ctx context.Context) (T, error)
}

// Result is the outcome of a task. Exactly one of Value or Err is
// meaningful.
type Result[T any] struct {
	ID       string
	Value    T
	Err      error
	Duration time.Duration
}

// PoolStatus reports a pool's current state.
type PoolStatus struct {
	Name       string `json:"name"`
	Workers    int    `json:"workers"`
	InFlight   int    `json:"in_flight"`
	QueueDepth int    `json:"queue_depth"`
	Submitted  int    `json:"submitted"`
	Completed  int    `json:"completed"`
	Failed     int    `json:"failed"`
}

// PoolConfig configures a new pool.
type PoolConfig struct {
	Name      string
	Logger    *slog.Logger
	Workers   int // Number of worker goroutines (default: 1)
	QueueSize int // Queue size (default: 10000)
}

type queued[T any] struct {
	index int
	task  Task[T]
}

type indexed[T any] struct {
	index  int
	result Result[T]
}

// Pool is a bounded worker pool. All workers share a single queue. A
// failing or panicking task never affects its siblings.
type Pool[T any] struct {
	name    string
	logger  *slog.Logger
	workers int

	queue   chan queued[T]
	results chan indexed[T]
	stop    chan struct{} // closed when Wait stops collecting

	mu        sync.Mutex
	ids       []string
	closed    bool
	started   bool
	cancel    context.CancelFunc
	waitOnce  sync.Once
	collected []Result[T]

	inFlight  atomic.Int32
	completed atomic.Int32
	failed    atomic.Int32
}

// NewPool creates a pool. Tasks may be submitted before or after Start.
func NewPool[T any](cfg PoolConfig) *Pool[T] {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.Name
	if name == "" {
		name = "documents"
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 10000
	}
	return &Pool[T]{
		name:    name,
		logger:  logger.With("pool", name, "workers", workers),
		workers: workers,
		queue:   make(chan queued[T], queueSize),
		results: make(chan indexed[T], queueSize),
		stop:    make(chan struct{}),
	}
}

// Start launches the workers. Tasks run with a context derived from ctx.
func (p *Pool[T]) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	for i := 0; i < p.workers; i++ {
		go p.worker(ctx, i)
	}
	p.logger.Debug("pool started")
}

// Submit queues a task. It fails once Wait has been called or when the
// queue is full.
func (p *Pool[T]) Submit(task Task[T]) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	if task.Run == nil {
		return fmt.Errorf("task %q has no Run function", task.ID)
	}
	select {
	case p.queue <- queued[T]{index: len(p.ids), task: task}:
		p.ids = append(p.ids, task.ID)
		return nil
	default:
		p.logger.Warn("pool queue full", "task_id", task.ID)
		return fmt.Errorf("%w: %s", ErrQueueFull, p.name)
	}
}

// Wait is the barrier: it closes the pool to new tasks and blocks until
// every submitted task has finished or ctx is done. Results come back in
// submission order. When ctx ends first, the unfinished tasks are
// reported with ErrAbandoned, their context is cancelled and the pool
// stops picking up queued work. Wait starts the pool if Start was not
// called. Later calls return the same results.
func (p *Pool[T]) Wait(ctx context.Context) []Result[T] {
	p.waitOnce.Do(func() {
		p.Start(context.Background())

		p.mu.Lock()
		p.closed = true
		close(p.queue)
		ids := append([]string(nil), p.ids...)
		p.mu.Unlock()

		out := make([]Result[T], len(ids))
		done := make([]bool, len(ids))
		received := 0

	collect:
		for received < len(ids) {
			select {
			case r := <-p.results:
				out[r.index] = r.result
				done[r.index] = true
				received++
			case <-ctx.Done():
				break collect
			}
		}
		close(p.stop)
		p.cancel()

		if received < len(ids) {
			for i, ok := range done {
				if !ok {
					out[i] = Result[T]{ID: ids[i], Err: fmt.Errorf("%w: %v", ErrAbandoned, ctx.Err())}
				}
			}
			p.logger.Warn("abandoned unfinished tasks", "abandoned", len(ids)-received, "finished", received)
		}
		p.collected = out
	})
	return p.collected
}

// Status returns current pool status.
func (p *Pool[T]) Status() PoolStatus {
	p.mu.Lock()
	submitted := len(p.ids)
	p.mu.Unlock()
	return PoolStatus{
		Name:       p.name,
		Workers:    p.workers,
		InFlight:   int(p.inFlight.Load()),
		QueueDepth: len(p.queue),
		Submitted:  submitted,
		Completed:  int(p.completed.Load()),
		Failed:     int(p.failed.Load()),
	}
}

// worker processes tasks from the shared queue.
func (p *Pool[T]) worker(ctx context.Context, id int) {
	p.logger.Debug("worker started", "worker_id", id)
	for q := range p.queue {
		select {
		case <-p.stop:
			// Abandoned; drain without running.
			continue
		default:
		}

		p.inFlight.Add(1)
		r := p.run(ctx, q.task)
		p.inFlight.Add(-1)
		if r.Err != nil {
			p.failed.Add(1)
			p.logger.Debug("task failed", "worker_id", id, "task_id", q.task.ID, "error", r.Err)
		} else {
			p.completed.Add(1)
			p.logger.Debug("task completed", "worker_id", id, "task_id", q.task.ID, "duration", r.Duration)
		}

		select {
		case p.results <- indexed[T]{index: q.index, result: r}:
		case <-p.stop:
		}
	}
}

// run executes a task, converting a panic into an error.
func (p *Pool[T]) run(ctx context.Context, task Task[T]) (r Result[T]) {
	start := time.Now()
	r.ID = task.ID
	defer func() {
		if rec := recover(); rec != nil {
			var zero T
			r.Value = zero
			r.Err = fmt.Errorf("%w: %v", ErrPanic, rec)
			p.logger.Error("task panicked", "task_id", task.ID, "panic", rec, "stack", string(debug.Stack()))
		}
		r.Duration = time.Since(start)
	}()
	r.Value, r.Err = task.Run(ctx)
	return r
}
