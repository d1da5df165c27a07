// Package tasks runs side effects (notifications, cache writes) off the
// request path. Each submission returns a channel carrying its result, which
// callers may await or drop.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrClosed = errors.New("task runner closed")

// Func is one unit of work.
type Func func(ctx context.Context) error

type job struct {
	name string
	fn   Func
	done chan error
}

// Runner is a fixed worker pool fed by a buffered queue.
type Runner struct {
	jobs    chan job
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewRunner starts workers goroutines. Each task gets its own timeout.
func NewRunner(workers, queue int, timeout time.Duration, logger *zap.Logger) *Runner {
	if workers <= 0 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{jobs: make(chan job, queue), logger: logger, timeout: timeout}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.work()
	}
	return r
}

func (r *Runner) work() {
	defer r.wg.Done()
	for j := range r.jobs {
		j.done <- r.run(j)
		close(j.done)
	}
}

func (r *Runner) run(j job) (err error) {
	ctx := context.Background()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task %s panicked: %v", j.name, p)
		}
		if err != nil {
			r.logger.Warn("task failed", zap.String("task", j.name), zap.Error(err))
		}
	}()
	return j.fn(ctx)
}

// Submit queues fn and returns a channel that receives exactly one result.
// It blocks while the queue is full unless ctx ends first.
func (r *Runner) Submit(ctx context.Context, name string, fn Func) <-chan error {
	done := make(chan error, 1)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		done <- ErrClosed
		close(done)
		return done
	}
	select {
	case r.jobs <- job{name: name, fn: fn, done: done}:
	case <-ctx.Done():
		done <- ctx.Err()
		close(done)
	}
	return done
}

// Close stops accepting work and waits for queued tasks to finish.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.jobs)
	r.mu.Unlock()
	r.wg.Wait()
}
