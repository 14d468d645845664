// Package worker runs media transfers on a bounded set of goroutines.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrShutdownTimeout is returned when workers don't stop within timeout.
var ErrShutdownTimeout = errors.New("worker pool shutdown timed out")

// ErrPoolClosed is returned by Submit after Wait or Stop.
var ErrPoolClosed = errors.New("worker pool closed")

// Task is a unit of work. ctx is canceled when the pool is stopped.
type Task func(ctx context.Context)

// Pool manages a fixed number of workers draining a task queue.
type Pool struct {
	workers int
	tasks   chan Task
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// Config holds worker pool configuration.
type Config struct {
	Workers   int
	QueueSize int
}

// NewPool creates a new worker pool. The pool's context derives from
// parent, so canceling parent cancels running tasks.
func NewPool(parent context.Context, cfg Config, logger *slog.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}

	ctx, cancel := context.WithCancel(parent)

	return &Pool{
		workers: cfg.Workers,
		tasks:   make(chan Task, cfg.QueueSize),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches all workers.
func (p *Pool) Start() {
	p.logger.Debug("starting worker pool", "workers", p.workers)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Submit queues task, blocking while all workers are busy and the queue is
// full. It fails if ctx ends first or the pool is closed.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// Wait stops accepting tasks and blocks until every queued task has run.
// It is called from the goroutine that submits.
func (p *Pool) Wait() {
	p.close()
	p.wg.Wait()
	p.cancel()
}

// Stop cancels running tasks and waits up to timeout for workers to exit.
// Queued tasks that have not started are dropped.
func (p *Pool) Stop(timeout time.Duration) error {
	p.logger.Debug("stopping worker pool")
	p.cancel()
	p.close()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		p.logger.Debug("worker pool stopped gracefully")
		return nil
	case <-timer.C:
		return ErrShutdownTimeout
	}
}

// close must not race a blocked Submit unless the pool is already canceled.
func (p *Pool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	logger := p.logger.With("worker_id", id)

	for task := range p.tasks {
		if p.ctx.Err() != nil {
			// drain without running
			continue
		}
		p.run(logger, task)
	}
}

func (p *Pool) run(logger *slog.Logger, task Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("task panicked", "panic", r)
		}
	}()
	task(p.ctx)
}
