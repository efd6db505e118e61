// Package dispatch runs fire-and-forget tasks on a bounded worker pool.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config controls the worker pool.
type Config struct {
	Workers   int           `default:"4" usage:"Side effect worker count"`
	QueueSize int           `default:"256" usage:"Pending side effect capacity"`
	Timeout   time.Duration `default:"30s" usage:"Per-task timeout"`
}

type job struct {
	ctx  context.Context
	name string
	fn   func(ctx context.Context) error
}

// Dispatcher executes tasks asynchronously. Task errors and panics are logged
// and never reach the caller.
type Dispatcher struct {
	lg  *zap.Logger
	cfg Config

	mu     sync.RWMutex
	closed bool
	jobs   chan job
	wg     sync.WaitGroup
}

// New creates a Dispatcher and starts its workers.
func New(lg *zap.Logger, cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	d := &Dispatcher{
		lg:   lg,
		cfg:  cfg,
		jobs: make(chan job, cfg.QueueSize),
	}
	for range cfg.Workers {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Enqueue schedules fn. The task context carries the values of ctx but is
// not canceled with it. Enqueue never blocks: it returns false and logs when
// the queue is full or the dispatcher is closed.
func (d *Dispatcher) Enqueue(ctx context.Context, name string, fn func(ctx context.Context) error) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.lg.Warn("Dispatcher closed, dropping task", zap.String("task", name))
		return false
	}
	select {
	case d.jobs <- job{ctx: context.WithoutCancel(ctx), name: name, fn: fn}:
		return true
	default:
		d.lg.Warn("Dispatcher queue full, dropping task", zap.String("task", name))
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish or ctx to
// expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain dispatcher: %w", ctx.Err())
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.run(j)
	}
}

func (d *Dispatcher) run(j job) {
	ctx := j.ctx
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.lg.Error("Task panicked",
				zap.String("task", j.name),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()

	if err := j.fn(ctx); err != nil {
		d.lg.Error("Task failed",
			zap.String("task", j.name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	d.lg.Debug("Task done",
		zap.String("task", j.name),
		zap.Duration("duration", time.Since(start)),
	)
}
