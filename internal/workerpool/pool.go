// Package workerpool bounds concurrent calls to external services.
//
// Ingestion and queries each get their own Pool so a burst of embedding
// batches cannot starve query-time rerank calls. Pools are backed by ants.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/custodia-labs/sheetdex/internal/logger"
)

var (
	// ErrOverloaded is returned in nonblocking mode when every worker is
	// busy and the wait queue is full.
	ErrOverloaded = errors.New("worker pool overloaded")

	// ErrClosed is returned after Release.
	ErrClosed = errors.New("worker pool closed")
)

// Config defines the configuration for a pool.
type Config struct {
	// Size is the maximum number of concurrently running tasks.
	Size int

	// Queue is the maximum number of callers waiting for a worker.
	// Zero means unbounded.
	Queue int

	// Nonblocking rejects submissions with ErrOverloaded instead of waiting.
	Nonblocking bool

	// ExpiryDuration is how long an idle worker lives.
	ExpiryDuration time.Duration
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Name      string
	Capacity  int
	Running   int
	Waiting   int
	Submitted int64
	Completed int64
	Failed    int64
	Rejected  int64
	Panics    int64
}

// Pool is a named, bounded worker pool.
type Pool struct {
	name string
	pool *ants.Pool

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
	panics    atomic.Int64

	closed   atomic.Bool
	closedMu sync.Mutex
}

// New creates a pool.
func New(name string, cfg Config) (*Pool, error) {
	if cfg.Size <= 0 {
		cfg.Size = 1
	}
	if cfg.ExpiryDuration <= 0 {
		cfg.ExpiryDuration = 10 * time.Second
	}

	p := &Pool{name: name}
	pool, err := ants.NewPool(cfg.Size,
		ants.WithExpiryDuration(cfg.ExpiryDuration),
		ants.WithNonblocking(cfg.Nonblocking),
		ants.WithMaxBlockingTasks(cfg.Queue),
		ants.WithPanicHandler(func(r any) {
			logger.Error("worker panic recovered in pool %s: %v", name, r)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create pool %s: %w", name, err)
	}
	p.pool = pool

	logger.Debug("Worker pool %s created (size=%d, queue=%d, nonblocking=%v)",
		name, cfg.Size, cfg.Queue, cfg.Nonblocking)
	return p, nil
}

// Name returns the pool name.
func (p *Pool) Name() string {
	return p.name
}

// Submit runs task on a worker without waiting for it to finish.
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrClosed
	}

	p.submitted.Add(1)
	err := p.pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				p.panics.Add(1)
				p.failed.Add(1)
				panic(r)
			}
			p.completed.Add(1)
		}()
		task()
	})
	if err != nil {
		return p.submitErr(err)
	}
	return nil
}

// Do runs fn on a worker and waits for its result. If ctx ends before a
// worker picks the task up, fn is never called and ctx.Err() is returned.
// A panic in fn is returned as an error.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	p.submitted.Add(1)
	err := p.pool.Submit(func() {
		if err := ctx.Err(); err != nil {
			p.failed.Add(1)
			done <- err
			return
		}
		defer func() {
			if r := recover(); r != nil {
				p.panics.Add(1)
				p.failed.Add(1)
				done <- fmt.Errorf("pool %s: task panicked: %v", p.name, r)
			}
		}()
		err := fn(ctx)
		if err != nil {
			p.failed.Add(1)
		} else {
			p.completed.Add(1)
		}
		done <- err
	})
	if err != nil {
		return p.submitErr(err)
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Name:      p.name,
		Capacity:  p.pool.Cap(),
		Running:   p.pool.Running(),
		Waiting:   p.pool.Waiting(),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
		Panics:    p.panics.Load(),
	}
}

// Release stops the pool. Running tasks finish; further submissions fail
// with ErrClosed.
func (p *Pool) Release() {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	if p.closed.Load() {
		return
	}
	p.closed.Store(true)
	p.pool.Release()
	logger.Debug("Worker pool %s released", p.name)
}

func (p *Pool) submitErr(err error) error {
	switch {
	case errors.Is(err, ants.ErrPoolOverload):
		p.rejected.Add(1)
		return fmt.Errorf("pool %s: %w", p.name, ErrOverloaded)
	case errors.Is(err, ants.ErrPoolClosed):
		return ErrClosed
	default:
		p.failed.Add(1)
		return fmt.Errorf("pool %s: %w", p.name, err)
	}
}
