// Package worker runs CPU-bound work (encryption) on a bounded goroutine pool
// so callers on latency-sensitive paths only wait, never compute.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"
)

// DefaultSize is the pool size used when NewPool is given a non-positive size.
const DefaultSize = 8

// submitRetry is how long Do waits before resubmitting to a full pool.
const submitRetry = time.Millisecond

// Pool is a bounded pool of worker goroutines.
//
// Thread-safety: Pool is safe for concurrent use.
type Pool struct {
	pool *ants.Pool
}

// NewPool creates a pool with the given number of workers.
func NewPool(size int) (*Pool, error) {
	if size <= 0 {
		size = DefaultSize
	}
	p, err := ants.NewPool(size,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(v any) {
			slog.Error("worker panic escaped task", "panic", v)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &Pool{pool: p}, nil
}

// Release stops the pool, waiting up to timeout for running tasks.
func (p *Pool) Release(timeout time.Duration) error {
	if p == nil || p.pool == nil {
		return nil
	}
	return p.pool.ReleaseTimeout(timeout)
}

// Running returns the number of tasks currently executing.
func (p *Pool) Running() int {
	if p == nil || p.pool == nil {
		return 0
	}
	return p.pool.Running()
}

type result[T any] struct {
	val T
	err error
}

// Do runs fn on the pool and waits for its result or for ctx to end.
//
// A nil pool runs fn inline. If ctx ends first, Do returns ctx.Err() and the
// task's eventual result is discarded. While the pool is full Do keeps
// resubmitting until a worker frees up or ctx ends. A panic inside fn is returned as an
// error rather than crashing the worker.
func Do[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if p == nil || p.pool == nil {
		return fn()
	}

	// Buffered so an abandoned task never blocks on send.
	done := make(chan result[T], 1)
	task := func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result[T]{err: fmt.Errorf("worker task panicked: %v", r)}
			}
		}()
		v, err := fn()
		done <- result[T]{val: v, err: err}
	}
	if err := submit(ctx, p.pool, task); err != nil {
		return zero, err
	}

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func submit(ctx context.Context, pool *ants.Pool, task func()) error {
	for {
		err := pool.Submit(task)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ants.ErrPoolOverload) {
			return fmt.Errorf("submit worker task: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(submitRetry):
		}
	}
}
