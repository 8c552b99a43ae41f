// Package worker runs blocking jobs on a bounded pool so that request
// handlers only wait for results instead of doing the work themselves.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrPanic is returned by Await when the job panicked
var ErrPanic = errors.New("worker: job panicked")

// Pool bounds the number of jobs running at the same time
type Pool struct {
	sem  *semaphore.Weighted
	size int
	wg   sync.WaitGroup
}

// NewPool creates a pool running at most size jobs at once.
// A non-positive size uses runtime.NumCPU().
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

// Size returns the maximum number of concurrent jobs
func (p *Pool) Size() int {
	return p.size
}

// Wait blocks until every submitted job has finished
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Task is the pending result of a submitted job
type Task[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Submit schedules fn on the pool and returns immediately.
// ctx only bounds the wait for a free slot: once fn has started it runs to
// completion, and its slot is released when it returns.
func Submit[T any](ctx context.Context, p *Pool, fn func() (T, error)) *Task[T] {
	t := &Task[T]{done: make(chan struct{})}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(t.done)

		if err := p.sem.Acquire(ctx, 1); err != nil {
			t.err = err
			return
		}
		defer p.sem.Release(1)

		t.value, t.err = run(fn)
	}()
	return t
}

// Await suspends until the job finishes or ctx is done, whichever is first.
// When ctx wins, ctx.Err() is returned and the job keeps running.
func (t *Task[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel closed when the job has finished
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Do submits fn and awaits its result. Nothing is submitted when ctx is
// already done.
func Do[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	return Submit(ctx, p, fn).Await(ctx)
}

func run[T any](fn func() (T, error)) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return fn()
}
