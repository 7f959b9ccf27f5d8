// Package worker provides a fixed-size pool that bounds how many labeling
// requests run at once.
package worker

import (
	"context"
	"errors"
	"sync"
)

// DefaultSize is the number of workers used when none is configured.
const DefaultSize = 4

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("worker pool closed")

type task struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

// Pool runs submitted functions on a fixed set of goroutines.
type Pool struct {
	tasks chan task
	quit  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

// NewPool starts a pool with size workers (DefaultSize if size <= 0).
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	p := &Pool{
		tasks: make(chan task),
		quit:  make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run()
		}()
	}
	return p
}

func (p *Pool) run() {
	for {
		select {
		case t := <-p.tasks:
			if err := t.ctx.Err(); err != nil {
				t.done <- err
				continue
			}
			t.done <- t.fn(t.ctx)
		case <-p.quit:
			return
		}
	}
}

// Submit runs fn on a pool worker and returns its error. It blocks until a
// worker is free and fn has finished, or until ctx is done while waiting for
// a worker.
func (p *Pool) Submit(ctx context.Context, fn func(context.Context) error) error {
	t := task{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case p.tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.quit:
		return ErrClosed
	}
	return <-t.done
}

// Close stops the workers after in-flight tasks finish.
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.quit)
	})
	p.wg.Wait()
}
