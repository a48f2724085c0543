package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
)

var (
	// ErrDispatcherClosed is returned by Do after Close.
	ErrDispatcherClosed = errors.New("dispatcher closed")
	// ErrJobPanicked wraps a panic recovered from a job.
	ErrJobPanicked = errors.New("job panicked")
)

// Dispatcher runs generation jobs on a bounded set of goroutines so event
// handlers never run a model call inline.
type Dispatcher struct {
	mu     sync.RWMutex
	closed bool
	slots  chan struct{}
	p      *pool.Pool
}

// NewDispatcher allows at most workers jobs in flight. workers < 1 is
// treated as 1.
func NewDispatcher(workers int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		slots: make(chan struct{}, workers),
		p:     pool.New().WithMaxGoroutines(workers),
	}
}

// Do waits for a free worker, runs fn on it and waits for the result.
// If ctx ends while Do is waiting for a worker, fn never runs. If it ends
// while fn runs, Do returns ctx.Err() and fn's result is discarded once it
// finishes. A panic in fn is returned wrapped in ErrJobPanicked.
func (d *Dispatcher) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case d.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		<-d.slots
		return ErrDispatcherClosed
	}
	done := make(chan error, 1)
	d.p.Go(func() {
		defer func() { <-d.slots }()
		if err := ctx.Err(); err != nil {
			done <- err
			return
		}
		var pc panics.Catcher
		var err error
		pc.Try(func() { err = fn(ctx) })
		if r := pc.Recovered(); r != nil {
			err = fmt.Errorf("%w: %w", ErrJobPanicked, r.AsError())
		}
		done <- err
	})
	d.mu.RUnlock()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close waits for queued jobs and rejects new ones.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()
	d.p.Wait()
}
