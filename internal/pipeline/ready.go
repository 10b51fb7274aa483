package pipeline

import (
	"context"
	"sync"
)

// Readiness is a one-shot completion signal for the slow background
// initialization of the external query subsystem. It is set exactly once and
// observed by any number of waiters; a captured initialization failure is
// replayed to every waiter rather than retried transparently.
type Readiness struct {
	done chan struct{}
	once sync.Once
	err  error
}

// NewReadiness returns an unsignalled readiness gate.
func NewReadiness() *Readiness {
	return &Readiness{done: make(chan struct{})}
}

// Start runs init on its own goroutine and completes the gate with its
// result. Call at most once.
func (r *Readiness) Start(init func() error) {
	go func() {
		r.Complete(init())
	}()
}

// Complete signals the gate with the initialization result. Only the first
// call has any effect.
func (r *Readiness) Complete(err error) {
	r.once.Do(func() {
		r.err = err
		close(r.done)
	})
}

// Wait blocks until the gate completes or the context is cancelled. It
// returns the captured initialization error, if any, to every caller.
func (r *Readiness) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready reports whether the gate has completed, without blocking.
func (r *Readiness) Ready() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// QuerySubsystem is the external knowledge base contract: a slow Start, an
// asynchronous readiness signal, and queries that may only run once ready.
type QuerySubsystem interface {
	Start()
	Readiness() *Readiness
	Query(ctx context.Context, query string) (string, error)
}
