// Package tasks provides a runner for detached background work.
// This is part of the platform layer and contains no business logic.
package tasks

import (
	"context"
	"fmt"

	"callops_backend/platform/logger"
)

type taskError struct {
	name string
	err  error
}

// Runner executes fire-and-forget tasks. Tasks are never awaited by the
// caller, never cancelled, and never retried; failures flow into an isolated
// channel drained by a single logging goroutine so they cannot reach the
// request path.
type Runner struct {
	errs chan taskError
	log  *logger.Logger
}

// NewRunner creates a Runner and starts its error drain.
func NewRunner(log *logger.Logger) *Runner {
	r := &Runner{
		errs: make(chan taskError, 64),
		log:  log,
	}
	go r.drain()
	return r
}

func (r *Runner) drain() {
	for te := range r.errs {
		if r.log != nil {
			r.log.TaskError(te.name, te.err)
		}
	}
}

// Go runs fn on its own goroutine, detached from ctx cancellation.
// Panics are recovered and reported as task errors.
func (r *Runner) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	detached := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.report(name, fmt.Errorf("panic: %v", rec))
			}
		}()
		if err := fn(detached); err != nil {
			r.report(name, err)
		}
	}()
}

func (r *Runner) report(name string, err error) {
	select {
	case r.errs <- taskError{name: name, err: err}:
	default:
		// Channel full: log directly rather than blocking a task goroutine.
		if r.log != nil {
			r.log.TaskError(name, err)
		}
	}
}
