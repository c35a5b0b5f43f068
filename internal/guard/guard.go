// Package guard serializes access to the single shared automation
// session behind the external collaborators. Requests may arrive
// concurrently, but the underlying browser profile is one stateful
// resource: mutating operations must run one at a time, in submission
// order.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

type task struct {
	label string
	fn    func(context.Context) error
	done  chan error
}

// Serial is a FIFO work queue with a single consumer goroutine. A
// task's failure is isolated from the tasks behind it but still
// reported to the original submitter.
type Serial struct {
	tasks  chan *task
	busy   atomic.Bool
	logger *slog.Logger
}

// New creates a guard. Run must be started before Do is called.
func New(logger *slog.Logger) *Serial {
	return &Serial{
		tasks:  make(chan *task, 128),
		logger: logger,
	}
}

// Run consumes tasks until the context is cancelled.
func (s *Serial) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-s.tasks:
			s.busy.Store(true)
			err := s.runTask(ctx, t)
			s.busy.Store(false)

			if err != nil {
				s.logger.Warn("serialized task failed", "task", t.label, "error", err)
			}
			t.done <- err
		}
	}
}

// runTask executes one task, converting a panic into an error so a
// broken task cannot take down the consumer loop.
func (s *Serial) runTask(ctx context.Context, t *task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", t.label, r)
		}
	}()
	return t.fn(ctx)
}

// Do appends fn to the queue and blocks until it has run, returning its
// error. If ctx ends before the task completes, Do returns the context
// error; the task itself may still execute.
func (s *Serial) Do(ctx context.Context, label string, fn func(context.Context) error) error {
	t := &task{label: label, fn: fn, done: make(chan error, 1)}

	select {
	case s.tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Busy reports whether a task is currently executing. Redundant with
// the queue for correctness, useful for status reporting.
func (s *Serial) Busy() bool {
	return s.busy.Load()
}
