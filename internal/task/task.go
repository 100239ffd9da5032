// Package task runs detached work whose result may be joined later, or never.
package task

import (
	"context"
	"fmt"
)

// Task is a handle to work running in its own goroutine
type Task struct {
	done chan struct{}
	err  error
}

// Go runs fn in a new goroutine. A panic in fn is recovered and reported as
// the task's error.
func Go(fn func() error) *Task {
	t := &Task{done: make(chan struct{})}

	go func() {
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				t.err = fmt.Errorf("task panicked: %v", r)
			}
		}()

		t.err = fn()
	}()

	return t
}

// Done returns a channel closed when the task completes
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Finished reports whether the task has completed
func (t *Task) Finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Err returns the task's error. It is only meaningful once Done is closed.
func (t *Task) Err() error {
	if !t.Finished() {
		return nil
	}

	return t.err
}

// Wait blocks until the task completes or ctx is done. Abandoning the wait
// does not stop the task.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Then runs fn with the task's error once it completes and returns a task for
// the continuation.
func (t *Task) Then(fn func(error) error) *Task {
	return Go(func() error {
		<-t.done
		return fn(t.err)
	})
}
