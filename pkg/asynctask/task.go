// Package asynctask runs background writes whose outcome stays observable.
package asynctask

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Hook is called once when a task finishes.
type Hook func(name string, err error, elapsed time.Duration)

// Task is a running or finished background function.
type Task struct {
	name string
	done chan struct{}

	mu  sync.Mutex
	err error
}

// Go starts fn in a new goroutine. The function receives a context detached
// from ctx's cancellation so request teardown does not abort the write, but
// it keeps ctx's values.
func Go(ctx context.Context, name string, fn func(context.Context) error, hooks ...Hook) *Task {
	task := &Task{name: name, done: make(chan struct{})}
	runCtx := context.WithoutCancel(ctx)

	go func() {
		start := time.Now()
		err := run(runCtx, fn)

		task.mu.Lock()
		task.err = err
		task.mu.Unlock()
		close(task.done)

		for _, hook := range hooks {
			if hook != nil {
				hook(name, err, time.Since(start))
			}
		}
	}()

	return task
}

func run(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// Completed returns a finished task, useful when there is nothing to run.
func Completed(name string, err error) *Task {
	task := &Task{name: name, done: make(chan struct{}), err: err}
	close(task.done)
	return task
}

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// Done is closed when the task finishes.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the task error, or nil while it is still running.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Wait blocks until the task finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
