package service

import "context"

// Task is the pending result of a product operation queued on the service worker.
// Callers that do not care about the outcome can drop it.
type Task[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newTask[T any]() *Task[T] {
	return &Task[T]{done: make(chan struct{})}
}

func (t *Task[T]) complete(value T, err error) {
	t.value = value
	t.err = err
	close(t.done)
}

func (t *Task[T]) fail(err error) {
	var zero T
	t.complete(zero, err)
}

// Done is closed once the operation has finished.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the operation finishes or ctx is done.
// Giving up on the wait does not cancel the operation.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Err returns the operation error, or nil while it is still running.
func (t *Task[T]) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// CompletedTask returns a Task that has already finished with value and err.
func CompletedTask[T any](value T, err error) *Task[T] {
	t := newTask[T]()
	t.complete(value, err)
	return t
}
