// Package observable provides a single-slot broadcast value.
//
// A Cell holds exactly one value. Every Store replaces it and wakes all
// waiters at once, so a subscriber always catches up to the newest value and
// never sees a partially written one. Intermediate values may be skipped by
// slow subscribers.
package observable

import (
	"context"
	"sync"
)

// Observable is the read side of a Cell.
type Observable[T any] interface {
	// Load returns the current value.
	Load() T
	// Snapshot returns the current value and a channel that is closed on the next Store.
	Snapshot() (T, <-chan struct{})
	// Subscribe delivers the current value and every later one until ctx is done.
	Subscribe(ctx context.Context) <-chan T
}

var _ Observable[int] = (*Cell[int])(nil)

// Cell is a concurrency-safe value with change notification.
type Cell[T any] struct {
	mu      sync.RWMutex
	value   T
	version uint64
	changed chan struct{}
}

// NewCell creates a Cell holding initial.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{
		value:   initial,
		changed: make(chan struct{}),
	}
}

// Load returns the current value.
func (c *Cell[T]) Load() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Version returns how many times Store has been called.
func (c *Cell[T]) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Store replaces the value and wakes every waiter.
func (c *Cell[T]) Store(v T) {
	c.mu.Lock()
	c.value = v
	c.version++
	closed := c.changed
	c.changed = make(chan struct{})
	c.mu.Unlock()
	close(closed)
}

// Snapshot returns the current value together with a channel that is closed
// as soon as the value is replaced.
func (c *Cell[T]) Snapshot() (T, <-chan struct{}) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.changed
}

// Subscribe starts a goroutine that sends the current value and then each
// newer value on the returned channel. The channel is closed once ctx is done.
func (c *Cell[T]) Subscribe(ctx context.Context) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for {
			value, changed := c.Snapshot()
			select {
			case out <- value:
			case <-ctx.Done():
				return
			}
			select {
			case <-changed:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Watch calls fn with the latest values of a and b every time either changes,
// starting with their current values. It returns when ctx is done.
func Watch[A, B any](ctx context.Context, a Observable[A], b Observable[B], fn func(A, B)) {
	for {
		va, changedA := a.Snapshot()
		vb, changedB := b.Snapshot()
		fn(va, vb)
		select {
		case <-changedA:
		case <-changedB:
		case <-ctx.Done():
			return
		}
	}
}
