// Package observer provides an ordered subscriber registry with explicit
// unsubscribe by handle.
package observer

import (
	"sync"

	"echodesk/internal/ports"
)

// Registry is an ordered set of subscriber handlers. Handlers are invoked in
// registration order and removed by their handle, not by value identity.
type Registry[T any] struct {
	mu   sync.Mutex
	next int
	subs []registered[T]
}

type registered[T any] struct {
	id int
	fn T
}

// Add registers a handler and returns its unsubscribe handle.
func (r *Registry[T]) Add(fn T) ports.Unsubscribe {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	r.subs = append(r.subs, registered[T]{id: id, fn: fn})
	return func() { r.remove(id) }
}

func (r *Registry[T]) remove(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, sub := range r.subs {
		if sub.id == id {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			return
		}
	}
}

// Snapshot returns the current handlers in registration order.
func (r *Registry[T]) Snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	fns := make([]T, len(r.subs))
	for i, sub := range r.subs {
		fns[i] = sub.fn
	}
	return fns
}

// Len reports the number of registered handlers.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
