// Package syncx provides extended synchronization primitives
package syncx

import "sync"

// Guard holds a value written by one goroutine and read by others. Every
// write bumps a revision so readers can tell whether anything changed.
type Guard[T any] struct {
	mu       sync.RWMutex
	value    T
	revision uint64
}

// NewGuard creates a guarded value.
func NewGuard[T any](initial T) *Guard[T] {
	return &Guard[T]{value: initial}
}

// Load returns a copy of the value together with its revision. Maps and
// slices inside T are shared, so writers replace them instead of mutating.
func (g *Guard[T]) Load() (T, uint64) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value, g.revision
}

// Update mutates the value in place under the write lock.
func (g *Guard[T]) Update(fn func(*T)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(&g.value)
	g.revision++
}
