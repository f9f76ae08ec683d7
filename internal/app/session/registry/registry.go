// Package registry provides a thread-safe registry of open sessions.
package registry

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("session not found")
	ErrDuplicate = errors.New("session id already registered")
)

// Registry manages items keyed by session ID with thread-safe access.
type Registry[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

// New creates a new registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{
		items: make(map[string]T),
	}
}

// NewID generates a new session ID.
func NewID() string {
	return uuid.New().String()
}

// Add registers item under id.
func (r *Registry[T]) Add(id string, item T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; ok {
		return errors.Wrapf(ErrDuplicate, "id %s", id)
	}
	r.items[id] = item
	return nil
}

// Get retrieves an item by ID.
func (r *Registry[T]) Get(id string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return item, nil
}

// Remove unregisters an item and returns it.
func (r *Registry[T]) Remove(id string) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	delete(r.items, id)
	return item, nil
}

// RemoveAll unregisters every item and returns them.
func (r *Registry[T]) RemoveAll() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]T, 0, len(r.items))
	for _, item := range r.items {
		result = append(result, item)
	}
	r.items = make(map[string]T)
	return result
}

// All returns all items.
func (r *Registry[T]) All() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]T, 0, len(r.items))
	for _, item := range r.items {
		result = append(result, item)
	}
	return result
}

// Count returns the number of items.
func (r *Registry[T]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
