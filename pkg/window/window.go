// Package window provides a fixed-capacity FIFO buffer of recent observations.
package window

import (
	"fmt"
	"sync"
)

// RollingWindow keeps the most recent values up to a fixed capacity.
// Writers and readers may run on different goroutines.
type RollingWindow[T any] struct {
	values   []T
	capacity int
	mu       sync.RWMutex
}

// New creates a window holding at most capacity values
func New[T any](capacity int) (*RollingWindow[T], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("window capacity must be >= 1, got %d", capacity)
	}
	return &RollingWindow[T]{
		values:   make([]T, 0, capacity),
		capacity: capacity,
	}, nil
}

// Add appends v, evicting the oldest value once capacity is exceeded
func (w *RollingWindow[T]) Add(v T) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.values = append(w.values, v)
	if len(w.values) > w.capacity {
		// shift in place so the backing array does not grow
		copy(w.values, w.values[1:])
		w.values = w.values[:w.capacity]
	}
}

// Values returns a copy of the current contents, oldest first
func (w *RollingWindow[T]) Values() []T {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]T, len(w.values))
	copy(out, w.values)
	return out
}

func (w *RollingWindow[T]) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.values)
}

func (w *RollingWindow[T]) Cap() int {
	return w.capacity
}
