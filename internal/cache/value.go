// Package cache provides a rate-limited cached value: an expensive
// query result that is only refreshed after a time-to-live elapses.
// It exists to keep slow enumerations (driver queries, subprocess
// spawns) from running once per consumer tick.
package cache

import (
	"sync"
	"time"
)

// Value holds one cached result together with its refresh deadline
type Value[T any] struct {
	ttl time.Duration

	mu          sync.Mutex
	value       T
	lastRefresh time.Time
	valid       bool
}

// NewValue creates a cached value with the given time-to-live
func NewValue[T any](ttl time.Duration) *Value[T] {
	return &Value[T]{ttl: ttl}
}

// Get returns the cached value when it is still fresh, otherwise calls
// fetch and stores the result. On fetch failure the previously held
// value is returned alongside the error and the refresh time is not
// advanced, so the next Get retries immediately instead of waiting out
// a full TTL.
func (v *Value[T]) Get(fetch func() (T, error)) (T, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.valid && time.Since(v.lastRefresh) < v.ttl {
		return v.value, nil
	}

	value, err := fetch()
	if err != nil {
		return v.value, err
	}

	v.value = value
	v.lastRefresh = time.Now()
	v.valid = true

	return v.value, nil
}

// Peek returns the held value without refreshing it
func (v *Value[T]) Peek() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.value, v.valid
}

// Invalidate forces the next Get to refresh
func (v *Value[T]) Invalidate() {
	v.mu.Lock()
	defer v.mu.Unlock()

	var zero T
	v.value = zero
	v.valid = false
}
