// Package concurrent provides a dhash table that is safe for concurrent use.
package concurrent

import (
	"sync"

	"github.com/theflywheel/dhash"
)

// Table guards a dhash.Table with a read/write mutex. Lookups share the read
// lock; Insert and Remove take the write lock.
type Table[K, V any] struct {
	mu sync.RWMutex
	t  *dhash.Table[K, V]
}

// Entry is a key-value pair copied out of a table.
type Entry[K, V any] struct {
	Key   K
	Value V
}

// New creates a concurrent table. See dhash.New for the arguments.
func New[K, V any](hasher dhash.Hasher[K], initialCapacity int, maxLoadFactor float64, opts ...dhash.Option) (*Table[K, V], error) {
	t, err := dhash.New[K, V](hasher, initialCapacity, maxLoadFactor, opts...)
	if err != nil {
		return nil, err
	}
	return Wrap(t), nil
}

// Wrap takes ownership of t. The caller must not use t directly afterwards.
func Wrap[K, V any](t *dhash.Table[K, V]) *Table[K, V] {
	return &Table[K, V]{t: t}
}

// Insert adds or updates a key-value pair.
func (c *Table[K, V]) Insert(key K, value V) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t.Insert(key, value)
}

// Get returns the value stored for key.
func (c *Table[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t.Get(key)
}

// Contains reports whether key is present.
func (c *Table[K, V]) Contains(key K) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t.Contains(key)
}

// Remove deletes key and returns it as it was stored.
func (c *Table[K, V]) Remove(key K) (K, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t.Remove(key)
}

// Len returns the number of stored pairs.
func (c *Table[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t.Len()
}

// Stats returns the occupancy of the wrapped table.
func (c *Table[K, V]) Stats() dhash.Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t.Stats()
}

// String renders the wrapped table.
func (c *Table[K, V]) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t.String()
}

// Range calls fn for every pair in slot order until fn returns false. The
// read lock is held throughout, so fn must not call Insert or Remove.
func (c *Table[K, V]) Range(fn func(key K, value V) bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, v := range c.t.Entries() {
		if !fn(k, v) {
			return
		}
	}
}

// Snapshot copies all pairs out of the table.
func (c *Table[K, V]) Snapshot() []Entry[K, V] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entries := make([]Entry[K, V], 0, c.t.Len())
	for k, v := range c.t.Entries() {
		entries = append(entries, Entry[K, V]{Key: k, Value: v})
	}
	return entries
}
