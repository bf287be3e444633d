// Package optimistic provides a keyed cache whose entries can be updated
// speculatively ahead of a remote write and rolled back if the write fails.
package optimistic

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Rollback describes a reverted mutation.
type Rollback struct {
	ID  string
	Key string
	Err error
}

type entry[T any] struct {
	value T
	stale bool
}

// Cache maps keys to values of type T. Keys are slash-separated so a whole
// family ("goals") can be invalidated at once. Safe for concurrent use.
type Cache[T any] struct {
	mu         sync.Mutex
	entries    map[string]*entry[T]
	onRollback func(Rollback)
}

// New creates an empty cache.
func New[T any]() *Cache[T] {
	return &Cache[T]{entries: make(map[string]*entry[T])}
}

// OnRollback registers fn to be called after each reverted mutation.
func (c *Cache[T]) OnRollback(fn func(Rollback)) {
	c.mu.Lock()
	c.onRollback = fn
	c.mu.Unlock()
}

// Get returns the value for key. fresh is false when the key is missing or
// has been invalidated; the (possibly stale) value is still returned.
func (c *Cache[T]) Get(key string) (value T, fresh bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return value, false
	}
	return e.value, !e.stale
}

// Set stores a fresh value.
func (c *Cache[T]) Set(key string, value T) {
	c.mu.Lock()
	c.entries[key] = &entry[T]{value: value}
	c.mu.Unlock()
}

// Update applies fn to the current value (the zero value when missing)
// without changing its freshness.
func (c *Cache[T]) Update(key string, fn func(T) T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry[T]{stale: true}
		c.entries[key] = e
	}
	e.value = fn(e.value)
}

// Invalidate marks key and every key below it ("key/...") stale.
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if k == key || strings.HasPrefix(k, key+"/") {
			e.stale = true
		}
	}
}

// Mutate applies apply to the cached value immediately, then calls send.
// If send fails the previous value is restored and the error returned.
// Either way the key is left stale so the next read refetches.
//
// apply must not modify its argument in place; the argument is the
// snapshot used for rollback.
func (c *Cache[T]) Mutate(ctx context.Context, key string, apply func(T) T, send func(context.Context) error) error {
	id := uuid.NewString()

	c.mu.Lock()
	prev, had := c.entries[key]
	var saved entry[T]
	if had {
		saved = *prev
	}
	c.entries[key] = &entry[T]{value: apply(saved.value), stale: saved.stale}
	c.mu.Unlock()

	err := send(ctx)

	c.mu.Lock()
	if err != nil {
		if had {
			restored := saved
			c.entries[key] = &restored
		} else {
			delete(c.entries, key)
		}
	}
	if e, ok := c.entries[key]; ok {
		e.stale = true
	}
	onRollback := c.onRollback
	c.mu.Unlock()

	if err != nil && onRollback != nil {
		onRollback(Rollback{ID: id, Key: key, Err: err})
	}
	return err
}
