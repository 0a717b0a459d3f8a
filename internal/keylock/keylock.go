// Package keylock serializes work per string key inside one process.
package keylock

import (
	"context"
	"sync"
)

// Registry hands out one mutex per key. Entries are dropped once no caller
// holds or waits on them.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	sem  chan struct{}
	refs int
}

func New() *Registry {
	return &Registry{entries: map[string]*entry{}}
}

// Lock blocks until key is free or ctx ends. The returned func releases the
// key and is safe to call more than once.
func (r *Registry) Lock(ctx context.Context, key string) (func(), error) {
	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		r.entries[key] = e
	}
	e.refs++
	r.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		r.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			r.release(key, e)
		})
	}, nil
}

// Size reports how many keys are held or awaited.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) release(key string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(r.entries, key)
	}
}
