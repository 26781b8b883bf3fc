package pubsub

import (
	"sort"
	"sync"
)

// Bus is a synchronous publish/subscribe channel for one event type.
// The zero value is ready to use.
type Bus[T any] struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[uint64]func(T)
}

// Subscribe registers handler and returns a function that removes it.
// Calling the returned function more than once is a no-op.
func (b *Bus[T]) Subscribe(handler func(T)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers == nil {
		b.handlers = make(map[uint64]func(T))
	}
	b.nextID++
	id := b.nextID
	b.handlers[id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers, id)
		})
	}
}

// Publish invokes every handler in subscription order on the caller's goroutine.
// Handlers may subscribe or unsubscribe while being called.
func (b *Bus[T]) Publish(event T) {
	for _, h := range b.snapshot() {
		h(event)
	}
}

func (b *Bus[T]) snapshot() []func(T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]uint64, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]func(T), 0, len(ids))
	for _, id := range ids {
		out = append(out, b.handlers[id])
	}
	return out
}
