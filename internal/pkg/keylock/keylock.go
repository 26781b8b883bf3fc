package keylock

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

// KeyLock hands out at most one holder per key at a time.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

func New() *KeyLock {
	return &KeyLock{locks: make(map[string]*entry)}
}

// TryLock acquires key without waiting. The returned release func must be called
// exactly once when ok is true.
func (k *KeyLock) TryLock(key string) (release func(), ok bool) {
	k.mu.Lock()
	e, exists := k.locks[key]
	if !exists {
		e = &entry{sem: semaphore.NewWeighted(1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	if !e.sem.TryAcquire(1) {
		k.unref(key, e)
		return nil, false
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			k.unref(key, e)
		})
	}, true
}

func (k *KeyLock) unref(key string, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}
