// Package lock provides keyed mutual exclusion. The dispatcher holds one
// guard per game instance (keyed by its instance id) for the duration of
// an input apply plus its automated-turn loop, so two racing events can
// never mutate the same instance concurrently.
package lock

import (
	"sync"
)

// keyedMutex wraps a mutex with reference counting for cleanup.
type keyedMutex struct {
	mu       sync.Mutex
	refCount int
}

// KeyedLock provides an independent mutex per int64 key. Entries are
// freed once the last holder or waiter for a key releases it, so retired
// keys do not accumulate.
type KeyedLock struct {
	mu    sync.Mutex
	locks map[int64]*keyedMutex
	pool  sync.Pool
}

// New creates a KeyedLock.
func New() *KeyedLock {
	return &KeyedLock{
		locks: make(map[int64]*keyedMutex),
		pool: sync.Pool{
			New: func() any {
				return &keyedMutex{}
			},
		},
	}
}

// acquire retrieves or creates the mutex for key and counts the caller
// as a holder-or-waiter. Every acquire must be paired with a release.
func (kl *KeyedLock) acquire(key int64) *keyedMutex {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	l, ok := kl.locks[key]
	if !ok {
		l = kl.pool.Get().(*keyedMutex)
		l.refCount = 0
		kl.locks[key] = l
	}
	l.refCount++
	return l
}

// release drops one reference to key's mutex. When the caller was the
// last holder or waiter it unlinks the entry and reports that the caller
// now owns it exclusively and must return it to the pool.
func (kl *KeyedLock) release(key int64) (*keyedMutex, bool) {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	l := kl.locks[key]
	l.refCount--
	if l.refCount > 0 {
		return l, false
	}
	delete(kl.locks, key)
	return l, true
}

// Lock acquires the guard for key, blocking until it is free.
func (kl *KeyedLock) Lock(key int64) {
	kl.acquire(key).mu.Lock()
}

// Unlock releases the guard for key.
func (kl *KeyedLock) Unlock(key int64) {
	l, free := kl.release(key)
	l.mu.Unlock()
	if free {
		// refCount hit zero, so no other goroutine holds a reference:
		// the unlocked mutex can be recycled.
		kl.pool.Put(l)
	}
}

// TryLock attempts to acquire the guard without blocking.
func (kl *KeyedLock) TryLock(key int64) bool {
	if kl.acquire(key).mu.TryLock() {
		return true
	}
	// The failed attempt still took a reference; the current holder keeps
	// the entry alive, so this never frees it.
	if l, free := kl.release(key); free {
		kl.pool.Put(l)
	}
	return false
}

// WithLock runs fn while holding the guard for key.
func (kl *KeyedLock) WithLock(key int64, fn func() error) error {
	kl.Lock(key)
	defer kl.Unlock(key)
	return fn()
}

// IsLocked reports whether key's guard is currently held. Point-in-time
// only; the answer may change immediately after.
func (kl *KeyedLock) IsLocked(key int64) bool {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	l, ok := kl.locks[key]
	if !ok {
		return false
	}
	if l.mu.TryLock() {
		l.mu.Unlock()
		return false
	}
	return true
}

// entryCount reports how many keys currently hold an entry.
func (kl *KeyedLock) entryCount() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.locks)
}
