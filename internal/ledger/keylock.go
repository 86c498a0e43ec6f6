package ledger

import "sync"

// keyedMutex serialises critical sections per string key.  The ledger
// keys on (kind, resource, date) so that two bookings contending for
// the same resource-day run their conflict-check-then-lock sequence
// one at a time, while bookings for unrelated resources proceed in
// parallel.  Mutex entries are reference-counted and dropped once the
// last holder releases, so the map does not grow with the calendar.
type keyedMutex struct {
    mu    sync.Mutex
    locks map[string]*keyEntry
}

type keyEntry struct {
    mu   sync.Mutex
    refs int
}

func newKeyedMutex() *keyedMutex {
    return &keyedMutex{locks: make(map[string]*keyEntry)}
}

// lock acquires the mutex for key, creating it on first use.
func (k *keyedMutex) lock(key string) {
    k.mu.Lock()
    e, ok := k.locks[key]
    if !ok {
        e = &keyEntry{}
        k.locks[key] = e
    }
    e.refs++
    k.mu.Unlock()
    e.mu.Lock()
}

// unlock releases the mutex for key and drops the entry when no other
// goroutine is waiting on it.
func (k *keyedMutex) unlock(key string) {
    k.mu.Lock()
    e, ok := k.locks[key]
    if ok {
        e.refs--
        if e.refs == 0 {
            delete(k.locks, key)
        }
    }
    k.mu.Unlock()
    if ok {
        e.mu.Unlock()
    }
}

// lockAll acquires every key in the given sorted order and returns a
// release function.  Callers must pass keys already sorted so that two
// bookings touching the same set of resources always acquire in the
// same order and cannot deadlock.
func (k *keyedMutex) lockAll(keys []string) func() {
    for _, key := range keys {
        k.lock(key)
    }
    return func() {
        for i := len(keys) - 1; i >= 0; i-- {
            k.unlock(keys[i])
        }
    }
}
