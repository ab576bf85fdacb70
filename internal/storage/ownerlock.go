package storage

import "sync"

// OwnerLocks serialises writers per owner. Locks are created on demand and
// never removed; the number of owners is small.
type OwnerLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Lock acquires the owner's lock and returns its release function.
func (l *OwnerLocks) Lock(ownerID string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[ownerID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[ownerID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
