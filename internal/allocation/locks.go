package allocation

import "sync"

// identityLocks serializes deductions per identity inside one process.
// Entries are dropped once nobody holds or waits on them.
type identityLocks struct {
	mu   sync.Mutex
	held map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newIdentityLocks() *identityLocks {
	return &identityLocks{held: make(map[string]*lockEntry)}
}

func (l *identityLocks) lock(key string) func() {
	l.mu.Lock()
	entry, ok := l.held[key]
	if !ok {
		entry = &lockEntry{}
		l.held[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.held, key)
		}
		l.mu.Unlock()
	}
}
