package ledger

import (
	"sync"

	"github.com/google/uuid"
)

// Locks serializes settlement operations per transaction id. Invariant checks
// must be check-then-act atomic with respect to one transaction, so every
// payment, refund, and void call against the same id runs under the same
// mutex. The refund and void services share one instance with the ledger.
// Entries are reference-counted and removed when idle.
type Locks struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewLocks returns an empty per-transaction lock table.
func NewLocks() *Locks {
	return &Locks{entries: make(map[uuid.UUID]*lockEntry)}
}

// Lock acquires the per-transaction mutex and returns its release func.
func (l *Locks) Lock(id uuid.UUID) func() {
	l.mu.Lock()
	entry, ok := l.entries[id]
	if !ok {
		entry = &lockEntry{}
		l.entries[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, id)
		}
		l.mu.Unlock()
	}
}
