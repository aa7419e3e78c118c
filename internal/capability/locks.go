package capability

import (
	"slices"
	"sync"
)

// nameLocks provides per-name mutual exclusion around provider builds.
// Each name gets its own mutex, so first use of different providers builds
// concurrently while concurrent first use of the same provider builds once.
type nameLocks struct {
	mu    sync.Mutex             // Guards the locks map itself
	locks map[string]*sync.Mutex // Per-name mutexes
}

func newNameLocks() *nameLocks {
	return &nameLocks{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the mutex for name, creating it on first access.
func (n *nameLocks) Lock(name string) {
	n.mu.Lock()
	l, exists := n.locks[name]
	if !exists {
		l = &sync.Mutex{}
		n.locks[name] = l
	}
	n.mu.Unlock()

	// Acquire outside the map lock so other names are not blocked
	l.Lock()
}

// Unlock releases the mutex for name.
func (n *nameLocks) Unlock(name string) {
	n.mu.Lock()
	l, exists := n.locks[name]
	n.mu.Unlock()

	if exists {
		l.Unlock()
	}
}

// LockAll acquires the mutexes for all names in sorted order.
// Sorting is what keeps two overlapping LockAll calls from deadlocking.
func (n *nameLocks) LockAll(names []string) {
	for _, name := range sortedCopy(names) {
		n.Lock(name)
	}
}

// UnlockAll releases the mutexes for all names in reverse sorted order.
func (n *nameLocks) UnlockAll(names []string) {
	sorted := sortedCopy(names)
	for i := len(sorted) - 1; i >= 0; i-- {
		n.Unlock(sorted[i])
	}
}

func sortedCopy(names []string) []string {
	sorted := slices.Clone(names)
	slices.Sort(sorted)
	return sorted
}
