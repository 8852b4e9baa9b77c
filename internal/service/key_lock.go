package service

import (
	"sync"

	"github.com/GTDGit/gtd_storefront/internal/models"
)

// keyLocks serializes operations per line key while letting different keys
// proceed concurrently. Entries are dropped once no holder or waiter remains.
type keyLocks struct {
	mu    sync.Mutex
	locks map[models.LineKey]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[models.LineKey]*keyLock)}
}

// Lock blocks until key is free and returns its unlock function.
func (k *keyLocks) Lock(key models.LineKey) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
