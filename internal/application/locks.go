package application

import "sync"

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock blocks until the key is held and returns the matching unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// admissionLocks serialises admission decisions. Callers always take the
// user lock before the resource lock.
type admissionLocks struct {
	users     *keyedMutex
	resources *keyedMutex
}

func newAdmissionLocks() *admissionLocks {
	return &admissionLocks{users: newKeyedMutex(), resources: newKeyedMutex()}
}

func (a *admissionLocks) lock(userID, resourceID string) func() {
	unlockUser := a.users.Lock(userID)
	unlockResource := a.resources.Lock(resourceID)
	return func() {
		unlockResource()
		unlockUser()
	}
}
