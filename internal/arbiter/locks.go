package arbiter

import "sync"

// keyedMutex serializes claims per assignment. Entries are reference
// counted so idle assignments do not accumulate locks.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*lockRef
}

type lockRef struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[int64]*lockRef)}
}

func (k *keyedMutex) lock(key int64) {
	k.mu.Lock()
	ref, ok := k.locks[key]
	if !ok {
		ref = &lockRef{}
		k.locks[key] = ref
	}
	ref.refs++
	k.mu.Unlock()

	ref.Lock()
}

func (k *keyedMutex) unlock(key int64) {
	k.mu.Lock()
	ref := k.locks[key]
	ref.refs--
	if ref.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()

	ref.Unlock()
}
