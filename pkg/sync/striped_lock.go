// Package sync provides keyed locking with a bounded number of mutexes.
package sync

import (
	"fmt"
	base "sync"
)

const replicasPerStripe = 200

// StripedLock consistently maps an unbounded key space, such as buyer
// addresses, onto a fixed set of mutexes. Keys that share a stripe contend
// with each other, but memory use stays constant.
type StripedLock struct {
	locks []base.Mutex
	ring  *ring
}

// NewStripedLock returns a StripedLock with the given number of stripes.
func NewStripedLock(stripes uint) *StripedLock {
	if stripes == 0 {
		stripes = 1
	}

	entries := make(map[string]int, stripes)
	for i := 0; i < int(stripes); i++ {
		entries[fmt.Sprintf("lock%d", i)] = i
	}

	return &StripedLock{
		locks: make([]base.Mutex, stripes),
		ring:  newRing(entries, replicasPerStripe),
	}
}

// Get returns the mutex for key.
func (l *StripedLock) Get(key []byte) *base.Mutex {
	return &l.locks[l.ring.stripe(key)]
}

// Lock locks the mutex for key and returns its unlock function.
func (l *StripedLock) Lock(key []byte) func() {
	mu := l.Get(key)
	mu.Lock()
	return mu.Unlock
}
