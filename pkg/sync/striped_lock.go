package sync

import (
	"sort"
	base "sync"
)

const (
	hashEntriesPerLock = 200
)

// StripedLock is a partitioned locking mechanism that consistently maps a key
// space to a set of locks. This provides concurrent data access while also
// limiting the total memory footprint.
type StripedLock struct {
	locks    []base.RWMutex
	hashRing *ring
}

// NewStripedLock returns a new StripedLock with a static number of stripes.
func NewStripedLock(stripes uint) *StripedLock {
	if stripes == 0 {
		stripes = 1
	}

	return &StripedLock{
		locks:    make([]base.RWMutex, stripes),
		hashRing: newRing(int(stripes), hashEntriesPerLock),
	}
}

// Get gets the lock for a key
func (l *StripedLock) Get(key []byte) *base.RWMutex {
	return &l.locks[l.stripe(key)]
}

func (l *StripedLock) stripe(key []byte) int {
	return l.hashRing.stripe(key)
}

// Acquire locks the stripes of every key, exclusively for writes and shared
// for reads, and returns the function that releases them. A stripe requested
// both ways is held exclusively.
//
// Stripes are always taken in ascending index order, so two callers with
// overlapping key sets cannot deadlock.
func (l *StripedLock) Acquire(writes, reads [][]byte) (release func()) {
	exclusive := make(map[int]bool)
	for _, key := range reads {
		exclusive[l.stripe(key)] = false
	}
	for _, key := range writes {
		exclusive[l.stripe(key)] = true
	}

	stripes := make([]int, 0, len(exclusive))
	for stripe := range exclusive {
		stripes = append(stripes, stripe)
	}
	sort.Ints(stripes)

	for _, stripe := range stripes {
		if exclusive[stripe] {
			l.locks[stripe].Lock()
		} else {
			l.locks[stripe].RLock()
		}
	}

	return func() {
		for i := len(stripes) - 1; i >= 0; i-- {
			stripe := stripes[i]
			if exclusive[stripe] {
				l.locks[stripe].Unlock()
			} else {
				l.locks[stripe].RUnlock()
			}
		}
	}
}
