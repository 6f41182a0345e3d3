package ledger

import (
	"sync"

	"github.com/emirpasic/gods/maps/linkedhashmap"

	"github.com/code-payments/code-escrow/pkg/solana"
)

// statusCache remembers the signatures of recently committed transactions so
// a replayed transaction is rejected. The oldest entries are evicted once the
// cache is full.
type statusCache struct {
	mu       sync.Mutex
	capacity int
	entries  *linkedhashmap.Map
}

func newStatusCache(capacity int) *statusCache {
	if capacity < 1 {
		capacity = 1
	}

	return &statusCache{
		capacity: capacity,
		entries:  linkedhashmap.New(),
	}
}

func (c *statusCache) contains(sig solana.Signature) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries.Get(sig)
	return ok
}

func (c *statusCache) add(sig solana.Signature) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries.Get(sig); ok {
		return
	}

	for c.entries.Size() >= c.capacity {
		it := c.entries.Iterator()
		if !it.First() {
			break
		}
		c.entries.Remove(it.Key())
	}

	c.entries.Put(sig, struct{}{})
}
