package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/nocta/stubres/pkg/list"
)

type kv[V Expirable] struct {
	key Key
	v   V
}

// LRUCache is a capacity-bounded cache with least-recently-used
// eviction. Both Get and Put refresh recency. There is no background
// cleaner: dead entries are dropped when hit by Get or when Put scans
// the cold end for room.
type LRUCache[V Expirable] struct {
	mu       sync.Mutex
	capacity int
	l        *list.List[kv[V]]
	elems    map[Key]*list.Elem[kv[V]]

	metrics *Metrics
}

// NewLRUCache creates an LRUCache holding at most capacity entries.
// metrics may be nil.
func NewLRUCache[V Expirable](capacity int, metrics *Metrics) *LRUCache[V] {
	if capacity <= 0 {
		panic(fmt.Sprintf("cache: invalid lru capacity: %d", capacity))
	}
	return &LRUCache[V]{
		capacity: capacity,
		l:        list.New[kv[V]](),
		elems:    make(map[Key]*list.Elem[kv[V]], capacity),
		metrics:  metrics,
	}
}

var _ Cache[Expirable] = (*LRUCache[Expirable])(nil)

func (c *LRUCache[V]) Get(k Key) (v V, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.elems[k]
	if !ok {
		c.metrics.miss()
		var zero V
		return zero, false
	}
	if !time.Now().Before(e.Value.v.ExpiresAt()) {
		c.removeElem(e)
		c.metrics.miss()
		var zero V
		return zero, false
	}

	c.l.MoveToBack(e)
	c.metrics.hit()
	return e.Value.v, true
}

func (c *LRUCache[V]) Put(k Key, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.elems[k]; ok {
		e.Value.v = v
		c.l.MoveToBack(e)
		return
	}

	if c.l.Len() >= c.capacity {
		// Walk from the cold end dropping entries that are already
		// dead; those do not count as evictions.
		now := time.Now()
		for e := c.l.Front(); e != nil && c.l.Len() >= c.capacity; {
			next := e.Next()
			if !now.Before(e.Value.v.ExpiresAt()) {
				c.removeElem(e)
			}
			e = next
		}

		// Still full: evict exactly one live entry, the coldest.
		if c.l.Len() >= c.capacity {
			c.removeElem(c.l.Front())
			c.metrics.eviction()
		}
	}

	c.elems[k] = c.l.PushBack(kv[V]{key: k, v: v})
}

func (c *LRUCache[V]) Remove(k Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.elems[k]; ok {
		c.removeElem(e)
	}
}

func (c *LRUCache[V]) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.l = list.New[kv[V]]()
	c.elems = make(map[Key]*list.Elem[kv[V]], c.capacity)
}

func (c *LRUCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.l.Len()
}

// Close implements Cache. The LRU cache owns no background work.
func (c *LRUCache[V]) Close() error {
	return nil
}

func (c *LRUCache[V]) removeElem(e *list.Elem[kv[V]]) {
	c.l.Remove(e)
	delete(c.elems, e.Value.key)
}
