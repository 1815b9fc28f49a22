package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

const defaultCleanerInterval = time.Minute

// ExpiringCache is an unbounded cache whose entries become invisible
// once their expiration passes. A background cleaner removes dead
// entries that are never looked up again, so memory does not grow
// without bound.
type ExpiringCache[V Expirable] struct {
	closed    uint32
	closeCh   chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	entries map[Key]V

	metrics *Metrics
}

// NewExpiringCache creates an ExpiringCache. cleanerInterval <= 0
// disables the background cleaner; expired entries are then removed
// only when hit by Get. metrics may be nil.
func NewExpiringCache[V Expirable](cleanerInterval time.Duration, metrics *Metrics) *ExpiringCache[V] {
	c := &ExpiringCache[V]{
		closeCh: make(chan struct{}),
		entries: make(map[Key]V),
		metrics: metrics,
	}
	if cleanerInterval > 0 {
		go c.startCleaner(cleanerInterval)
	}
	return c
}

var _ Cache[Expirable] = (*ExpiringCache[Expirable])(nil)

func (c *ExpiringCache[V]) Get(k Key) (v V, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok = c.entries[k]
	if !ok {
		c.metrics.miss()
		var zero V
		return zero, false
	}
	if !time.Now().Before(v.ExpiresAt()) {
		delete(c.entries, k)
		c.metrics.miss()
		var zero V
		return zero, false
	}
	c.metrics.hit()
	return v, true
}

func (c *ExpiringCache[V]) Put(k Key, v V) {
	c.mu.Lock()
	c.entries[k] = v
	c.mu.Unlock()
}

func (c *ExpiringCache[V]) Remove(k Key) {
	c.mu.Lock()
	delete(c.entries, k)
	c.mu.Unlock()
}

func (c *ExpiringCache[V]) Flush() {
	c.mu.Lock()
	c.entries = make(map[Key]V)
	c.mu.Unlock()
}

func (c *ExpiringCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the background cleaner. The cache remains usable.
func (c *ExpiringCache[V]) Close() error {
	if atomic.CompareAndSwapUint32(&c.closed, 0, 1) {
		c.closeOnce.Do(func() { close(c.closeCh) })
	}
	return nil
}

func (c *ExpiringCache[V]) startCleaner(interval time.Duration) {
	if interval <= 0 {
		interval = defaultCleanerInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closeCh:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *ExpiringCache[V]) removeExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range c.entries {
		if !now.Before(v.ExpiresAt()) {
			delete(c.entries, k)
		}
	}
}
