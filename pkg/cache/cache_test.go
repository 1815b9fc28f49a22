package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/miekg/dns"
)

type testVal struct {
	exp time.Time
}

func (v *testVal) ExpiresAt() time.Time {
	return v.exp
}

func live() *testVal {
	return &testVal{exp: time.Now().Add(time.Minute)}
}

func dead() *testVal {
	return &testVal{exp: time.Now().Add(-time.Second)}
}

func key(i int) Key {
	return NewKey(fmt.Sprintf("example%d.com.", i), dns.TypeA, dns.ClassINET)
}

func Test_key(t *testing.T) {
	a := NewKey("WWW.Example.COM.", dns.TypeA, dns.ClassINET)
	b := NewKey("www.example.com.", dns.TypeA, dns.ClassINET)
	if a != b {
		t.Fatal("keys with case-varied names mismatched")
	}
	if a.Pack() != b.Pack() {
		t.Fatal("packed keys mismatched")
	}
	c := NewKey("www.example.com.", dns.TypeAAAA, dns.ClassINET)
	if a.Pack() == c.Pack() {
		t.Fatal("packed keys collided across qtypes")
	}
}

func Test_expiringCache(t *testing.T) {
	c := NewExpiringCache[*testVal](0, nil)
	defer c.Close()

	k := key(0)
	if _, ok := c.Get(k); ok {
		t.Fatal("got value from empty cache")
	}

	v := live()
	c.Put(k, v)
	got, ok := c.Get(k)
	if !ok || got != v {
		t.Fatal("cache kv mismatched")
	}

	c.Put(k, dead())
	if _, ok := c.Get(k); ok {
		t.Fatal("got expired value")
	}
	if c.Len() != 0 {
		t.Fatal("expired entry not removed by get")
	}

	c.Put(key(1), live())
	c.Put(key(2), live())
	c.Flush()
	if c.Len() != 0 {
		t.Fatal("flush left entries behind")
	}
}

func Test_expiringCache_cleaner(t *testing.T) {
	c := NewExpiringCache[*testVal](time.Millisecond*10, nil)
	defer c.Close()

	for i := 0; i < 64; i++ {
		c.Put(key(i), dead())
	}
	time.Sleep(time.Millisecond * 100)
	if c.Len() != 0 {
		t.Fatal()
	}
}

func Test_lruCache(t *testing.T) {
	c := NewLRUCache[*testVal](4, nil)

	k := key(0)
	v := live()
	c.Put(k, v)
	got, ok := c.Get(k)
	if !ok || got != v {
		t.Fatal("cache kv mismatched")
	}

	// Replacing an existing key must not grow the cache.
	c.Put(k, live())
	if c.Len() != 1 {
		t.Fatal("replace grew the cache")
	}

	c.Put(k, dead())
	if _, ok := c.Get(k); ok {
		t.Fatal("got expired value")
	}
}

func Test_lruCache_eviction(t *testing.T) {
	c := NewLRUCache[*testVal](2, nil)

	c.Put(key(1), live())
	c.Put(key(2), live())

	// Refresh key 1 so key 2 becomes the coldest.
	if _, ok := c.Get(key(1)); !ok {
		t.Fatal("missing key 1")
	}

	c.Put(key(3), live())
	if _, ok := c.Get(key(2)); ok {
		t.Fatal("coldest entry survived eviction")
	}
	if _, ok := c.Get(key(1)); !ok {
		t.Fatal("recently used entry was evicted")
	}
	if c.Len() != 2 {
		t.Fatal("cache overflow")
	}
}

func Test_lruCache_expiredNotEvicted(t *testing.T) {
	c := NewLRUCache[*testVal](2, nil)

	c.Put(key(1), dead())
	c.Put(key(2), live())

	// The dead cold entry makes room; the live one must survive.
	c.Put(key(3), live())
	if _, ok := c.Get(key(2)); !ok {
		t.Fatal("live entry evicted while a dead one held a slot")
	}
	if _, ok := c.Get(key(3)); !ok {
		t.Fatal("missing new entry")
	}
}

func Test_lruCache_race(t *testing.T) {
	c := NewLRUCache[*testVal](128, nil)

	wg := sync.WaitGroup{}
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 256; i++ {
				k := key(i)
				c.Put(k, live())
				_, _ = c.Get(k)
				if i%64 == 0 {
					c.Remove(k)
				}
			}
		}()
	}
	wg.Wait()

	if c.Len() > 128 {
		t.Fatal("cache overflow")
	}
}
