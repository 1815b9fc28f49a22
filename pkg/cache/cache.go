// Package cache provides TTL-bounded answer caches keyed by
// (name, type, class).
package cache

import (
	"fmt"
	"io"
	"time"

	"github.com/nocta/stubres/pkg/dnsutils"
)

// Key uniquely identifies a cached resolution.
type Key struct {
	// Name is the canonical (lowercase, fully qualified) query name.
	Name   string
	Qtype  uint16
	Qclass uint16
}

// NewKey builds a Key, canonicalizing name.
func NewKey(name string, qtype, qclass uint16) Key {
	return Key{
		Name:   dnsutils.CanonicalName(name),
		Qtype:  qtype,
		Qclass: qclass,
	}
}

// Pack returns a compact binary form of the key for use by backends
// that need a string key (redis, singleflight).
func (k Key) Pack() string {
	buf := make([]byte, 0, len(k.Name)+4)
	buf = append(buf, k.Name...)
	buf = append(buf, byte(k.Qtype>>8), byte(k.Qtype))
	buf = append(buf, byte(k.Qclass>>8), byte(k.Qclass))
	return string(buf)
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Name,
		dnsutils.QtypeToString(k.Qtype), dnsutils.QclassToString(k.Qclass))
}

// Expirable is implemented by cached values. A value is live while
// now < ExpiresAt().
type Expirable interface {
	ExpiresAt() time.Time
}

// Cache is the contract shared by the expiring and the bounded LRU
// caches. All methods are safe for concurrent use.
type Cache[V Expirable] interface {
	// Get returns the live value for k. Expired entries are removed
	// as a side effect and reported as a miss.
	Get(k Key) (v V, ok bool)

	// Put stores or replaces the entry for k.
	Put(k Key, v V)

	// Remove drops the entry for k, if any.
	Remove(k Key)

	// Flush drops all entries.
	Flush()

	Len() int

	io.Closer
}
