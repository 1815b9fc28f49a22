// Package netpoll waits for socket readiness with an absolute deadline.
//
// The process-wide backend is picked by platform capability at startup
// (poll(2) where available, otherwise select(2)) and can be swapped at
// runtime. Operations that already captured a backend reference are not
// affected by a swap.
package netpoll

import (
	"sync/atomic"
	"time"
)

// Event is a readiness event bit set.
type Event uint8

const (
	Readable Event = 1 << iota
	Writable
)

// Backend blocks until the file descriptor reports one of the wanted
// events or the absolute deadline passes. A deadline in the past fails
// immediately with os.ErrDeadlineExceeded.
type Backend interface {
	Name() string
	Wait(fd int, want Event, deadline time.Time) (got Event, err error)
}

var active atomic.Pointer[Backend]

// Active returns the process-wide backend, initializing the platform
// default on first use.
func Active() Backend {
	if p := active.Load(); p != nil {
		return *p
	}
	b := platformDefault()
	active.CompareAndSwap(nil, &b)
	return *active.Load()
}

// Set replaces the process-wide backend and returns the previous one.
// The swap is visible to operations started afterwards.
func Set(b Backend) Backend {
	prev := active.Swap(&b)
	if prev == nil {
		return platformDefault()
	}
	return *prev
}
