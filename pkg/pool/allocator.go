package pool

import (
	"fmt"
	"math/bits"
	"sync"
)

// allocator reuses byte buffers in power-of-2 size classes.
type allocator struct {
	pools []sync.Pool
}

const maxPoolBits = 17 // up to 128 KiB, enough for any DNS datagram

var defaultAllocator = newAllocator()

func newAllocator() *allocator {
	a := &allocator{pools: make([]sync.Pool, maxPoolBits+1)}
	for i := range a.pools {
		size := 1 << i
		a.pools[i].New = func() interface{} {
			return make([]byte, size)
		}
	}
	return a
}

// Buffer is a pooled byte buffer. Call Release when done with it.
type Buffer struct {
	b     []byte
	class int
}

func (b *Buffer) Bytes() []byte {
	return b.b
}

func (b *Buffer) Release() {
	defaultAllocator.release(b)
}

// GetBuf returns a pooled buffer whose Bytes() has length size.
func GetBuf(size int) *Buffer {
	if size <= 0 || size > 1<<maxPoolBits {
		panic(fmt.Sprintf("pool: invalid buffer size %d", size))
	}

	class := bits.Len(uint(size - 1))
	b := defaultAllocator.pools[class].Get().([]byte)
	return &Buffer{b: b[:size], class: class}
}

func (a *allocator) release(b *Buffer) {
	a.pools[b.class].Put(b.b[:cap(b.b)])
	b.b = nil
}
