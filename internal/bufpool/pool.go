// Package bufpool provides a size-bucketed sync.Pool for the demo's
// connection read buffers, adapted from the byte-buffer pool used to
// absorb oversized I/O payloads in the reactor's teacher lineage.
package bufpool

import "sync"

var (
	small  = sync.Pool{New: func() any { return make([]byte, 0, 4*1024) }}
	medium = sync.Pool{New: func() any { return make([]byte, 0, 16*1024) }}
	large  = sync.Pool{New: func() any { return make([]byte, 0, 64*1024) }}
)

// Get returns a buffer with at least size capacity, bucketed to 4KB/16KB/
// 64KB to keep sync.Pool reuse effective across wildly different request
// sizes.
func Get(size int) []byte {
	switch {
	case size <= 4*1024:
		return small.Get().([]byte)[:0]
	case size <= 16*1024:
		return medium.Get().([]byte)[:0]
	case size <= 64*1024:
		return large.Get().([]byte)[:0]
	default:
		return make([]byte, 0, size)
	}
}

// Put returns buf to the pool matching its capacity. Buffers larger than
// the largest bucket are simply dropped.
func Put(buf []byte) {
	switch c := cap(buf); {
	case c <= 4*1024:
		small.Put(buf) //nolint:staticcheck
	case c <= 16*1024:
		medium.Put(buf) //nolint:staticcheck
	case c <= 64*1024:
		large.Put(buf) //nolint:staticcheck
	}
}
