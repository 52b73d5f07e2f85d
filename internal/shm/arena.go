package shm

import "sort"

const arenaAlign = 8

// Arena hands out non-overlapping byte ranges from one fixed-capacity
// buffer. Freed ranges go onto an offset-ordered free list and adjacent
// blocks are coalesced, so the full capacity is reusable after teardown.
//
// The arena holds no per-region metadata and is not safe for concurrent
// use; Manager serializes access under its table lock.
type Arena struct {
	buf  []byte
	free []freeBlock // sorted by offset, never adjacent
	used int
}

type freeBlock struct {
	off  int
	size int
}

func alignUp(n int) int {
	return (n + arenaAlign - 1) &^ (arenaAlign - 1)
}

// NewArena creates an arena with the given capacity in bytes.
func NewArena(capacity int) *Arena {
	if capacity <= 0 {
		capacity = arenaAlign
	}
	capacity = alignUp(capacity)
	return &Arena{
		buf:  make([]byte, capacity),
		free: []freeBlock{{off: 0, size: capacity}},
	}
}

// Reserve returns an aligned byte range of at least size bytes, first-fit.
// The returned slice aliases the arena buffer and stays valid until the
// range is released.
func (a *Arena) Reserve(size int) (off int, data []byte, err error) {
	if size <= 0 {
		return 0, nil, ErrInvalidArgument
	}
	need := alignUp(size)
	for i, blk := range a.free {
		if blk.size < need {
			continue
		}
		off = blk.off
		if blk.size == need {
			a.free = append(a.free[:i], a.free[i+1:]...)
		} else {
			a.free[i].off += need
			a.free[i].size -= need
		}
		a.used += need
		return off, a.buf[off : off+size : off+need], nil
	}
	return 0, nil, ErrResourceExhausted
}

// Release returns the range at off back to the free list and coalesces it
// with adjacent free blocks. size must be the size passed to Reserve.
func (a *Arena) Release(off, size int) {
	if size <= 0 {
		return
	}
	need := alignUp(size)
	a.used -= need

	i := sort.Search(len(a.free), func(i int) bool { return a.free[i].off > off })
	a.free = append(a.free, freeBlock{})
	copy(a.free[i+1:], a.free[i:])
	a.free[i] = freeBlock{off: off, size: need}

	// Merge with the block after, then the block before.
	if i+1 < len(a.free) && a.free[i].off+a.free[i].size == a.free[i+1].off {
		a.free[i].size += a.free[i+1].size
		a.free = append(a.free[:i+1], a.free[i+2:]...)
	}
	if i > 0 && a.free[i-1].off+a.free[i-1].size == a.free[i].off {
		a.free[i-1].size += a.free[i].size
		a.free = append(a.free[:i], a.free[i+1:]...)
	}
}

// Used returns the number of bytes currently reserved, including
// alignment padding.
func (a *Arena) Used() int {
	return a.used
}

// Capacity returns the total arena size in bytes.
func (a *Arena) Capacity() int {
	return len(a.buf)
}
