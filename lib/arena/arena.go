package arena

import (
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"
)

// ErrAllocationFailure is returned when an allocation would exceed the byte budget of the arena.
var ErrAllocationFailure = errors.New("allocation failure")

const (
	// chunkSize is the size of the slabs small byte allocations are carved from
	chunkSize = 8 * 1024
	// largeAllocation is the size from which a byte allocation gets a dedicated slab
	largeAllocation = chunkSize / 4
)

// --------------------------------------------------------------------------
// Arena
// --------------------------------------------------------------------------

// Arena owns all allocations made while decoding one message.
// Releasing the arena releases the whole tree at once: every byte slab is zeroed,
// every object and slice allocated through NewObject and MakeSlice is reset to its zero value
// and the arena forgets about them. Strings from String are the exception: they only count
// against the budget, Release returns the budget but the string itself stays readable until
// the garbage collector takes it.
//
// A nil *Arena is valid and falls back to plain heap allocation without any accounting.
//
// Not safe for concurrent use: one arena belongs to one decode at a time.
type Arena struct {
	limit  int // byte budget, 0 = unlimited
	used   int
	allocs int

	chunk  []byte   // free tail of the current slab
	slabs  [][]byte // all slabs handed out by Bytes
	resets []func() // zeroes objects handed out by NewObject and MakeSlice
}

// New creates an arena with the given byte budget (0 means unlimited)
func New(limit int) *Arena {
	if limit < 0 {
		limit = 0
	}
	return &Arena{limit: limit}
}

// Limit returns the byte budget of the arena (0 = unlimited)
func (a *Arena) Limit() int {
	if a == nil {
		return 0
	}
	return a.limit
}

// Used returns the number of bytes accounted to the arena since the last Release
func (a *Arena) Used() int {
	if a == nil {
		return 0
	}
	return a.used
}

// Allocations returns the number of live allocations owned by the arena
func (a *Arena) Allocations() int {
	if a == nil {
		return 0
	}
	return a.allocs
}

// Bytes returns a zeroed byte slice of length n owned by the arena.
// The returned slice has cap == len, appending to it never touches arena memory.
func (a *Arena) Bytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, errors.Newf("arena: negative allocation size %d", n)
	}
	if a == nil {
		return make([]byte, n), nil
	}
	if err := a.reserve(n); err != nil {
		return nil, err
	}

	// large allocations get their own slab
	if n >= largeAllocation {
		b := make([]byte, n)
		a.slabs = append(a.slabs, b)
		return b, nil
	}

	if len(a.chunk) < n {
		a.chunk = make([]byte, chunkSize)
		a.slabs = append(a.slabs, a.chunk)
	}
	b := a.chunk[:n:n]
	a.chunk = a.chunk[n:]
	return b, nil
}

// String copies b into a new string accounted to the arena.
// Go strings are immutable, so Release only drops the accounting, not the contents.
func (a *Arena) String(b []byte) (string, error) {
	if a == nil {
		return string(b), nil
	}
	if err := a.reserve(len(b)); err != nil {
		return "", err
	}
	return string(b), nil
}

// Release frees everything the arena owns. The arena can be reused afterwards.
func (a *Arena) Release() {
	if a == nil {
		return
	}
	for _, slab := range a.slabs {
		clear(slab)
	}
	for _, reset := range a.resets {
		reset()
	}
	clear(a.slabs)
	clear(a.resets)
	a.slabs = a.slabs[:0]
	a.resets = a.resets[:0]
	a.chunk = nil
	a.used = 0
	a.allocs = 0
}

// reserve accounts n bytes to the arena or fails if the budget would be exceeded
func (a *Arena) reserve(n int) error {
	if a.limit > 0 && n > a.limit-a.used {
		return errors.Wrapf(ErrAllocationFailure, "arena: %d bytes requested, %d of %d in use", n, a.used, a.limit)
	}
	a.used += n
	a.allocs++
	return nil
}

// --------------------------------------------------------------------------
// Typed Allocation
// --------------------------------------------------------------------------

// NewObject allocates a zero T owned by the arena
func NewObject[T any](a *Arena) (*T, error) {
	if a == nil {
		return new(T), nil
	}
	var zero T
	if err := a.reserve(int(unsafe.Sizeof(zero))); err != nil {
		return nil, err
	}
	p := new(T)
	a.resets = append(a.resets, func() { *p = zero })
	return p, nil
}

// MakeSlice allocates a zeroed []T of length n owned by the arena
func MakeSlice[T any](a *Arena, n int) ([]T, error) {
	if n < 0 {
		return nil, errors.Newf("arena: negative slice length %d", n)
	}
	if a == nil {
		return make([]T, n), nil
	}
	var zero T
	size := uint64(unsafe.Sizeof(zero)) * uint64(n)
	if size > uint64(^uint(0)>>1) {
		return nil, errors.Wrapf(ErrAllocationFailure, "arena: slice of %d elements overflows", n)
	}
	if err := a.reserve(int(size)); err != nil {
		return nil, err
	}
	s := make([]T, n)
	a.resets = append(a.resets, func() { clear(s) })
	return s, nil
}

// --------------------------------------------------------------------------
// Pool
// --------------------------------------------------------------------------

// Pool recycles arenas with the same byte budget.
// Safe for concurrent use.
type Pool struct {
	pool sync.Pool
}

// NewPool creates a pool that hands out arenas with the given byte budget
func NewPool(limit int) *Pool {
	return &Pool{
		pool: sync.Pool{
			New: func() interface{} {
				return New(limit)
			},
		},
	}
}

// Get returns an empty arena
func (p *Pool) Get() *Arena {
	return p.pool.Get().(*Arena)
}

// Put releases the arena and returns it to the pool
func (p *Pool) Put(a *Arena) {
	if a == nil {
		return
	}
	a.Release()
	p.pool.Put(a)
}
