// Package arena provides a bump allocator over a single caller-owned memory
// region.
//
// Every allocation is carved from the region by advancing a used-byte counter.
// Individual allocations are never freed; the owner reclaims the whole region
// in one step by dropping it (or calling Reset) once nothing allocated from it
// is referenced any more. An Arena is not safe for concurrent use.
package arena

import (
	"errors"
	"fmt"
	"math"
	"unsafe"

	"golang.org/x/exp/constraints"
)

// ErrExhausted is returned when a request does not fit in the remaining region.
var ErrExhausted = errors.New("arena: region exhausted")

// Arena is a bump allocator over a fixed region.
type Arena struct {
	region []byte
	used   int
}

// New creates an arena backed by region. The arena never grows or copies the
// region, and the caller must keep it alive for as long as any allocation
// from it is in use.
func New(region []byte) *Arena {
	return &Arena{region: region}
}

// NewSize creates an arena over a freshly allocated region of size bytes.
// The region is 8-byte aligned.
func NewSize(size int) *Arena {
	if size <= 0 {
		return New(nil)
	}
	words := make([]uint64, (size+7)/8)
	region := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(words))), size)
	return New(region)
}

// AlignUp rounds n up to the nearest multiple of align, which must be a power of two.
func AlignUp[T constraints.Integer](n, align T) T {
	return (n + (align - 1)) &^ (align - 1)
}

// Allocate returns size bytes whose address is a multiple of align.
//
// Alignment is applied to the absolute address base+used, so padding depends
// on where the region itself starts. The returned memory is not zeroed if the
// arena has been Reset. When the request does not fit, Allocate returns
// ErrExhausted and leaves the arena unchanged.
func (a *Arena) Allocate(size, align int) ([]byte, error) {
	if align <= 0 || align&(align-1) != 0 {
		panic(fmt.Sprintf("arena: alignment %d is not a power of two", align))
	}
	if size < 0 {
		panic(fmt.Sprintf("arena: negative allocation size %d", size))
	}

	addr := uintptr(unsafe.Pointer(unsafe.SliceData(a.region))) + uintptr(a.used)
	pad := int(AlignUp(addr, uintptr(align)) - addr)

	start := a.used + pad
	if start > len(a.region) || size > len(a.region)-start {
		return nil, fmt.Errorf("%w: requested %d bytes (align %d) with %d of %d bytes free",
			ErrExhausted, size, align, a.Remaining(), len(a.region))
	}

	end := start + size
	a.used = end
	return a.region[start:end:end], nil
}

// Deallocate does nothing. Memory is only reclaimed with the whole region.
func (a *Arena) Deallocate([]byte) {}

// Used returns the number of bytes consumed, including alignment padding.
func (a *Arena) Used() int { return a.used }

// Size returns the size of the backing region.
func (a *Arena) Size() int { return len(a.region) }

// Remaining returns the number of bytes not yet handed out.
func (a *Arena) Remaining() int { return len(a.region) - a.used }

// Reset makes the whole region available again. Everything previously
// allocated from the arena must no longer be in use.
func (a *Arena) Reset() { a.used = 0 }

// MakeSlice carves a zeroed []T of length n from the arena, aligned for T.
//
// T must not hold pointers to memory outside the arena: the region is plain
// bytes to the garbage collector, so such pointers would not keep their
// targets alive.
func MakeSlice[T any](a *Arena, n int) ([]T, error) {
	if n == 0 {
		return nil, nil
	}
	var zero T
	size := int(unsafe.Sizeof(zero))
	if size == 0 {
		return make([]T, n), nil
	}
	if n < 0 || n > math.MaxInt/size {
		return nil, fmt.Errorf("%w: %d elements of %d bytes", ErrExhausted, n, size)
	}

	b, err := a.Allocate(n*size, int(unsafe.Alignof(zero)))
	if err != nil {
		return nil, err
	}
	clear(b)
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n), nil
}
