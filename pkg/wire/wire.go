// Package wire implements the forward-only binary cursor used to lay out
// scene buffers.
//
// Two record shapes exist. Fixed records are the raw bytes of a value of known
// layout. Sequences are an 8-byte little-endian byte length followed by the
// tightly packed elements. Values are copied in host byte order, so only
// little-endian hosts produce and consume the format.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"
	"unsafe"

	"github.com/puzpuzpuz/xsync/v4"
)

var (
	// ErrTruncated indicates the buffer ended before the field being read.
	ErrTruncated = errors.New("wire: truncated data")

	// ErrSequenceLength indicates a sequence byte length that is not a whole
	// number of elements.
	ErrSequenceLength = errors.New("wire: sequence length is not a multiple of the element size")

	// ErrTrailingData indicates bytes left over after the last expected field.
	ErrTrailingData = errors.New("wire: trailing data after last field")
)

// SeqHeaderSize is the size of a sequence's byte-length prefix.
const SeqHeaderSize = 8

// layoutCache remembers the verified size of every element type so the
// reflection in elemSize runs once per type.
var layoutCache = xsync.NewMap[reflect.Type, int]()

// elemSize returns the encoded size of T. T must be fixed-size and packed:
// its in-memory size must equal its encoded size, so values can be copied
// byte for byte.
func elemSize[T any]() int {
	typ := reflect.TypeFor[T]()
	if size, ok := layoutCache.Load(typ); ok {
		return size
	}

	var zero T
	size := binary.Size(zero)
	if size <= 0 || uintptr(size) != unsafe.Sizeof(zero) {
		panic(fmt.Sprintf("wire: %s is not a packed fixed-size type", typ))
	}

	layoutCache.Store(typ, size)
	return size
}

// valueBytes views v's memory as bytes.
func valueBytes[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}

// sliceBytes views the backing array of s as bytes.
func sliceBytes[T any](s []T, size int) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*size)
}

// Allocator supplies the memory decoded sequences are copied into.
type Allocator interface {
	// Allocate returns size writable bytes aligned to align.
	Allocate(size, align int) ([]byte, error)
}

// Heap allocates every sequence independently from the Go heap.
var Heap Allocator = heapAllocator{}

type heapAllocator struct{}

// Allocate returns fresh 8-byte aligned memory.
func (heapAllocator) Allocate(size, align int) ([]byte, error) {
	if align > 8 {
		panic(fmt.Sprintf("wire: heap alignment %d is not supported", align))
	}
	if size == 0 {
		return nil, nil
	}
	words := make([]uint64, (size+7)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(words))), size), nil
}
