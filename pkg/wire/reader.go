package wire

import (
	"encoding/binary"
	"fmt"
	"unsafe"
)

// Reader consumes records from a byte slice, front to back.
//
// The first error is sticky: once a read fails, every later read returns the
// zero value and Err reports the original failure.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader creates a Reader over buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Err returns the first error encountered.
func (r *Reader) Err() error { return r.err }

// Offset returns the number of bytes consumed.
func (r *Reader) Offset() int { return r.off }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

// Fail records err unless an earlier error is already pending.
func (r *Reader) Fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// Finish reports the pending error, or ErrTrailingData if unread bytes remain.
func (r *Reader) Finish() error {
	if r.err != nil {
		return r.err
	}
	if n := r.Remaining(); n > 0 {
		return fmt.Errorf("%w: %d bytes at offset %d", ErrTrailingData, n, r.off)
	}
	return nil
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > r.Remaining() {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, r.off, r.Remaining())
		return nil
	}
	b := r.buf[r.off : r.off+n : r.off+n]
	r.off += n
	return b
}

// Uint32 reads a little-endian uint32.
func (r *Reader) Uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// Uint64 reads a little-endian uint64.
func (r *Reader) Uint64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// ReadFixed copies the next record into a fresh T. The source bytes are never
// aliased, so the buffer needs no particular alignment.
func ReadFixed[T any](r *Reader) T {
	var v T
	if b := r.take(elemSize[T]()); b != nil {
		copy(valueBytes(&v), b)
	}
	return v
}

// seqLen reads and checks a sequence's byte length, returning -1 on failure.
func seqLen[T any](r *Reader) (length, size int) {
	n := r.Uint64()
	if r.err != nil {
		return -1, 0
	}
	size = elemSize[T]()
	if n%uint64(size) != 0 {
		r.err = fmt.Errorf("%w: %d bytes for %d-byte elements at offset %d",
			ErrSequenceLength, n, size, r.off-SeqHeaderSize)
		return -1, 0
	}
	if n > uint64(r.Remaining()) {
		r.err = fmt.Errorf("%w: sequence of %d bytes at offset %d, have %d",
			ErrTruncated, n, r.off-SeqHeaderSize, r.Remaining())
		return -1, 0
	}
	return int(n), size
}

// ReadSeq reads a sequence, copying its elements into memory from alloc.
// Empty sequences decode to nil without calling alloc.
func ReadSeq[T any](r *Reader, alloc Allocator) []T {
	length, size := seqLen[T](r)
	if length <= 0 {
		return nil
	}

	var zero T
	dst, err := alloc.Allocate(length, int(unsafe.Alignof(zero)))
	if err != nil {
		r.err = fmt.Errorf("allocating %d-byte sequence at offset %d: %w", length, r.off, err)
		return nil
	}
	copy(dst, r.take(length))
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(dst))), length/size)
}

// SkipSeq advances past a sequence without copying it and returns its byte
// length, or -1 if the sequence is malformed.
func SkipSeq[T any](r *Reader) int {
	length, _ := seqLen[T](r)
	if length < 0 {
		return -1
	}
	r.take(length)
	return length
}
