package wire

import "encoding/binary"

// Writer appends records to a growing byte buffer.
type Writer struct {
	buf []byte
}

// NewWriter creates a Writer with room for capacity bytes before it grows.
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// Uint32 appends a little-endian uint32.
func (w *Writer) Uint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// Uint64 appends a little-endian uint64.
func (w *Writer) Uint64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

// Bytes returns the encoded buffer. It aliases the writer's storage.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written.
func (w *Writer) Len() int { return len(w.buf) }

// WriteFixed appends the raw bytes of v.
func WriteFixed[T any](w *Writer, v T) {
	elemSize[T]()
	w.buf = append(w.buf, valueBytes(&v)...)
}

// WriteSeq appends the byte length of s followed by its packed elements.
func WriteSeq[T any](w *Writer, s []T) {
	size := elemSize[T]()
	w.Uint64(uint64(len(s) * size))
	w.buf = append(w.buf, sliceBytes(s, size)...)
}

// SeqSize returns the encoded size of a sequence of n elements of T.
func SeqSize[T any](n int) int {
	return SeqHeaderSize + n*elemSize[T]()
}

// FixedSize returns the encoded size of a T.
func FixedSize[T any]() int {
	return elemSize[T]()
}
