// Package chunk frames a byte stream as a sequence of independently
// compressed records.
//
// Each record is
//
//	u32 compressed_len   (little-endian)
//	u32 uncompressed_len (little-endian)
//	compressed_len bytes of block-compressed payload
//
// Records are concatenated with no padding and no terminator; the end of the
// input is the end of the stream. Splitting keeps every block below the
// compressor's own input limit, so inputs of any size can be stored.
package chunk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	// HeaderSize is the size of a record header.
	HeaderSize = 8

	// MaxChunkSize is the largest slice compressed as one record.
	MaxChunkSize = 1 << 30
)

// Chunk errors.
var (
	ErrTruncated       = errors.New("chunk: truncated record")
	ErrCorrupt         = errors.New("chunk: corrupt record")
	ErrSizeOverflow    = errors.New("chunk: decompressed size overflows")
	ErrDestinationSize = errors.New("chunk: destination size does not match records")
	ErrChunkSize       = errors.New("chunk: invalid chunk size")
)

// Header describes one record of a chunked stream.
type Header struct {
	Offset           int // position of the record header in the stream
	CompressedSize   uint32
	UncompressedSize uint32
}

// Options selects the block codec and the slice size.
type Options struct {
	Codec     Codec // nil means LZ4
	ChunkSize int   // 0 means MaxChunkSize
}

func (o Options) codec() Codec {
	if o.Codec == nil {
		return LZ4(0)
	}
	return o.Codec
}

func (o Options) chunkSize() (int, error) {
	switch {
	case o.ChunkSize == 0:
		return MaxChunkSize, nil
	case o.ChunkSize < 0 || o.ChunkSize > MaxChunkSize:
		return 0, fmt.Errorf("%w: %d (must be in 1..%d)", ErrChunkSize, o.ChunkSize, MaxChunkSize)
	}
	return o.ChunkSize, nil
}

// Compress splits src into slices and returns the chunked stream.
// An empty src produces an empty stream.
func Compress(src []byte, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := Encode(&buf, src, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes the chunked stream for src to w and returns the number of
// bytes written.
func Encode(w io.Writer, src []byte, opts Options) (int64, error) {
	size, err := opts.chunkSize()
	if err != nil {
		return 0, err
	}
	codec := opts.codec()

	var (
		written int64
		scratch []byte
		header  [HeaderSize]byte
	)
	for start := 0; start < len(src); start += size {
		slice := src[start:min(start+size, len(src))]

		scratch, err = codec.CompressBlock(scratch[:0], slice)
		if err != nil {
			return written, fmt.Errorf("compressing chunk at offset %d: %w", start, err)
		}
		if uint64(len(scratch)) > math.MaxUint32 {
			return written, fmt.Errorf("%w: compressed chunk of %d bytes", ErrSizeOverflow, len(scratch))
		}

		binary.LittleEndian.PutUint32(header[0:], uint32(len(scratch)))
		binary.LittleEndian.PutUint32(header[4:], uint32(len(slice)))

		n, err := w.Write(header[:])
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("writing chunk header: %w", err)
		}
		n, err = w.Write(scratch)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("writing chunk payload: %w", err)
		}
	}
	return written, nil
}

// walk visits every record in src in order, checking that each header and
// payload fits in the remaining bytes.
func walk(src []byte, fn func(h Header, payload []byte) error) error {
	off := 0
	for off < len(src) {
		if len(src)-off < HeaderSize {
			return fmt.Errorf("%w: %d header bytes at offset %d", ErrTruncated, len(src)-off, off)
		}

		h := Header{
			Offset:           off,
			CompressedSize:   binary.LittleEndian.Uint32(src[off:]),
			UncompressedSize: binary.LittleEndian.Uint32(src[off+4:]),
		}
		body := off + HeaderSize

		if uint64(h.CompressedSize) > uint64(len(src)-body) {
			return fmt.Errorf("%w: record at offset %d declares %d payload bytes, %d available",
				ErrTruncated, off, h.CompressedSize, len(src)-body)
		}
		if h.CompressedSize == 0 || h.UncompressedSize == 0 {
			return fmt.Errorf("%w: empty record at offset %d", ErrCorrupt, off)
		}
		if h.UncompressedSize > MaxChunkSize {
			return fmt.Errorf("%w: record at offset %d declares %d uncompressed bytes, limit is %d",
				ErrCorrupt, off, h.UncompressedSize, MaxChunkSize)
		}

		end := body + int(h.CompressedSize)
		if err := fn(h, src[body:end]); err != nil {
			return err
		}
		off = end
	}
	return nil
}

// Headers returns the record headers of src.
func Headers(src []byte) ([]Header, error) {
	var headers []Header
	err := walk(src, func(h Header, _ []byte) error {
		headers = append(headers, h)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return headers, nil
}

// walkBounded is walk with each record's uncompressed size checked against
// the most the codec could produce from its payload, so a corrupt header is
// caught before anything is allocated for it.
func walkBounded(src []byte, codec Codec, fn func(h Header, payload []byte) error) error {
	return walk(src, func(h Header, payload []byte) error {
		if bound := codec.DecompressedBound(payload); uint64(h.UncompressedSize) > bound {
			return fmt.Errorf("%w: record at offset %d declares %d uncompressed bytes, %s payload of %d bytes holds at most %d",
				ErrCorrupt, h.Offset, h.UncompressedSize, codec.Name(), len(payload), bound)
		}
		return fn(h, payload)
	})
}

// DecompressedSize sums the uncompressed sizes of every record in src,
// rejecting records whose sizes the configured codec could not produce.
func DecompressedSize(src []byte, opts Options) (int, error) {
	var total uint64
	err := walkBounded(src, opts.codec(), func(h Header, _ []byte) error {
		total += uint64(h.UncompressedSize)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if total > math.MaxInt {
		return 0, fmt.Errorf("%w: %d bytes", ErrSizeOverflow, total)
	}
	return int(total), nil
}

// Decompress reassembles the original bytes of a chunked stream.
func Decompress(src []byte, opts Options) ([]byte, error) {
	size, err := DecompressedSize(src, opts)
	if err != nil {
		return nil, err
	}
	dst := make([]byte, size)
	if err := DecompressInto(src, dst, opts); err != nil {
		return nil, err
	}
	return dst, nil
}

// DecompressInto decompresses src into dst, which must be exactly
// DecompressedSize(src, opts) bytes long. Record i lands at the sum of the
// uncompressed sizes of the records before it.
func DecompressInto(src, dst []byte, opts Options) error {
	size, err := DecompressedSize(src, opts)
	if err != nil {
		return err
	}
	if size != len(dst) {
		return fmt.Errorf("%w: records hold %d bytes, destination has %d", ErrDestinationSize, size, len(dst))
	}

	codec := opts.codec()
	pos := 0
	return walk(src, func(h Header, payload []byte) error {
		out := dst[pos : pos+int(h.UncompressedSize)]
		if err := codec.DecompressBlock(out, payload); err != nil {
			return fmt.Errorf("record at offset %d: %w", h.Offset, err)
		}
		pos += len(out)
		return nil
	})
}
