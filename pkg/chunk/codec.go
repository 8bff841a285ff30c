package chunk

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"unsafe"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// ErrUnknownCodec is returned by Lookup for an unsupported codec name.
var ErrUnknownCodec = errors.New("chunk: unknown codec")

// Codec compresses one slice at a time with no state shared between slices.
// Implementations are safe for concurrent use.
type Codec interface {
	// Name returns the codec's configuration name.
	Name() string

	// CompressBlock appends the compressed form of src to dst.
	CompressBlock(dst, src []byte) ([]byte, error)

	// DecompressBlock decompresses src into dst, which has exactly the
	// expected uncompressed size. Any size mismatch or failed integrity
	// check is reported as ErrCorrupt.
	DecompressBlock(dst, src []byte) error

	// DecompressedBound returns the largest output src could decompress
	// to. Records claiming more are rejected without being decoded.
	DecompressedBound(src []byte) uint64
}

// Codec names accepted by Lookup.
const (
	NameLZ4  = "lz4"
	NameZstd = "zstd"
	NameZlib = "zlib"
)

// Names lists the supported codecs.
var Names = []string{NameLZ4, NameZstd, NameZlib}

// Lookup returns the codec called name at the given level. Level 0 selects
// the codec's default.
func Lookup(name string, level int) (Codec, error) {
	switch strings.ToLower(name) {
	case NameLZ4, "":
		return LZ4(level), nil
	case NameZstd:
		return Zstd(level), nil
	case NameZlib:
		return Zlib(level), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}

// --- LZ4 ---

type lz4Codec struct {
	level int
	pool  sync.Pool
}

// LZ4 returns the LZ4 block codec. Level 0 is the fast compressor; levels
// 1-9 use the high-compression compressor.
func LZ4(level int) Codec {
	c := &lz4Codec{level: min(max(level, 0), 9)}
	c.pool.New = func() any {
		if c.level == 0 {
			return &lz4.Compressor{}
		}
		return &lz4.CompressorHC{Level: lz4.CompressionLevel(1 << (8 + c.level))}
	}
	return c
}

func (c *lz4Codec) Name() string { return NameLZ4 }

type lz4BlockCompressor interface {
	CompressBlock(src, dst []byte) (int, error)
}

func (c *lz4Codec) CompressBlock(dst, src []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(src))
	dst = slices.Grow(dst, bound)
	out := dst[len(dst) : len(dst)+bound]

	comp := c.pool.Get().(lz4BlockCompressor)
	n, err := comp.CompressBlock(src, out)
	c.pool.Put(comp)

	if err != nil {
		return dst, fmt.Errorf("lz4: %w", err)
	}
	if n == 0 && len(src) > 0 {
		return dst, errors.New("lz4: block not compressed")
	}
	return dst[:len(dst)+n], nil
}

func (c *lz4Codec) DecompressBlock(dst, src []byte) error {
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return fmt.Errorf("%w: lz4: %v", ErrCorrupt, err)
	}
	if n != len(dst) {
		return fmt.Errorf("%w: lz4 produced %d bytes, expected %d", ErrCorrupt, n, len(dst))
	}
	return nil
}

// An LZ4 sequence yields at most 255 bytes per input byte: every length
// extension byte adds 255 and the token alone adds at most 19.
const lz4MaxRatio = 255

func (c *lz4Codec) DecompressedBound(src []byte) uint64 {
	return uint64(len(src)) * lz4MaxRatio
}

// --- Zstandard ---

type zstdCodec struct {
	level zstd.EncoderLevel
	enc   sync.Pool
	dec   sync.Pool
}

// Zstd returns the Zstandard codec. Frames carry a checksum, so corrupted
// payloads are detected on decode.
func Zstd(level int) Codec {
	c := &zstdCodec{level: zstd.SpeedDefault}
	if level > 0 {
		c.level = zstd.EncoderLevelFromZstd(level)
	}
	c.enc.New = func() any {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(c.level), zstd.WithEncoderConcurrency(1))
		return enc
	}
	c.dec.New = func() any {
		dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		return dec
	}
	return c
}

func (c *zstdCodec) Name() string { return NameZstd }

func (c *zstdCodec) CompressBlock(dst, src []byte) ([]byte, error) {
	enc := c.enc.Get().(*zstd.Encoder)
	dst = enc.EncodeAll(src, dst)
	c.enc.Put(enc)
	return dst, nil
}

func (c *zstdCodec) DecompressBlock(dst, src []byte) error {
	dec := c.dec.Get().(*zstd.Decoder)
	out, err := dec.DecodeAll(src, dst[:0])
	c.dec.Put(dec)

	if err != nil {
		return fmt.Errorf("%w: zstd: %v", ErrCorrupt, err)
	}
	if len(out) != len(dst) {
		return fmt.Errorf("%w: zstd produced %d bytes, expected %d", ErrCorrupt, len(out), len(dst))
	}
	if len(out) > 0 && unsafe.SliceData(out) != unsafe.SliceData(dst) {
		copy(dst, out)
	}
	return nil
}

// A zstd block holds at most 128 KiB and the smallest block (RLE) takes
// 4 bytes including its header.
const (
	zstdMaxBlock    = 128 << 10
	zstdMinBlockLen = 4
)

func (c *zstdCodec) DecompressedBound(src []byte) uint64 {
	var h zstd.Header
	if err := h.Decode(src); err == nil && h.HasFCS {
		return h.FrameContentSize
	}
	return (uint64(len(src))/zstdMinBlockLen + 1) * zstdMaxBlock
}

// --- zlib ---

type zlibCodec struct {
	level int
}

// Zlib returns the zlib codec. Level 0 selects zlib's default compression.
func Zlib(level int) Codec {
	if level <= 0 || level > zlib.BestCompression {
		level = zlib.DefaultCompression
	}
	return &zlibCodec{level: level}
}

func (c *zlibCodec) Name() string { return NameZlib }

func (c *zlibCodec) CompressBlock(dst, src []byte) ([]byte, error) {
	buf := bytes.NewBuffer(dst)
	w, err := zlib.NewWriterLevel(buf, c.level)
	if err != nil {
		return dst, err
	}
	if _, err := w.Write(src); err != nil {
		return dst, err
	}
	if err := w.Close(); err != nil {
		return dst, err
	}
	return buf.Bytes(), nil
}

func (c *zlibCodec) DecompressBlock(dst, src []byte) error {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return fmt.Errorf("%w: zlib: %v", ErrCorrupt, err)
	}
	defer r.Close()

	if _, err := io.ReadFull(r, dst); err != nil {
		return fmt.Errorf("%w: zlib: %v", ErrCorrupt, err)
	}
	// The adler32 checksum is only verified once the stream reaches EOF.
	var extra [1]byte
	if n, err := r.Read(extra[:]); n != 0 || err != io.EOF {
		if err == nil || err == io.EOF {
			return fmt.Errorf("%w: zlib stream longer than %d bytes", ErrCorrupt, len(dst))
		}
		return fmt.Errorf("%w: zlib: %v", ErrCorrupt, err)
	}
	return nil
}

// Deflate expands at most 1032:1 (258-byte matches coded in 2 bits), plus
// one final match.
const (
	deflateMaxRatio = 1032
	deflateMaxMatch = 258
)

func (c *zlibCodec) DecompressedBound(src []byte) uint64 {
	return uint64(len(src))*deflateMaxRatio + deflateMaxMatch
}
