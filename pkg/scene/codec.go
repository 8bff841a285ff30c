package scene

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/Faultbox/scenebake/pkg/arena"
	"github.com/Faultbox/scenebake/pkg/chunk"
	"github.com/Faultbox/scenebake/pkg/math"
	"github.com/Faultbox/scenebake/pkg/wire"
)

// Scene format errors.
var (
	ErrUnknownParameterKind = errors.New("scene: unknown material parameter kind")
	ErrUnknownFormat        = errors.New("scene: unknown image format")
	ErrInvalidCount         = errors.New("scene: element count exceeds buffer")
)

// IsFormatError reports whether err means the input is corrupt or was
// produced by an incompatible encoder.
func IsFormatError(err error) bool {
	for _, target := range []error{
		ErrUnknownParameterKind, ErrUnknownFormat, ErrInvalidCount,
		wire.ErrTruncated, wire.ErrSequenceLength, wire.ErrTrailingData,
		chunk.ErrTruncated, chunk.ErrCorrupt, chunk.ErrSizeOverflow,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Wire tags. These are part of the file format and never change.
const (
	tagNone    uint32 = 0
	tagTexture uint32 = 1
	tagVec2    uint32 = 2
	tagVec3    uint32 = 3
	tagVec4    uint32 = 4

	tagRGBA8  uint32 = 0
	tagSRGBA8 uint32 = 1
)

// Smallest possible encodings, used to reject absurd counts before allocating.
const (
	minMeshSize  = 5*wire.SeqHeaderSize + 64 + 4*4
	minImageSize = 3*4 + wire.SeqHeaderSize
)

func kindTag(k ParameterKind) (uint32, error) {
	switch k {
	case ParamNone:
		return tagNone, nil
	case ParamTexture:
		return tagTexture, nil
	case ParamVec2:
		return tagVec2, nil
	case ParamVec3:
		return tagVec3, nil
	case ParamVec4:
		return tagVec4, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrUnknownParameterKind, k)
}

func formatTag(f Format) (uint32, error) {
	switch f {
	case FormatRGBA8:
		return tagRGBA8, nil
	case FormatSRGBA8:
		return tagSRGBA8, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrUnknownFormat, f)
}

func formatFromTag(tag uint32) (Format, error) {
	switch tag {
	case tagRGBA8:
		return FormatRGBA8, nil
	case tagSRGBA8:
		return FormatSRGBA8, nil
	}
	return 0, fmt.Errorf("%w: tag %d", ErrUnknownFormat, tag)
}

func paramSize(k ParameterKind) int {
	switch k {
	case ParamTexture:
		return 4
	case ParamVec2:
		return 8
	case ParamVec3:
		return 12
	case ParamVec4:
		return 16
	}
	return 0
}

// EncodedSize returns the exact size of the scene buffer for s.
func EncodedSize(s *Scene) int {
	size := 8
	for i := range s.Meshes {
		m := &s.Meshes[i]
		size += wire.SeqSize[math.Vec3](len(m.Positions)) +
			wire.SeqSize[math.Vec3](len(m.Normals)) +
			wire.SeqSize[math.Vec3](len(m.Tangents)) +
			wire.SeqSize[math.Vec2](len(m.UVs)) +
			wire.SeqSize[uint32](len(m.Indices)) +
			wire.FixedSize[math.Mat4]()
		for _, p := range m.Material.Slots() {
			size += 4 + paramSize(p.Kind)
		}
	}
	size += 8
	for i := range s.Images {
		size += 3*4 + wire.SeqSize[byte](len(s.Images[i].Data))
	}
	return size
}

// Encode lays s out as a flat scene buffer.
func Encode(s *Scene) ([]byte, error) {
	w := wire.NewWriter(EncodedSize(s))

	w.Uint64(uint64(len(s.Meshes)))
	for i := range s.Meshes {
		if err := encodeMesh(w, &s.Meshes[i]); err != nil {
			return nil, fmt.Errorf("mesh %d: %w", i, err)
		}
	}

	w.Uint64(uint64(len(s.Images)))
	for i := range s.Images {
		if err := encodeImage(w, &s.Images[i]); err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
	}

	return w.Bytes(), nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s *Scene) MarshalBinary() ([]byte, error) {
	return Encode(s)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler using heap memory.
func (s *Scene) UnmarshalBinary(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*s = *decoded
	return nil
}

func encodeMesh(w *wire.Writer, m *Mesh) error {
	wire.WriteSeq(w, m.Positions)
	wire.WriteSeq(w, m.Normals)
	wire.WriteSeq(w, m.Tangents)
	wire.WriteSeq(w, m.UVs)
	wire.WriteSeq(w, m.Indices)
	wire.WriteFixed(w, m.Transform)

	for i, p := range m.Material.Slots() {
		if err := encodeParameter(w, p); err != nil {
			return fmt.Errorf("%s: %w", SlotNames[i], err)
		}
	}
	return nil
}

func encodeParameter(w *wire.Writer, p MaterialParameter) error {
	tag, err := kindTag(p.Kind)
	if err != nil {
		return err
	}
	w.Uint32(tag)

	switch p.Kind {
	case ParamTexture:
		w.Uint32(p.Texture)
	case ParamVec2:
		wire.WriteFixed(w, math.Vec2{X: p.Value.X, Y: p.Value.Y})
	case ParamVec3:
		wire.WriteFixed(w, p.Value.XYZ())
	case ParamVec4:
		wire.WriteFixed(w, p.Value)
	}
	return nil
}

func encodeImage(w *wire.Writer, img *Image) error {
	tag, err := formatTag(img.Format)
	if err != nil {
		return err
	}
	w.Uint32(img.Width)
	w.Uint32(img.Height)
	w.Uint32(tag)
	wire.WriteSeq(w, img.Data)
	return nil
}

// Decode rebuilds a scene from a flat scene buffer. Every sequence is copied
// into its own heap allocation, so the result does not alias buf.
func Decode(buf []byte) (*Scene, error) {
	return DecodeIn(buf, wire.Heap)
}

// DecodeArena rebuilds a scene whose sequences, including the mesh and image
// slices themselves, are all carved from a. The scene is valid until the
// arena's region is released or Reset.
func DecodeArena(buf []byte, a *arena.Arena) (*Scene, error) {
	return DecodeIn(buf, a)
}

// DecodeIn rebuilds a scene, taking memory for every sequence from alloc.
func DecodeIn(buf []byte, alloc wire.Allocator) (*Scene, error) {
	r := wire.NewReader(buf)
	s := &Scene{}

	s.Meshes = makeSlice[Mesh](r, alloc, minMeshSize)
	for i := range s.Meshes {
		decodeMesh(r, alloc, &s.Meshes[i])
		if r.Err() != nil {
			return nil, fmt.Errorf("decoding mesh %d: %w", i, r.Err())
		}
	}

	s.Images = makeSlice[Image](r, alloc, minImageSize)
	for i := range s.Images {
		decodeImage(r, alloc, &s.Images[i])
		if r.Err() != nil {
			return nil, fmt.Errorf("decoding image %d: %w", i, r.Err())
		}
	}

	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("decoding scene: %w", err)
	}
	return s, nil
}

// readCount reads an element count and checks it against the bytes left,
// given the smallest possible encoding of one element.
func readCount(r *wire.Reader, minSize int) int {
	n := r.Uint64()
	if r.Err() != nil {
		return 0
	}
	if n > uint64(r.Remaining()/minSize) {
		r.Fail(fmt.Errorf("%w: %d elements at offset %d, %d bytes left",
			ErrInvalidCount, n, r.Offset()-8, r.Remaining()))
		return 0
	}
	return int(n)
}

// makeSlice reads a count and allocates the slice holding that many
// elements. Meshes and images hold slice headers, so they may only live in
// an arena, where everything they point to shares the same region. Any
// other allocator gets a regular Go slice the collector can scan.
func makeSlice[T any](r *wire.Reader, alloc wire.Allocator, minSize int) []T {
	n := readCount(r, minSize)
	if n == 0 {
		return nil
	}
	a, ok := alloc.(*arena.Arena)
	if !ok {
		return make([]T, n)
	}
	s, err := arena.MakeSlice[T](a, n)
	if err != nil {
		var zero T
		r.Fail(fmt.Errorf("allocating %d elements of %d bytes: %w", n, unsafe.Sizeof(zero), err))
		return nil
	}
	return s
}

func decodeMesh(r *wire.Reader, alloc wire.Allocator, m *Mesh) {
	m.Positions = wire.ReadSeq[math.Vec3](r, alloc)
	m.Normals = wire.ReadSeq[math.Vec3](r, alloc)
	m.Tangents = wire.ReadSeq[math.Vec3](r, alloc)
	m.UVs = wire.ReadSeq[math.Vec2](r, alloc)
	m.Indices = wire.ReadSeq[uint32](r, alloc)
	m.Transform = wire.ReadFixed[math.Mat4](r)

	m.Material.BaseColor = decodeParameter(r)
	m.Material.Normal = decodeParameter(r)
	m.Material.Specular = decodeParameter(r)
	m.Material.Emissive = decodeParameter(r)
}

func decodeParameter(r *wire.Reader) MaterialParameter {
	at := r.Offset()
	tag := r.Uint32()
	if r.Err() != nil {
		return MaterialParameter{}
	}

	switch tag {
	case tagNone:
		return NoParameter()
	case tagTexture:
		return TextureParameter(r.Uint32())
	case tagVec2:
		return Vec2Parameter(wire.ReadFixed[math.Vec2](r))
	case tagVec3:
		return Vec3Parameter(wire.ReadFixed[math.Vec3](r))
	case tagVec4:
		return Vec4Parameter(wire.ReadFixed[math.Vec4](r))
	}

	r.Fail(fmt.Errorf("%w: tag %d at offset %d", ErrUnknownParameterKind, tag, at))
	return MaterialParameter{}
}

func decodeImage(r *wire.Reader, alloc wire.Allocator, img *Image) {
	img.Width = r.Uint32()
	img.Height = r.Uint32()

	at := r.Offset()
	tag := r.Uint32()
	if r.Err() != nil {
		return
	}
	format, err := formatFromTag(tag)
	if err != nil {
		r.Fail(fmt.Errorf("%w at offset %d", err, at))
		return
	}
	img.Format = format
	img.Data = wire.ReadSeq[byte](r, alloc)
}
