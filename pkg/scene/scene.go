// Package scene defines the baked scene model and its binary encoding.
//
// A scene buffer is laid out as
//
//	u64 mesh_count
//	mesh_count x { seq<Vec3> positions, seq<Vec3> normals, seq<Vec3> tangents,
//	               seq<Vec2> uvs, seq<u32> indices, Mat4 transform,
//	               MaterialParameter x 4 (base color, normal, specular, emissive) }
//	u64 image_count
//	image_count x { u32 width, u32 height, u32 format, seq<u8> data }
//
// and is stored on disk as a chunked stream (see package chunk).
package scene

import (
	"slices"

	"github.com/Faultbox/scenebake/pkg/math"
)

// Scene is the root of a baked scene. Material texture references are
// indices into Images, so the order of both slices is significant.
type Scene struct {
	Meshes []Mesh
	Images []Image
}

// Mesh is an indexed triangle mesh.
//
// Positions, Normals, Tangents and UVs are parallel per-vertex slices of equal
// length. Indices come in groups of three and each is less than the vertex
// count.
type Mesh struct {
	Positions []math.Vec3
	Normals   []math.Vec3
	Tangents  []math.Vec3
	UVs       []math.Vec2
	Indices   []uint32

	Transform math.Mat4
	Material  Material
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int { return len(m.Positions) }

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int { return len(m.Indices) / 3 }

// Material holds one parameter per shading channel.
type Material struct {
	BaseColor MaterialParameter
	Normal    MaterialParameter
	Specular  MaterialParameter
	Emissive  MaterialParameter
}

// Slots returns the four parameters in wire order.
func (m Material) Slots() [4]MaterialParameter {
	return [4]MaterialParameter{m.BaseColor, m.Normal, m.Specular, m.Emissive}
}

// SlotNames names the material channels in wire order.
var SlotNames = [4]string{"base_color", "normal", "specular", "emissive"}

// ParameterKind selects which variant of a MaterialParameter is active.
type ParameterKind uint8

// Parameter kinds.
const (
	ParamNone ParameterKind = iota
	ParamTexture
	ParamVec2
	ParamVec3
	ParamVec4
)

// String returns the kind name.
func (k ParameterKind) String() string {
	switch k {
	case ParamNone:
		return "none"
	case ParamTexture:
		return "texture"
	case ParamVec2:
		return "vec2"
	case ParamVec3:
		return "vec3"
	case ParamVec4:
		return "vec4"
	}
	return "unknown"
}

// MaterialParameter is one material channel: nothing, a texture reference,
// or a constant vector used in place of sampling a texture.
//
// The zero value is the absent parameter. Components beyond the active
// variant's width are always zero, so parameters compare with ==. The struct
// holds no pointers and can live inside an arena region.
type MaterialParameter struct {
	Kind    ParameterKind
	Texture uint32
	Value   math.Vec4
}

// NoParameter returns the absent parameter.
func NoParameter() MaterialParameter { return MaterialParameter{} }

// TextureParameter references Scene.Images[index]. The index is not range
// checked; resolving it is the consumer's concern.
func TextureParameter(index uint32) MaterialParameter {
	return MaterialParameter{Kind: ParamTexture, Texture: index}
}

// Vec2Parameter returns a 2-component constant.
func Vec2Parameter(v math.Vec2) MaterialParameter {
	return MaterialParameter{Kind: ParamVec2, Value: math.Vec4{X: v.X, Y: v.Y}}
}

// Vec3Parameter returns a 3-component constant.
func Vec3Parameter(v math.Vec3) MaterialParameter {
	return MaterialParameter{Kind: ParamVec3, Value: math.Vec4{X: v.X, Y: v.Y, Z: v.Z}}
}

// Vec4Parameter returns a 4-component constant.
func Vec4Parameter(v math.Vec4) MaterialParameter {
	return MaterialParameter{Kind: ParamVec4, Value: v}
}

// IsConstant reports whether p is one of the constant vector variants.
func (p MaterialParameter) IsConstant() bool {
	return p.Kind == ParamVec2 || p.Kind == ParamVec3 || p.Kind == ParamVec4
}

// Format is the pixel format of an Image. Both formats store 4 bytes per
// pixel; the format only tells the consumer how to sample them.
type Format uint8

// Image formats.
const (
	FormatRGBA8 Format = iota
	FormatSRGBA8
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatRGBA8:
		return "RGBA8"
	case FormatSRGBA8:
		return "SRGBA8"
	}
	return "unknown"
}

// BytesPerPixel is the pixel size of every supported format.
const BytesPerPixel = 4

// Image is a tightly packed, row-major pixel buffer of exactly
// Width*Height*4 bytes.
type Image struct {
	Width  uint32
	Height uint32
	Format Format
	Data   []byte
}

// Equal reports whether two scenes hold the same meshes and images. Nil and
// empty slices compare equal.
func (s *Scene) Equal(other *Scene) bool {
	return slices.EqualFunc(s.Meshes, other.Meshes, meshEqual) &&
		slices.EqualFunc(s.Images, other.Images, imageEqual)
}

func meshEqual(a, b Mesh) bool {
	return slices.Equal(a.Positions, b.Positions) &&
		slices.Equal(a.Normals, b.Normals) &&
		slices.Equal(a.Tangents, b.Tangents) &&
		slices.Equal(a.UVs, b.UVs) &&
		slices.Equal(a.Indices, b.Indices) &&
		a.Transform == b.Transform &&
		a.Material == b.Material
}

func imageEqual(a, b Image) bool {
	return a.Width == b.Width && a.Height == b.Height && a.Format == b.Format &&
		slices.Equal(a.Data, b.Data)
}
