package scene

import (
	"errors"
	"fmt"

	"github.com/Faultbox/scenebake/pkg/math"
)

// Validation errors.
var (
	ErrInvalidMesh  = errors.New("scene: invalid mesh")
	ErrInvalidImage = errors.New("scene: invalid image")
)

// Validate checks the structural invariants of s and returns every violation
// joined into one error. Normals, tangents and UVs may be empty; otherwise
// they must match the position count. Texture indices are not range checked.
func (s *Scene) Validate() error {
	var errs []error
	for i := range s.Meshes {
		if err := s.Meshes[i].validate(); err != nil {
			errs = append(errs, fmt.Errorf("mesh %d: %w", i, err))
		}
	}
	for i := range s.Images {
		if err := s.Images[i].validate(); err != nil {
			errs = append(errs, fmt.Errorf("image %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Mesh) validate() error {
	n := len(m.Positions)
	for _, attr := range []struct {
		name string
		len  int
	}{
		{"normals", len(m.Normals)},
		{"tangents", len(m.Tangents)},
		{"uvs", len(m.UVs)},
	} {
		if attr.len != 0 && attr.len != n {
			return fmt.Errorf("%w: %d %s for %d positions", ErrInvalidMesh, attr.len, attr.name, n)
		}
	}

	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("%w: %d indices is not a multiple of 3", ErrInvalidMesh, len(m.Indices))
	}
	for i, idx := range m.Indices {
		if int64(idx) >= int64(n) {
			return fmt.Errorf("%w: index %d at %d out of range for %d vertices", ErrInvalidMesh, idx, i, n)
		}
	}

	for i, p := range m.Material.Slots() {
		if _, err := kindTag(p.Kind); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidMesh, SlotNames[i], err)
		}
	}
	return nil
}

func (img *Image) validate() error {
	if _, err := formatTag(img.Format); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	want := uint64(img.Width) * uint64(img.Height) * BytesPerPixel
	if uint64(len(img.Data)) != want {
		return fmt.Errorf("%w: %dx%d %s needs %d bytes, has %d",
			ErrInvalidImage, img.Width, img.Height, img.Format, want, len(img.Data))
	}
	return nil
}

// SlotStats counts how one material channel is filled across all meshes.
type SlotStats struct {
	None     int
	Texture  int
	Constant int
}

// Stats summarizes a scene.
type Stats struct {
	Meshes     int
	Images     int
	Vertices   int
	Indices    int
	Triangles  int
	ImageBytes int

	// Slots is indexed like SlotNames.
	Slots [4]SlotStats

	// Bounds is the world-space box of all positions after each mesh's
	// transform. Empty reports whether there were no positions at all.
	Min, Max math.Vec3
	Empty    bool
}

// Stats computes summary counts for s.
func (s *Scene) Stats() Stats {
	st := Stats{
		Meshes: len(s.Meshes),
		Images: len(s.Images),
		Empty:  true,
	}

	for i := range s.Meshes {
		m := &s.Meshes[i]
		st.Vertices += m.VertexCount()
		st.Indices += len(m.Indices)
		st.Triangles += m.TriangleCount()

		for slot, p := range m.Material.Slots() {
			switch {
			case p.Kind == ParamTexture:
				st.Slots[slot].Texture++
			case p.IsConstant():
				st.Slots[slot].Constant++
			default:
				st.Slots[slot].None++
			}
		}

		for _, p := range m.Positions {
			w := m.Transform.TransformVec3(p)
			if st.Empty {
				st.Min, st.Max, st.Empty = w, w, false
				continue
			}
			st.Min = st.Min.Min(w)
			st.Max = st.Max.Max(w)
		}
	}

	for i := range s.Images {
		st.ImageBytes += len(s.Images[i].Data)
	}
	return st
}
