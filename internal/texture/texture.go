// Package texture turns image files into scene images and material
// parameters, the way the importer feeds them to the baker.
package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"golang.org/x/image/bmp"

	"github.com/Faultbox/scenebake/pkg/math"
	"github.com/Faultbox/scenebake/pkg/scene"
)

var (
	// ErrTruncated is returned when image data ends early.
	ErrTruncated = errors.New("texture: truncated image data")
	// ErrUnknownImageType is returned when neither the name nor the content
	// identifies a supported image type.
	ErrUnknownImageType = errors.New("texture: unknown image type")
)

// Decode decodes a TGA, BMP, PNG or JPEG image. The type is taken from the
// extension of name and falls back to sniffing the content.
func Decode(data []byte, name string) (*image.RGBA, error) {
	var (
		img image.Image
		err error
	)

	switch kind(data, name) {
	case ".tga":
		return DecodeTGA(data)
	case ".bmp":
		img, err = bmp.Decode(bytes.NewReader(data))
	case ".png":
		img, err = png.Decode(bytes.NewReader(data))
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownImageType, name)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	return toRGBA(img), nil
}

// kind returns the lowercase extension used to pick a decoder.
func kind(data []byte, name string) string {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".tga", ".bmp", ".png", ".jpg", ".jpeg":
		return ext
	}

	// TGA has no magic number, so only the extension can select it.
	if t, err := filetype.Match(data); err == nil && t != filetype.Unknown {
		switch ext := "." + t.Extension; ext {
		case ".bmp", ".png", ".jpg":
			return ext
		}
	}
	return ""
}

// toRGBA converts img to a zero-origin *image.RGBA.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}

	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			i := rgba.PixOffset(x-b.Min.X, y-b.Min.Y)
			rgba.Pix[i+0] = uint8(r >> 8)
			rgba.Pix[i+1] = uint8(g >> 8)
			rgba.Pix[i+2] = uint8(bl >> 8)
			rgba.Pix[i+3] = uint8(a >> 8)
		}
	}
	return rgba
}

// ToImage copies rgba into a tightly packed scene image. The format only
// tags how the bytes are meant to be sampled; they are stored as-is.
func ToImage(rgba *image.RGBA, format scene.Format) scene.Image {
	w, h := rgba.Rect.Dx(), rgba.Rect.Dy()
	row := w * scene.BytesPerPixel
	data := make([]byte, row*h)
	for y := 0; y < h; y++ {
		start := rgba.PixOffset(rgba.Rect.Min.X, rgba.Rect.Min.Y+y)
		copy(data[y*row:], rgba.Pix[start:start+row])
	}
	return scene.Image{Width: uint32(w), Height: uint32(h), Format: format, Data: data}
}

// FromImage wraps a scene image as an *image.RGBA without copying.
func FromImage(img scene.Image) *image.RGBA {
	return &image.RGBA{
		Pix:    img.Data,
		Stride: int(img.Width) * scene.BytesPerPixel,
		Rect:   image.Rect(0, 0, int(img.Width), int(img.Height)),
	}
}

// Parameter folds a 1x1 texture into a constant Vec4 with components in
// [0, 1]. It reports false for any other size.
func Parameter(rgba *image.RGBA) (scene.MaterialParameter, bool) {
	if rgba.Rect.Dx() != 1 || rgba.Rect.Dy() != 1 {
		return scene.MaterialParameter{}, false
	}
	p := rgba.Pix[rgba.PixOffset(rgba.Rect.Min.X, rgba.Rect.Min.Y):]
	return scene.Vec4Parameter(math.Vec4{
		X: float32(p[0]) / 255,
		Y: float32(p[1]) / 255,
		Z: float32(p[2]) / 255,
		W: float32(p[3]) / 255,
	}), true
}

// Set collects the images referenced by materials. Each path is loaded once;
// later requests for the same path return the same parameter.
type Set struct {
	images []scene.Image
	params map[string]scene.MaterialParameter
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{params: make(map[string]scene.MaterialParameter)}
}

// Add returns the material parameter for the image file at path. A missing
// file yields the absent parameter, a 1x1 image a constant, and anything else
// a reference to a newly appended image.
func (s *Set) Add(path string, format scene.Format) (scene.MaterialParameter, error) {
	key := filepath.Clean(path)
	if p, ok := s.params[key]; ok {
		return p, nil
	}

	data, err := os.ReadFile(key)
	if errors.Is(err, os.ErrNotExist) {
		s.params[key] = scene.NoParameter()
		return scene.NoParameter(), nil
	}
	if err != nil {
		return scene.MaterialParameter{}, fmt.Errorf("reading texture: %w", err)
	}

	rgba, err := Decode(data, key)
	if err != nil {
		return scene.MaterialParameter{}, err
	}

	p, ok := Parameter(rgba)
	if !ok {
		p = scene.TextureParameter(uint32(len(s.images)))
		s.images = append(s.images, ToImage(rgba, format))
	}
	s.params[key] = p
	return p, nil
}

// Images returns the collected images in reference order.
func (s *Set) Images() []scene.Image { return s.images }
