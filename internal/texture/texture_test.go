package texture

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/Faultbox/scenebake/pkg/math"
	"github.com/Faultbox/scenebake/pkg/scene"
)

func tgaHeader(imageType, bpp, descriptor byte, w, h int) []byte {
	hdr := make([]byte, tgaHeaderSize)
	hdr[2] = imageType
	hdr[12], hdr[13] = byte(w), byte(w>>8)
	hdr[14], hdr[15] = byte(h), byte(h>>8)
	hdr[16] = bpp
	hdr[17] = descriptor
	return hdr
}

func TestDecodeTGAUncompressedBottomUp(t *testing.T) {
	// 2x2, 24 bpp, rows stored bottom row first, pixels in BGR order.
	data := tgaHeader(TGATypeUncompressed, 24, 0, 2, 2)
	data = append(data,
		0, 0, 255, 0, 255, 0, // bottom: red, green
		255, 0, 0, 255, 255, 255, // top: blue, white
	)

	img, err := DecodeTGA(data)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(1, 0))
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, img.RGBAAt(0, 1))
	assert.Equal(t, color.RGBA{0, 255, 0, 255}, img.RGBAAt(1, 1))
}

func TestDecodeTGARLE(t *testing.T) {
	// 3x1, 32 bpp, top-to-bottom: one run of 2 plus one raw pixel.
	data := tgaHeader(TGATypeRLE, 32, 0x20, 3, 1)
	data = append(data,
		0x81, 10, 20, 30, 40,
		0x00, 1, 2, 3, 4,
	)

	img, err := DecodeTGA(data)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{30, 20, 10, 40}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{30, 20, 10, 40}, img.RGBAAt(1, 0))
	assert.Equal(t, color.RGBA{3, 2, 1, 4}, img.RGBAAt(2, 0))
}

func TestDecodeTGAErrors(t *testing.T) {
	_, err := DecodeTGA([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = DecodeTGA(tgaHeader(1, 24, 0, 1, 1))
	assert.ErrorIs(t, err, ErrUnsupportedTGA)

	_, err = DecodeTGA(tgaHeader(TGATypeUncompressed, 16, 0, 1, 1))
	assert.ErrorIs(t, err, ErrUnsupportedTGA)

	_, err = DecodeTGA(append(tgaHeader(TGATypeUncompressed, 24, 0, 2, 1), 1, 2, 3))
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = DecodeTGA(append(tgaHeader(TGATypeRLE, 24, 0, 4, 1), 0x81, 1, 2, 3))
	assert.ErrorIs(t, err, ErrTruncated)
}

func checker() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{255, 0, 0, 255})
	img.SetRGBA(1, 0, color.RGBA{0, 255, 0, 255})
	img.SetRGBA(0, 1, color.RGBA{0, 0, 255, 255})
	img.SetRGBA(1, 1, color.RGBA{255, 255, 255, 255})
	return img
}

func TestDecodePNGAndBMP(t *testing.T) {
	want := checker()

	var pngBuf, bmpBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, want))
	require.NoError(t, bmp.Encode(&bmpBuf, want))

	got, err := Decode(pngBuf.Bytes(), "checker.PNG")
	require.NoError(t, err)
	assert.Equal(t, want.Pix, got.Pix)

	got, err = Decode(bmpBuf.Bytes(), "checker.bmp")
	require.NoError(t, err)
	assert.Equal(t, want.Pix, got.Pix)

	// Content sniffing when the name has no known extension.
	got, err = Decode(pngBuf.Bytes(), "blob")
	require.NoError(t, err)
	assert.Equal(t, want.Pix, got.Pix)
}

func TestDecodeJPEG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range src.Pix {
		src.Pix[i] = 128
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, src, nil))

	got, err := Decode(buf.Bytes(), "")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 8), got.Rect)
	assert.Equal(t, uint8(255), got.Pix[3])
}

func TestDecodeUnknown(t *testing.T) {
	_, err := Decode([]byte("GIF89a"), "x.gif")
	assert.ErrorIs(t, err, ErrUnknownImageType)
}

func TestToImage(t *testing.T) {
	src := checker()
	img := ToImage(src, scene.FormatSRGBA8)
	assert.Equal(t, uint32(2), img.Width)
	assert.Equal(t, uint32(2), img.Height)
	assert.Equal(t, scene.FormatSRGBA8, img.Format)
	assert.Equal(t, src.Pix, img.Data)

	// A sub-image has a stride wider than its rows; the copy is packed.
	sub := src.SubImage(image.Rect(1, 0, 2, 2)).(*image.RGBA)
	img = ToImage(sub, scene.FormatRGBA8)
	assert.Equal(t, []byte{0, 255, 0, 255, 255, 255, 255, 255}, img.Data)

	back := FromImage(img)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, back.RGBAAt(0, 1))
}

func TestParameter(t *testing.T) {
	one := image.NewRGBA(image.Rect(0, 0, 1, 1))
	one.SetRGBA(0, 0, color.RGBA{255, 0, 255, 255})

	p, ok := Parameter(one)
	require.True(t, ok)
	assert.Equal(t, scene.Vec4Parameter(math.Vec4{X: 1, Y: 0, Z: 1, W: 1}), p)

	_, ok = Parameter(checker())
	assert.False(t, ok)
}

func TestSet(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, img image.Image) string {
		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, img))
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
		return path
	}

	one := image.NewRGBA(image.Rect(0, 0, 1, 1))
	one.SetRGBA(0, 0, color.RGBA{0, 0, 0, 255})
	constant := write("constant.png", one)
	big := write("big.png", checker())

	s := NewSet()

	p, err := s.Add(big, scene.FormatRGBA8)
	require.NoError(t, err)
	assert.Equal(t, scene.TextureParameter(0), p)

	p, err = s.Add(constant, scene.FormatRGBA8)
	require.NoError(t, err)
	assert.Equal(t, scene.ParamVec4, p.Kind)

	p, err = s.Add(filepath.Join(dir, ".", "big.png"), scene.FormatRGBA8)
	require.NoError(t, err)
	assert.Equal(t, scene.TextureParameter(0), p, "same path is loaded once")

	p, err = s.Add(filepath.Join(dir, "missing.png"), scene.FormatRGBA8)
	require.NoError(t, err)
	assert.Equal(t, scene.NoParameter(), p)

	require.Len(t, s.Images(), 1)
	assert.Equal(t, checker().Pix, s.Images()[0].Data)
}
