package texture

import (
	"errors"
	"fmt"
	"image"
)

// TGA image types.
const (
	TGATypeUncompressed = 2  // uncompressed true-color
	TGATypeRLE          = 10 // RLE compressed true-color
)

const tgaHeaderSize = 18

// ErrUnsupportedTGA is returned for TGA variants outside true-color 24/32 bpp.
var ErrUnsupportedTGA = errors.New("texture: unsupported TGA")

// DecodeTGA decodes an uncompressed (type 2) or RLE (type 10) true-color
// TGA file with 24 or 32 bits per pixel.
func DecodeTGA(data []byte) (*image.RGBA, error) {
	if len(data) < tgaHeaderSize {
		return nil, fmt.Errorf("%w: TGA header needs %d bytes, have %d", ErrTruncated, tgaHeaderSize, len(data))
	}

	idLength := int(data[0])
	colorMapType := data[1]
	imageType := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	descriptor := data[17]

	if colorMapType != 0 {
		return nil, fmt.Errorf("%w: color-mapped", ErrUnsupportedTGA)
	}
	if imageType != TGATypeUncompressed && imageType != TGATypeRLE {
		return nil, fmt.Errorf("%w: type %d", ErrUnsupportedTGA, imageType)
	}
	if bpp != 24 && bpp != 32 {
		return nil, fmt.Errorf("%w: %d bits per pixel", ErrUnsupportedTGA, bpp)
	}

	offset := tgaHeaderSize + idLength
	if offset > len(data) {
		return nil, fmt.Errorf("%w: TGA id field", ErrTruncated)
	}

	px := tgaPixels{
		img:         image.NewRGBA(image.Rect(0, 0, width, height)),
		src:         data[offset:],
		size:        bpp / 8,
		topToBottom: descriptor&0x20 != 0,
	}

	var err error
	if imageType == TGATypeUncompressed {
		err = px.decodeRaw()
	} else {
		err = px.decodeRLE()
	}
	if err != nil {
		return nil, err
	}
	return px.img, nil
}

type tgaPixels struct {
	img         *image.RGBA
	src         []byte
	pos         int
	size        int // bytes per source pixel
	topToBottom bool
}

// next reads one BGR(A) pixel.
func (p *tgaPixels) next() ([4]byte, bool) {
	if p.pos+p.size > len(p.src) {
		return [4]byte{}, false
	}
	s := p.src[p.pos:]
	c := [4]byte{s[2], s[1], s[0], 255}
	if p.size == 4 {
		c[3] = s[3]
	}
	p.pos += p.size
	return c, true
}

// set stores pixel number i counted in file order.
func (p *tgaPixels) set(i int, c [4]byte) {
	w := p.img.Rect.Dx()
	x, y := i%w, i/w
	if !p.topToBottom {
		y = p.img.Rect.Dy() - 1 - y
	}
	copy(p.img.Pix[p.img.PixOffset(x, y):], c[:])
}

func (p *tgaPixels) decodeRaw() error {
	count := p.img.Rect.Dx() * p.img.Rect.Dy()
	if len(p.src) < count*p.size {
		return fmt.Errorf("%w: TGA pixel data", ErrTruncated)
	}
	for i := 0; i < count; i++ {
		c, _ := p.next()
		p.set(i, c)
	}
	return nil
}

func (p *tgaPixels) decodeRLE() error {
	count := p.img.Rect.Dx() * p.img.Rect.Dy()
	for i := 0; i < count; {
		if p.pos >= len(p.src) {
			return fmt.Errorf("%w: TGA RLE stream ends at pixel %d of %d", ErrTruncated, i, count)
		}
		packet := p.src[p.pos]
		p.pos++
		run := int(packet&0x7F) + 1

		if packet&0x80 != 0 {
			c, ok := p.next()
			if !ok {
				return fmt.Errorf("%w: TGA RLE packet", ErrTruncated)
			}
			for ; run > 0 && i < count; run-- {
				p.set(i, c)
				i++
			}
			continue
		}

		for ; run > 0 && i < count; run-- {
			c, ok := p.next()
			if !ok {
				return fmt.Errorf("%w: TGA raw packet", ErrTruncated)
			}
			p.set(i, c)
			i++
		}
	}
	return nil
}
