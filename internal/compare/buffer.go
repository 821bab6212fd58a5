package compare

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"

	"github.com/roach88/fidelity/internal/metric"
)

// Buffer is a row-major RGBA pixel buffer, four bytes per pixel, without
// alpha premultiplication.
type Buffer []byte

// NewBuffer allocates a zeroed buffer for a width x height image.
func NewBuffer(width, height int) Buffer {
	return make(Buffer, width*height*metric.BytesPerPixel)
}

// BufferFromImage returns the pixels of img as a Buffer together with its
// dimensions. NRGBA images are copied directly; anything else is converted.
func BufferFromImage(img image.Image) (Buffer, int, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if n, ok := img.(*image.NRGBA); ok && n.Stride == w*metric.BytesPerPixel && b.Min == (image.Point{}) {
		buf := make(Buffer, len(n.Pix))
		copy(buf, n.Pix)
		return buf, w, h
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return Buffer(dst.Pix), w, h
}

// DecodePNG reads a PNG stream into a Buffer.
func DecodePNG(r io.Reader) (Buffer, int, int, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode png: %w", err)
	}
	buf, w, h := BufferFromImage(img)
	return buf, w, h, nil
}

// Image wraps the buffer as an image without copying.
func (b Buffer) Image(width, height int) *image.NRGBA {
	return &image.NRGBA{
		Pix:    b,
		Stride: width * metric.BytesPerPixel,
		Rect:   image.Rect(0, 0, width, height),
	}
}

// EncodePNG encodes the buffer as a PNG image.
func (b Buffer) EncodePNG(width, height int) ([]byte, error) {
	if len(b) != width*height*metric.BytesPerPixel {
		return nil, fmt.Errorf("encode png: buffer holds %d bytes, want %d", len(b), width*height*metric.BytesPerPixel)
	}
	var out bytes.Buffer
	if err := png.Encode(&out, b.Image(width, height)); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return out.Bytes(), nil
}
