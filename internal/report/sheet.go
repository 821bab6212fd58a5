package report

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/fogleman/gg"

	"github.com/roach88/fidelity/internal/compare"
)

// SheetGap is the white margin around and between sheet images, in pixels.
const SheetGap = 8

// Sheet composes the four images of a comparison side by side, in
// ViewOrder, on a white background and returns the sheet as PNG.
func Sheet(images compare.Images) ([]byte, error) {
	sources := [][]byte{images.Candidate, images.Boolean, images.Delta, images.Golden}

	var width, height int
	decoded := make([]image.Image, 0, len(sources))
	for i, src := range sources {
		img, err := png.Decode(bytes.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", ViewOrder[i], err)
		}
		b := img.Bounds()
		if i == 0 {
			width, height = b.Dx(), b.Dy()
		} else if b.Dx() != width || b.Dy() != height {
			return nil, fmt.Errorf("%s is %dx%d, want %dx%d", ViewOrder[i], b.Dx(), b.Dy(), width, height)
		}
		decoded = append(decoded, img)
	}

	n := len(decoded)
	dc := gg.NewContext(n*width+(n+1)*SheetGap, height+2*SheetGap)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	x := SheetGap
	for _, img := range decoded {
		dc.DrawImage(img, x, SheetGap)
		x += width + SheetGap
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode sheet: %w", err)
	}
	return buf.Bytes(), nil
}
