package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/fidelity/internal/compare"
)

// RGBA is an 8-bit color.
type RGBA [4]uint8

// Common opaque colors.
var (
	Black = RGBA{0, 0, 0, 255}
	White = RGBA{255, 255, 255, 255}
	Red   = RGBA{255, 0, 0, 255}
	Cyan  = RGBA{0, 255, 255, 255}
)

// Solid returns a buffer filled with c.
func Solid(width, height int, c RGBA) compare.Buffer {
	buf := compare.NewBuffer(width, height)
	for pos := 0; pos < len(buf); pos += 4 {
		copy(buf[pos:pos+4], c[:])
	}
	return buf
}

// SetPixel overwrites the pixel at (x, y).
func SetPixel(buf compare.Buffer, width, x, y int, c RGBA) {
	pos := (y*width + x) * 4
	copy(buf[pos:pos+4], c[:])
}

// WritePNG encodes buf to path, creating parent directories.
func WritePNG(t *testing.T, path string, buf compare.Buffer, width, height int) {
	t.Helper()
	data, err := buf.EncodePNG(width, height)
	if err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ReadPNG decodes the PNG at path.
func ReadPNG(t *testing.T, path string) (compare.Buffer, int, int) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	buf, w, h, err := compare.DecodePNG(f)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return buf, w, h
}
