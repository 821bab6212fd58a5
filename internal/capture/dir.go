package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/roach88/fidelity/internal/compare"
)

// Dir replays candidates from an earlier results tree instead of rendering
// them. For scenario slug it reads the first of
//
//	<Root>/<slug>/<golden>/candidate.png   (goldens in name order)
//	<Root>/<slug>.png
type Dir struct {
	Root string
}

// Capture implements Capturer.
func (d Dir) Capture(ctx context.Context, req Request) (compare.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := d.locate(req.Slug)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("CAPTURE_FAILED: %s: %w", req.Slug, err)
	}
	defer f.Close()

	buf, w, h, err := compare.DecodePNG(f)
	if err != nil {
		return nil, fmt.Errorf("CAPTURE_FAILED: %s: %s: %w", req.Slug, path, err)
	}
	if w != req.Width || h != req.Height {
		return nil, &DimensionError{Slug: req.Slug, Width: w, Height: h, WantW: req.Width, WantH: req.Height}
	}
	return buf, nil
}

func (d Dir) locate(slug string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(d.Root, slug, "*", "candidate.png"))
	if err != nil {
		return "", fmt.Errorf("CAPTURE_FAILED: %s: %w", slug, err)
	}
	if len(matches) > 0 {
		sort.Strings(matches)
		return matches[0], nil
	}

	flat := filepath.Join(d.Root, slug+".png")
	if _, err := os.Stat(flat); err == nil {
		return flat, nil
	}
	return "", fmt.Errorf("CAPTURE_FAILED: %s: no candidate found under %s", slug, d.Root)
}
