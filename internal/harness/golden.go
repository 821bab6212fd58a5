package harness

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/fidelity/internal/compare"
	"github.com/roach88/fidelity/internal/config"
)

// GoldenPath resolves the file of golden g in scenario slug. Relative files
// live under root/<slug>/.
func GoldenPath(root, slug string, g config.Golden) string {
	if filepath.IsAbs(g.File) {
		return g.File
	}
	return filepath.Join(root, slug, filepath.FromSlash(g.File))
}

// LoadGolden reads and decodes the golden PNG at path.
func LoadGolden(path string) (compare.Buffer, int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, &goldenIOError{Path: path, Err: err}
	}
	defer f.Close()

	buf, w, h, err := compare.DecodePNG(f)
	if err != nil {
		return nil, 0, 0, &goldenIOError{Path: path, Err: err}
	}
	return buf, w, h, nil
}

// checkGoldenSize rejects goldens whose dimensions differ from the scenario
// even when the byte lengths happen to agree.
func checkGoldenSize(path string, candidate, golden compare.Buffer, w, h int, dims config.Dimensions) error {
	if w == dims.Width && h == dims.Height {
		return nil
	}
	return fmt.Errorf("golden %s is %dx%d, scenario is %s: %w", path, w, h, dims, &compare.SizeMismatchError{
		CandidateLen: len(candidate),
		GoldenLen:    len(golden),
		Width:        dims.Width,
		Height:       dims.Height,
	})
}
