package compare

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/fidelity/internal/metric"
)

// Analysis holds the summary statistics of one comparison.
// Field order matches the persisted analysis.json document.
type Analysis struct {
	AverageDistance            float64 `json:"averageDistance"`
	Matching                   float64 `json:"matching"`
	NotMatchingAverageDistance float64 `json:"notMatchingAverageDistance"`
}

// Images holds the PNG encoded outputs of a comparison.
type Images struct {
	Delta     []byte
	Boolean   []byte
	Candidate []byte
	Golden    []byte
}

// Result is the outcome of comparing one candidate against one golden.
type Result struct {
	Analysis Analysis
	Images   Images

	Width         int
	Height        int
	TotalPixels   int
	MatchedPixels int
}

// Comparator scores pixel buffers. The zero value is ready to use and runs
// one worker per CPU.
type Comparator struct {
	// Workers bounds the number of rows scored concurrently.
	// Values below 1 mean runtime.GOMAXPROCS(0).
	Workers int
}

// Compare scores candidate against golden using a default Comparator.
func Compare(candidate, golden Buffer, width, height int) (*Result, error) {
	return (&Comparator{}).Compare(candidate, golden, width, height)
}

// rowStats are the partial sums of a single row.
type rowStats struct {
	matched        int
	sum            float64
	notMatchingSum float64
}

// Compare scores candidate against golden. Inputs are not modified.
//
// Returns a *SizeMismatchError if either buffer is not width*height*4 bytes
// long. No partial result is produced in that case.
func (c *Comparator) Compare(candidate, golden Buffer, width, height int) (*Result, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	want := width * height * metric.BytesPerPixel
	if len(candidate) != want || len(golden) != want {
		return nil, &SizeMismatchError{
			CandidateLen: len(candidate),
			GoldenLen:    len(golden),
			Width:        width,
			Height:       height,
		}
	}

	delta := NewBuffer(width, height)
	boolean := NewBuffer(width, height)
	rows := make([]rowStats, height)

	var g errgroup.Group
	g.SetLimit(c.workers())
	for y := 0; y < height; y++ {
		g.Go(func() error {
			rows[y] = scoreRow(candidate, golden, delta, boolean, width, y)
			return nil
		})
	}
	_ = g.Wait()

	var (
		matched        int
		sum            float64
		notMatchingSum float64
	)
	for _, r := range rows {
		matched += r.matched
		sum += r.sum
		notMatchingSum += r.notMatchingSum
	}

	total := width * height
	analysis := Analysis{
		AverageDistance: metric.Ratio(sum / float64(total)),
		Matching:        float64(matched) / float64(total),
	}
	if notMatching := total - matched; notMatching > 0 {
		analysis.NotMatchingAverageDistance = metric.Ratio(notMatchingSum / float64(notMatching))
	}

	images, err := encodeImages(candidate, golden, delta, boolean, width, height)
	if err != nil {
		return nil, err
	}

	return &Result{
		Analysis:      analysis,
		Images:        images,
		Width:         width,
		Height:        height,
		TotalPixels:   total,
		MatchedPixels: matched,
	}, nil
}

func (c *Comparator) workers() int {
	if c == nil || c.Workers < 1 {
		return runtime.GOMAXPROCS(0)
	}
	return c.Workers
}

// scoreRow scores row y and writes its delta and boolean pixels. Each call
// touches a disjoint slice of the output buffers.
func scoreRow(candidate, golden, delta, boolean Buffer, width, y int) rowStats {
	var s rowStats
	for x := 0; x < width; x++ {
		pos := (y*width + x) * metric.BytesPerPixel
		d := metric.Distance(candidate, golden, pos)
		intensity := metric.Intensity(d)

		var flag uint8
		if intensity == metric.MaxChannel {
			flag = metric.MaxChannel
			s.matched++
		} else {
			s.notMatchingSum += d
		}
		s.sum += d

		drawPixel(delta, pos, metric.MaxChannel, intensity, intensity)
		drawPixel(boolean, pos, flag, flag, flag)
	}
	return s
}

func drawPixel(buf Buffer, pos int, r, g, b uint8) {
	buf[pos] = r
	buf[pos+1] = g
	buf[pos+2] = b
	buf[pos+3] = metric.MaxChannel
}

func encodeImages(candidate, golden, delta, boolean Buffer, width, height int) (Images, error) {
	var (
		images Images
		err    error
	)
	if images.Delta, err = delta.EncodePNG(width, height); err != nil {
		return Images{}, fmt.Errorf("delta image: %w", err)
	}
	if images.Boolean, err = boolean.EncodePNG(width, height); err != nil {
		return Images{}, fmt.Errorf("boolean image: %w", err)
	}
	if images.Candidate, err = candidate.EncodePNG(width, height); err != nil {
		return Images{}, fmt.Errorf("candidate image: %w", err)
	}
	if images.Golden, err = golden.EncodePNG(width, height); err != nil {
		return Images{}, fmt.Errorf("golden image: %w", err)
	}
	return images, nil
}
