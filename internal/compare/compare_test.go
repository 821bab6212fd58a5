package compare

import (
	"bytes"
	"image/png"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fidelity/internal/metric"
)

func solid(width, height int, r, g, b, a uint8) Buffer {
	buf := NewBuffer(width, height)
	for pos := 0; pos < len(buf); pos += 4 {
		buf[pos], buf[pos+1], buf[pos+2], buf[pos+3] = r, g, b, a
	}
	return buf
}

func randomBuffer(rng *rand.Rand, width, height int) Buffer {
	buf := NewBuffer(width, height)
	_, _ = rng.Read(buf)
	return buf
}

func decodePixel(t *testing.T, data []byte, x, y int) [4]uint8 {
	t.Helper()
	buf, w, _, err := DecodePNG(bytes.NewReader(data))
	require.NoError(t, err)
	pos := (y*w + x) * 4
	return [4]uint8{buf[pos], buf[pos+1], buf[pos+2], buf[pos+3]}
}

func TestCompare_IdenticalBuffers(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	sizes := [][2]int{{1, 1}, {1, 7}, {7, 1}, {16, 9}, {33, 17}}

	for _, size := range sizes {
		w, h := size[0], size[1]
		buf := randomBuffer(rng, w, h)

		result, err := Compare(buf, buf, w, h)
		require.NoError(t, err)

		assert.Equal(t, 1.0, result.Analysis.Matching, "%dx%d", w, h)
		assert.Equal(t, 0.0, result.Analysis.AverageDistance, "%dx%d", w, h)
		assert.Equal(t, 0.0, result.Analysis.NotMatchingAverageDistance, "%dx%d", w, h)
		assert.Equal(t, w*h, result.MatchedPixels)
	}
}

func TestCompare_BlackAgainstWhite(t *testing.T) {
	black := solid(1, 1, 0, 0, 0, 255)
	white := solid(1, 1, 255, 255, 255, 255)

	result, err := Compare(black, white, 1, 1)
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.Analysis.Matching)
	assert.InDelta(t, 0.933, result.Analysis.AverageDistance, 0.001)
	assert.Equal(t, result.Analysis.AverageDistance, result.Analysis.NotMatchingAverageDistance)

	assert.Equal(t, [4]uint8{0, 0, 0, 255}, decodePixel(t, result.Images.Boolean, 0, 0))

	intensity := metric.Intensity(metric.Distance(black, white, 0))
	assert.Equal(t, [4]uint8{255, intensity, intensity, 255}, decodePixel(t, result.Images.Delta, 0, 0))
}

func TestCompare_MaximallyDifferent(t *testing.T) {
	red := solid(1, 1, 255, 0, 0, 255)
	cyan := solid(1, 1, 0, 255, 255, 255)

	result, err := Compare(red, cyan, 1, 1)
	require.NoError(t, err)

	assert.Equal(t, Analysis{
		AverageDistance:            1,
		Matching:                   0,
		NotMatchingAverageDistance: 1,
	}, result.Analysis)
	assert.Equal(t, [4]uint8{255, 0, 0, 255}, decodePixel(t, result.Images.Delta, 0, 0))
	assert.Equal(t, [4]uint8{0, 0, 0, 255}, decodePixel(t, result.Images.Boolean, 0, 0))
}

func TestCompare_OnePixelOfFour(t *testing.T) {
	golden := solid(2, 2, 255, 0, 0, 255)
	candidate := solid(2, 2, 255, 0, 0, 255)
	// Bottom-right pixel becomes cyan.
	copy(candidate[12:16], []byte{0, 255, 255, 255})

	result, err := Compare(candidate, golden, 2, 2)
	require.NoError(t, err)

	assert.Equal(t, 0.75, result.Analysis.Matching)
	assert.Equal(t, 0.25, result.Analysis.AverageDistance)
	assert.Equal(t, 1.0, result.Analysis.NotMatchingAverageDistance)
	assert.Equal(t, 3, result.MatchedPixels)
	assert.Equal(t, 4, result.TotalPixels)

	white := [4]uint8{255, 255, 255, 255}
	assert.Equal(t, white, decodePixel(t, result.Images.Boolean, 0, 0))
	assert.Equal(t, white, decodePixel(t, result.Images.Boolean, 1, 0))
	assert.Equal(t, white, decodePixel(t, result.Images.Boolean, 0, 1))
	assert.Equal(t, [4]uint8{0, 0, 0, 255}, decodePixel(t, result.Images.Boolean, 1, 1))
}

func TestCompare_SubThresholdDifferenceMatches(t *testing.T) {
	candidate := solid(1, 1, 100, 100, 100, 255)
	golden := solid(1, 1, 101, 100, 100, 255)

	result, err := Compare(candidate, golden, 1, 1)
	require.NoError(t, err)

	assert.Equal(t, 1.0, result.Analysis.Matching)
	assert.Greater(t, result.Analysis.AverageDistance, 0.0)
	assert.Equal(t, 0.0, result.Analysis.NotMatchingAverageDistance)
}

func TestCompare_SizeMismatch(t *testing.T) {
	tests := []struct {
		name      string
		candidate Buffer
		golden    Buffer
	}{
		{"golden shorter", NewBuffer(2, 2), NewBuffer(2, 1)},
		{"candidate shorter", NewBuffer(1, 1), NewBuffer(2, 2)},
		{"both wrong", NewBuffer(3, 3), NewBuffer(3, 3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Compare(tt.candidate, tt.golden, 2, 2)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, IsSizeMismatch(err))
			assert.Contains(t, err.Error(), "SIZE_MISMATCH")
		})
	}
}

func TestCompare_InvalidDimensions(t *testing.T) {
	_, err := Compare(Buffer{}, Buffer{}, 0, 0)
	require.ErrorIs(t, err, ErrInvalidDimensions)
}

func TestCompare_DoesNotMutateInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	candidate := randomBuffer(rng, 8, 8)
	golden := randomBuffer(rng, 8, 8)
	candidateCopy := append(Buffer(nil), candidate...)
	goldenCopy := append(Buffer(nil), golden...)

	result, err := Compare(candidate, golden, 8, 8)
	require.NoError(t, err)

	assert.Equal(t, candidateCopy, candidate)
	assert.Equal(t, goldenCopy, golden)

	decoded, _, _, err := DecodePNG(bytes.NewReader(result.Images.Candidate))
	require.NoError(t, err)
	assert.Equal(t, candidateCopy, decoded)

	decoded, _, _, err = DecodePNG(bytes.NewReader(result.Images.Golden))
	require.NoError(t, err)
	assert.Equal(t, goldenCopy, decoded)
}

func TestCompare_WorkerCountIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	candidate := randomBuffer(rng, 41, 23)
	golden := randomBuffer(rng, 41, 23)

	serial, err := (&Comparator{Workers: 1}).Compare(candidate, golden, 41, 23)
	require.NoError(t, err)
	parallel, err := (&Comparator{Workers: 8}).Compare(candidate, golden, 41, 23)
	require.NoError(t, err)

	assert.Equal(t, serial.Analysis, parallel.Analysis)
	assert.Equal(t, serial.Images, parallel.Images)
}

func TestCompare_RatiosBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for i := 0; i < 20; i++ {
		w, h := 1+rng.Intn(20), 1+rng.Intn(20)
		result, err := Compare(randomBuffer(rng, w, h), randomBuffer(rng, w, h), w, h)
		require.NoError(t, err)

		for name, v := range map[string]float64{
			"matching":                   result.Analysis.Matching,
			"averageDistance":            result.Analysis.AverageDistance,
			"notMatchingAverageDistance": result.Analysis.NotMatchingAverageDistance,
		} {
			assert.GreaterOrEqual(t, v, 0.0, name)
			assert.LessOrEqual(t, v, 1.0, name)
		}
	}
}

func TestBufferFromImage_ConvertsColorModels(t *testing.T) {
	src := solid(3, 2, 10, 20, 30, 255)
	data, err := src.EncodePNG(3, 2)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	buf, w, h := BufferFromImage(img)
	assert.Equal(t, 3, w)
	assert.Equal(t, 2, h)
	assert.Equal(t, src, buf)
}
