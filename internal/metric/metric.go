package metric

import "math"

// Channel range of an 8-bit RGBA buffer.
const (
	MaxChannel = 255

	// BytesPerPixel is the stride of an RGBA pixel buffer.
	BytesPerPixel = 4
)

// YIQ weights for the squared delta.
const (
	weightY = 0.5053
	weightI = 0.299
	weightQ = 0.1957
)

// MaxDistance is the delta between the two most distant opaque colors,
// red and cyan. It is about 35214.75, so the most distant pair has a ratio
// of exactly 1.
var MaxDistance = maxOpaqueDelta()

// Distance returns the color delta between the pixels at byte offset pos in
// a and b. Both buffers must hold at least pos+4 bytes.
func Distance(a, b []byte, pos int) float64 {
	return Delta(
		a[pos], a[pos+1], a[pos+2], a[pos+3],
		b[pos], b[pos+1], b[pos+2], b[pos+3],
	)
}

// Delta returns the color delta between two RGBA pixels.
func Delta(r1, g1, b1, a1, r2, g2, b2, a2 uint8) float64 {
	alpha1 := float64(a1) / MaxChannel
	alpha2 := float64(a2) / MaxChannel

	return yiqDelta(
		blend(r1, alpha1), blend(g1, alpha1), blend(b1, alpha1),
		blend(r2, alpha2), blend(g2, alpha2), blend(b2, alpha2),
	)
}

// Ratio normalizes a delta into [0,1].
func Ratio(delta float64) float64 {
	r := delta / MaxDistance
	if r > 1 {
		return 1
	}
	return r
}

// Intensity maps a delta onto the channel range: MaxChannel for identical
// pixels down to 0 for the most distant pair.
func Intensity(delta float64) uint8 {
	scaled := roundHalfUp(MaxChannel * delta / MaxDistance)
	v := MaxChannel - scaled
	if v < 0 {
		return 0
	}
	if v > MaxChannel {
		return MaxChannel
	}
	return uint8(v)
}

// blend composites a channel value over white.
func blend(c uint8, alpha float64) float64 {
	return MaxChannel + (float64(c)-MaxChannel)*alpha
}

func yiqDelta(r1, g1, b1, r2, g2, b2 float64) float64 {
	y := rgb2y(r1, g1, b1) - rgb2y(r2, g2, b2)
	i := rgb2i(r1, g1, b1) - rgb2i(r2, g2, b2)
	q := rgb2q(r1, g1, b1) - rgb2q(r2, g2, b2)

	return weightY*y*y + weightI*i*i + weightQ*q*q
}

func rgb2y(r, g, b float64) float64 { return r*0.29889531 + g*0.58662247 + b*0.11448223 }
func rgb2i(r, g, b float64) float64 { return r*0.59597799 - g*0.27417610 - b*0.32180189 }
func rgb2q(r, g, b float64) float64 { return r*0.21147017 - g*0.52261711 + b*0.31114694 }

// maxOpaqueDelta scans the corners of the RGB cube. The delta is a convex
// quadratic form of the channel differences, so its maximum over the cube
// lies on a pair of corners.
func maxOpaqueDelta() float64 {
	var corners [8][3]float64
	for n := range corners {
		for c := 0; c < 3; c++ {
			if n&(1<<c) != 0 {
				corners[n][c] = MaxChannel
			}
		}
	}

	best := 0.0
	for _, p := range corners {
		for _, q := range corners {
			d := yiqDelta(p[0], p[1], p[2], q[0], q[1], q[2])
			if d > best {
				best = d
			}
		}
	}
	return best
}

// roundHalfUp rounds like JavaScript's Math.round for the non-negative
// values produced here. Adding 0.5 first would round the largest double
// below 0.5 up to 1.
func roundHalfUp(v float64) int {
	return int(math.Round(v))
}
