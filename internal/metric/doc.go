// Package metric implements the per-pixel color distance used to score a
// candidate screenshot against a golden image.
//
// Distances are measured in the YIQ color space: a luma term (Y) and two
// chrominance terms (I, Q) weighted by how sensitive the eye is to each.
// The result is the weighted squared delta, not its square root, so it is
// comparable with published pixelmatch thresholds.
//
// # Alpha
//
// Pixels are composited over an opaque white background before conversion,
// so a fully transparent pixel compares as white rather than being skipped.
//
// # Normalization
//
// MaxDistance is the largest delta any two opaque colors can produce
// (pure red against pure cyan). Distance/MaxDistance is always in [0,1].
package metric
