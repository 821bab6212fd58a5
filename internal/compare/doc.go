// Package compare scores a candidate pixel buffer against a golden buffer.
//
// Compare walks every pixel (row-major), measures its distance with
// metric.Distance and produces:
//
//   - an Analysis with the matching ratio, the mean distance over all pixels
//     and the mean distance over non-matching pixels, each in [0,1];
//   - a delta image, a red tinted heatmap where brighter means more similar;
//   - a boolean image, white where the pixel matches and black where not;
//   - PNG copies of the candidate and golden buffers.
//
// A pixel matches when its intensity rounds to the channel maximum. There is
// no configurable threshold.
//
// When every pixel matches, NotMatchingAverageDistance is reported as 0.
//
// Rows are scored by independent workers. Per-row partial sums are reduced
// in row order, so the statistics do not depend on the worker count.
package compare
