// Package recompress shrinks over-resolved images.
//
// An [Engine] visits every image binding reachable from the pages of a
// document, forms included, and looks up the image's effective resolution
// in a [resolution.Map]. Images above the configured threshold are
// resampled with an area-average filter to the target resolution and
// re-encoded in their original family: JPEG for DCT images, Flate with
// the PNG predictor for everything lossless.
//
// The engine can also write every image to disk (extraction) and replace
// images by files of the same base name from an import directory.
// Failures are per image: they are reported to the diagnostics sink and
// the image keeps its original data.
package recompress
