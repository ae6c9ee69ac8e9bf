// Package imageio loads, converts, resamples, and saves still images for the
// normalization and captioning stages. JPEG, PNG, GIF, BMP, TIFF, and WebP
// decode; every format except WebP and GIF can be written.
package imageio
