// Package frames samples still images out of a video.
//
// The Extractor walks the decoded frame sequence once, from index zero, and
// writes frame i as frame_{i}.jpg when i is a multiple of the configured
// interval, so a video of F frames yields ceil(F/N) files at indices
// 0, N, 2N, and so on. Decoding is strictly sequential; no seeking is used.
package frames
