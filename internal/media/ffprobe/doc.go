// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: per-stream properties (dimensions, frame rate, frame count)
//
// Inspect executes ffprobe and returns the parsed Result. Helpers select the
// primary video stream and estimate its frame count for progress reporting.
package ffprobe
