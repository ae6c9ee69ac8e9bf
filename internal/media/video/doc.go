// Package video decodes video files into a sequential stream of RGB frames.
//
// Open probes the source with ffprobe, then runs ffmpeg with raw rgb24 output
// on a pipe; Decoder.Next hands back one frame per call in decode order.
// There is no seeking. A decoder that stops with an error after the stream
// started reports services.ErrDecode so callers can keep the frames they
// already consumed.
package video
