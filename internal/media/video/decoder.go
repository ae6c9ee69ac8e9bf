package video

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"vlmprep/internal/media/ffprobe"
	"vlmprep/internal/services"
)

const stderrLimit = 8 << 10

// Frame is one decoded video frame. Index counts decoded frames from zero.
type Frame struct {
	Index int
	Image *image.RGBA
}

// Info describes the opened video stream.
type Info struct {
	Width  int
	Height int
	// FrameRate is 0 when ffprobe did not report one.
	FrameRate float64
	// EstimatedFrames is 0 when the frame count is unknown.
	EstimatedFrames int64
	Codec           string
}

// Options configures the external tools used for decoding.
type Options struct {
	FFmpeg  string
	FFprobe string
}

// Decoder streams frames from an ffmpeg child process in decode order. It
// provides sequential access only.
type Decoder struct {
	info   Info
	cmd    *exec.Cmd
	stdout io.ReadCloser
	reader *bufio.Reader
	stderr *boundedBuffer
	buf    []byte
	next   int

	mu      sync.Mutex
	waited  bool
	waitErr error
}

// Open probes path and starts a streaming decode of its first video stream.
// Errors here mean the source cannot be read at all.
func Open(ctx context.Context, path string, opts Options) (*Decoder, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "frames", "open video", fmt.Sprintf("video %q does not exist", path), err)
		}
		return nil, services.Wrap(services.ErrValidation, "frames", "open video", fmt.Sprintf("stat %q", path), err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "frames", "open video", fmt.Sprintf("%q is a directory", path), nil)
	}

	probe, err := ffprobe.Inspect(ctx, opts.FFprobe, path)
	if err != nil {
		return nil, services.Wrap(services.ErrDecode, "frames", "probe video", fmt.Sprintf("cannot open %q", path), err)
	}
	stream, ok := probe.VideoStream()
	if !ok {
		return nil, services.Wrap(services.ErrDecode, "frames", "probe video", fmt.Sprintf("%q has no video stream", path), nil)
	}

	ffmpeg := strings.TrimSpace(opts.FFmpeg)
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, ffmpeg, decodeArgs(path, stream.Index)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "frames", "start decoder", "stdout pipe", err)
	}
	stderr := &boundedBuffer{limit: stderrLimit}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "frames", "start decoder", ffmpeg, err)
	}

	return &Decoder{
		info: Info{
			Width:           stream.Width,
			Height:          stream.Height,
			FrameRate:       stream.FrameRate(),
			EstimatedFrames: probe.EstimatedFrames(stream),
			Codec:           stream.CodecName,
		},
		cmd:    cmd,
		stdout: stdout,
		reader: bufio.NewReaderSize(stdout, 1<<20),
		stderr: stderr,
		buf:    make([]byte, stream.Width*stream.Height*3),
	}, nil
}

func decodeArgs(path string, streamIndex int) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-v", "error",
		"-noautorotate",
		"-i", path,
		"-map", "0:" + strconv.Itoa(streamIndex),
		"-an", "-sn", "-dn",
		// rawvideo carries no timestamps, so the default sync mode would
		// duplicate or drop frames of variable frame rate sources.
		"-fps_mode", "passthrough",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	}
}

// Info returns the probed stream properties.
func (d *Decoder) Info() Info {
	return d.info
}

// Next returns the next frame in decode order. It returns io.EOF once the
// stream ended cleanly. Any other error marks a mid-stream decode failure and
// is tagged with services.ErrDecode; frames returned earlier remain valid.
func (d *Decoder) Next() (Frame, error) {
	_, err := io.ReadFull(d.reader, d.buf)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		if waitErr := d.wait(); waitErr != nil {
			return Frame{}, d.decodeError("decoder exited with error", waitErr)
		}
		return Frame{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		waitErr := d.wait()
		if waitErr == nil {
			waitErr = err
		}
		return Frame{}, d.decodeError(fmt.Sprintf("truncated frame %d", d.next), waitErr)
	default:
		return Frame{}, d.decodeError("read frame", err)
	}

	img := rgbToRGBA(d.buf, d.info.Width, d.info.Height)
	frame := Frame{Index: d.next, Image: img}
	d.next++
	return frame, nil
}

// Close stops the decoder process. It is safe to call more than once.
func (d *Decoder) Close() error {
	if d == nil || d.cmd == nil {
		return nil
	}
	d.mu.Lock()
	waited := d.waited
	d.mu.Unlock()
	if !waited && d.cmd.Process != nil {
		_ = d.cmd.Process.Kill()
	}
	_ = d.wait()
	return nil
}

func (d *Decoder) wait() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.waited {
		return d.waitErr
	}
	d.waited = true
	_, _ = io.Copy(io.Discard, d.stdout)
	d.waitErr = d.cmd.Wait()
	return d.waitErr
}

func (d *Decoder) decodeError(message string, err error) error {
	if detail := strings.TrimSpace(d.stderr.String()); detail != "" {
		message = message + ": " + lastLine(detail)
	}
	return services.Wrap(services.ErrDecode, "frames", "decode", message, err)
}

func rgbToRGBA(src []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	pix := img.Pix
	for i, j := 0, 0; i+2 < len(src); i, j = i+3, j+4 {
		pix[j] = src[i]
		pix[j+1] = src[i+1]
		pix[j+2] = src[i+2]
		pix[j+3] = 0xff
	}
	return img
}

func lastLine(s string) string {
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[idx+1:])
	}
	return s
}

// boundedBuffer keeps the tail of the decoder's stderr for diagnostics.
type boundedBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(p)
	b.buf.Write(p)
	if over := b.buf.Len() - b.limit; over > 0 {
		b.buf.Next(over)
	}
	return n, nil
}

func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
