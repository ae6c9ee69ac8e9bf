package video

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"vlmprep/internal/services"
)

const probeStub = `#!/bin/sh
cat <<'JSON'
{"streams":[{"index":0,"codec_type":"video","codec_name":"rawvideo","width":2,"height":1,"avg_frame_rate":"10/1","nb_frames":"3"}],"format":{"duration":"0.3"}}
JSON
`

func writeStub(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return path
}

func stubOptions(t *testing.T, ffmpegScript string) (Options, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	dir := t.TempDir()
	video := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(video, []byte("not really a video"), 0o644); err != nil {
		t.Fatalf("write video placeholder: %v", err)
	}
	return Options{
		FFprobe: writeStub(t, dir, "ffprobe", probeStub),
		FFmpeg:  writeStub(t, dir, "ffmpeg", ffmpegScript),
	}, video
}

func TestDecoderStreamsFramesUntilEOF(t *testing.T) {
	// Three 2x1 rgb24 frames of 6 bytes each.
	opts, video := stubOptions(t, "#!/bin/sh\ndd if=/dev/zero bs=6 count=3 2>/dev/null\n")

	dec, err := Open(context.Background(), video, opts)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer dec.Close()

	if info := dec.Info(); info.Width != 2 || info.Height != 1 || info.EstimatedFrames != 3 {
		t.Fatalf("unexpected info: %+v", info)
	}

	var indices []int
	for {
		frame, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next returned error: %v", err)
		}
		if frame.Image.Bounds().Dx() != 2 || frame.Image.Bounds().Dy() != 1 {
			t.Fatalf("unexpected frame bounds: %v", frame.Image.Bounds())
		}
		if a := frame.Image.RGBAAt(0, 0).A; a != 0xff {
			t.Fatalf("expected opaque pixels, got alpha %d", a)
		}
		indices = append(indices, frame.Index)
	}
	if len(indices) != 3 || indices[0] != 0 || indices[2] != 2 {
		t.Fatalf("unexpected frame indices: %v", indices)
	}
	if err := dec.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}

func TestDecoderReportsMidStreamFailure(t *testing.T) {
	opts, video := stubOptions(t, "#!/bin/sh\ndd if=/dev/zero bs=6 count=1 2>/dev/null\necho 'corrupt packet' >&2\nexit 1\n")

	dec, err := Open(context.Background(), video, opts)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer dec.Close()

	if _, err := dec.Next(); err != nil {
		t.Fatalf("first frame should decode, got %v", err)
	}
	_, err = dec.Next()
	if !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestDecoderReportsPartialFrame(t *testing.T) {
	opts, video := stubOptions(t, "#!/bin/sh\ndd if=/dev/zero bs=4 count=1 2>/dev/null\n")

	dec, err := Open(context.Background(), video, opts)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer dec.Close()

	if _, err := dec.Next(); !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected ErrDecode for partial frame, got %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"), Options{})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenRejectsAudioOnlySource(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	dir := t.TempDir()
	video := filepath.Join(dir, "song.mp3")
	if err := os.WriteFile(video, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	probe := writeStub(t, dir, "ffprobe", "#!/bin/sh\necho '{\"streams\":[{\"codec_type\":\"audio\"}],\"format\":{}}'\n")
	_, err := Open(context.Background(), video, Options{FFprobe: probe, FFmpeg: "ffmpeg"})
	if !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected ErrDecode for audio-only source, got %v", err)
	}
}

func TestDecoderWithRealFFmpeg(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not available")
	}
	dir := t.TempDir()
	video := filepath.Join(dir, "testsrc.mkv")
	gen := exec.Command("ffmpeg", "-v", "error", "-f", "lavfi", "-i", "testsrc=size=32x24:rate=10",
		"-frames:v", "7", "-c:v", "ffv1", video)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("cannot generate test video: %v: %s", err, out)
	}

	dec, err := Open(context.Background(), video, Options{})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer dec.Close()

	count := 0
	for {
		_, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next returned error: %v", err)
		}
		count++
	}
	if count != 7 {
		t.Fatalf("expected 7 frames, got %d", count)
	}
}

func TestWriteJPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "frame_0.jpg")
	if err := WriteJPEG(img, path, 0); err != nil {
		t.Fatalf("WriteJPEG returned error: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	decoded, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("decode written jpeg: %v", err)
	}
	if decoded.Bounds() != img.Bounds() {
		t.Fatalf("bounds mismatch: %v vs %v", decoded.Bounds(), img.Bounds())
	}
}

func TestDecoderPassesFramesThroughWithoutResync(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	script := "#!/bin/sh\nprintf '%s\\n' \"$@\" > " + argsFile + "\ndd if=/dev/zero bs=6 count=1 2>/dev/null\n"
	opts, video := stubOptions(t, script)

	dec, err := Open(context.Background(), video, opts)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	for {
		if _, err := dec.Next(); err != nil {
			if !errors.Is(err, io.EOF) {
				t.Fatalf("Next returned error: %v", err)
			}
			break
		}
	}
	if err := dec.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	raw, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read recorded args: %v", err)
	}
	args := strings.Split(strings.TrimSpace(string(raw)), "\n")
	mode, output := -1, -1
	for i, arg := range args {
		switch arg {
		case "-fps_mode":
			if i+1 < len(args) && args[i+1] == "passthrough" {
				mode = i
			}
		case "pipe:1":
			output = i
		}
	}
	if mode < 0 || output < 0 || mode > output {
		t.Fatalf("expected -fps_mode passthrough before the output, got %q", args)
	}
}
