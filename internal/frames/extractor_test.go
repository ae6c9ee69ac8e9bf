package frames

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	"vlmprep/internal/media/video"
	"vlmprep/internal/services"
)

type fakeSource struct {
	total    int
	failAt   int // -1 disables
	next     int
	closed   bool
	failWith error
}

func (f *fakeSource) Info() video.Info {
	return video.Info{Width: 4, Height: 3, EstimatedFrames: int64(f.total)}
}

func (f *fakeSource) Next() (video.Frame, error) {
	if f.failAt >= 0 && f.next == f.failAt {
		return video.Frame{}, f.failWith
	}
	if f.next >= f.total {
		return video.Frame{}, io.EOF
	}
	frame := video.Frame{Index: f.next, Image: image.NewRGBA(image.Rect(0, 0, 4, 3))}
	f.next++
	return frame, nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func newFakeExtractor(src *fakeSource) *Extractor {
	open := func(context.Context, string) (Source, error) { return src, nil }
	return NewExtractorWith(open, nil, nil)
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestExtractThreeFramesIntervalOne(t *testing.T) {
	out := filepath.Join(t.TempDir(), "frames")
	src := &fakeSource{total: 3, failAt: -1}

	result, err := newFakeExtractor(src).Extract(context.Background(), Options{VideoPath: "clip.mp4", OutputDir: out, Interval: 1})
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	want := []string{"frame_0.jpg", "frame_1.jpg", "frame_2.jpg"}
	if got := listDir(t, out); !reflect.DeepEqual(got, want) {
		t.Fatalf("output = %v, want %v", got, want)
	}
	if result.Decoded != 3 || result.Written != 3 || result.Truncated {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !src.closed {
		t.Fatal("expected source to be closed")
	}
}

func TestExtractFiveFramesIntervalTwo(t *testing.T) {
	out := t.TempDir()
	result, err := newFakeExtractor(&fakeSource{total: 5, failAt: -1}).Extract(context.Background(), Options{OutputDir: out, Interval: 2})
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	want := []string{"frame_0.jpg", "frame_2.jpg", "frame_4.jpg"}
	if !reflect.DeepEqual(result.Files, want) {
		t.Fatalf("files = %v, want %v", result.Files, want)
	}
	if got := listDir(t, out); !reflect.DeepEqual(got, want) {
		t.Fatalf("output = %v, want %v", got, want)
	}
}

func TestExtractWritesCeilFramesAtMultiples(t *testing.T) {
	for total := 0; total <= 12; total++ {
		for interval := 1; interval <= 5; interval++ {
			t.Run(fmt.Sprintf("F=%d/N=%d", total, interval), func(t *testing.T) {
				var written []string
				write := func(_ image.Image, path string, _ int) error {
					written = append(written, filepath.Base(path))
					return nil
				}
				src := &fakeSource{total: total, failAt: -1}
				ex := NewExtractorWith(func(context.Context, string) (Source, error) { return src, nil }, write, nil)
				if _, err := ex.Extract(context.Background(), Options{OutputDir: t.TempDir(), Interval: interval}); err != nil {
					t.Fatalf("Extract returned error: %v", err)
				}
				wantCount := (total + interval - 1) / interval
				if len(written) != wantCount {
					t.Fatalf("wrote %d frames, want %d", len(written), wantCount)
				}
				for k, name := range written {
					if name != FrameName(k*interval) {
						t.Fatalf("frame %d named %q, want %q", k, name, FrameName(k*interval))
					}
				}
			})
		}
	}
}

func TestExtractRejectsInvalidInterval(t *testing.T) {
	_, err := newFakeExtractor(&fakeSource{failAt: -1}).Extract(context.Background(), Options{OutputDir: t.TempDir(), Interval: 0})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestExtractOpenFailureOnlyCreatesOutputDir(t *testing.T) {
	out := filepath.Join(t.TempDir(), "new")
	openErr := services.Wrap(services.ErrNotFound, "frames", "open video", "missing", nil)
	ex := NewExtractorWith(func(context.Context, string) (Source, error) { return nil, openErr }, nil, nil)

	_, err := ex.Extract(context.Background(), Options{VideoPath: "missing.mp4", OutputDir: out, Interval: 1})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected open error, got %v", err)
	}
	if got := listDir(t, out); len(got) != 0 {
		t.Fatalf("expected empty output dir, got %v", got)
	}
}

func TestExtractMidStreamFailureKeepsFrames(t *testing.T) {
	out := t.TempDir()
	decodeErr := services.Wrap(services.ErrDecode, "frames", "decode", "corrupt packet", nil)
	src := &fakeSource{total: 10, failAt: 4, failWith: decodeErr}

	result, err := newFakeExtractor(src).Extract(context.Background(), Options{OutputDir: out, Interval: 2})
	if err != nil {
		t.Fatalf("mid-stream failure should not be fatal, got %v", err)
	}
	if !result.Truncated || !errors.Is(result.DecodeErr, services.ErrDecode) {
		t.Fatalf("expected truncated result, got %+v", result)
	}
	want := []string{"frame_0.jpg", "frame_2.jpg"}
	if got := listDir(t, out); !reflect.DeepEqual(got, want) {
		t.Fatalf("output = %v, want %v", got, want)
	}
}

func TestExtractFailureBeforeFirstFrameIsFatal(t *testing.T) {
	decodeErr := services.Wrap(services.ErrDecode, "frames", "decode", "bad header", nil)
	src := &fakeSource{total: 3, failAt: 0, failWith: decodeErr}
	_, err := newFakeExtractor(src).Extract(context.Background(), Options{OutputDir: t.TempDir(), Interval: 1})
	if !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected fatal decode error, got %v", err)
	}
}

func TestExtractCleanRemovesOnlyStaleFrames(t *testing.T) {
	out := t.TempDir()
	for _, name := range []string{"frame_0.jpg", "frame_90.jpg", "frame_x.jpg", "notes.txt", "frame_3.png"} {
		if err := os.WriteFile(filepath.Join(out, name), []byte("old"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	result, err := newFakeExtractor(&fakeSource{total: 1, failAt: -1}).Extract(context.Background(), Options{OutputDir: out, Interval: 1, Clean: true})
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if result.Removed != 2 {
		t.Fatalf("expected 2 stale frames removed, got %d", result.Removed)
	}
	want := []string{"frame_0.jpg", "frame_3.png", "frame_x.jpg", "notes.txt"}
	if got := listDir(t, out); !reflect.DeepEqual(got, want) {
		t.Fatalf("output = %v, want %v", got, want)
	}
}

func TestExtractWithoutCleanKeepsStaleFrames(t *testing.T) {
	out := t.TempDir()
	if err := os.WriteFile(filepath.Join(out, "frame_90.jpg"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := newFakeExtractor(&fakeSource{total: 1, failAt: -1}).Extract(context.Background(), Options{OutputDir: out, Interval: 1}); err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if got := strings.Join(listDir(t, out), ","); got != "frame_0.jpg,frame_90.jpg" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestExtractWriteFailureIsFatal(t *testing.T) {
	boom := errors.New("disk full")
	src := &fakeSource{total: 3, failAt: -1}
	ex := NewExtractorWith(func(context.Context, string) (Source, error) { return src, nil },
		func(image.Image, string, int) error { return boom }, nil)
	if _, err := ex.Extract(context.Background(), Options{OutputDir: t.TempDir(), Interval: 1}); !errors.Is(err, boom) {
		t.Fatalf("expected write error, got %v", err)
	}
}

func TestExtractStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newFakeExtractor(&fakeSource{total: 3, failAt: -1}).Extract(ctx, Options{OutputDir: t.TempDir(), Interval: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestIsFrameName(t *testing.T) {
	for name, want := range map[string]bool{
		"frame_0.jpg":    true,
		"frame_1200.jpg": true,
		"frame_.jpg":     false,
		"frame_1.JPG":    false,
		"xframe_1.jpg":   false,
		"frame_1.jpg.bk": false,
	} {
		if got := IsFrameName(name); got != want {
			t.Errorf("IsFrameName(%q) = %v, want %v", name, got, want)
		}
	}
}
