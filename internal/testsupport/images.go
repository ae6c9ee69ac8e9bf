package testsupport

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// Gradient returns an opaque w×h test image with position-dependent colors.
func Gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 13), G: uint8(y * 29), B: uint8(x ^ y), A: 0xff})
		}
	}
	return img
}

// WritePNG writes img as a PNG to path, creating parent directories.
func WritePNG(t testing.TB, path string, img image.Image) {
	t.Helper()
	f := create(t, path)
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode png %s: %v", path, err)
	}
}

// WriteJPEG writes img as a JPEG to path, creating parent directories.
func WriteJPEG(t testing.TB, path string, img image.Image) {
	t.Helper()
	f := create(t, path)
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg %s: %v", path, err)
	}
}

// WriteCorrupt writes bytes that no image decoder accepts under an image
// file name.
func WriteCorrupt(t testing.TB, path string) {
	t.Helper()
	f := create(t, path)
	defer f.Close()
	if _, err := f.WriteString("\x89PNG\r\n\x1a\nthis is not an image"); err != nil {
		t.Fatalf("write corrupt %s: %v", path, err)
	}
}

// WriteText writes content to path, creating parent directories.
func WriteText(t testing.TB, path, content string) {
	t.Helper()
	f := create(t, path)
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func create(t testing.TB, path string) *os.File {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	return f
}
