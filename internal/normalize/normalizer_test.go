package normalize

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"vlmprep/internal/media/imageio"
	"vlmprep/internal/services"
	"vlmprep/internal/testsupport"
)

func TestNormalizeResizesAndKeepsNames(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	testsupport.WritePNG(t, filepath.Join(in, "b.PNG"), testsupport.Gradient(40, 20))
	testsupport.WriteJPEG(t, filepath.Join(in, "a.jpg"), testsupport.Gradient(10, 30))
	testsupport.WriteText(t, filepath.Join(in, "readme.txt"), "ignored")

	result, err := NewNormalizer(nil).Normalize(context.Background(), Options{InputDir: in, OutputDir: out, Resolution: 16})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if want := []string{"a.jpg", "b.PNG"}; !reflect.DeepEqual(result.Processed, want) {
		t.Fatalf("processed = %v, want %v", result.Processed, want)
	}
	for _, name := range result.Processed {
		img, _, err := imageio.Load(filepath.Join(out, name))
		if err != nil {
			t.Fatalf("load %s: %v", name, err)
		}
		if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 16 {
			t.Fatalf("%s has bounds %v", name, b)
		}
	}
	if _, err := os.Stat(filepath.Join(out, "readme.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("non-image file should not be copied")
	}
}

func TestNormalizeIdempotentForSquareRGB(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	src := testsupport.Gradient(24, 24)
	testsupport.WritePNG(t, filepath.Join(in, "square.png"), src)

	if _, err := NewNormalizer(nil).Normalize(context.Background(), Options{InputDir: in, OutputDir: out, Resolution: 24}); err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	img, _, err := imageio.Load(filepath.Join(out, "square.png"))
	if err != nil {
		t.Fatalf("load output: %v", err)
	}
	got := imageio.ToRGB(img)
	if !reflect.DeepEqual(got.Pix, src.Pix) {
		t.Fatal("expected pixels to round-trip unchanged")
	}
}

func TestNormalizeDropsAlpha(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := range src.Pix {
		src.Pix[i] = 0x40
	}
	testsupport.WritePNG(t, filepath.Join(in, "alpha.png"), src)

	if _, err := NewNormalizer(nil).Normalize(context.Background(), Options{InputDir: in, OutputDir: out, Resolution: 4}); err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	img, _, err := imageio.Load(filepath.Join(out, "alpha.png"))
	if err != nil {
		t.Fatalf("load output: %v", err)
	}
	r, g, b, a := img.At(0, 0).RGBA()
	if a != 0xffff {
		t.Fatalf("expected opaque output, alpha=%d", a)
	}
	want := color.RGBA{R: 0x40, G: 0x40, B: 0x40, A: 0xff}
	wr, wg, wb, _ := want.RGBA()
	if r != wr || g != wg || b != wb {
		t.Fatalf("unexpected color %v %v %v", r, g, b)
	}
}

func TestNormalizeAbortsOnCorruptImage(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	testsupport.WritePNG(t, filepath.Join(in, "a_good.png"), testsupport.Gradient(8, 8))
	testsupport.WriteCorrupt(t, filepath.Join(in, "b_bad.png"))
	testsupport.WritePNG(t, filepath.Join(in, "c_good.png"), testsupport.Gradient(8, 8))

	result, err := NewNormalizer(nil).Normalize(context.Background(), Options{InputDir: in, OutputDir: out, Resolution: 4})
	if !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if want := []string{"a_good.png"}; !reflect.DeepEqual(result.Processed, want) {
		t.Fatalf("processed = %v, want %v", result.Processed, want)
	}
	if _, statErr := os.Stat(filepath.Join(out, "a_good.png")); statErr != nil {
		t.Fatalf("earlier output should remain: %v", statErr)
	}
	if _, statErr := os.Stat(filepath.Join(out, "c_good.png")); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("processing should stop at the corrupt file")
	}
}

func TestNormalizeSkipPolicyContinues(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	testsupport.WriteCorrupt(t, filepath.Join(in, "bad.jpg"))
	testsupport.WritePNG(t, filepath.Join(in, "good.png"), testsupport.Gradient(8, 8))

	result, err := NewNormalizer(nil).Normalize(context.Background(), Options{InputDir: in, OutputDir: out, Resolution: 4, Policy: PolicySkip})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if len(result.Skipped) != 1 || result.Skipped[0].Name != "bad.jpg" || result.Skipped[0].Reason == "" {
		t.Fatalf("unexpected skipped list: %+v", result.Skipped)
	}
	if want := []string{"good.png"}; !reflect.DeepEqual(result.Processed, want) {
		t.Fatalf("processed = %v, want %v", result.Processed, want)
	}
}

func TestNormalizeEmptyInput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	result, err := NewNormalizer(nil).Normalize(context.Background(), Options{InputDir: t.TempDir(), OutputDir: out, Resolution: 8})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if len(result.Processed) != 0 || len(result.Skipped) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatalf("expected output dir to exist: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty output, got %d entries", len(entries))
	}
}

func TestNormalizeValidatesInputs(t *testing.T) {
	n := NewNormalizer(nil)
	if _, err := n.Normalize(context.Background(), Options{InputDir: t.TempDir(), OutputDir: t.TempDir(), Resolution: 0}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for zero resolution, got %v", err)
	}
	missing := filepath.Join(t.TempDir(), "missing")
	if _, err := n.Normalize(context.Background(), Options{InputDir: missing, OutputDir: t.TempDir(), Resolution: 8}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing input, got %v", err)
	}
}

func TestParsePolicy(t *testing.T) {
	for input, want := range map[string]FailurePolicy{"": PolicyAbort, "abort": PolicyAbort, " SKIP ": PolicySkip} {
		got, err := ParsePolicy(input)
		if err != nil || got != want {
			t.Fatalf("ParsePolicy(%q) = %q, %v", input, got, err)
		}
	}
	if _, err := ParsePolicy("retry"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestNormalizeSkipWarningCarriesItem(t *testing.T) {
	in := t.TempDir()
	testsupport.WriteCorrupt(t, filepath.Join(in, "bad.png"))
	var buf bytes.Buffer
	n := NewNormalizer(slog.New(slog.NewJSONHandler(&buf, nil)))

	_, err := n.Normalize(context.Background(), Options{
		InputDir:   in,
		OutputDir:  filepath.Join(t.TempDir(), "out"),
		Resolution: 8,
		Policy:     PolicySkip,
	})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if !strings.Contains(buf.String(), `"item":"bad.png"`) {
		t.Fatalf("skip warning missing item field:\n%s", buf.String())
	}
}
