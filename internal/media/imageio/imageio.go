package imageio

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	xdraw "golang.org/x/image/draw"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	_ "image/gif"

	_ "golang.org/x/image/webp"

	"vlmprep/internal/fileutil"
	"vlmprep/internal/services"
)

// DefaultJPEGQuality is applied when SaveOptions leaves the quality unset.
const DefaultJPEGQuality = 95

// SaveOptions controls encoding in Save.
type SaveOptions struct {
	JPEGQuality int
}

// Load decodes the image at path. The format name reported by the decoder is
// returned alongside the image. Decode failures carry services.ErrDecode.
func Load(path string) (image.Image, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open image %s: %w", filepath.Base(path), err)
	}
	defer file.Close()
	return Decode(file, filepath.Base(path))
}

// Decode reads an image from r; name is used in error messages only.
func Decode(r io.Reader, name string) (image.Image, string, error) {
	img, format, err := image.Decode(bufio.NewReader(r))
	if err != nil {
		return nil, "", services.Wrap(services.ErrDecode, "", "decode image", name, err)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, "", services.Wrap(services.ErrDecode, "", "decode image", name+": empty image", nil)
	}
	return img, format, nil
}

// ToRGB converts img to an opaque RGB image anchored at the origin. Alpha is
// discarded rather than composited: each pixel keeps its straight
// (non-premultiplied) color and becomes fully opaque. Palette images are
// expanded through their palette.
func ToRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < b.Dy(); y++ {
			srow := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			drow := dst.Pix[dst.PixOffset(0, y):]
			for x := 0; x < b.Dx(); x++ {
				i := x * 4
				drow[i], drow[i+1], drow[i+2], drow[i+3] = srow[i], srow[i+1], srow[i+2], 0xff
			}
		}
	case *image.Paletted:
		lut := make([][3]uint8, len(src.Palette))
		for i, c := range src.Palette {
			n := color.NRGBAModel.Convert(c).(color.NRGBA)
			lut[i] = [3]uint8{n.R, n.G, n.B}
		}
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				idx := src.ColorIndexAt(b.Min.X+x, b.Min.Y+y)
				var rgb [3]uint8
				if int(idx) < len(lut) {
					rgb = lut[idx]
				}
				o := dst.PixOffset(x, y)
				dst.Pix[o], dst.Pix[o+1], dst.Pix[o+2], dst.Pix[o+3] = rgb[0], rgb[1], rgb[2], 0xff
			}
		}
	case *image.YCbCr, *image.Gray, *image.Gray16, *image.CMYK:
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	default:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				n := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				o := dst.PixOffset(x, y)
				dst.Pix[o], dst.Pix[o+1], dst.Pix[o+2], dst.Pix[o+3] = n.R, n.G, n.B, 0xff
			}
		}
	}
	return dst
}

// Resample returns img converted to RGB and scaled to size×size with the
// Catmull-Rom kernel. Aspect ratio is not preserved. An image that is already
// size×size is only converted, never resampled.
func Resample(img image.Image, size int) (*image.RGBA, error) {
	if size <= 0 {
		return nil, fmt.Errorf("resample: invalid size %d", size)
	}
	rgb := ToRGB(img)
	if rgb.Bounds().Dx() == size && rgb.Bounds().Dy() == size {
		return rgb, nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), rgb, rgb.Bounds(), xdraw.Src, nil)
	return dst, nil
}

// Save encodes img to path using the encoder implied by the file extension.
// The destination is replaced atomically.
func Save(img image.Image, path string, opts SaveOptions) error {
	encode, err := encoderFor(path, opts)
	if err != nil {
		return err
	}
	if err := fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		if err := encode(bw, img); err != nil {
			return err
		}
		return bw.Flush()
	}); err != nil {
		return fmt.Errorf("save %s: %w", filepath.Base(path), err)
	}
	return nil
}

func encoderFor(path string, opts SaveOptions) (func(io.Writer, image.Image) error, error) {
	quality := opts.JPEGQuality
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return func(w io.Writer, img image.Image) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
		}, nil
	case ".png":
		return png.Encode, nil
	case ".bmp":
		return bmp.Encode, nil
	case ".tif", ".tiff":
		return func(w io.Writer, img image.Image) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
		}, nil
	default:
		return nil, services.Wrap(services.ErrValidation, "", "save image", fmt.Sprintf("no encoder for %q", filepath.Ext(path)), nil)
	}
}
