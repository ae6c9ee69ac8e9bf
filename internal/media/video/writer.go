package video

import (
	"fmt"
	"image"
	"image/jpeg"
	"io"

	"vlmprep/internal/fileutil"
)

// DefaultJPEGQuality is used when WriteJPEG receives an out-of-range quality.
const DefaultJPEGQuality = 95

// WriteJPEG encodes img as a baseline JPEG at path. The file is replaced
// atomically so an interrupted run never leaves a truncated frame behind.
func WriteJPEG(img image.Image, path string, quality int) error {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	err := fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	})
	if err != nil {
		return fmt.Errorf("write jpeg %s: %w", path, err)
	}
	return nil
}
