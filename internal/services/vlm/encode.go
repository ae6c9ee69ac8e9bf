package vlm

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

const uploadJPEGQuality = 95

// encodeJPEG serializes an image for upload to a model endpoint.
func encodeJPEG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("encode image: nil image")
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: uploadJPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
