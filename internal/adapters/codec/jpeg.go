// Package codec implements ports.Codec.
package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// DefaultQuality matches the capture scripts.
const DefaultQuality = 95

// JPEG compresses frames with baseline JPEG.
type JPEG struct {
	quality int
}

// NewJPEG returns a codec encoding at quality (1-100).
func NewJPEG(quality int) (*JPEG, error) {
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("jpeg quality %d not in [1, 100]", quality)
	}
	return &JPEG{quality: quality}, nil
}

// Quality returns the encode quality.
func (c *JPEG) Quality() int { return c.quality }

// Encode implements ports.Codec.
func (c *JPEG) Encode(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("jpeg encode: nil image")
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode implements ports.Codec.
func (c *JPEG) Decode(b []byte) (image.Image, error) {
	img, err := jpeg.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("jpeg decode: %w", err)
	}
	return img, nil
}
