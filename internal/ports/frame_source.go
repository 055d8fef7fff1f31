package ports

import (
	"context"
	"image"
	"io"

	"github.com/mob852/framecast/internal/domain"
)

// FrameSource produces raw frames.
type FrameSource interface {
	// Next blocks until a frame is available.
	// Returns io.EOF when a finite source is exhausted.
	// Any other error means the source is unavailable.
	Next(ctx context.Context) (domain.RawFrame, error)

	// Close releases the underlying device or files.
	Close() error
}

// ErrSourceExhausted indicates a finite source has no more frames.
var ErrSourceExhausted = io.EOF

// Codec compresses raw images into opaque payloads and back.
type Codec interface {
	Encode(img image.Image) ([]byte, error)
	Decode(payload []byte) (image.Image, error)
}
