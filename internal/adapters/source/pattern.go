// Package source implements ports.FrameSource.
package source

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"sync"
	"time"

	"github.com/mob852/framecast/internal/domain"
)

// Default capture resolution.
const (
	DefaultWidth  = 1920
	DefaultHeight = 1080
)

// Pattern generates synthetic frames: a moving gradient with a bar that
// encodes the frame number, so a viewer can see motion without a camera.
type Pattern struct {
	width  int
	height int
	limit  int

	mu      sync.Mutex
	emitted int
	closed  bool
}

// NewPattern returns a source of width x height frames. limit > 0 ends the
// stream with io.EOF after that many frames.
func NewPattern(width, height, limit int) (*Pattern, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid resolution %dx%d", width, height)
	}
	return &Pattern{width: width, height: height, limit: limit}, nil
}

// Next implements ports.FrameSource.
func (p *Pattern) Next(ctx context.Context) (domain.RawFrame, error) {
	if err := ctx.Err(); err != nil {
		return domain.RawFrame{}, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return domain.RawFrame{}, fmt.Errorf("pattern source closed")
	}
	if p.limit > 0 && p.emitted >= p.limit {
		p.mu.Unlock()
		return domain.RawFrame{}, io.EOF
	}
	n := p.emitted
	p.emitted++
	p.mu.Unlock()

	return domain.RawFrame{Image: p.render(n), CapturedAt: time.Now()}, nil
}

func (p *Pattern) render(n int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	shift := n * 4
	for y := 0; y < p.height; y++ {
		g := uint8(y * 255 / p.height)
		row := img.Pix[y*img.Stride:]
		for x := 0; x < p.width; x++ {
			i := x * 4
			row[i] = uint8((x + shift) * 255 / p.width)
			row[i+1] = g
			row[i+2] = uint8(n)
			row[i+3] = 0xff
		}
	}

	// White bar whose length tracks the frame number modulo the width.
	barH := p.height / 20
	if barH == 0 {
		barH = 1
	}
	barW := (n * 8) % p.width
	for y := 0; y < barH; y++ {
		for x := 0; x < barW; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
		}
	}
	return img
}

// Emitted returns the number of frames produced so far.
func (p *Pattern) Emitted() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.emitted
}

// Close implements ports.FrameSource.
func (p *Pattern) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
