package codec

import (
	"image"
	"image/color"
	"testing"
)

func TestNewJPEG_Quality(t *testing.T) {
	for _, q := range []int{0, 101, -5} {
		if _, err := NewJPEG(q); err == nil {
			t.Errorf("NewJPEG(%d) accepted", q)
		}
	}
	c, err := NewJPEG(DefaultQuality)
	if err != nil || c.Quality() != 95 {
		t.Fatalf("NewJPEG(95) = %v, %v", c, err)
	}
}

func TestJPEG_RoundTrip(t *testing.T) {
	c, _ := NewJPEG(90)
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: 128, A: 255})
		}
	}

	b, err := c.Encode(img)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(b) < 4 || b[0] != 0xFF || b[1] != 0xD8 {
		t.Fatalf("payload does not start with a JPEG SOI marker")
	}

	out, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if out.Bounds() != img.Bounds() {
		t.Errorf("bounds = %v, want %v", out.Bounds(), img.Bounds())
	}
}

func TestJPEG_Errors(t *testing.T) {
	c, _ := NewJPEG(80)
	if _, err := c.Encode(nil); err == nil {
		t.Error("Encode(nil) accepted")
	}
	if _, err := c.Decode([]byte("not a jpeg")); err == nil {
		t.Error("Decode(garbage) accepted")
	}
}
