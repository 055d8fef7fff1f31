package source

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mob852/framecast/internal/domain"
)

// Directory replays the images in a directory in name order.
type Directory struct {
	files []string
	loop  bool
	next  int
}

// NewDirectory lists the .jpg, .jpeg and .png files in dir. With loop set the
// source restarts from the first file instead of returning io.EOF.
func NewDirectory(dir string, loop bool) (*Directory, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no images in %s", dir)
	}
	sort.Strings(files)
	return &Directory{files: files, loop: loop}, nil
}

// Len returns the number of images found.
func (d *Directory) Len() int { return len(d.files) }

// Next implements ports.FrameSource. Files are read on demand, so a file
// removed after NewDirectory makes the source unavailable.
func (d *Directory) Next(ctx context.Context) (domain.RawFrame, error) {
	if err := ctx.Err(); err != nil {
		return domain.RawFrame{}, err
	}
	if d.next >= len(d.files) {
		if !d.loop {
			return domain.RawFrame{}, io.EOF
		}
		d.next = 0
	}
	path := d.files[d.next]
	d.next++

	f, err := os.Open(path)
	if err != nil {
		return domain.RawFrame{}, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return domain.RawFrame{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	info, err := f.Stat()
	if err != nil {
		return domain.RawFrame{}, err
	}
	return domain.RawFrame{Image: img, CapturedAt: info.ModTime()}, nil
}

// Close implements ports.FrameSource.
func (d *Directory) Close() error { return nil }
