// Package source provides frame sources for mosaic pipelines: still images,
// animated GIFs, videos decoded through ffmpeg and in-memory frames.
package source

import (
	"context"
	"fmt"
	"image"
	"os"

	// Registered decoders.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/tmpim/mosaic"
)

// Decode reads a still image of any registered format from path. The first
// frame is returned for animated formats.
func Decode(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("mosaic source: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("mosaic source: decode %s: %w", path, err)
	}

	return img, format, nil
}

// Still yields a single image once and then reports the end of the stream.
type Still struct {
	img  image.Image
	done bool
}

// NewStill returns a source yielding img once.
func NewStill(img image.Image) *Still {
	return &Still{img: img}
}

// OpenImage decodes the image at path up front, so a missing or corrupt file
// fails before any pipeline starts.
func OpenImage(path string) (*Still, error) {
	img, _, err := Decode(path)
	if err != nil {
		return nil, err
	}
	return NewStill(img), nil
}

// Image returns the decoded image.
func (s *Still) Image() image.Image {
	return s.img
}

func (s *Still) Acquire(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.done {
		return nil, mosaic.ErrEndOfStream
	}
	s.done = true
	return s.img, nil
}

func (s *Still) Close() error {
	return nil
}

// Frames is an in-memory source.
type Frames struct {
	imgs []image.Image
	next int
	loop bool
}

// NewFrames returns a source yielding imgs in order.
func NewFrames(imgs ...image.Image) *Frames {
	return &Frames{imgs: imgs}
}

// Loop makes the source start over instead of ending.
func (f *Frames) Loop() *Frames {
	f.loop = true
	return f
}

func (f *Frames) Acquire(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.next >= len(f.imgs) {
		if !f.loop || len(f.imgs) == 0 {
			return nil, mosaic.ErrEndOfStream
		}
		f.next = 0
	}
	img := f.imgs[f.next]
	f.next++
	return img, nil
}

func (f *Frames) Close() error {
	return nil
}
