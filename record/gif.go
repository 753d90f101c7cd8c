package record

import (
	"errors"
	"fmt"
	"image"
	"image/gif"
	"io"

	"github.com/tmpim/mosaic"
)

// GIF collects frames into an animated GIF, written out on Close. Each frame
// gets its own median cut palette.
type GIF struct {
	w     io.Writer
	delay int
	g     gif.GIF
}

// NewGIF returns a GIF recorder writing to w at framerate. image/gif only
// encodes whole animations, so every paletted frame is held in memory until
// Close; use a video or cast for long recordings.
func NewGIF(w io.Writer, framerate int) (*GIF, error) {
	if framerate <= 0 {
		return nil, errors.New("mosaic record: NewGIF: framerate must be positive")
	}

	delay := 100 / framerate
	if delay < 2 {
		// browsers clamp smaller delays
		delay = 2
	}

	return &GIF{w: w, delay: delay}, nil
}

func (g *GIF) WriteFrame(r *mosaic.Rendered) error {
	b := r.Image.Bounds()
	if len(g.g.Image) == 0 {
		g.g.Config = image.Config{Width: b.Dx(), Height: b.Dy()}
	}

	g.g.Image = append(g.g.Image, Paletted(r.Image))
	g.g.Delay = append(g.g.Delay, g.delay)
	return nil
}

// Close encodes the collected frames. Closing w stays with the caller.
func (g *GIF) Close() error {
	if len(g.g.Image) == 0 {
		return nil
	}
	if err := gif.EncodeAll(g.w, &g.g); err != nil {
		return fmt.Errorf("mosaic record: encode gif: %w", err)
	}
	return nil
}
