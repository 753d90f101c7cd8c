package source

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"io"
	"os"
	"time"

	"github.com/tmpim/mosaic"
)

// GIF plays the frames of an animated GIF, each composited over the
// previous ones according to its disposal method.
type GIF struct {
	g      *gif.GIF
	canvas *image.RGBA
	prev   *image.RGBA
	next   int
	loop   bool
}

// NewGIF decodes every frame of an animated GIF from r.
func NewGIF(r io.Reader) (*GIF, error) {
	g, err := gif.DecodeAll(r)
	if err != nil {
		return nil, fmt.Errorf("mosaic source: decode gif: %w", err)
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("mosaic source: decode gif: no frames")
	}

	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		bounds = g.Image[0].Bounds()
	}

	return &GIF{g: g, canvas: image.NewRGBA(bounds)}, nil
}

// OpenGIF opens and decodes the GIF at path.
func OpenGIF(path string) (*GIF, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mosaic source: %w", err)
	}
	defer f.Close()

	return NewGIF(f)
}

// Loop makes the animation start over instead of ending.
func (g *GIF) Loop() *GIF {
	g.loop = true
	return g
}

// Len returns the number of frames.
func (g *GIF) Len() int {
	return len(g.g.Image)
}

// Framerate returns the average frame rate encoded in the frame delays, or
// 0 when the file carries no delays.
func (g *GIF) Framerate() float64 {
	var total time.Duration
	for _, d := range g.g.Delay {
		total += time.Duration(d) * 10 * time.Millisecond
	}
	if total == 0 {
		return 0
	}
	return float64(len(g.g.Delay)) / total.Seconds()
}

func (g *GIF) Acquire(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if g.next >= len(g.g.Image) {
		if !g.loop {
			return nil, mosaic.ErrEndOfStream
		}
		g.next = 0
		draw.Draw(g.canvas, g.canvas.Rect, image.Transparent, image.Point{}, draw.Src)
	}

	if g.next > 0 {
		g.dispose(g.next - 1)
	}

	frame := g.g.Image[g.next]
	if g.disposal(g.next) == gif.DisposalPrevious {
		if g.prev == nil {
			g.prev = image.NewRGBA(g.canvas.Rect)
		}
		copy(g.prev.Pix, g.canvas.Pix)
	}
	draw.Draw(g.canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
	g.next++

	out := image.NewRGBA(g.canvas.Rect)
	copy(out.Pix, g.canvas.Pix)
	return out, nil
}

func (g *GIF) disposal(i int) byte {
	if i < len(g.g.Disposal) {
		return g.g.Disposal[i]
	}
	return gif.DisposalNone
}

func (g *GIF) dispose(i int) {
	switch g.disposal(i) {
	case gif.DisposalBackground:
		draw.Draw(g.canvas, g.g.Image[i].Bounds(), image.Transparent, image.Point{}, draw.Src)
	case gif.DisposalPrevious:
		if g.prev != nil {
			copy(g.canvas.Pix, g.prev.Pix)
		}
	}
}

func (g *GIF) Close() error {
	return nil
}
