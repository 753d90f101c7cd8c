package mosaic

import (
	"image"
	"image/color"
	"image/draw"
)

// Canvas is the render target of a pipeline: an RGBA image that starts every
// frame filled with black.
type Canvas struct {
	*image.RGBA
}

// NewCanvas returns a black canvas of the given size.
func NewCanvas(size image.Point) *Canvas {
	c := &Canvas{RGBA: image.NewRGBA(image.Rectangle{Max: size})}
	c.Clear()
	return c
}

// Clear fills the canvas with opaque black.
func (c *Canvas) Clear() {
	draw.Draw(c.RGBA, c.Rect, &image.Uniform{C: color.Black}, image.Point{}, draw.Src)
}

// Reset clears the canvas, reallocating it first if size differs from the
// current size.
func (c *Canvas) Reset(size image.Point) {
	if c.RGBA == nil || c.Rect.Size() != size {
		c.RGBA = image.NewRGBA(image.Rectangle{Max: size})
	}
	c.Clear()
}

// Blit draws a at pt.
func (c *Canvas) Blit(a *Artifact, pt image.Point) {
	a.Draw(c.RGBA, pt)
}
