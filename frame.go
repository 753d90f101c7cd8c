package mosaic

import (
	"image"

	"github.com/disintegration/gift"
)

// ColorConverter derives the intensity and color views of an acquired image.
// Both views must share the same bounds, anchored at the origin, with color
// channels in R, G, B order.
type ColorConverter interface {
	Gray(img image.Image) *image.Gray
	RGB(img image.Image) *image.RGBA
}

// GiftConverter converts images with gift filters. When Width is set the
// image is first resized to that width, preserving its aspect ratio.
type GiftConverter struct {
	Width int
}

func (c *GiftConverter) pipeline(filters ...gift.Filter) *gift.GIFT {
	var all []gift.Filter
	if c.Width > 0 {
		all = append(all, gift.Resize(c.Width, 0, gift.LanczosResampling))
	}
	return gift.New(append(all, filters...)...)
}

func originRect(r image.Rectangle) image.Rectangle {
	return image.Rect(0, 0, r.Dx(), r.Dy())
}

// Gray returns the luma view of img.
func (c *GiftConverter) Gray(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok && c.Width <= 0 && gray.Rect.Min == (image.Point{}) {
		return gray
	}

	g := c.pipeline(gift.Grayscale())
	dst := image.NewGray(originRect(g.Bounds(img.Bounds())))
	g.Draw(dst, img)
	return dst
}

// RGB returns the color view of img. Transparent pixels end up composited
// over black.
func (c *GiftConverter) RGB(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && c.Width <= 0 && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}

	g := c.pipeline()
	dst := image.NewRGBA(originRect(g.Bounds(img.Bounds())))
	g.Draw(dst, img)
	return dst
}

// Frame is one acquired image together with the views derived from it.
// Views are computed lazily and cached for the lifetime of the frame.
type Frame struct {
	Image image.Image

	conv ColorConverter
	gray *image.Gray
	rgb  *image.RGBA
}

// NewFrame wraps img. A nil conv uses a GiftConverter without resizing.
func NewFrame(img image.Image, conv ColorConverter) *Frame {
	if conv == nil {
		conv = &GiftConverter{}
	}
	return &Frame{Image: img, conv: conv}
}

// Gray returns the intensity view.
func (f *Frame) Gray() *image.Gray {
	if f.gray == nil {
		f.gray = f.conv.Gray(f.Image)
	}
	return f.gray
}

// RGB returns the color view.
func (f *Frame) RGB() *image.RGBA {
	if f.rgb == nil {
		f.rgb = f.conv.RGB(f.Image)
	}
	return f.rgb
}

// Size returns the size of the converted views. It reuses whichever view is
// already computed, so sizing a canvas after quantization converts nothing
// new.
func (f *Frame) Size() image.Point {
	switch {
	case f.rgb != nil:
		return f.rgb.Rect.Size()
	case f.gray != nil:
		return f.gray.Rect.Size()
	}
	return f.Gray().Rect.Size()
}
