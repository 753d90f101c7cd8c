// Package record persists rendered mosaics as still images, videos, animated
// GIFs or compressed command streams.
package record

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ericpauley/go-quantize/quantize"
	"golang.org/x/image/bmp"

	"github.com/tmpim/mosaic"
)

// Format is a still image output format.
type Format string

// Still image formats.
const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatBMP  Format = "bmp"
	FormatGIF  Format = "gif"
)

// FormatOf returns the still image format matching the extension of path.
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return FormatPNG, true
	case ".jpg", ".jpeg":
		return FormatJPEG, true
	case ".bmp":
		return FormatBMP, true
	case ".gif":
		return FormatGIF, true
	}
	return "", false
}

// Paletted reduces img to at most 256 colors with a median cut palette.
func Paletted(img image.Image) *image.Paletted {
	b := img.Bounds()
	q := quantize.MedianCutQuantizer{}
	pm := image.NewPaletted(b, q.Quantize(make(color.Palette, 0, 256), img))
	draw.Draw(pm, b, img, b.Min, draw.Src)
	return pm
}

// Encode writes img to w in format.
func Encode(w io.Writer, img image.Image, format Format) error {
	switch format {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	case FormatBMP:
		return bmp.Encode(w, img)
	case FormatGIF:
		return gif.Encode(w, Paletted(img), nil)
	}
	return fmt.Errorf("mosaic record: unsupported image format %q", format)
}

// SaveImage writes img to path in the format chosen by its extension.
func SaveImage(path string, img image.Image) error {
	format, ok := FormatOf(path)
	if !ok {
		return fmt.Errorf("mosaic record: no image format for %q", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("mosaic record: %w", err)
	}

	if err := Encode(f, img, format); err != nil {
		f.Close()
		return fmt.Errorf("mosaic record: encode %s: %w", path, err)
	}

	return f.Close()
}

// Still keeps the most recent rendered frame and saves it on Close.
type Still struct {
	path string
	last *image.RGBA
}

// NewStill returns a recorder saving the last frame to path.
func NewStill(path string) (*Still, error) {
	if _, ok := FormatOf(path); !ok {
		return nil, fmt.Errorf("mosaic record: no image format for %q", path)
	}
	return &Still{path: path}, nil
}

func (s *Still) WriteFrame(r *mosaic.Rendered) error {
	if s.last == nil || s.last.Rect != r.Image.Rect {
		s.last = image.NewRGBA(r.Image.Rect)
	}
	copy(s.last.Pix, r.Image.Pix)
	return nil
}

// Close saves the last frame. Nothing is written if no frame was recorded.
func (s *Still) Close() error {
	if s.last == nil {
		return nil
	}
	return SaveImage(s.path, s.last)
}
