package mosaic

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/math/fixed"
)

// Ramp is an ordered sequence of glyphs from the absence of ink to maximum
// ink density. Index 0 is treated as background and never drawn.
type Ramp []rune

// Default glyph ramps.
var (
	GrayRamp  = Ramp(` .",:;!~+-xmo*#W&8@`)
	ColorRamp = Ramp(` ixzao*#MW&8%B@$`)
)

func (r Ramp) validate() error {
	if len(r) < 2 {
		return invalidf("Ramp", "glyph ramp needs at least 2 symbols, got %d", len(r))
	}
	if len(r) > 256 {
		return invalidf("Ramp", "glyph ramp supports at most 256 symbols, got %d", len(r))
	}
	return nil
}

// Coeff returns the symbol coefficient 255/(S-1).
func (r Ramp) Coeff() int {
	return 255 / (len(r) - 1)
}

// Quantizer returns the intensity quantizer for the ramp. Indices are
// clamped to the last symbol.
func (r Ramp) Quantizer() *Quantizer {
	return NewQuantizer(r.Coeff(), uint8(len(r)-1))
}

// Artifact is a renderable palette entry: either a pre-rendered glyph tile or
// a solid square swatch.
type Artifact struct {
	Symbol rune
	Color  color.RGBA
	Tile   *image.RGBA
	Size   int
}

// Draw blits the artifact onto dst with its top-left corner at pt.
func (a *Artifact) Draw(dst draw.Image, pt image.Point) {
	if a.Tile != nil {
		b := a.Tile.Bounds()
		draw.Draw(dst, b.Sub(b.Min).Add(pt), a.Tile, b.Min, draw.Over)
		return
	}

	draw.Draw(dst, image.Rect(pt.X, pt.Y, pt.X+a.Size, pt.Y+a.Size),
		&image.Uniform{C: a.Color}, image.Point{}, draw.Src)
}

// GlyphRenderer rasterizes a single glyph in a color onto a transparent tile.
type GlyphRenderer interface {
	Render(r rune, c color.Color) *image.RGBA
}

// FontRenderer renders glyphs with Go Mono Bold at a fixed point size.
// It is not safe for concurrent use.
type FontRenderer struct {
	face    font.Face
	advance fixed.Int26_6
	ascent  fixed.Int26_6
	height  int
}

// NewFontRenderer parses the bundled monospace font at the given point size.
func NewFontRenderer(size int) (*FontRenderer, error) {
	if size < 1 {
		return nil, invalidf("NewFontRenderer", "font size must be positive, got %d", size)
	}

	f, err := truetype.Parse(gomonobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("mosaic: NewFontRenderer: %w", err)
	}

	face := truetype.NewFace(f, &truetype.Options{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})

	advance, ok := face.GlyphAdvance('M')
	if !ok {
		return nil, fmt.Errorf("mosaic: NewFontRenderer: font has no advance for 'M'")
	}

	metrics := face.Metrics()

	return &FontRenderer{
		face:    face,
		advance: advance,
		ascent:  metrics.Ascent,
		height:  (metrics.Ascent + metrics.Descent).Ceil(),
	}, nil
}

// CellSize returns the size in pixels of every rendered tile.
func (f *FontRenderer) CellSize() image.Point {
	return image.Pt(f.advance.Ceil(), f.height)
}

// Render draws r in c onto a new transparent tile.
func (f *FontRenderer) Render(r rune, c color.Color) *image.RGBA {
	tile := image.NewRGBA(image.Rectangle{Max: f.CellSize()})

	d := font.Drawer{
		Dst:  tile,
		Src:  image.NewUniform(c),
		Face: f.face,
		Dot:  fixed.Point26_6{Y: f.ascent},
	}
	d.DrawString(string(r))

	return tile
}
