package mosaic

import (
	"image/color"
	"log"
)

// Mode selects a cell encoding.
type Mode string

// Supported modes.
const (
	ModeGlyph      Mode = "glyph"
	ModeColorGlyph Mode = "color"
	ModeBlock      Mode = "block"
)

// ParseMode parses a mode name as used on the command line.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeGlyph, ModeColorGlyph, ModeBlock:
		return Mode(s), nil
	case "ascii", "gray":
		return ModeGlyph, nil
	case "pixel":
		return ModeBlock, nil
	}
	return "", invalidf("ParseMode", "unknown mode %q", s)
}

// expensiveLevel is the level above which rendering one tile per glyph and
// color becomes noticeably slow.
const expensiveLevel = 12

// Encoding maps a frame to a grid of packed artifact indices and resolves
// those indices to renderable artifacts.
type Encoding interface {
	Quantize(f *Frame) IndexGrid
	Skip(index int) bool
	Step() int
	Artifact(index int) *Artifact
	Describe() EncodingInfo

	// Len is the size of the index space. Artifact is only defined for
	// indices in [0, Len) that Skip does not reject.
	Len() int
}

// EncodingInfo describes the parameters an encoding was built from. It is
// enough to rebuild an identical encoding.
type EncodingInfo struct {
	Mode  Mode   `json:"mode"`
	Size  int    `json:"size"`
	Level int    `json:"level,omitempty"`
	Ramp  string `json:"ramp,omitempty"`
	Step  int    `json:"step"`
}

type grayGrid struct {
	*IndexBuffer
}

func (g grayGrid) Size() (int, int) {
	return g.Width, g.Height
}

func (g grayGrid) Index(x, y int) int {
	return int(g.Pix[y*g.Width+x])
}

type colorGrid struct {
	*IndexBuffer
	level int
}

func (g colorGrid) Size() (int, int) {
	return g.Width, g.Height
}

func (g colorGrid) Index(x, y int) int {
	i := (y*g.Width + x) * 3
	return (int(g.Pix[i])*g.level+int(g.Pix[i+1]))*g.level + int(g.Pix[i+2])
}

type colorGlyphGrid struct {
	sym   *IndexBuffer
	color colorGrid
	cube  int
}

func (g colorGlyphGrid) Size() (int, int) {
	return g.sym.Width, g.sym.Height
}

func (g colorGlyphGrid) Index(x, y int) int {
	sym := int(g.sym.Pix[y*g.sym.Width+x])
	if sym == 0 {
		return 0
	}
	return sym*g.cube + g.color.Index(x, y)
}

// GlyphEncoding draws white glyphs chosen by pixel intensity.
type GlyphEncoding struct {
	ramp      Ramp
	size      int
	step      int
	quant     *Quantizer
	artifacts []Artifact
}

// NewGlyphEncoding renders every glyph of ramp once.
func NewGlyphEncoding(ramp Ramp, size int, renderer GlyphRenderer) (*GlyphEncoding, error) {
	if err := ramp.validate(); err != nil {
		return nil, err
	}
	step := GlyphStep(size)
	if step < 1 {
		return nil, invalidf("NewGlyphEncoding", "glyph size %d gives a sampling step below 1", size)
	}
	if renderer == nil {
		return nil, invalidf("NewGlyphEncoding", "glyph renderer must be specified")
	}

	white := color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	e := &GlyphEncoding{
		ramp:      ramp,
		size:      size,
		step:      step,
		quant:     ramp.Quantizer(),
		artifacts: make([]Artifact, len(ramp)),
	}
	for i, r := range ramp {
		e.artifacts[i] = Artifact{Symbol: r, Color: white, Tile: renderer.Render(r, white)}
	}

	return e, nil
}

func (e *GlyphEncoding) Quantize(f *Frame) IndexGrid {
	return grayGrid{e.quant.Gray(f.Gray())}
}

func (e *GlyphEncoding) Skip(index int) bool {
	return index == 0
}

func (e *GlyphEncoding) Step() int {
	return e.step
}

func (e *GlyphEncoding) Artifact(index int) *Artifact {
	return &e.artifacts[index]
}

func (e *GlyphEncoding) Len() int {
	return len(e.artifacts)
}

func (e *GlyphEncoding) Describe() EncodingInfo {
	return EncodingInfo{Mode: ModeGlyph, Size: e.size, Ramp: string(e.ramp), Step: e.step}
}

// ColorGlyphEncoding draws glyphs chosen by intensity in the quantized color
// of the pixel underneath.
type ColorGlyphEncoding struct {
	ramp      Ramp
	size      int
	step      int
	palette   *Palette
	quant     *Quantizer
	colors    *Quantizer
	artifacts []Artifact
}

// NewColorGlyphEncoding renders every glyph of ramp in every palette color,
// len(ramp) * level^3 tiles in total. This dominates construction time for
// large levels.
func NewColorGlyphEncoding(ramp Ramp, size, level int, renderer GlyphRenderer,
	logger *log.Logger) (*ColorGlyphEncoding, error) {
	if err := ramp.validate(); err != nil {
		return nil, err
	}
	step := GlyphStep(size)
	if step < 1 {
		return nil, invalidf("NewColorGlyphEncoding", "glyph size %d gives a sampling step below 1", size)
	}
	if renderer == nil {
		return nil, invalidf("NewColorGlyphEncoding", "glyph renderer must be specified")
	}

	palette, err := BuildPalette(level)
	if err != nil {
		return nil, err
	}

	if level > expensiveLevel && logger != nil {
		logger.Printf("mosaic: rendering %d glyph tiles for level %d, this may take a while",
			len(ramp)*palette.Len(), level)
	}

	e := &ColorGlyphEncoding{
		ramp:      ramp,
		size:      size,
		step:      step,
		palette:   palette,
		quant:     ramp.Quantizer(),
		colors:    NewQuantizer(palette.Coeff(), uint8(level-1)),
		artifacts: make([]Artifact, len(ramp)*palette.Len()),
	}

	for s, r := range ramp {
		if s == 0 {
			// never drawn
			continue
		}
		for key := 0; key < palette.Len(); key++ {
			c := palette.Color(key)
			e.artifacts[s*palette.Len()+key] = Artifact{
				Symbol: r,
				Color:  c,
				Tile:   renderer.Render(r, c),
			}
		}
	}

	return e, nil
}

// Palette returns the color palette of the encoding.
func (e *ColorGlyphEncoding) Palette() *Palette {
	return e.palette
}

func (e *ColorGlyphEncoding) Quantize(f *Frame) IndexGrid {
	return colorGlyphGrid{
		sym:   e.quant.Gray(f.Gray()),
		color: colorGrid{IndexBuffer: e.colors.RGB(f.RGB()), level: e.palette.Level()},
		cube:  e.palette.Len(),
	}
}

func (e *ColorGlyphEncoding) Skip(index int) bool {
	return index < e.palette.Len()
}

func (e *ColorGlyphEncoding) Step() int {
	return e.step
}

func (e *ColorGlyphEncoding) Artifact(index int) *Artifact {
	if index < e.palette.Len() || index >= len(e.artifacts) {
		panic("mosaic: internal: palette miss")
	}
	return &e.artifacts[index]
}

func (e *ColorGlyphEncoding) Len() int {
	return len(e.artifacts)
}

func (e *ColorGlyphEncoding) Describe() EncodingInfo {
	return EncodingInfo{
		Mode:  ModeColorGlyph,
		Size:  e.size,
		Level: e.palette.Level(),
		Ramp:  string(e.ramp),
		Step:  e.step,
	}
}

// BlockEncoding fills square blocks with the quantized color of their
// top-left pixel.
type BlockEncoding struct {
	size      int
	palette   *Palette
	colors    *Quantizer
	artifacts []Artifact
}

// NewBlockEncoding builds the palette for level and one swatch per color.
func NewBlockEncoding(size, level int) (*BlockEncoding, error) {
	if BlockStep(size) < 1 {
		return nil, invalidf("NewBlockEncoding", "block size must be positive, got %d", size)
	}

	palette, err := BuildPalette(level)
	if err != nil {
		return nil, err
	}

	e := &BlockEncoding{
		size:      size,
		palette:   palette,
		colors:    NewQuantizer(palette.Coeff(), uint8(level-1)),
		artifacts: make([]Artifact, palette.Len()),
	}
	for key := range e.artifacts {
		e.artifacts[key] = Artifact{Symbol: '█', Color: palette.Color(key), Size: size}
	}

	return e, nil
}

// Palette returns the color palette of the encoding.
func (e *BlockEncoding) Palette() *Palette {
	return e.palette
}

func (e *BlockEncoding) Quantize(f *Frame) IndexGrid {
	return colorGrid{IndexBuffer: e.colors.RGB(f.RGB()), level: e.palette.Level()}
}

func (e *BlockEncoding) Skip(index int) bool {
	return index == 0
}

func (e *BlockEncoding) Step() int {
	return BlockStep(e.size)
}

func (e *BlockEncoding) Artifact(index int) *Artifact {
	return &e.artifacts[index]
}

func (e *BlockEncoding) Len() int {
	return len(e.artifacts)
}

func (e *BlockEncoding) Describe() EncodingInfo {
	return EncodingInfo{
		Mode:  ModeBlock,
		Size:  e.size,
		Level: e.palette.Level(),
		Step:  BlockStep(e.size),
	}
}
