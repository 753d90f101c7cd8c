package mosaic

import (
	"context"
	"image"
	"image/draw"
	"io"
	"log"
	"slices"
)

// Default conversion parameters.
const (
	DefaultGlyphSize = 12
	DefaultBlockSize = 7
	DefaultLevel     = 8
)

// Options configures a Converter. Zero values are replaced with defaults by
// NewConverter.
type Options struct {
	Mode  Mode
	Size  int
	Level int
	Ramp  Ramp

	// Workers is the number of goroutines sampling a frame. 0 uses
	// GOMAXPROCS, 1 samples on the calling goroutine.
	Workers int

	// Width resizes every frame to this width before conversion, keeping
	// its aspect ratio. 0 keeps the source size.
	Width int

	Renderer  GlyphRenderer
	Converter ColorConverter
	Logger    *log.Logger
}

func (o *Options) validate() error {
	if o.Mode == "" {
		o.Mode = ModeGlyph
	}
	mode, err := ParseMode(string(o.Mode))
	if err != nil {
		return err
	}
	o.Mode = mode

	if o.Size == 0 {
		if o.Mode == ModeBlock {
			o.Size = DefaultBlockSize
		} else {
			o.Size = DefaultGlyphSize
		}
	}
	if o.Size < 0 {
		return invalidf("NewConverter", "size must be positive, got %d", o.Size)
	}

	if o.Level == 0 {
		o.Level = DefaultLevel
	}

	if o.Ramp == nil {
		if o.Mode == ModeColorGlyph {
			o.Ramp = ColorRamp
		} else {
			o.Ramp = GrayRamp
		}
	}

	if o.Workers < 0 {
		return invalidf("NewConverter", "workers must not be negative, got %d", o.Workers)
	}
	if o.Width < 0 {
		return invalidf("NewConverter", "width must not be negative, got %d", o.Width)
	}

	if o.Logger == nil {
		o.Logger = log.New(io.Discard, "", 0)
	}
	if o.Converter == nil {
		o.Converter = &GiftConverter{Width: o.Width}
	}

	return nil
}

// Converter turns images into draw commands and renders them.
type Converter struct {
	opts Options
	enc  Encoding
}

// NewConverter validates opts and precomputes the palette and artifacts for
// the selected mode. Every configuration error surfaces here, before any
// frame is processed.
func NewConverter(opts Options) (*Converter, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	mode := opts.Mode

	if mode != ModeBlock && opts.Renderer == nil {
		if GlyphStep(opts.Size) < 1 {
			return nil, invalidf("NewConverter",
				"glyph size %d gives a sampling step below 1", opts.Size)
		}
		r, err := NewFontRenderer(opts.Size)
		if err != nil {
			return nil, err
		}
		opts.Renderer = r
	}

	var enc Encoding
	var err error
	switch mode {
	case ModeGlyph:
		enc, err = NewGlyphEncoding(opts.Ramp, opts.Size, opts.Renderer)
	case ModeColorGlyph:
		enc, err = NewColorGlyphEncoding(opts.Ramp, opts.Size, opts.Level,
			opts.Renderer, opts.Logger)
	case ModeBlock:
		enc, err = NewBlockEncoding(opts.Size, opts.Level)
	}
	if err != nil {
		return nil, err
	}

	opts.Logger.Printf("mosaic: converter ready: mode=%s size=%d level=%d step=%d",
		mode, opts.Size, opts.Level, enc.Step())

	return &Converter{opts: opts, enc: enc}, nil
}

// Encoding returns the encoding used by the converter.
func (c *Converter) Encoding() Encoding {
	return c.enc
}

// NewFrame wraps img with the converter's color conversion.
func (c *Converter) NewFrame(img image.Image) *Frame {
	return NewFrame(img, c.opts.Converter)
}

// ConvertFrame quantizes f and samples the resulting grid.
func (c *Converter) ConvertFrame(ctx context.Context, f *Frame) ([]Command, error) {
	grid := c.enc.Quantize(f)

	if c.opts.Workers == 1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return slices.Collect(Sample(grid, c.enc.Step(), c.enc.Skip)), nil
	}

	return SampleParallel(ctx, grid, c.enc.Step(), c.enc.Skip, c.opts.Workers)
}

// Convert is ConvertFrame on a fresh frame of img.
func (c *Converter) Convert(ctx context.Context, img image.Image) ([]Command, error) {
	return c.ConvertFrame(ctx, c.NewFrame(img))
}

// Render draws cmds onto dst in order.
func (c *Converter) Render(dst draw.Image, cmds []Command) {
	for _, cmd := range cmds {
		c.enc.Artifact(cmd.Index).Draw(dst, cmd.Pos)
	}
}

// Draw converts img and renders the result onto a new black canvas the size
// of the converted frame.
func (c *Converter) Draw(ctx context.Context, img image.Image) (*Canvas, []Command, error) {
	f := c.NewFrame(img)
	cmds, err := c.ConvertFrame(ctx, f)
	if err != nil {
		return nil, nil, err
	}

	canvas := NewCanvas(f.Size())
	c.Render(canvas.RGBA, cmds)

	return canvas, cmds, nil
}
