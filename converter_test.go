package mosaic

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConverterDefaults(t *testing.T) {
	c, err := NewConverter(Options{Renderer: boxRenderer{7}})
	require.NoError(t, err)

	info := c.Encoding().Describe()
	assert.Equal(t, ModeGlyph, info.Mode)
	assert.Equal(t, DefaultGlyphSize, info.Size)
	assert.Equal(t, 7, info.Step)
	assert.Equal(t, string(GrayRamp), info.Ramp)

	c, err = NewConverter(Options{Mode: "pixel"})
	require.NoError(t, err)

	info = c.Encoding().Describe()
	assert.Equal(t, ModeBlock, info.Mode)
	assert.Equal(t, DefaultBlockSize, info.Size)
	assert.Equal(t, DefaultLevel, info.Level)
	assert.Equal(t, 7, info.Step)
}

func TestNewConverterInvalid(t *testing.T) {
	for _, opts := range []Options{
		{Mode: "sepia"},
		{Mode: ModeBlock, Level: 17},
		{Mode: ModeBlock, Size: -1},
		{Mode: ModeGlyph, Size: 1},
		{Mode: ModeGlyph, Ramp: Ramp("#")},
		{Mode: ModeBlock, Workers: -2},
		{Mode: ModeBlock, Width: -10},
	} {
		_, err := NewConverter(opts)
		assert.ErrorIs(t, err, ErrInvalidConfiguration, "%+v", opts)
	}
}

func TestNewConverterLogsExpensiveLevel(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewConverter(Options{
		Mode:     ModeColorGlyph,
		Level:    13,
		Ramp:     Ramp(" #"),
		Renderer: boxRenderer{1},
		Logger:   log.New(&buf, "", 0),
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "may take a while")
}

func TestConverterDraw(t *testing.T) {
	c, err := NewConverter(Options{Mode: ModeBlock, Size: 2, Level: 2, Workers: 1})
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.SetRGBA(2, 2, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	canvas, cmds, err := c.Draw(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, image.Pt(2, 2), cmds[0].Pos)

	assert.Equal(t, image.Rect(0, 0, 4, 4), canvas.Bounds())
	assert.Equal(t, color.RGBA{A: 255}, canvas.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{A: 255}, canvas.RGBAAt(1, 1))
	for _, pt := range []image.Point{{2, 2}, {3, 2}, {2, 3}, {3, 3}} {
		assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, canvas.RGBAAt(pt.X, pt.Y))
	}
}

type countingConverter struct {
	GiftConverter
	gray, rgb int
}

func (c *countingConverter) Gray(img image.Image) *image.Gray {
	c.gray++
	return c.GiftConverter.Gray(img)
}

func (c *countingConverter) RGB(img image.Image) *image.RGBA {
	c.rgb++
	return c.GiftConverter.RGB(img)
}

func TestConverterGlyphDrawSkipsColorView(t *testing.T) {
	conv := &countingConverter{}
	c, err := NewConverter(Options{Renderer: boxRenderer{7}, Converter: conv, Workers: 1})
	require.NoError(t, err)

	img := image.NewYCbCr(image.Rect(0, 0, 14, 14), image.YCbCrSubsampleRatio420)
	canvas, _, err := c.Draw(context.Background(), img)
	require.NoError(t, err)

	assert.Equal(t, image.Pt(14, 14), canvas.Bounds().Size())
	assert.Equal(t, 1, conv.gray)
	assert.Zero(t, conv.rgb)
}

func TestConverterResize(t *testing.T) {
	c, err := NewConverter(Options{Mode: ModeBlock, Size: 1, Level: 2, Width: 8})
	require.NoError(t, err)

	canvas, _, err := c.Draw(context.Background(), image.NewRGBA(image.Rect(0, 0, 32, 16)))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(8, 4), canvas.Bounds().Size())
}

func TestConverterParallelMatchesSequential(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 50, 40))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}

	seq, err := NewConverter(Options{Mode: ModeBlock, Size: 3, Workers: 1})
	require.NoError(t, err)
	par, err := NewConverter(Options{Mode: ModeBlock, Size: 3, Workers: 4})
	require.NoError(t, err)

	want, err := seq.Convert(context.Background(), img)
	require.NoError(t, err)
	got, err := par.Convert(context.Background(), img)
	require.NoError(t, err)

	assert.NotEmpty(t, want)
	assert.Equal(t, want, got)
}
