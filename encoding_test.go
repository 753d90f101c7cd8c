package mosaic

import (
	"image"
	"image/color"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockEncodingSinglePixel(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	img.SetRGBA(0, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	enc, err := NewBlockEncoding(1, 2)
	require.NoError(t, err)
	require.Equal(t, 1, enc.Step())

	cmds := slices.Collect(Sample(enc.Quantize(NewFrame(img, nil)), 1, enc.Skip))
	require.Len(t, cmds, 1)
	assert.Equal(t, image.Pt(0, 0), cmds[0].Pos)

	r, g, b := enc.Palette().Unpack(cmds[0].Index)
	assert.Equal(t, [3]int{1, 1, 1}, [3]int{r, g, b})
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, enc.Artifact(cmds[0].Index).Color)

	for _, pt := range []image.Point{{1, 0}, {0, 1}, {1, 1}} {
		for _, cmd := range cmds {
			assert.NotEqual(t, pt, cmd.Pos)
		}
	}
}

func TestBlockEncodingSkipsBlack(t *testing.T) {
	enc, err := NewBlockEncoding(7, 8)
	require.NoError(t, err)

	assert.True(t, enc.Skip(0))
	assert.False(t, enc.Skip(1))
	assert.Equal(t, 7, enc.Step())

	img := image.NewRGBA(image.Rect(0, 0, 14, 14))
	cmds := slices.Collect(Sample(enc.Quantize(NewFrame(img, nil)), enc.Step(), enc.Skip))
	assert.Empty(t, cmds)
}

func TestGlyphEncodingIndex(t *testing.T) {
	enc, err := NewGlyphEncoding(GrayRamp, 12, boxRenderer{7})
	require.NoError(t, err)

	img := image.NewGray(image.Rect(0, 0, 14, 1))
	img.Pix[0] = 255
	img.Pix[7] = 100

	cmds := slices.Collect(Sample(enc.Quantize(NewFrame(img, nil)), enc.Step(), enc.Skip))
	require.Len(t, cmds, 2)

	assert.Equal(t, len(GrayRamp)-1, cmds[0].Index)
	assert.Equal(t, '@', enc.Artifact(cmds[0].Index).Symbol)
	assert.Equal(t, 100/GrayRamp.Coeff(), cmds[1].Index)
	assert.Equal(t, image.Pt(7, 0), cmds[1].Pos)
}

func TestColorGlyphEncodingIndex(t *testing.T) {
	const level = 4

	enc, err := NewColorGlyphEncoding(ColorRamp, 12, level, boxRenderer{7}, nil)
	require.NoError(t, err)

	cube := level * level * level
	assert.True(t, enc.Skip(cube-1))
	assert.False(t, enc.Skip(cube))

	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 255, G: 0, B: 0, A: 255})

	cmds := slices.Collect(Sample(enc.Quantize(NewFrame(img, nil)), enc.Step(), enc.Skip))
	require.Len(t, cmds, 1)

	f := NewFrame(img, nil)
	sym := int(ColorRamp.Quantizer().Index(f.Gray().Pix[0]))
	require.NotZero(t, sym)

	key := enc.Palette().Pack(level-1, 0, 0)
	assert.Equal(t, sym*cube+key, cmds[0].Index)

	a := enc.Artifact(cmds[0].Index)
	assert.Equal(t, ColorRamp[sym], a.Symbol)
	assert.Equal(t, color.RGBA{R: 255, A: 255}, a.Color)
	assert.Equal(t, color.RGBA{R: 255, A: 255}, a.Tile.RGBAAt(0, 0))
}

func TestColorGlyphEncodingMiss(t *testing.T) {
	enc, err := NewColorGlyphEncoding(ColorRamp, 12, 2, boxRenderer{7}, nil)
	require.NoError(t, err)

	assert.Panics(t, func() { enc.Artifact(3) })
	assert.Panics(t, func() { enc.Artifact(len(ColorRamp) * 8) })
}

func TestEncodingInvalid(t *testing.T) {
	_, err := NewGlyphEncoding(Ramp("x"), 12, boxRenderer{7})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = NewGlyphEncoding(GrayRamp, 1, boxRenderer{1})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = NewGlyphEncoding(GrayRamp, 12, nil)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = NewColorGlyphEncoding(ColorRamp, 12, 17, boxRenderer{7}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = NewBlockEncoding(0, 8)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestEncodingDescribe(t *testing.T) {
	enc, err := NewColorGlyphEncoding(ColorRamp, 12, 3, boxRenderer{7}, nil)
	require.NoError(t, err)

	assert.Equal(t, EncodingInfo{
		Mode:  ModeColorGlyph,
		Size:  12,
		Level: 3,
		Ramp:  string(ColorRamp),
		Step:  7,
	}, enc.Describe())
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"glyph": ModeGlyph,
		"ascii": ModeGlyph,
		"color": ModeColorGlyph,
		"block": ModeBlock,
		"pixel": ModeBlock,
	} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseMode("sepia")
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}
