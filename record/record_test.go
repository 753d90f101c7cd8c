package record

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmpim/mosaic"
	"github.com/tmpim/mosaic/source"
)

func rendered(t *testing.T, index int) *mosaic.Rendered {
	t.Helper()

	enc, err := mosaic.NewBlockEncoding(2, 2)
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}

	return &mosaic.Rendered{
		Index:    index,
		Image:    img,
		Commands: []mosaic.Command{{Index: 7, Pos: image.Pt(0, 0)}},
		Encoding: enc,
	}
}

func TestSaveImage(t *testing.T) {
	dir := t.TempDir()
	img := rendered(t, 0).Image

	for _, name := range []string{"out.png", "out.jpg", "out.bmp", "out.gif"} {
		path := filepath.Join(dir, name)
		require.NoError(t, SaveImage(path, img), name)

		got, _, err := source.Decode(path)
		require.NoError(t, err, name)
		assert.Equal(t, img.Bounds(), got.Bounds(), name)

		r, _, _, _ := got.At(0, 0).RGBA()
		assert.Greater(t, r, uint32(0x8000), name)
	}

	assert.Error(t, SaveImage(filepath.Join(dir, "out.txt"), img))
}

func TestStill(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last.png")

	s, err := NewStill(path)
	require.NoError(t, err)

	r := rendered(t, 0)
	require.NoError(t, s.WriteFrame(r))

	// later changes to the canvas must not leak into the saved frame
	r.Image.SetRGBA(0, 0, color.RGBA{A: 255})
	require.NoError(t, s.Close())

	got, _, err := source.Decode(path)
	require.NoError(t, err)
	red, _, _, _ := got.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), red)
}

func TestGIF(t *testing.T) {
	var buf bytes.Buffer
	g, err := NewGIF(&buf, 10)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, g.WriteFrame(rendered(t, i)))
	}
	require.NoError(t, g.Close())

	out, err := gif.DecodeAll(&buf)
	require.NoError(t, err)
	assert.Len(t, out.Image, 3)
	assert.Equal(t, []int{10, 10, 10}, out.Delay)
}

func TestCastRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	c, err := NewCast(&buf)
	require.NoError(t, err)

	first := rendered(t, 0)
	second := rendered(t, 1)
	second.Commands = append(second.Commands, mosaic.Command{Index: 5, Pos: image.Pt(2, 2)})

	require.NoError(t, c.WriteFrame(first))
	require.NoError(t, c.WriteFrame(second))
	require.NoError(t, c.Close())

	rd, err := OpenCast(&buf)
	require.NoError(t, err)
	defer rd.Close()

	assert.Equal(t, first.Encoding.Describe(), rd.Info())

	f, err := rd.Next()
	require.NoError(t, err)
	assert.Equal(t, 4, f.Width)
	assert.Equal(t, 4, f.Height)
	assert.Equal(t, first.Commands, f.Commands)

	f, err = rd.Next()
	require.NoError(t, err)
	assert.Equal(t, second.Commands, f.Commands)

	_, err = rd.Next()
	assert.Equal(t, io.EOF, err)

	conv, err := mosaic.NewConverter(rd.Options())
	require.NoError(t, err)
	assert.Equal(t, rd.Info(), conv.Encoding().Describe())
}

func TestCastRejectsUnknownIndex(t *testing.T) {
	var buf bytes.Buffer
	c, err := NewCast(&buf)
	require.NoError(t, err)

	r := rendered(t, 0)
	r.Commands = []mosaic.Command{{Index: 9999, Pos: image.Pt(0, 0)}}
	require.NoError(t, c.WriteFrame(r))
	require.NoError(t, c.Close())

	rd, err := OpenCast(&buf)
	require.NoError(t, err)
	defer rd.Close()

	conv, err := mosaic.NewConverter(rd.Options())
	require.NoError(t, err)

	f, err := rd.Next()
	require.NoError(t, err)

	err = f.Validate(conv.Encoding())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index 9999 out of range")

	// skipped indices have no artifact either
	f.Commands[0].Index = 0
	assert.Error(t, f.Validate(conv.Encoding()))

	f.Commands[0].Index = 7
	assert.NoError(t, f.Validate(conv.Encoding()))

	f.Commands[0].Pos = image.Pt(4, 0)
	assert.Error(t, f.Validate(conv.Encoding()))
}

func TestCastRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	c, err := NewCast(&buf)
	require.NoError(t, err)

	r := rendered(t, 0)
	r.Image = image.NewRGBA(image.Rect(0, 0, 70000, 1))
	assert.Error(t, c.WriteFrame(r))
}

func TestOpenCastGarbage(t *testing.T) {
	_, err := OpenCast(bytes.NewReader([]byte("definitely not zstd")))
	assert.ErrorIs(t, err, ErrNotCast)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	for _, name := range []string{"a.gif", "a.cast", "a.png"} {
		path := filepath.Join(dir, name)
		rec, err := Open(ctx, path, Options{})
		require.NoError(t, err, name)
		require.NoError(t, rec.WriteFrame(rendered(t, 0)), name)
		require.NoError(t, rec.Close(), name)

		st, err := os.Stat(path)
		require.NoError(t, err, name)
		assert.NotZero(t, st.Size(), name)
	}

	_, err := Open(ctx, filepath.Join(dir, "a.txt"), Options{})
	assert.Error(t, err)
}

func TestVideo(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available")
	}

	path := filepath.Join(t.TempDir(), "out.mp4")
	v, err := NewVideo(context.Background(), path, 10, false)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, v.WriteFrame(rendered(t, i)))
	}
	require.NoError(t, v.Close())

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, st.Size())
}
