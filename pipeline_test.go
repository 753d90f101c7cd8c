package mosaic

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceSource struct {
	frames []image.Image
	err    error
	closed bool
}

func (s *sliceSource) Acquire(ctx context.Context) (image.Image, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.frames) == 0 {
		return nil, ErrEndOfStream
	}
	img := s.frames[0]
	s.frames = s.frames[1:]
	return img, nil
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

type endlessSource struct {
	img image.Image
}

func (s endlessSource) Acquire(ctx context.Context) (image.Image, error) {
	return s.img, ctx.Err()
}

func (s endlessSource) Close() error {
	return nil
}

type memRecorder struct {
	mu     sync.Mutex
	frames []int
	cmds   []int
	closes int
}

func (m *memRecorder) WriteFrame(r *Rendered) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, r.Index)
	m.cmds = append(m.cmds, len(r.Commands))
	return nil
}

func (m *memRecorder) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return nil
}

type displayFunc func(r *Rendered) error

func (f displayFunc) Present(r *Rendered) error {
	return f(r)
}

func whiteDot(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.SetRGBA(0, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	return img
}

func newTestPipeline(t *testing.T, opts PipelineOptions) *Pipeline {
	t.Helper()

	if opts.Converter == nil {
		c, err := NewConverter(Options{Mode: ModeBlock, Size: 2, Level: 2, Workers: 1})
		require.NoError(t, err)
		opts.Converter = c
	}

	p, err := NewPipeline(opts)
	require.NoError(t, err)
	return p
}

func TestPipelineRunToEnd(t *testing.T) {
	src := &sliceSource{frames: []image.Image{whiteDot(4, 4), whiteDot(4, 4), whiteDot(6, 2)}}
	rec := &memRecorder{}

	var sizes []image.Point
	p := newTestPipeline(t, PipelineOptions{
		Source:   src,
		Recorder: rec,
		Displays: []Display{displayFunc(func(r *Rendered) error {
			sizes = append(sizes, r.Image.Bounds().Size())
			return nil
		})},
	})

	require.NoError(t, p.Run(context.Background()))

	assert.EqualValues(t, 3, p.Frames())
	assert.Equal(t, []int{0, 1, 2}, rec.frames)
	assert.Equal(t, []int{1, 1, 1}, rec.cmds)
	assert.Equal(t, 1, rec.closes)
	assert.Equal(t, []image.Point{{4, 4}, {4, 4}, {6, 2}}, sizes)

	require.NoError(t, p.Close())
	assert.Equal(t, 1, rec.closes)
}

func TestPipelineStep(t *testing.T) {
	p := newTestPipeline(t, PipelineOptions{
		Source: &sliceSource{frames: []image.Image{whiteDot(2, 2)}},
	})

	status, err := p.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusContinue, status)

	status, err = p.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusEndOfStream, status)
}

func TestPipelineRecordingToggle(t *testing.T) {
	rec := &memRecorder{}
	ctl := NewControl(false)

	p := newTestPipeline(t, PipelineOptions{
		Source:   &sliceSource{frames: []image.Image{whiteDot(2, 2), whiteDot(2, 2)}},
		Recorder: rec,
		Control:  ctl,
		Displays: []Display{displayFunc(func(r *Rendered) error {
			ctl.SetRecording(true)
			return nil
		})},
	})

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, []int{0, 1}, rec.frames)
	assert.Equal(t, 1, rec.closes)
}

func TestPipelineRecordingOff(t *testing.T) {
	rec := &memRecorder{}

	p := newTestPipeline(t, PipelineOptions{
		Source:   &sliceSource{frames: []image.Image{whiteDot(2, 2)}},
		Recorder: rec,
		Control:  NewControl(false),
	})

	require.NoError(t, p.Run(context.Background()))
	assert.Empty(t, rec.frames)
	assert.Equal(t, 1, rec.closes)
}

func TestPipelineStop(t *testing.T) {
	rec := &memRecorder{}
	ctl := NewControl(true)

	p := newTestPipeline(t, PipelineOptions{
		Source:   endlessSource{img: whiteDot(2, 2)},
		Recorder: rec,
		Control:  ctl,
		Displays: []Display{displayFunc(func(r *Rendered) error {
			if r.Index == 4 {
				ctl.Stop()
			}
			return nil
		})},
	})

	require.NoError(t, p.Run(context.Background()))
	assert.EqualValues(t, 5, p.Frames())
	assert.Equal(t, 1, rec.closes)
}

func TestPipelineCancel(t *testing.T) {
	rec := &memRecorder{}
	ctx, cancel := context.WithCancel(context.Background())

	p := newTestPipeline(t, PipelineOptions{
		Source:   endlessSource{img: whiteDot(2, 2)},
		Recorder: rec,
		Displays: []Display{displayFunc(func(r *Rendered) error {
			if r.Index == 2 {
				cancel()
			}
			return nil
		})},
	})

	err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, rec.closes)
}

func TestPipelinePauseResume(t *testing.T) {
	ctl := NewControl(false)
	paused := make(chan struct{})

	p := newTestPipeline(t, PipelineOptions{
		Source:  &sliceSource{frames: []image.Image{whiteDot(2, 2), whiteDot(2, 2)}},
		Control: ctl,
		Displays: []Display{displayFunc(func(r *Rendered) error {
			if r.Index == 0 {
				ctl.Pause()
				close(paused)
			}
			return nil
		})},
	})

	done := make(chan error)
	go func() {
		done <- p.Run(context.Background())
	}()

	<-paused
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 1, p.Frames())

	ctl.Resume()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("pipeline did not finish after resume")
	}
	assert.EqualValues(t, 2, p.Frames())
}

func TestPipelineAcquireError(t *testing.T) {
	rec := &memRecorder{}
	boom := errors.New("boom")

	p := newTestPipeline(t, PipelineOptions{
		Source:   &sliceSource{err: boom},
		Recorder: rec,
	})

	err := p.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, rec.closes)
}

func TestPipelineFramerate(t *testing.T) {
	p := newTestPipeline(t, PipelineOptions{
		Source:    &sliceSource{frames: []image.Image{whiteDot(2, 2), whiteDot(2, 2), whiteDot(2, 2)}},
		Framerate: 50,
	})

	start := time.Now()
	require.NoError(t, p.Run(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestNewPipelineInvalid(t *testing.T) {
	_, err := NewPipeline(PipelineOptions{})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = NewPipeline(PipelineOptions{Source: &sliceSource{}})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}
