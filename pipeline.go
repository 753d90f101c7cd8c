package mosaic

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"sync/atomic"
	"time"
)

// Source produces frames. Acquire returns ErrEndOfStream once it is
// exhausted.
type Source interface {
	Acquire(ctx context.Context) (image.Image, error)
	Close() error
}

// Rendered is the result of one pipeline cycle. It is only valid until the
// next cycle begins; consumers that keep it must copy Image.
type Rendered struct {
	Index    int
	Image    *image.RGBA
	Commands []Command
	Encoding Encoding
}

// Display shows rendered frames as they are produced.
type Display interface {
	Present(r *Rendered) error
}

// Recorder persists rendered frames. Close finalizes the output and is
// called exactly once by the pipeline.
type Recorder interface {
	WriteFrame(r *Rendered) error
	Close() error
}

// Status is the outcome of a single pipeline cycle.
type Status int

// Cycle outcomes.
const (
	StatusContinue Status = iota
	StatusEndOfStream
)

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	Source    Source
	Converter *Converter
	Displays  []Display
	Recorder  Recorder
	Control   *Control

	// Framerate paces cycles when positive. Sources that produce frames in
	// real time should leave it at 0.
	Framerate float64

	Logger *log.Logger
}

func (o *PipelineOptions) validate() error {
	if o.Source == nil {
		return invalidf("NewPipeline", "source must be specified")
	}
	if o.Converter == nil {
		return invalidf("NewPipeline", "converter must be specified")
	}
	if o.Framerate < 0 {
		return invalidf("NewPipeline", "framerate must not be negative, got %v", o.Framerate)
	}
	if o.Control == nil {
		o.Control = NewControl(o.Recorder != nil)
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard, "", 0)
	}
	return nil
}

// Pipeline drives frames from a source through a converter to displays and
// an optional recorder, one frame at a time.
type Pipeline struct {
	opts   PipelineOptions
	canvas *Canvas
	frames atomic.Int64

	closed   bool
	closeErr error
}

// NewPipeline validates opts and returns a pipeline ready to run.
func NewPipeline(opts PipelineOptions) (*Pipeline, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Pipeline{opts: opts, canvas: &Canvas{}}, nil
}

// Control returns the control of the pipeline.
func (p *Pipeline) Control() *Control {
	return p.opts.Control
}

// Frames returns the number of frames processed so far.
func (p *Pipeline) Frames() int64 {
	return p.frames.Load()
}

// Step runs a single cycle: acquire, convert, render, present and record.
func (p *Pipeline) Step(ctx context.Context) (Status, error) {
	img, err := p.opts.Source.Acquire(ctx)
	if errors.Is(err, ErrEndOfStream) {
		return StatusEndOfStream, nil
	} else if err != nil {
		return StatusContinue, fmt.Errorf("mosaic pipeline: acquire: %w", err)
	}

	conv := p.opts.Converter
	f := conv.NewFrame(img)
	cmds, err := conv.ConvertFrame(ctx, f)
	if err != nil {
		return StatusContinue, fmt.Errorf("mosaic pipeline: convert: %w", err)
	}

	p.canvas.Reset(f.Size())
	conv.Render(p.canvas.RGBA, cmds)

	r := &Rendered{
		Index:    int(p.frames.Load()),
		Image:    p.canvas.RGBA,
		Commands: cmds,
		Encoding: conv.Encoding(),
	}

	for _, d := range p.opts.Displays {
		if err := d.Present(r); err != nil {
			return StatusContinue, fmt.Errorf("mosaic pipeline: present: %w", err)
		}
	}

	if p.opts.Recorder != nil && p.opts.Control.Recording() {
		if err := p.opts.Recorder.WriteFrame(r); err != nil {
			return StatusContinue, fmt.Errorf("mosaic pipeline: record: %w", err)
		}
	}

	p.frames.Add(1)

	return StatusContinue, nil
}

// Run steps the pipeline until the source is exhausted, the control is
// stopped, ctx is done or a cycle fails. The recorder is finalized on every
// exit path. A stop through the control or the end of the stream returns
// nil.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	defer func() {
		if cerr := p.finalize(); err == nil {
			err = cerr
		}
	}()

	ctl := p.opts.Control

	var tick <-chan time.Time
	if p.opts.Framerate > 0 {
		t := time.NewTicker(time.Duration(float64(time.Second) / p.opts.Framerate))
		defer t.Stop()
		tick = t.C
	}

	for {
		if err := ctx.Err(); err != nil {
			p.opts.Logger.Println("mosaic pipeline: cancelled:", err)
			return err
		}

		switch ctl.State() {
		case StateStopped:
			p.opts.Logger.Println("mosaic pipeline: stopped")
			return nil
		case StatePaused:
			if _, err := ctl.WaitForState(ctx, StateRunning, StateStopped); err != nil {
				return err
			}
			continue
		}

		status, err := p.Step(ctx)
		if err != nil {
			p.opts.Logger.Println("mosaic pipeline:", err)
			return err
		}
		if status == StatusEndOfStream {
			p.opts.Logger.Printf("mosaic pipeline: end of stream after %d frames", p.Frames())
			return nil
		}

		if tick != nil {
			select {
			case <-tick:
			case <-ctx.Done():
			}
		}
	}
}

func (p *Pipeline) finalize() error {
	if p.closed {
		return p.closeErr
	}
	p.closed = true

	if p.opts.Recorder != nil {
		if err := p.opts.Recorder.Close(); err != nil {
			p.closeErr = fmt.Errorf("mosaic pipeline: finalize recorder: %w", err)
		}
	}
	return p.closeErr
}

// Close finalizes the recorder if Run has not already done so. It is for
// callers that drive the pipeline with Step directly.
func (p *Pipeline) Close() error {
	return p.finalize()
}
