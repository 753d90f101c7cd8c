package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"golang.org/x/image/bmp"

	"github.com/tmpim/mosaic"
)

// DefaultFramerate is the rate at which video frames are sampled when none
// is given.
const DefaultFramerate = 20

// VideoOptions configures a Video source.
type VideoOptions struct {
	// Width and Height scale every frame. A zero dimension is derived from
	// the other keeping the aspect ratio, both zero keeps the input size.
	Width  int
	Height int

	// Framerate is the rate ffmpeg resamples the input to.
	Framerate int

	// Input is read instead of the path when the path is "-".
	Input io.Reader

	Debug bool
}

func (o *VideoOptions) validate() error {
	if o.Width < 0 || o.Height < 0 {
		return errors.New("mosaic source: OpenVideo: dimensions must not be negative")
	}
	if o.Framerate < 0 {
		return errors.New("mosaic source: OpenVideo: framerate must not be negative")
	}
	if o.Framerate == 0 {
		o.Framerate = DefaultFramerate
	}
	return nil
}

func (o *VideoOptions) filter() string {
	w, h := o.Width, o.Height
	if w == 0 && h == 0 {
		return "null"
	}
	if w == 0 {
		w = -2
	}
	if h == 0 {
		h = -2
	}
	return "scale=" + strconv.Itoa(w) + ":" + strconv.Itoa(h)
}

// Video decodes a video of any format ffmpeg supports into frames, piped
// out of ffmpeg as a stream of BMP images.
type Video struct {
	cmd      *exec.Cmd
	frames   *bufio.Reader
	upstream io.Closer

	waitOnce sync.Once
	waitErr  error
}

// OpenVideo starts ffmpeg on path. The process is tied to ctx and killed by
// Close.
func OpenVideo(ctx context.Context, path string, opts VideoOptions) (*Video, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	if path != "-" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("mosaic source: %w", err)
		}
	}

	cmd := exec.CommandContext(ctx,
		"ffmpeg", "-loglevel", "error", "-i", path,
		"-an", "-f", "image2pipe", "-vcodec", "bmp",
		"-r", strconv.Itoa(opts.Framerate), "-vf", opts.filter(),
		"pipe:1")
	if path == "-" {
		cmd.Stdin = opts.Input
	}

	if opts.Debug {
		cmd.Stderr = os.Stderr
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("mosaic source: start ffmpeg: %w", err)
	}

	return &Video{
		cmd:    cmd,
		frames: bufio.NewReaderSize(stdout, 1<<20),
	}, nil
}

func (v *Video) wait() error {
	v.waitOnce.Do(func() {
		v.waitErr = v.cmd.Wait()
	})
	return v.waitErr
}

// Acquire decodes the next frame. Once ffmpeg runs out of frames it returns
// mosaic.ErrEndOfStream, or the ffmpeg failure if it exited abnormally.
func (v *Video) Acquire(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := bmp.Decode(v.frames)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		if werr := v.wait(); werr != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("mosaic source: ffmpeg: %w", werr)
		}
		return nil, mosaic.ErrEndOfStream
	} else if err != nil {
		return nil, fmt.Errorf("mosaic source: decode frame: %w", err)
	}

	return img, nil
}

// Close kills ffmpeg if it is still running and reaps it, along with the
// process feeding it, if any.
func (v *Video) Close() error {
	if v.cmd.Process != nil {
		v.cmd.Process.Kill()
	}
	v.wait()
	if v.upstream != nil {
		v.upstream.Close()
	}
	return nil
}
