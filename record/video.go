package record

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

	"golang.org/x/image/bmp"

	"github.com/tmpim/mosaic"
)

// Video pipes rendered frames into ffmpeg as BMP images.
type Video struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	buf   *bufio.Writer
	size  image.Point
}

// NewVideo starts ffmpeg writing an mpeg4 video to path at framerate.
func NewVideo(ctx context.Context, path string, framerate int, debug bool) (*Video, error) {
	if framerate <= 0 {
		return nil, errors.New("mosaic record: NewVideo: framerate must be positive")
	}

	cmd := exec.CommandContext(ctx,
		"ffmpeg", "-y", "-loglevel", "error",
		"-f", "image2pipe", "-vcodec", "bmp", "-r", strconv.Itoa(framerate), "-i", "-",
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		"-c:v", "mpeg4", "-q:v", "3", "-pix_fmt", "yuv420p",
		path)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if debug {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("mosaic record: start ffmpeg: %w", err)
	}

	return &Video{cmd: cmd, stdin: stdin, buf: bufio.NewWriterSize(stdin, 1<<20)}, nil
}

// WriteFrame encodes one frame. Every frame must have the size of the
// first one.
func (v *Video) WriteFrame(r *mosaic.Rendered) error {
	size := r.Image.Bounds().Size()
	if v.size == (image.Point{}) {
		v.size = size
	} else if v.size != size {
		return fmt.Errorf("mosaic record: frame size changed from %v to %v", v.size, size)
	}

	if err := bmp.Encode(v.buf, r.Image); err != nil {
		return fmt.Errorf("mosaic record: write frame: %w", err)
	}
	return nil
}

// Close flushes the remaining frames and waits for ffmpeg to finish the
// file.
func (v *Video) Close() error {
	ferr := v.buf.Flush()
	v.stdin.Close()
	if err := v.cmd.Wait(); err != nil {
		return fmt.Errorf("mosaic record: ffmpeg: %w", err)
	}
	return ferr
}
