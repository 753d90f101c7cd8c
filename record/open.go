package record

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmpim/mosaic"
)

// Options configures Open.
type Options struct {
	Framerate int
	Debug     bool
}

type fileRecorder struct {
	mosaic.Recorder
	f *os.File
}

func (r *fileRecorder) Close() error {
	err := r.Recorder.Close()
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Open picks a recorder for path by its extension: videos for .mp4, .mkv,
// .mov, .avi and .webm, an animation for .gif, a cast for .cast and the last
// frame as a still image for .png, .jpg and .bmp. A .gif keeps all frames in
// memory until Close.
func Open(ctx context.Context, path string, opts Options) (mosaic.Recorder, error) {
	if opts.Framerate <= 0 {
		opts.Framerate = 20
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp4", ".mkv", ".mov", ".avi", ".webm":
		return NewVideo(ctx, path, opts.Framerate, opts.Debug)
	case ".gif":
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("mosaic record: %w", err)
		}
		g, err := NewGIF(f, opts.Framerate)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &fileRecorder{Recorder: g, f: f}, nil
	case ".cast":
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("mosaic record: %w", err)
		}
		c, err := NewCast(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &fileRecorder{Recorder: c, f: f}, nil
	case ".png", ".jpg", ".jpeg", ".bmp":
		return NewStill(path)
	default:
		return nil, fmt.Errorf("mosaic record: no recorder for extension %q", ext)
	}
}
