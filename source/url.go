package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// IsURL reports whether input names a remote resource rather than a file.
func IsURL(input string) bool {
	return strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://")
}

type ytdlpMetadata struct {
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Fps      float64 `json:"fps"`
}

type processReader struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (p *processReader) Close() error {
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}

	go io.Copy(io.Discard, p.ReadCloser)

	p.cmd.Wait()

	return nil
}

// YTDLP downloads videoURL with yt-dlp and returns its metadata together
// with the media stream.
func YTDLP(ctx context.Context, videoURL string) (*Metadata, io.ReadCloser, error) {
	args := []string{"-f", "best[height<=720]/best", "-o", "-", "--print-json", videoURL}

	cmd := exec.CommandContext(ctx, "yt-dlp", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("mosaic source: start yt-dlp: %w", err)
	}

	stderrBuf := new(bytes.Buffer)
	rd := io.TeeReader(stderr, stderrBuf)

	var metadata ytdlpMetadata
	jsonErr := json.NewDecoder(rd).Decode(&metadata)
	go io.Copy(io.Discard, rd)
	if jsonErr != nil {
		// assume the download failed
		go io.Copy(io.Discard, stdout)
		cmd.Process.Kill()
		cmd.Wait()

		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, fmt.Errorf("mosaic source: yt-dlp: failed to parse json: %w; output: %s",
			jsonErr, stderrBuf.String())
	}

	meta := &Metadata{
		Title:     metadata.Title,
		Duration:  time.Duration(metadata.Duration * float64(time.Second)),
		Width:     metadata.Width,
		Height:    metadata.Height,
		Framerate: metadata.Fps,
	}

	return meta, &processReader{ReadCloser: stdout, cmd: cmd}, nil
}

// Streamlink opens the best quality of a live stream with streamlink.
func Streamlink(ctx context.Context, streamURL string) (*Metadata, io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, "streamlink", streamURL, "best", "-O")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("mosaic source: start streamlink: %w", err)
	}

	return &Metadata{Title: streamURL}, &processReader{ReadCloser: stdout, cmd: cmd}, nil
}

// OpenReader decodes a media stream read from rd with ffmpeg. rd is closed
// with the returned source.
func OpenReader(ctx context.Context, rd io.ReadCloser, opts VideoOptions) (*Video, error) {
	opts.Input = rd
	v, err := OpenVideo(ctx, "-", opts)
	if err != nil {
		rd.Close()
		return nil, err
	}
	v.upstream = rd
	return v, nil
}

// OpenURL plays a remote video through yt-dlp, or a live stream through
// streamlink when live is set.
func OpenURL(ctx context.Context, url string, live bool, opts VideoOptions) (*Video, *Metadata, error) {
	open := YTDLP
	if live {
		open = Streamlink
	}

	meta, rd, err := open(ctx, url)
	if err != nil {
		return nil, nil, err
	}

	v, err := OpenReader(ctx, rd, opts)
	if err != nil {
		return nil, nil, err
	}
	return v, meta, nil
}
