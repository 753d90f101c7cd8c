package source

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Metadata describes a media file.
type Metadata struct {
	Title     string        `json:"title"`
	Duration  time.Duration `json:"duration"`
	Width     int           `json:"width,omitempty"`
	Height    int           `json:"height,omitempty"`
	Framerate float64       `json:"framerate,omitempty"`
}

// Title returns the base name of path without its extension.
func Title(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

var (
	durationPattern = regexp.MustCompile(`(?m)^\s+Duration: (\d*):(\d*):(\d*)\.(\d*),`)
	videoPattern    = regexp.MustCompile(`(?m)Stream #.*Video: .*?, (\d+)x(\d+)`)
	fpsPattern      = regexp.MustCompile(`(?m)Stream #.*Video: .*?([\d.]+) fps`)
)

// Probe inspects path with ffprobe.
func Probe(path string) (*Metadata, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("mosaic source: %w", err)
	}

	out, err := exec.Command("ffprobe", "-hide_banner", path).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("mosaic source: ffprobe %s: %w", path, err)
	}

	meta := ParseProbe(string(out))
	meta.Title = Title(path)
	return meta, nil
}

// ParseProbe extracts metadata from ffprobe's human readable output.
func ParseProbe(out string) *Metadata {
	meta := &Metadata{}

	matches := durationPattern.FindStringSubmatch(out)
	if len(matches) != 0 {
		var h, m, s, ms int
		if len(matches[4]) < 3 {
			matches[4] = matches[4] + strings.Repeat("0", 3-len(matches[4]))
		}
		_, err := fmt.Sscanf(matches[1]+" "+matches[2]+" "+matches[3]+" "+
			matches[4][:3], "%d %d %d %d", &h, &m, &s, &ms)
		if err == nil {
			meta.Duration = time.Duration(h)*time.Hour +
				time.Duration(m)*time.Minute +
				time.Duration(s)*time.Second +
				time.Duration(ms)*time.Millisecond
		}
	}

	if matches := videoPattern.FindStringSubmatch(out); len(matches) != 0 {
		meta.Width, _ = strconv.Atoi(matches[1])
		meta.Height, _ = strconv.Atoi(matches[2])
	}

	if matches := fpsPattern.FindStringSubmatch(out); len(matches) != 0 {
		meta.Framerate, _ = strconv.ParseFloat(matches[1], 64)
	}

	return meta
}
