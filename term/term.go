// Package term shows mosaics in an ANSI terminal, one character cell per
// sampled cell.
package term

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/term"

	"github.com/tmpim/mosaic"
)

// ColorMode selects how colors are written to the terminal.
type ColorMode int

// Color modes.
const (
	ColorAuto ColorMode = iota
	ColorTrue
	Color256
	ColorNone
)

// ParseColorMode parses a color mode name.
func ParseColorMode(s string) (ColorMode, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return ColorAuto, nil
	case "true", "truecolor", "24bit":
		return ColorTrue, nil
	case "256":
		return Color256, nil
	case "none", "mono":
		return ColorNone, nil
	}
	return ColorAuto, fmt.Errorf("mosaic term: unknown color mode %q", s)
}

// DetectColorMode guesses the color support of the terminal from COLORTERM.
func DetectColorMode() ColorMode {
	switch os.Getenv("COLORTERM") {
	case "truecolor", "24bit":
		return ColorTrue
	}
	return Color256
}

// Size returns the size of the terminal on stdout in character cells, or
// 80x24 if stdout is not a terminal.
func Size() (cols, rows int) {
	fd := int(os.Stdout.Fd())
	if term.IsTerminal(fd) {
		if cols, rows, err := term.GetSize(fd); err == nil {
			return cols, rows
		}
	}
	return 80, 24
}

// Options configures a Display.
type Options struct {
	Colors ColorMode

	// Cols and Rows bound the output. Zero uses the terminal size.
	Cols int
	Rows int

	// SyncOutput wraps every frame in synchronized output sequences.
	SyncOutput bool
}

// Display is a mosaic.Display writing ANSI frames.
type Display struct {
	w    *bufio.Writer
	opts Options

	mu      sync.Mutex
	open    bool
	styles  map[int]string
	symbols []rune
	colors  []string
}

// New returns a display writing to w.
func New(w io.Writer, opts Options) *Display {
	if opts.Colors == ColorAuto {
		opts.Colors = DetectColorMode()
	}
	if opts.Cols <= 0 || opts.Rows <= 0 {
		cols, rows := Size()
		if opts.Cols <= 0 {
			opts.Cols = cols
		}
		if opts.Rows <= 0 {
			opts.Rows = rows
		}
	}

	return &Display{
		w:      bufio.NewWriterSize(w, 1<<16),
		opts:   opts,
		styles: make(map[int]string),
	}
}

func (d *Display) beginSync() {
	if d.opts.SyncOutput {
		d.w.WriteString("\x1b[?2026h")
	}
}

func (d *Display) endSync() {
	if d.opts.SyncOutput {
		d.w.WriteString("\x1b[?2026l")
	}
}

// Open switches to the alternate screen and hides the cursor. Present calls
// it on the first frame.
func (d *Display) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.openLocked()
}

func (d *Display) openLocked() error {
	if d.open {
		return nil
	}
	d.open = true
	d.w.WriteString("\x1b[?1049h\x1b[?25l\x1b[?7l\x1b[3J\x1b[H")
	return d.w.Flush()
}

// Close restores the primary screen and the cursor.
func (d *Display) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open {
		return nil
	}
	d.open = false
	d.w.WriteString("\x1b[0m\x1b[?7h\x1b[?25h\x1b[?1049l")
	return d.w.Flush()
}

func (d *Display) style(enc mosaic.Encoding, index int) string {
	if s, ok := d.styles[index]; ok {
		return s
	}

	a := enc.Artifact(index)
	c := colorful.Color{
		R: float64(a.Color.R) / 255,
		G: float64(a.Color.G) / 255,
		B: float64(a.Color.B) / 255,
	}

	var s string
	switch d.opts.Colors {
	case ColorTrue:
		s = "\x1b[38;2;" + strconv.Itoa(int(a.Color.R)) + ";" +
			strconv.Itoa(int(a.Color.G)) + ";" + strconv.Itoa(int(a.Color.B)) + "m"
	case Color256:
		s = "\x1b[38;5;" + strconv.Itoa(Nearest256(c)) + "m"
	}
	d.styles[index] = s
	return s
}

// Present draws the sampled cells of r, cropped to the display size.
func (d *Display) Present(r *mosaic.Rendered) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.openLocked(); err != nil {
		return err
	}

	cols, rows := d.opts.Cols, d.opts.Rows
	step := r.Encoding.Step()

	if len(d.symbols) != cols*rows {
		d.symbols = make([]rune, cols*rows)
		d.colors = make([]string, cols*rows)
	}
	for i := range d.symbols {
		d.symbols[i] = ' '
		d.colors[i] = ""
	}

	for _, cmd := range r.Commands {
		x, y := cmd.Pos.X/step, cmd.Pos.Y/step
		if x >= cols || y >= rows {
			continue
		}
		a := r.Encoding.Artifact(cmd.Index)
		d.symbols[y*cols+x] = a.Symbol
		d.colors[y*cols+x] = d.style(r.Encoding, cmd.Index)
	}

	d.beginSync()
	d.w.WriteString("\x1b[H")
	for y := 0; y < rows; y++ {
		current := ""
		for x := 0; x < cols; x++ {
			i := y*cols + x
			if s := d.colors[i]; s != current && d.symbols[i] != ' ' {
				d.w.WriteString(s)
				current = s
			}
			d.w.WriteRune(d.symbols[i])
		}
		d.w.WriteString("\x1b[0m")
		if y < rows-1 {
			d.w.WriteString("\r\n")
		}
	}
	d.endSync()

	return d.w.Flush()
}
