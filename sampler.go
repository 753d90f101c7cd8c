package mosaic

import (
	"context"
	"image"
	"iter"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Command is a single draw instruction: the artifact at Index drawn with its
// top-left corner at Pos.
type Command struct {
	Index int
	Pos   image.Point
}

// IndexGrid exposes one packed index per pixel position.
type IndexGrid interface {
	Size() (width, height int)
	Index(x, y int) int
}

// GlyphStep returns the sampling stride for a glyph of the given point size.
func GlyphStep(size int) int {
	return int(float64(size) * 0.6)
}

// BlockStep returns the sampling stride for pixel blocks of the given size.
func BlockStep(size int) int {
	return size
}

// Sample walks grid on a stride of step pixels in both axes and yields a
// command for every visited cell that skip does not reject. The sequence is
// lazy, in raster order, and can only be ranged over once per call.
func Sample(grid IndexGrid, step int, skip func(int) bool) iter.Seq[Command] {
	if step < 1 {
		panic("mosaic: Sample: step must be positive")
	}

	return func(yield func(Command) bool) {
		w, h := grid.Size()
		for y := 0; y < h; y += step {
			for x := 0; x < w; x += step {
				idx := grid.Index(x, y)
				if skip(idx) {
					continue
				}
				if !yield(Command{Index: idx, Pos: image.Pt(x, y)}) {
					return
				}
			}
		}
	}
}

// SampleParallel performs the same walk as Sample with the sampled rows
// split into bands across workers. Bands are concatenated in order, so the
// result equals collecting Sample.
func SampleParallel(ctx context.Context, grid IndexGrid, step int,
	skip func(int) bool, workers int) ([]Command, error) {
	if step < 1 {
		panic("mosaic: SampleParallel: step must be positive")
	}
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	w, h := grid.Size()
	rows := (h + step - 1) / step
	if rows == 0 || w == 0 {
		return nil, nil
	}
	if workers > rows {
		workers = rows
	}

	bands := make([][]Command, workers)
	perBand := (rows + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		i := i
		g.Go(func() error {
			first := i * perBand
			last := first + perBand
			if last > rows {
				last = rows
			}

			var out []Command
			for row := first; row < last; row++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				y := row * step
				for x := 0; x < w; x += step {
					idx := grid.Index(x, y)
					if skip(idx) {
						continue
					}
					out = append(out, Command{Index: idx, Pos: image.Pt(x, y)})
				}
			}
			bands[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, b := range bands {
		total += len(b)
	}
	cmds := make([]Command, 0, total)
	for _, b := range bands {
		cmds = append(cmds, b...)
	}

	return cmds, nil
}
