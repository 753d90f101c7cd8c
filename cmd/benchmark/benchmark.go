package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"sync"
	"time"

	"github.com/tmpim/mosaic"
	"github.com/tmpim/mosaic/source"
)

var (
	mode       = flag.String("mode", "color", "cell encoding: glyph, color or block")
	level      = flag.Int("level", mosaic.DefaultLevel, "color quantization level")
	goroutines = flag.Int("g", 8, "concurrent conversions")
	iterations = flag.Int("n", 100, "conversions per goroutine")
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: benchmark [options] image")
		os.Exit(1)
	}

	img, _, err := source.Decode(flag.Arg(0))
	if err != nil {
		panic(err)
	}

	setup := time.Now()
	conv, err := mosaic.NewConverter(mosaic.Options{
		Mode:    mosaic.Mode(*mode),
		Level:   *level,
		Workers: 1,
	})
	if err != nil {
		panic(err)
	}
	fmt.Println("setup took:", time.Since(setup))

	wg := new(sync.WaitGroup)
	start := time.Now()

	for w := 0; w < *goroutines; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			canvas := &mosaic.Canvas{}
			for i := 0; i < *iterations; i++ {
				f := conv.NewFrame(img)
				cmds, err := conv.ConvertFrame(context.Background(), f)
				if err != nil {
					panic(err)
				}

				canvas.Reset(f.Size())
				conv.Render(canvas.RGBA, cmds)
			}
		}()
	}

	wg.Wait()
	took := time.Since(start)
	frames := *goroutines * *iterations
	fmt.Println("took:", took)
	fmt.Printf("%.1f frames/s for %v frames\n", float64(frames)/took.Seconds(), image.Pt(img.Bounds().Dx(), img.Bounds().Dy()))
}
