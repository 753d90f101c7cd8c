package main

import (
	"context"
	"errors"
	"image"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/gift"
	"github.com/urfave/cli/v2"

	"github.com/tmpim/mosaic"
	"github.com/tmpim/mosaic/record"
	"github.com/tmpim/mosaic/source"
	"github.com/tmpim/mosaic/stream"
	"github.com/tmpim/mosaic/term"
)

const defaultOutput = "ascii_art.png"

var conversionFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "mode",
		Aliases: []string{"m"},
		EnvVars: []string{"MOSAIC_MODE"},
		Value:   string(mosaic.ModeGlyph),
		Usage:   "cell encoding: glyph, color or block",
	},
	&cli.IntFlag{
		Name:    "size",
		Aliases: []string{"s"},
		EnvVars: []string{"MOSAIC_SIZE"},
		Usage:   "glyph point size or block size in pixels (default 12 for glyphs, 7 for blocks)",
	},
	&cli.IntFlag{
		Name:    "level",
		Aliases: []string{"l"},
		EnvVars: []string{"MOSAIC_LEVEL"},
		Value:   mosaic.DefaultLevel,
		Usage:   "color quantization level per channel",
	},
	&cli.StringFlag{
		Name:    "ramp",
		EnvVars: []string{"MOSAIC_RAMP"},
		Usage:   "glyphs from empty to densest (default depends on mode)",
	},
	&cli.IntFlag{
		Name:    "width",
		Aliases: []string{"w"},
		EnvVars: []string{"MOSAIC_WIDTH"},
		Usage:   "resize input to this width before conversion",
	},
	&cli.IntFlag{
		Name:    "workers",
		EnvVars: []string{"MOSAIC_WORKERS"},
		Usage:   "sampling goroutines (default GOMAXPROCS)",
	},
	&cli.BoolFlag{
		Name:  "term",
		Usage: "show the result in the terminal",
	},
	&cli.StringFlag{
		Name:    "colors",
		EnvVars: []string{"MOSAIC_COLORS"},
		Value:   "auto",
		Usage:   "terminal colors: auto, truecolor, 256 or none",
	},
}

func newLogger(c *cli.Context) *log.Logger {
	logger := log.New(io.Discard, "", 0)
	if c.Bool("verbose") {
		logger.SetOutput(os.Stderr)
		logger.SetFlags(log.LstdFlags)
	}
	return logger
}

func newConverter(c *cli.Context, logger *log.Logger) (*mosaic.Converter, error) {
	opts := mosaic.Options{
		Mode:    mosaic.Mode(c.String("mode")),
		Size:    c.Int("size"),
		Level:   c.Int("level"),
		Width:   c.Int("width"),
		Workers: c.Int("workers"),
		Logger:  logger,
	}
	if r := c.String("ramp"); r != "" {
		opts.Ramp = mosaic.Ramp(r)
	}
	return mosaic.NewConverter(opts)
}

func newTermDisplay(c *cli.Context) (*term.Display, error) {
	colors, err := term.ParseColorMode(c.String("colors"))
	if err != nil {
		return nil, err
	}
	return term.New(os.Stdout, term.Options{Colors: colors, SyncOutput: true}), nil
}

// stopOnInterrupt stops ctl on the first interrupt, letting the pipeline
// finish the current frame and finalize its output. A second interrupt
// cancels the returned context.
func stopOnInterrupt(ctl *mosaic.Control, logger *log.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 2)
	signal.Notify(sig, os.Interrupt)

	go func() {
		select {
		case <-sig:
			logger.Println("mosaic: interrupted, stopping")
			ctl.Stop()
		case <-ctx.Done():
			return
		}
		select {
		case <-sig:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sig)
		cancel()
	}
}

func savePreview(path string, img image.Image) error {
	g := gift.New(gift.Resize(640, 360, gift.LanczosResampling))
	dst := image.NewRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return record.SaveImage(path, dst)
}

func imageAction(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	logger := newLogger(c)
	start := time.Now()

	src, err := source.OpenImage(c.Args().First())
	if err != nil {
		return cli.Exit(err, 1)
	}

	conv, err := newConverter(c, logger)
	if err != nil {
		return cli.Exit(err, 1)
	}

	if p := c.String("preview"); p != "" {
		if err := savePreview(p, src.Image()); err != nil {
			logger.Println("mosaic: warning: failed to save preview:", err)
		}
	}

	rec, err := record.NewStill(c.String("output"))
	if err != nil {
		return cli.Exit(err, 1)
	}

	opts := mosaic.PipelineOptions{
		Source:    src,
		Converter: conv,
		Recorder:  rec,
		Logger:    logger,
	}

	var display *term.Display
	if c.Bool("term") {
		display, err = newTermDisplay(c)
		if err != nil {
			return cli.Exit(err, 1)
		}
		opts.Displays = append(opts.Displays, display)
	}

	p, err := mosaic.NewPipeline(opts)
	if err != nil {
		return cli.Exit(err, 1)
	}

	if err := p.Run(context.Background()); err != nil {
		return cli.Exit(err, 1)
	}

	if display != nil {
		// keep the picture up until enter is pressed
		os.Stdin.Read(make([]byte, 1))
		display.Close()
	}

	logger.Println("mosaic: done, that took " + time.Since(start).String())
	return nil
}

func openVideoSource(ctx context.Context, c *cli.Context, logger *log.Logger) (mosaic.Source, string, float64, error) {
	input := c.Args().First()
	fps := c.Int("fps")
	opts := source.VideoOptions{Framerate: fps, Debug: c.Bool("verbose")}

	switch {
	case source.IsURL(input):
		v, meta, err := source.OpenURL(ctx, input, c.Bool("live"), opts)
		if err != nil {
			return nil, "", 0, err
		}
		return v, meta.Title, float64(fps), nil

	case input == "-":
		v, err := source.OpenReader(ctx, io.NopCloser(os.Stdin), opts)
		return v, "stdin", float64(fps), err

	case strings.EqualFold(filepath.Ext(input), ".gif"):
		g, err := source.OpenGIF(input)
		if err != nil {
			return nil, "", 0, err
		}
		rate := g.Framerate()
		if rate == 0 {
			rate = float64(fps)
		}
		if c.Bool("loop") {
			g.Loop()
		}
		return g, source.Title(input), rate, nil

	default:
		title := source.Title(input)
		if meta, err := source.Probe(input); err != nil {
			logger.Println("mosaic: warning: failed to probe input:", err)
		} else {
			title = meta.Title
			// sample at the native rate unless asked otherwise
			if n := int(meta.Framerate + 0.5); !c.IsSet("fps") && n > 0 {
				opts.Framerate = n
			}
			logger.Printf("mosaic: %s: %dx%d, %v at %.2f fps",
				title, meta.Width, meta.Height, meta.Duration, meta.Framerate)
		}

		v, err := source.OpenVideo(ctx, input, opts)
		return v, title, float64(opts.Framerate), err
	}
}

func videoAction(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	logger := newLogger(c)
	start := time.Now()

	conv, err := newConverter(c, logger)
	if err != nil {
		return cli.Exit(err, 1)
	}

	ctl := mosaic.NewControl(!c.Bool("paused-recording"))
	ctx, cancel := stopOnInterrupt(ctl, logger)
	defer cancel()

	src, title, rate, err := openVideoSource(ctx, c, logger)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer src.Close()

	opts := mosaic.PipelineOptions{
		Source:    src,
		Converter: conv,
		Control:   ctl,
		Logger:    logger,
	}

	if out := c.String("output"); out != "" {
		// The recorder must outlive an interrupt to finalize its output.
		rec, err := record.Open(context.Background(), out, record.Options{
			Framerate: int(rate + 0.5),
			Debug:     c.Bool("verbose"),
		})
		if err != nil {
			return cli.Exit(err, 1)
		}
		opts.Recorder = rec
	}

	realtime := false

	if c.Bool("term") {
		display, err := newTermDisplay(c)
		if err != nil {
			return cli.Exit(err, 1)
		}
		defer display.Close()
		opts.Displays = append(opts.Displays, display)
		realtime = true
	}

	if addr := c.String("serve"); addr != "" {
		hub := stream.NewHub(ctl, title, logger)
		go hub.Watch(ctx)

		srv := stream.NewServer(hub)
		go func() {
			if err := srv.Start(addr); err != nil {
				logger.Println("mosaic: preview server stopped:", err)
			}
		}()
		defer srv.Close()

		opts.Displays = append(opts.Displays, hub)
		realtime = true
		log.Println("mosaic: preview at http://" + addr)
	}

	if realtime && !source.IsURL(c.Args().First()) {
		opts.Framerate = rate
	}

	p, err := mosaic.NewPipeline(opts)
	if err != nil {
		return cli.Exit(err, 1)
	}

	err = p.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return cli.Exit(err, 1)
	}

	logger.Printf("mosaic: %d frames, that took %s", p.Frames(), time.Since(start))
	return nil
}

func main() {
	app := cli.NewApp()

	app.Name = "mosaic"
	app.Usage = "render images and video as glyph and color block mosaics"
	app.Version = "1.0.0"

	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			EnvVars: []string{"MOSAIC_VERBOSE"},
			Usage:   "increase verbosity",
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:      "image",
			Usage:     "Convert a still image",
			ArgsUsage: "INPUT",
			Flags: append([]cli.Flag{
				&cli.StringFlag{
					Name:    "output",
					Aliases: []string{"o"},
					Value:   defaultOutput,
					Usage:   "output image (.png, .jpg, .bmp or .gif)",
				},
				&cli.StringFlag{
					Name:  "preview",
					Usage: "also save the input resized to 640x360 to this path",
				},
			}, conversionFlags...),
			Action: imageAction,
		},
		{
			Name:      "video",
			Usage:     "Convert a video, animated GIF or URL frame by frame",
			ArgsUsage: "INPUT",
			Flags: append([]cli.Flag{
				&cli.StringFlag{
					Name:    "output",
					Aliases: []string{"o"},
					Usage:   "record to a video (.mp4, .mkv, ...), .gif, .cast or still image",
				},
				&cli.IntFlag{
					Name:    "fps",
					EnvVars: []string{"MOSAIC_FPS"},
					Value:   source.DefaultFramerate,
					Usage:   "frame rate to sample the input at",
				},
				&cli.StringFlag{
					Name:    "serve",
					EnvVars: []string{"MOSAIC_SERVE"},
					Usage:   "serve a live preview on this address, e.g. localhost:9999",
				},
				&cli.BoolFlag{
					Name:  "live",
					Usage: "open URLs as live streams with streamlink instead of yt-dlp",
				},
				&cli.BoolFlag{
					Name:  "loop",
					Usage: "loop animated GIFs until interrupted",
				},
				&cli.BoolFlag{
					Name:  "paused-recording",
					Usage: "start with recording off, toggled from the preview",
				},
			}, conversionFlags...),
			Action: videoAction,
		},
		{
			Name:      "play",
			Usage:     "Replay a recorded cast in the terminal",
			ArgsUsage: "FILE",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  "fps",
					Value: source.DefaultFramerate,
					Usage: "playback frame rate",
				},
				&cli.StringFlag{
					Name:  "colors",
					Value: "auto",
					Usage: "terminal colors: auto, truecolor, 256 or none",
				},
				&cli.StringFlag{
					Name:    "output",
					Aliases: []string{"o"},
					Usage:   "render the cast to a video, .gif or still image instead",
				},
			},
			Action: playAction,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
